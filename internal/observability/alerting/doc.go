// Package alerting 将严重错误（如会话初始化失败）投递到日志或 Webhook。
package alerting
