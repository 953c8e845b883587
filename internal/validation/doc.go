// Package validation 校验 HTTP 请求字段并归一化为会话配置。
package validation
