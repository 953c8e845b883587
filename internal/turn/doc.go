// Package turn 将智能体的事件流折叠为一次 /chat 响应。
package turn
