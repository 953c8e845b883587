// Package agent 实现会话智能体的 ReAct 推理循环：调用大模型、执行链上工具，
// 并将每一步以流式事件的形式交给调用方。对话记忆只在一轮完整结束后提交。
package agent
