// Package api 提供 /init、/chat、/wallet 等 HTTP 接口，
// 将请求转交给 session.Manager 与 turn.Aggregator。
package api
