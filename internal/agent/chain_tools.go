package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"AgentKit-Chain/internal/llm"
	"AgentKit-Chain/internal/web3"
	"AgentKit-Chain/internal/web3/keys"
)

const (
	ToolWalletAddress = "get_wallet_address"
	ToolBalance       = "get_balance"
	ToolNetworkStatus = "get_network_status"
	ToolSignMessage   = "sign_message"
)

// ChainTools 返回会话钱包可用的只读链上工具与离线签名工具。
// signer 为空时不提供 sign_message。
func ChainTools(client web3.Client, signer keys.Signer) []Tool {
	tools := []Tool{
		{
			Definition: llm.ToolDefinition{
				Name:        ToolWalletAddress,
				Description: "Return the public address of the agent wallet.",
				Parameters:  json.RawMessage(`{"type":"object","properties":{}}`),
			},
			Handler: func(context.Context, json.RawMessage) (ToolResult, error) {
				if signer == nil {
					return ToolResult{Content: "wallet is not available", IsError: true}, nil
				}
				return ToolResult{Content: signer.Address()}, nil
			},
		},
		{
			Definition: llm.ToolDefinition{
				Name:        ToolBalance,
				Description: "Return the native token balance of an address. Defaults to the agent wallet.",
				Parameters:  json.RawMessage(`{"type":"object","properties":{"address":{"type":"string","description":"Address to query; omit for the agent wallet."}}}`),
			},
			Handler: func(ctx context.Context, raw json.RawMessage) (ToolResult, error) {
				var args struct {
					Address string `json:"address"`
				}
				if err := decodeArgs(raw, &args); err != nil {
					return ToolResult{Content: err.Error(), IsError: true}, nil
				}
				address := strings.TrimSpace(args.Address)
				if address == "" && signer != nil {
					address = signer.Address()
				}
				if address == "" {
					return ToolResult{Content: "address is required", IsError: true}, nil
				}
				balance, err := client.Balance(ctx, address)
				if err != nil {
					return ToolResult{}, err
				}
				return ToolResult{Content: fmt.Sprintf("Balance of %s: %s", balance.Address, balance.Formatted())}, nil
			},
		},
		{
			Definition: llm.ToolDefinition{
				Name:        ToolNetworkStatus,
				Description: "Return the chain id, current height and node version of the connected network.",
				Parameters:  json.RawMessage(`{"type":"object","properties":{}}`),
			},
			Handler: func(ctx context.Context, _ json.RawMessage) (ToolResult, error) {
				status, err := client.Status(ctx)
				if err != nil {
					return ToolResult{}, err
				}
				encoded, err := json.Marshal(status)
				if err != nil {
					return ToolResult{}, err
				}
				return ToolResult{Content: string(encoded)}, nil
			},
		},
	}

	if signer != nil {
		tools = append(tools, Tool{
			Definition: llm.ToolDefinition{
				Name:        ToolSignMessage,
				Description: "Sign an off-chain text message with the agent wallet. No transaction is sent.",
				Parameters:  json.RawMessage(`{"type":"object","properties":{"message":{"type":"string"}},"required":["message"]}`),
			},
			Handler: func(_ context.Context, raw json.RawMessage) (ToolResult, error) {
				var args struct {
					Message string `json:"message"`
				}
				if err := decodeArgs(raw, &args); err != nil {
					return ToolResult{Content: err.Error(), IsError: true}, nil
				}
				if args.Message == "" {
					return ToolResult{Content: "message is required", IsError: true}, nil
				}
				sig, err := signer.SignMessage([]byte(args.Message))
				if err != nil {
					return ToolResult{}, err
				}
				return ToolResult{Content: sig}, nil
			},
		})
	}
	return tools
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.New("invalid tool arguments: expected a JSON object")
	}
	return nil
}
