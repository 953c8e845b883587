package validation

import (
	"encoding/json"
	"math"
	"strings"

	xerrors "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/internal/session"
)

// 请求字段名，与 HTTP 接口保持一致。
const (
	FieldOpenAIAPIKey = "OPENAI_API_KEY"
	FieldRPCURL       = "RPC_URL"
	FieldLLM          = "llm"
	FieldModelName    = "modelName"
	FieldTemperature  = "temperature"
	FieldMessage      = "message"
)

// 固定的校验失败文案。
const (
	MsgMissingFields      = "Missing required fields"
	MsgTemperatureRange   = "Temperature must be a number between 0 and 1"
	MsgLLMNotObject       = "llm must be an object"
	MsgModelNameNotString = "llm.modelName must be a string"
	MsgMessageRequired    = "Message is required"
)

// Defaults 是请求未指定 llm 时使用的模型设置。
type Defaults struct {
	ModelName   string
	Temperature float64
}

// ParseInit 校验 /init 请求并构造 session.Config。
// 所有违规项一次性返回；校验通过前不会产生任何副作用。
func ParseInit(fields map[string]any, defaults Defaults) (session.Config, error) {
	var (
		missing    []string
		violations []string
	)

	apiKey, ok := nonEmptyString(fields[FieldOpenAIAPIKey])
	if !ok {
		missing = append(missing, FieldOpenAIAPIKey)
	}
	rpcURL, ok := nonEmptyString(fields[FieldRPCURL])
	if !ok {
		missing = append(missing, FieldRPCURL)
	}

	settings := session.LLMSettings{ModelName: defaults.ModelName, Temperature: defaults.Temperature}
	if raw, present := fields[FieldLLM]; present && raw != nil {
		obj, isObj := raw.(map[string]any)
		if !isObj {
			violations = append(violations, MsgLLMNotObject)
		} else {
			if v, present := obj[FieldModelName]; present && v != nil {
				name, isStr := v.(string)
				switch {
				case !isStr:
					violations = append(violations, MsgModelNameNotString)
				case strings.TrimSpace(name) != "":
					settings.ModelName = strings.TrimSpace(name)
				}
			}
			if v, present := obj[FieldTemperature]; present {
				t, valid := temperature(v)
				if !valid {
					violations = append(violations, MsgTemperatureRange)
				} else {
					settings.Temperature = t
				}
			}
		}
	}

	if len(missing) == 0 && len(violations) == 0 {
		return session.Config{LLM: settings, OpenAIAPIKey: apiKey, RPCURL: rpcURL}, nil
	}

	message := MsgMissingFields
	if len(missing) == 0 {
		message = violations[0]
	}
	opts := []xerrors.Option{xerrors.WithMissingFields(missing...)}
	if len(missing) > 0 {
		violations = append([]string{MsgMissingFields}, violations...)
	}
	if len(violations) > 1 {
		opts = append(opts, xerrors.WithDetails(violations...))
	}
	return session.Config{}, xerrors.New(xerrors.CodeInvalidArgument, message, opts...)
}

// ParseChat 校验 /chat 请求，返回原始消息文本。
func ParseChat(fields map[string]any) (string, error) {
	msg, ok := fields[FieldMessage].(string)
	if !ok || strings.TrimSpace(msg) == "" {
		return "", xerrors.New(xerrors.CodeInvalidArgument, MsgMessageRequired, xerrors.WithMissingFields(FieldMessage))
	}
	return msg, nil
}

func nonEmptyString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return strings.TrimSpace(s), true
}

// temperature 接受 JSON 数字（float64 或 json.Number），且必须位于 [0, 1]。
func temperature(v any) (float64, bool) {
	var t float64
	switch n := v.(type) {
	case float64:
		t = n
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		t = f
	default:
		return 0, false
	}
	if math.IsNaN(t) || t < 0 || t > 1 {
		return 0, false
	}
	return t, true
}
