package validation

import (
	"encoding/json"
	"strings"
	"testing"

	xerrors "AgentKit-Chain/internal/errors"
)

var defaults = Defaults{ModelName: "gpt-4o-mini", Temperature: 0.7}

func decode(t *testing.T, body string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return fields
}

func TestParseInitDefaults(t *testing.T) {
	cfg, err := ParseInit(decode(t, `{"OPENAI_API_KEY":"sk","RPC_URL":"https://rpc"}`), defaults)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.ModelName != "gpt-4o-mini" || cfg.LLM.Temperature != 0.7 {
		t.Fatalf("defaults not applied: %+v", cfg.LLM)
	}
	if cfg.OpenAIAPIKey != "sk" || cfg.RPCURL != "https://rpc" {
		t.Fatalf("credentials not carried")
	}
}

func TestParseInitCustomLLM(t *testing.T) {
	cfg, err := ParseInit(decode(t, `{"OPENAI_API_KEY":"sk","RPC_URL":"u","llm":{"modelName":"gpt-4o","temperature":0}}`), defaults)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.ModelName != "gpt-4o" || cfg.LLM.Temperature != 0 {
		t.Fatalf("unexpected llm: %+v", cfg.LLM)
	}

	cfg, err = ParseInit(decode(t, `{"OPENAI_API_KEY":"sk","RPC_URL":"u","llm":{"temperature":1}}`), defaults)
	if err != nil || cfg.LLM.Temperature != 1 || cfg.LLM.ModelName != "gpt-4o-mini" {
		t.Fatalf("partial llm must keep default model: %+v %v", cfg.LLM, err)
	}
}

func TestParseInitMissingBoth(t *testing.T) {
	_, err := ParseInit(map[string]any{}, defaults)
	e, ok := xerrors.From(err)
	if !ok || e.Code() != xerrors.CodeInvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT, got %v", err)
	}
	if e.Message() != MsgMissingFields {
		t.Fatalf("unexpected message: %s", e.Message())
	}
	missing := e.MissingFields()
	if len(missing) != 2 || missing[0] != FieldOpenAIAPIKey || missing[1] != FieldRPCURL {
		t.Fatalf("unexpected missing fields: %v", missing)
	}
}

func TestParseInitEmptyOrWrongTypeCountsAsMissing(t *testing.T) {
	_, err := ParseInit(decode(t, `{"OPENAI_API_KEY":"  ","RPC_URL":42}`), defaults)
	e, _ := xerrors.From(err)
	if len(e.MissingFields()) != 2 {
		t.Fatalf("expected both fields missing, got %v", e.MissingFields())
	}
}

func TestParseInitTemperatureViolations(t *testing.T) {
	for _, temp := range []string{"-0.1", "1.1", `"0.5"`, "null", "true", "[0.5]"} {
		body := `{"OPENAI_API_KEY":"sk","RPC_URL":"u","llm":{"modelName":"m","temperature":` + temp + `}}`
		_, err := ParseInit(decode(t, body), defaults)
		e, ok := xerrors.From(err)
		if !ok || e.Code() != xerrors.CodeInvalidArgument {
			t.Fatalf("temperature %s: expected INVALID_ARGUMENT, got %v", temp, err)
		}
		if e.Message() != MsgTemperatureRange {
			t.Fatalf("temperature %s: unexpected message %q", temp, e.Message())
		}
	}

	// float64 values from a decoder without UseNumber are accepted too
	cfg, err := ParseInit(map[string]any{"OPENAI_API_KEY": "sk", "RPC_URL": "u", "llm": map[string]any{"temperature": 0.25}}, defaults)
	if err != nil || cfg.LLM.Temperature != 0.25 {
		t.Fatalf("float temperature rejected: %v", err)
	}
}

func TestParseInitReportsAllViolations(t *testing.T) {
	_, err := ParseInit(decode(t, `{"RPC_URL":"u","llm":{"modelName":5,"temperature":2}}`), defaults)
	e, _ := xerrors.From(err)
	if e.Message() != MsgMissingFields {
		t.Fatalf("missing fields take precedence in the message, got %q", e.Message())
	}
	if got := e.MissingFields(); len(got) != 1 || got[0] != FieldOpenAIAPIKey {
		t.Fatalf("unexpected missing: %v", got)
	}
	details := strings.Join(e.Details(), "|")
	for _, want := range []string{MsgMissingFields, MsgModelNameNotString, MsgTemperatureRange} {
		if !strings.Contains(details, want) {
			t.Fatalf("details %q missing %q", details, want)
		}
	}

	_, err = ParseInit(decode(t, `{"OPENAI_API_KEY":"sk","RPC_URL":"u","llm":"gpt"}`), defaults)
	if e, _ := xerrors.From(err); e.Message() != MsgLLMNotObject {
		t.Fatalf("expected llm object violation, got %v", err)
	}
}

func TestParseInitNullLLMUsesDefaults(t *testing.T) {
	cfg, err := ParseInit(decode(t, `{"OPENAI_API_KEY":"sk","RPC_URL":"u","llm":null}`), defaults)
	if err != nil || cfg.LLM.ModelName != "gpt-4o-mini" {
		t.Fatalf("null llm must fall back to defaults: %+v %v", cfg.LLM, err)
	}
}

func TestParseChat(t *testing.T) {
	msg, err := ParseChat(decode(t, `{"message":"  hello "}`))
	if err != nil || msg != "  hello " {
		t.Fatalf("message must be passed through untouched: %q %v", msg, err)
	}
	for _, body := range []string{`{}`, `{"message":""}`, `{"message":"   "}`, `{"message":7}`} {
		_, err := ParseChat(decode(t, body))
		e, ok := xerrors.From(err)
		if !ok || e.Code() != xerrors.CodeInvalidArgument || e.Message() != MsgMessageRequired {
			t.Fatalf("%s: expected message required, got %v", body, err)
		}
	}
}
