package session

import (
	"fmt"
	"log/slog"
)

const redacted = "[REDACTED]"

// LLMSettings is the model selection echoed back by /init.
type LLMSettings struct {
	ModelName   string  `json:"modelName"`
	Temperature float64 `json:"temperature"`
}

// Config holds everything a session needs to start. It is built once by the
// request validator and never mutated; both credentials are redacted from
// every rendering.
type Config struct {
	LLM          LLMSettings
	OpenAIAPIKey string
	RPCURL       string
}

// String implements fmt.Stringer without the credentials.
func (c Config) String() string {
	return fmt.Sprintf("session.Config{model: %s, temperature: %g, OPENAI_API_KEY: %s, RPC_URL: %s}",
		c.LLM.ModelName, c.LLM.Temperature, redacted, redacted)
}

// GoString keeps %#v from printing credentials.
func (c Config) GoString() string {
	return c.String()
}

// LogValue implements slog.LogValuer.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("model", c.LLM.ModelName),
		slog.Float64("temperature", c.LLM.Temperature),
		slog.String("openai_api_key", redacted),
		slog.String("rpc_url", redacted),
	)
}
