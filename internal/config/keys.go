package config

import "os"

// APIKeySource represents where an API key comes from.
type APIKeySource string

const (
	KeySourceEnv    APIKeySource = "env"
	KeySourceConfig APIKeySource = "config"
	KeySourceNone   APIKeySource = "none"
)

// KeyStatus represents the status of an API key.
type KeyStatus struct {
	Name   string       `json:"name"`
	Source APIKeySource `json:"source"`
	IsSet  bool         `json:"is_set"`
	Masked string       `json:"masked,omitempty"` // e.g., "sk-...abc"
}

// CheckAPIKeys returns the status of every provider key and the SQL DSN.
func CheckAPIKeys(cfg *Config) []KeyStatus {
	names := []string{
		"Gemini API Key", "OpenAI API Key", "DeepSeek API Key",
		"Groq API Key", "Anthropic API Key", "MySQL DSN",
	}
	out := make([]KeyStatus, 0, len(keyEnv))
	for i, k := range keyEnv {
		out = append(out, checkKey(names[i], *k.field(cfg), k.prefixed, k.plain))
	}
	return out
}

// ConfiguredProviders reports how many LLM keys are set.
func ConfiguredProviders(cfg *Config) int {
	n := 0
	for _, s := range CheckAPIKeys(cfg) {
		if s.IsSet && s.Name != "MySQL DSN" {
			n++
		}
	}
	return n
}

// checkKey checks if a key is set and where it came from.
func checkKey(name, value string, envVars ...string) KeyStatus {
	status := KeyStatus{
		Name:   name,
		IsSet:  value != "",
		Source: KeySourceNone,
	}
	if value == "" {
		return status
	}

	status.Source = KeySourceConfig
	for _, e := range envVars {
		if e != "" && os.Getenv(e) == value {
			status.Source = KeySourceEnv
			break
		}
	}
	status.Masked = maskKey(value)
	return status
}

// maskKey masks an API key for display, showing only first 3 and last 3 chars.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:3] + "..." + key[len(key)-3:]
}
