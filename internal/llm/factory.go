package llm

import "fmt"

// Settings is the minimal configuration NewProvider needs, mirroring the
// provider/api_key/base_url fields a run's config section carries.
type Settings struct {
	Provider string
	APIKey   string
	BaseURL  string
}

// NewProvider builds a Provider for the named backend. "openrouter" reuses
// the OpenAI-compatible wire format against OpenRouter's gateway, since
// OpenRouter is an OpenAI-compatible proxy in front of many models.
func NewProvider(s Settings) (Provider, error) {
	if s.APIKey == "" {
		return nil, fmt.Errorf("llm: API key is required for provider %q", s.Provider)
	}
	switch s.Provider {
	case "openai":
		return NewOpenAI(s.APIKey, s.BaseURL), nil
	case "anthropic":
		return NewAnthropic(s.APIKey, s.BaseURL), nil
	case "google":
		return NewGoogle(s.APIKey, s.BaseURL), nil
	case "openrouter":
		baseURL := s.BaseURL
		if baseURL == "" {
			baseURL = "https://openrouter.ai/api/v1"
		}
		return NewOpenAI(s.APIKey, baseURL), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q (supported: openai, anthropic, google, openrouter)", s.Provider)
	}
}
