package llm

import "fmt"

// ConfigurationError reports a provider that cannot be constructed. It is
// raised at startup, before any request is made.
type ConfigurationError struct {
	Provider string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("llm configuration for provider %q: %s", e.Provider, e.Reason)
}

// UpstreamError reports a failed generation call. StatusCode is 0 when no
// response was received. The backend's response body is never included.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("llm %s: upstream returned status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("llm %s: upstream request failed", e.Provider)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
