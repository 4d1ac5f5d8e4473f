package ai

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrMissingCredential = errors.New("AI API key is missing or still a placeholder")
	ErrAuth              = errors.New("AI service rejected the credentials")
	ErrQuota             = errors.New("AI service quota or rate limit exceeded")
	ErrBlocked           = errors.New("AI service blocked the image")
	ErrMalformedOutput   = errors.New("AI returned malformed output")
	ErrAnalyze           = errors.New("could not analyze schedule")
)

var taxonomy = []error{ErrMissingCredential, ErrAuth, ErrQuota, ErrBlocked, ErrMalformedOutput, ErrAnalyze}

// checkCredential fails on empty keys and on the sample values people leave
// in config files.
func checkCredential(key string) error {
	k := strings.ToUpper(strings.TrimSpace(key))
	if k == "" {
		return ErrMissingCredential
	}
	if strings.HasPrefix(k, "<") && strings.HasSuffix(k, ">") {
		return ErrMissingCredential
	}
	for _, marker := range []string{"YOUR_", "YOUR-", "PLACEHOLDER", "API_KEY_HERE", "CHANGEME", "XXXX"} {
		if strings.Contains(k, marker) {
			return ErrMissingCredential
		}
	}
	return nil
}

// classify maps a provider failure onto the taxonomy. status is the HTTP
// status when the provider exposed one, otherwise 0.
func classify(err error, status int) error {
	if err == nil {
		return nil
	}
	for _, known := range taxonomy {
		if errors.Is(err, known) {
			return err
		}
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %v", ErrAuth, err)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", ErrQuota, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "api key not valid", "invalid api key", "api_key_invalid", "permission_denied", "unauthenticated", "invalid x-api-key", "/login"):
		return fmt.Errorf("%w: %v", ErrAuth, err)
	case containsAny(msg, "quota", "resource_exhausted", "rate limit", "rate_limit", "too many requests"):
		return fmt.Errorf("%w: %v", ErrQuota, err)
	case containsAny(msg, "safety", "blocked", "content_filter", "prohibited"):
		return fmt.Errorf("%w: %v", ErrBlocked, err)
	}
	return fmt.Errorf("%w: %v", ErrAnalyze, err)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// UserMessage renders an extraction failure for display. Unknown errors get
// the generic message so diagnostics stay in the logs.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingCredential):
		return "The AI API key is not configured. Set it in the config file and try again."
	case errors.Is(err, ErrAuth):
		return "The AI service rejected the API key. Check the key and sign in again."
	case errors.Is(err, ErrQuota):
		return "The AI service is rate limiting requests. Wait a moment and try again later."
	case errors.Is(err, ErrBlocked):
		return "The AI service refused to read this image. Try a different photo of the schedule."
	case errors.Is(err, ErrMalformedOutput):
		return "The AI returned a response that could not be read. Please try again."
	default:
		return "Could not analyze the schedule. Please try again."
	}
}
