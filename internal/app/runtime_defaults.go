package app

import (
	"fmt"
	"net/url"
	"strings"
)

// ApplyRuntimeDefaults fills settings that are derivable from others when the
// configuration leaves them empty. It returns a map naming the derived keys so
// callers can log what happened without repeating the logic.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	derived := make(map[string]bool)

	if strings.TrimSpace(cfg.Gateway.WSURL) == "" {
		wsURL, err := deriveWSURL(cfg.Gateway.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("derive gateway.ws_url: %w", err)
		}
		cfg.Gateway.WSURL = wsURL
		derived["gateway.ws_url"] = true
	}

	return derived, nil
}

// deriveWSURL maps the gateway REST URL onto its websocket counterpart:
// https becomes wss and http becomes ws, same host and path.
func deriveWSURL(baseURL string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return "", fmt.Errorf("gateway.base_url is empty")
	}

	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse gateway.base_url: %w", err)
	}

	switch parsed.Scheme {
	case "https":
		parsed.Scheme = "wss"
	case "http":
		parsed.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported gateway.base_url scheme %q", parsed.Scheme)
	}

	return parsed.String(), nil
}
