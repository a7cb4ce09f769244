package anchor

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Veraticus/offramp/internal/common"
)

// CallbackMode selects how the anchor reports back from the interactive flow.
type CallbackMode string

const (
	// CallbackPostMessage asks the anchor to post a window message.
	CallbackPostMessage CallbackMode = "postMessage"
	// CallbackURL asks the anchor to call a configured URL.
	CallbackURL CallbackMode = "url"
	// CallbackNone leaves the interactive URL untouched.
	CallbackNone CallbackMode = "none"
)

// ParseCallbackMode validates a configured mode. Empty means postMessage.
func ParseCallbackMode(s string) (CallbackMode, error) {
	switch strings.TrimSpace(s) {
	case "", string(CallbackPostMessage):
		return CallbackPostMessage, nil
	case string(CallbackURL):
		return CallbackURL, nil
	case string(CallbackNone):
		return CallbackNone, nil
	default:
		return "", fmt.Errorf("%w: callback mode %q", common.ErrInvalidConfig, s)
	}
}

// DecorateURL appends the callback marker to an interactive URL before it is
// launched.
func DecorateURL(raw string, mode CallbackMode, callbackURL string) (string, error) {
	if mode == CallbackNone {
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid interactive URL: %w", err)
	}

	q := u.Query()
	switch mode {
	case CallbackPostMessage:
		q.Set("callback", string(CallbackPostMessage))
	case CallbackURL:
		if callbackURL == "" {
			return "", fmt.Errorf("%w: callback URL is empty", common.ErrMissingConfig)
		}
		q.Set("callback", callbackURL)
	default:
		return "", fmt.Errorf("%w: callback mode %q", common.ErrInvalidConfig, mode)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
