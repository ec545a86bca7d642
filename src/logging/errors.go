package logging

import (
	"errors"
	"strings"

	"github.com/stake-plus/govagent/src/webclient"
)

func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var httpErr *webclient.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == 429 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "rate_limit") || strings.Contains(msg, "429")
}
