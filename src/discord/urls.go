package discord

import (
	"fmt"
	"regexp"
	"strings"
)

var urlRegex = regexp.MustCompile(`https?://[^\s\[\]()<>]+`)

// WrapURLsNoEmbed wraps URLs in angle brackets to prevent Discord embeds.
func WrapURLsNoEmbed(text string) string {
	return urlRegex.ReplaceAllStringFunc(text, func(url string) string {
		trimmed := strings.TrimRight(url, ".,;:!?)")
		return fmt.Sprintf("<%s>%s", trimmed, url[len(trimmed):])
	})
}

// ReferendumURL links a referendum on Polkassembly.
func ReferendumURL(network string, index uint32) string {
	network = strings.ToLower(strings.TrimSpace(network))
	if network == "" {
		network = "polkadot"
	}
	return fmt.Sprintf("https://%s.polkassembly.io/referenda/%d", network, index)
}
