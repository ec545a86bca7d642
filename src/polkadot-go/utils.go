package polkadot

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// DecodeHex decodes a hex string to bytes
func DecodeHex(hexStr string) ([]byte, error) {
	cleaned := strings.TrimPrefix(hexStr, "0x")
	return hex.DecodeString(cleaned)
}

// callWithTimeout runs a blocking RPC call and gives up after d or when ctx
// ends. gsrpc calls are not context aware, so an abandoned call keeps running
// in its goroutine and its result is dropped.
func callWithTimeout(ctx context.Context, d time.Duration, op string, fn func() error) error {
	if d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("polkadot: %s: %w", op, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("polkadot: %s: %w", op, ctx.Err())
	}
}
