package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct{ cfg FactoryConfig }

func (s *stubClient) Complete(context.Context, []Message, []Tool, Options) (Reply, error) {
	return Reply{Content: s.cfg.Model}, nil
}

func TestRegistry(t *testing.T) {
	RegisterProvider("stub", func(cfg FactoryConfig) (Client, error) {
		return &stubClient{cfg: cfg}, nil
	}, "Stub-Alias")

	c, err := NewClient(FactoryConfig{Provider: "stub-alias", Model: "m1"})
	require.NoError(t, err)
	reply, err := c.Complete(context.Background(), nil, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, "m1", reply.Content)
	assert.Contains(t, Providers(), "stub")

	_, err = NewClient(FactoryConfig{Provider: "nope"})
	assert.Error(t, err)
}

func TestResolveModelName(t *testing.T) {
	assert.Equal(t, "gpt-4o", ResolveModelName("openai", ""))
	assert.Equal(t, "custom", ResolveModelName("openai", " custom "))
	assert.Equal(t, "unknown", ResolveModelName("other", ""))
}
