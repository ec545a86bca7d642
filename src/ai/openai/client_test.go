package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stake-plus/govagent/src/ai/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) core.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := core.NewClient(core.FactoryConfig{Provider: "openai", APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)
	c.(*client).retryDelay = time.Millisecond
	return c
}

func TestCompleteSendsToolsAndParsesToolCalls(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req.Model)
		if assert.Len(t, req.Tools, 1) {
			assert.Equal(t, "cast_vote", req.Tools[0].Function.Name)
		}
		assert.Nil(t, req.ResponseFormat)
		if assert.Len(t, req.Messages, 2) {
			assert.Equal(t, "system", req.Messages[0].Role)
		}

		_, _ = w.Write([]byte(`{"choices":[{"finish_reason":"tool_calls","message":{"content":null,"tool_calls":[{"id":"c1","type":"function","function":{"name":"cast_vote","arguments":"{\"vote\":\"aye\",\"reasoning\":\"solid\"}"}}]}}]}`))
	})

	reply, err := c.Complete(context.Background(),
		[]core.Message{{Role: core.RoleSystem, Content: "sys"}, {Role: core.RoleUser, Content: "hi"}},
		[]core.Tool{{Name: "cast_vote", Parameters: map[string]interface{}{"type": "object"}}},
		core.Options{})
	require.NoError(t, err)
	assert.Empty(t, reply.Content)
	require.Len(t, reply.ToolCalls, 1)
	assert.Equal(t, "cast_vote", reply.ToolCalls[0].Name)
	assert.JSONEq(t, `{"vote":"aye","reasoning":"solid"}`, reply.ToolCalls[0].Arguments)
}

func TestCompleteJSONMode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, map[string]string{"type": "json_object"}, req.ResponseFormat)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"score\":70}"}}]}`))
	})

	reply, err := c.Complete(context.Background(), []core.Message{{Role: core.RoleUser, Content: "x"}}, nil, core.Options{JSONMode: true})
	require.NoError(t, err)
	assert.Equal(t, `{"score":70}`, reply.Content)
}

func TestCompleteErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})
	_, err := c.Complete(context.Background(), nil, nil, core.Options{})
	assert.Error(t, err)

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	})
	_, err = c.Complete(context.Background(), nil, nil, core.Options{})
	assert.Error(t, err)

	_, err = core.NewClient(core.FactoryConfig{Provider: "openai"})
	assert.Error(t, err)
}
