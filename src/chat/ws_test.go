package chat

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stake-plus/govagent/src/data/datatest"
	"github.com/stake-plus/govagent/src/gov"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readChat(t *testing.T, conn *websocket.Conn) gov.ChatMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	return decodeFrame(t, raw)
}

func TestWebsocketRoundTrip(t *testing.T) {
	store := datatest.Open(t)
	p := datatest.SeedProposal(t, store, 1)
	hub := NewHub(store, nil)
	srv := httptest.NewServer(NewHandler(hub, nil))
	defer srv.Close()
	defer hub.Close()

	alice := dial(t, srv)
	bob := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Len() == 2 }, 2*time.Second, 5*time.Millisecond)

	// malformed frames are dropped without closing the connection
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(`{"type":"typing","data":{}}`)))
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat","data":{"proposalId":999,"content":"x"}}`)))

	frame := `{"type":"chat","data":{"proposalId":` + strconv.FormatUint(p.ID, 10) + `,"sender":"agent","content":"Is the budget audited?"}}`
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(frame)))

	for _, conn := range []*websocket.Conn{alice, bob} {
		msg := readChat(t, conn)
		assert.Equal(t, p.ID, msg.ProposalID)
		assert.Equal(t, gov.SenderUser, msg.Sender)
		assert.Equal(t, "Is the budget audited?", msg.Content)
	}

	require.NoError(t, bob.Close())
	require.Eventually(t, func() bool { return hub.Len() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestWebsocketOriginCheck(t *testing.T) {
	hub := NewHub(datatest.Open(t), nil)
	srv := httptest.NewServer(NewHandler(hub, []string{"https://gov.example"}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()

	header.Set("Origin", "https://gov.example/")
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	_ = resp.Body.Close()
	_ = conn.Close()
}
