package polkassembly

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stake-plus/govagent/src/webclient"
)

const (
	DefaultEndpoint = "https://api.polkassembly.io/api/v1"
	defaultTimeout  = 30 * time.Second
)

// ErrPostNotFound is returned when Polkassembly has no post for a referendum.
var ErrPostNotFound = errors.New("polkassembly: post not found")

// Client reads referendum posts from the Polkassembly API.
type Client struct {
	endpoint   string
	network    string
	httpClient *http.Client
	attempts   int
	retryDelay time.Duration
}

// Post is the subset of an on-chain post used to seed a proposal.
type Post struct {
	PostID   uint32 `json:"post_id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Proposer string `json:"proposer"`
	Status   string `json:"status"`
}

// NewClient creates a new Polkassembly client
func NewClient(endpoint, network string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		network:    strings.ToLower(strings.TrimSpace(network)),
		httpClient: webclient.NewDefault(defaultTimeout),
		attempts:   3,
		retryDelay: 2 * time.Second,
	}
}

// WithHTTPClient swaps the transport; used by tests.
func (c *Client) WithHTTPClient(hc *http.Client, retryDelay time.Duration) *Client {
	c.httpClient = hc
	c.retryDelay = retryDelay
	return c
}

// FetchReferendum loads the OpenGov post for referendum index.
func (c *Client) FetchReferendum(ctx context.Context, index uint32) (*Post, error) {
	if c.network == "" {
		return nil, fmt.Errorf("polkassembly: network not configured")
	}
	url := fmt.Sprintf("%s/posts/on-chain-post?postId=%d&proposalType=referendums_v2", c.endpoint, index)
	body, err := webclient.DoJSON(ctx, c.httpClient, c.attempts, c.retryDelay, webclient.Request{
		URL:     url,
		Headers: map[string]string{"x-network": c.network},
	})
	if err != nil {
		var httpErr *webclient.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %d", ErrPostNotFound, index)
		}
		return nil, fmt.Errorf("polkassembly: fetch referendum %d: %w", index, err)
	}

	var post Post
	if err := json.Unmarshal(body, &post); err != nil {
		return nil, fmt.Errorf("polkassembly: parse post response: %w", err)
	}
	post.Title = strings.TrimSpace(post.Title)
	post.Content = strings.TrimSpace(post.Content)
	if post.PostID == 0 {
		post.PostID = index
	}
	return &post, nil
}
