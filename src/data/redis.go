package data

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stake-plus/govagent/src/gov"
)

const (
	noncePrefix   = "nonce:"
	voteLockKey   = "govagent:vote-lock:"
	streamEvents  = "govagent.chat"
	nonceLifetime = 5 * time.Minute
)

// NewRedis parses url and returns a client.
func NewRedis(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return redis.NewClient(opt), nil
}

// ChatStream mirrors persisted chat messages onto a Redis stream for
// out-of-process consumers.
type ChatStream struct {
	rdb    *redis.Client
	stream string
}

// NewChatStream publishes onto the default stream.
func NewChatStream(rdb *redis.Client) *ChatStream {
	return &ChatStream{rdb: rdb, stream: streamEvents}
}

// Mirror appends msg to the stream.
func (s *ChatStream) Mirror(ctx context.Context, msg gov.ChatMessage) error {
	_, err := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: 10000,
		Approx: true,
		Values: map[string]interface{}{
			"id":       msg.ID,
			"proposal": msg.ProposalID,
			"sender":   string(msg.Sender),
			"body":     msg.Content,
			"time":     msg.Timestamp.Unix(),
		},
	}).Result()
	return err
}

// NonceStore keeps short-lived login challenges.
type NonceStore interface {
	SetNonce(ctx context.Context, addr, nonce string) error
	GetAndDelNonce(ctx context.Context, addr string) (string, error)
}

// ErrNonceMissing is returned when no live challenge exists for an address.
var ErrNonceMissing = errors.New("data: nonce missing or expired")

// RedisNonces stores challenges in Redis with a five minute TTL.
type RedisNonces struct{ rdb *redis.Client }

// NewRedisNonces wraps rdb.
func NewRedisNonces(rdb *redis.Client) *RedisNonces { return &RedisNonces{rdb: rdb} }

func (n *RedisNonces) SetNonce(ctx context.Context, addr, nonce string) error {
	return n.rdb.Set(ctx, noncePrefix+addr, nonce, nonceLifetime).Err()
}

func (n *RedisNonces) GetAndDelNonce(ctx context.Context, addr string) (string, error) {
	v, err := n.rdb.GetDel(ctx, noncePrefix+addr).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNonceMissing
	}
	return v, err
}

// MemoryNonces is the single-instance NonceStore used when Redis is not configured.
type MemoryNonces struct {
	mu     sync.Mutex
	nonces map[string]memNonce
	now    func() time.Time
}

type memNonce struct {
	value   string
	expires time.Time
}

// NewMemoryNonces returns an empty in-process nonce store.
func NewMemoryNonces() *MemoryNonces {
	return &MemoryNonces{nonces: make(map[string]memNonce), now: time.Now}
}

func (n *MemoryNonces) SetNonce(_ context.Context, addr, nonce string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	now := n.now()
	for k, v := range n.nonces {
		if now.After(v.expires) {
			delete(n.nonces, k)
		}
	}
	n.nonces[addr] = memNonce{value: nonce, expires: now.Add(nonceLifetime)}
	return nil
}

func (n *MemoryNonces) GetAndDelNonce(_ context.Context, addr string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	v, ok := n.nonces[addr]
	delete(n.nonces, addr)
	if !ok || n.now().After(v.expires) {
		return "", ErrNonceMissing
	}
	return v.value, nil
}

var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// RedisLocker extends the in-process per-proposal lock across instances
// sharing one Redis. The local lock is always taken first.
type RedisLocker struct {
	rdb   *redis.Client
	local *gov.KeyedMutex
	ttl   time.Duration
	poll  time.Duration
}

// NewRedisLocker builds a locker whose Redis keys expire after ttl, so a
// crashed holder cannot wedge a proposal forever. ttl must exceed the longest
// vote attempt.
func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisLocker{rdb: rdb, local: gov.NewKeyedMutex(), ttl: ttl, poll: 200 * time.Millisecond}
}

// Lock acquires the proposal lock locally and in Redis.
func (l *RedisLocker) Lock(ctx context.Context, id uint64) (func(), error) {
	unlockLocal, err := l.local.Lock(ctx, id)
	if err != nil {
		return nil, err
	}

	key := voteLockKey + strconv.FormatUint(id, 10)
	token := uuid.NewString()
	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			unlockLocal()
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			break
		}
		t := time.NewTimer(l.poll)
		select {
		case <-ctx.Done():
			t.Stop()
			unlockLocal()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = unlockScript.Run(releaseCtx, l.rdb, []string{key}, token).Err()
			unlockLocal()
		})
	}, nil
}
