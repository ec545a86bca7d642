package polkadot

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	gsrpc "github.com/centrifuge/go-substrate-rpc-client/v4"
	"github.com/centrifuge/go-substrate-rpc-client/v4/rpc/author"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrExtrinsicRejected is returned when the pool drops, invalidates or
// replaces a submitted extrinsic before inclusion.
var ErrExtrinsicRejected = errors.New("polkadot: extrinsic rejected")

// Gateway is the agent's view of the relay chain. The websocket connection
// is dialed lazily and discarded after an RPC failure so the next call
// reconnects.
type Gateway struct {
	cfg    Config
	log    *zap.Logger
	signer *Signer

	mu   sync.Mutex
	conn *connection
	dial singleflight.Group

	// submissions share the account nonce
	submitMu sync.Mutex
}

type connection struct {
	api      *gsrpc.SubstrateAPI
	metadata *types.Metadata
	genesis  types.Hash
}

// NewGateway builds a Gateway. A signer is derived when cfg.Seed is set;
// without one the gateway is read-only.
func NewGateway(cfg Config, log *zap.Logger) (*Gateway, error) {
	cfg = cfg.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	g := &Gateway{cfg: cfg, log: log.Named("chain")}
	if cfg.Seed != "" {
		s, err := NewSigner(cfg.Seed, cfg.SS58Prefix)
		if err != nil {
			return nil, err
		}
		g.signer = s
	}
	return g, nil
}

// Address returns the agent account address, or "" when read-only.
func (g *Gateway) Address() string {
	if g.signer == nil {
		return ""
	}
	return g.signer.Address()
}

// Close drops the current connection.
func (g *Gateway) Close() {
	g.mu.Lock()
	c := g.conn
	g.conn = nil
	g.mu.Unlock()
	if c != nil {
		c.api.Client.Close()
	}
}

func (g *Gateway) connect(ctx context.Context) (*connection, error) {
	g.mu.Lock()
	c := g.conn
	g.mu.Unlock()
	if c != nil {
		return c, nil
	}
	if g.cfg.URL == "" {
		return nil, fmt.Errorf("polkadot: no rpc url configured")
	}

	ch := g.dial.DoChan("dial", func() (interface{}, error) {
		c, err := g.open()
		if err != nil {
			return nil, err
		}
		g.mu.Lock()
		g.conn = c
		g.mu.Unlock()
		return c, nil
	})

	timer := time.NewTimer(g.cfg.CallTimeout)
	defer timer.Stop()
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*connection), nil
	case <-timer.C:
		return nil, fmt.Errorf("polkadot: connect %s: %w", g.cfg.URL, context.DeadlineExceeded)
	case <-ctx.Done():
		return nil, fmt.Errorf("polkadot: connect %s: %w", g.cfg.URL, ctx.Err())
	}
}

func (g *Gateway) open() (*connection, error) {
	api, err := gsrpc.NewSubstrateAPI(g.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("polkadot: connect %s: %w", g.cfg.URL, err)
	}
	meta, err := api.RPC.State.GetMetadataLatest()
	if err != nil {
		api.Client.Close()
		return nil, fmt.Errorf("polkadot: get metadata: %w", err)
	}
	genesis, err := api.RPC.Chain.GetBlockHash(0)
	if err != nil {
		api.Client.Close()
		return nil, fmt.Errorf("polkadot: get genesis hash: %w", err)
	}
	g.log.Info("connected", zap.String("url", g.cfg.URL), zap.String("genesis", genesis.Hex()))
	return &connection{api: api, metadata: meta, genesis: genesis}, nil
}

// reset discards c if it is still current.
func (g *Gateway) reset(c *connection, cause error) {
	g.mu.Lock()
	if g.conn != c {
		g.mu.Unlock()
		return
	}
	g.conn = nil
	g.mu.Unlock()
	g.log.Warn("dropping connection", zap.Error(cause))
	c.api.Client.Close()
}

func (g *Gateway) call(ctx context.Context, c *connection, op string, fn func() error) error {
	err := callWithTimeout(ctx, g.cfg.CallTimeout, op, fn)
	if err != nil && ctx.Err() == nil {
		g.reset(c, err)
	}
	return err
}

func (g *Gateway) accountInfo(ctx context.Context, c *connection, pub []byte) (types.AccountInfo, bool, error) {
	var info types.AccountInfo
	key, err := types.CreateStorageKey(c.metadata, "System", "Account", pub)
	if err != nil {
		return info, false, fmt.Errorf("polkadot: account storage key: %w", err)
	}
	var found bool
	err = g.call(ctx, c, "get account", func() error {
		var e error
		found, e = c.api.RPC.State.GetStorageLatest(key, &info)
		return e
	})
	return info, found, err
}

// FreeBalance returns the free balance of address in planck. Accounts with
// no storage entry have a zero balance.
func (g *Gateway) FreeBalance(ctx context.Context, address string) (*big.Int, error) {
	pub, err := DecodeSS58(address)
	if err != nil {
		return nil, err
	}
	c, err := g.connect(ctx)
	if err != nil {
		return nil, err
	}
	info, found, err := g.accountInfo(ctx, c, pub)
	if err != nil {
		return nil, err
	}
	if !found || info.Data.Free.Int == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(info.Data.Free.Int), nil
}

// SubmitVote signs and submits ConvictionVoting.vote and waits until the
// extrinsic is included in a block.
func (g *Gateway) SubmitVote(ctx context.Context, req VoteRequest) (VoteReceipt, error) {
	if g.signer == nil {
		return VoteReceipt{}, ErrNoSigner
	}
	if req.Balance == nil || req.Balance.Sign() <= 0 {
		return VoteReceipt{}, fmt.Errorf("polkadot: vote balance must be positive")
	}

	g.submitMu.Lock()
	defer g.submitMu.Unlock()

	c, err := g.connect(ctx)
	if err != nil {
		return VoteReceipt{}, err
	}

	call, err := types.NewCall(c.metadata, "ConvictionVoting.vote",
		types.NewUCompactFromUInt(uint64(req.Referendum)),
		newStandardVote(req.Aye, req.Conviction, req.Balance))
	if err != nil {
		return VoteReceipt{}, fmt.Errorf("polkadot: build vote call: %w", err)
	}
	ext := types.NewExtrinsic(call)

	var rv *types.RuntimeVersion
	if err := g.call(ctx, c, "get runtime version", func() error {
		var e error
		rv, e = c.api.RPC.State.GetRuntimeVersionLatest()
		return e
	}); err != nil {
		return VoteReceipt{}, err
	}

	info, _, err := g.accountInfo(ctx, c, g.signer.PublicKey())
	if err != nil {
		return VoteReceipt{}, err
	}
	nonce := uint32(info.Nonce)

	opts := types.SignatureOptions{
		BlockHash:          c.genesis,
		Era:                types.ExtrinsicEra{IsImmortalEra: true},
		GenesisHash:        c.genesis,
		Nonce:              types.NewUCompactFromUInt(uint64(nonce)),
		SpecVersion:        rv.SpecVersion,
		Tip:                types.NewUCompactFromUInt(0),
		TransactionVersion: rv.TransactionVersion,
	}
	if err := ext.Sign(g.signer.pair, opts); err != nil {
		return VoteReceipt{}, fmt.Errorf("polkadot: sign vote: %w", err)
	}
	encoded, err := codec.Encode(ext)
	if err != nil {
		return VoteReceipt{}, fmt.Errorf("polkadot: encode vote: %w", err)
	}
	txHash := HexEncode(Blake2_256(encoded))

	var sub *author.ExtrinsicStatusSubscription
	if err := g.call(ctx, c, "submit vote", func() error {
		var e error
		sub, e = c.api.RPC.Author.SubmitAndWatchExtrinsic(ext)
		return e
	}); err != nil {
		return VoteReceipt{}, err
	}
	defer sub.Unsubscribe()

	g.log.Info("vote submitted",
		zap.Uint32("referendum", req.Referendum),
		zap.Bool("aye", req.Aye),
		zap.Stringer("conviction", req.Conviction),
		zap.String("balance", req.Balance.String()),
		zap.Uint32("nonce", nonce),
		zap.String("tx", txHash))

	timer := time.NewTimer(g.cfg.InclusionTimeout)
	defer timer.Stop()
	for {
		select {
		case status := <-sub.Chan():
			switch {
			case status.IsInBlock:
				return VoteReceipt{TxHash: txHash, BlockHash: status.AsInBlock.Hex(), Nonce: nonce}, nil
			case status.IsFinalized:
				return VoteReceipt{TxHash: txHash, BlockHash: status.AsFinalized.Hex(), Nonce: nonce}, nil
			case status.IsDropped:
				return VoteReceipt{}, fmt.Errorf("%w: dropped (tx %s)", ErrExtrinsicRejected, txHash)
			case status.IsInvalid:
				return VoteReceipt{}, fmt.Errorf("%w: invalid (tx %s)", ErrExtrinsicRejected, txHash)
			case status.IsUsurped:
				return VoteReceipt{}, fmt.Errorf("%w: usurped (tx %s)", ErrExtrinsicRejected, txHash)
			}
		case err := <-sub.Err():
			g.reset(c, err)
			return VoteReceipt{}, fmt.Errorf("polkadot: watch vote %s: %w", txHash, err)
		case <-timer.C:
			return VoteReceipt{}, fmt.Errorf("polkadot: vote %s not included after %s", txHash, g.cfg.InclusionTimeout)
		case <-ctx.Done():
			return VoteReceipt{}, fmt.Errorf("polkadot: vote %s: %w", txHash, ctx.Err())
		}
	}
}

// ReferendumInfo reads Referenda.ReferendumInfoFor(index).
func (g *Gateway) ReferendumInfo(ctx context.Context, index uint32) (*ReferendumInfo, error) {
	c, err := g.connect(ctx)
	if err != nil {
		return nil, err
	}
	keyBytes, err := DecodeHex(StorageKeyUint32("Referenda", "ReferendumInfoFor", index))
	if err != nil {
		return nil, err
	}
	var raw types.StorageDataRaw
	var found bool
	if err := g.call(ctx, c, "get referendum", func() error {
		var e error
		found, e = c.api.RPC.State.GetStorageLatest(types.NewStorageKey(keyBytes), &raw)
		return e
	}); err != nil {
		return nil, err
	}
	if !found || len(raw) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrReferendumNotFound, index)
	}
	return DecodeReferendumInfo(index, raw)
}

// Health pings the node.
func (g *Gateway) Health(ctx context.Context) (Health, error) {
	start := time.Now()
	c, err := g.connect(ctx)
	if err != nil {
		return Health{}, err
	}
	var h types.Health
	if err := g.call(ctx, c, "system health", func() error {
		var e error
		h, e = c.api.RPC.System.Health()
		return e
	}); err != nil {
		return Health{}, err
	}
	return Health{
		Connected: true,
		Peers:     uint64(h.Peers),
		IsSyncing: bool(h.IsSyncing),
		Latency:   time.Since(start).Round(time.Millisecond).String(),
	}, nil
}
