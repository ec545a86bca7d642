package webserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stake-plus/govagent/src/chat"
	"github.com/stake-plus/govagent/src/data"
	"github.com/stake-plus/govagent/src/gov"
	"github.com/stake-plus/govagent/src/ingest"
	"github.com/stake-plus/govagent/src/polkassembly"
)

// Store is the read side of persistence used by the query interface.
type Store interface {
	ListProposals(ctx context.Context) ([]gov.Proposal, error)
	GetProposal(ctx context.Context, id uint64) (*gov.Proposal, error)
	ListChatMessages(ctx context.Context, proposalID uint64) ([]gov.ChatMessage, error)
	Ping(ctx context.Context) error
}

// Publisher accepts chat messages; satisfied by *chat.Hub.
type Publisher interface {
	Publish(ctx context.Context, d chat.Draft) (gov.ChatMessage, error)
}

// Ingester creates proposals from on-chain referenda.
type Ingester interface {
	Ingest(ctx context.Context, chainID uint32) (*gov.Proposal, error)
}

type Proposals struct {
	store  Store
	pub    Publisher
	ingest Ingester
	log    *zap.Logger
}

func NewProposals(store Store, pub Publisher, ing Ingester, log *zap.Logger) Proposals {
	return Proposals{store: store, pub: pub, ingest: ing, log: log}
}

func (p Proposals) List(c *gin.Context) {
	out, err := p.store.ListProposals(c.Request.Context())
	if err != nil {
		p.log.Warn("list proposals", zap.Error(err))
	}
	if out == nil {
		out = []gov.Proposal{}
	}
	c.JSON(http.StatusOK, out)
}

func (p Proposals) Get(c *gin.Context) {
	id, ok := proposalID(c)
	if !ok {
		return
	}
	prop, err := p.store.GetProposal(c.Request.Context(), id)
	switch {
	case errors.Is(err, data.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"err": "proposal not found"})
	case err != nil:
		p.log.Error("get proposal", zap.Uint64("proposal", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"err": "could not load proposal"})
	default:
		c.JSON(http.StatusOK, prop)
	}
}

func (p Proposals) Messages(c *gin.Context) {
	id, ok := proposalID(c)
	if !ok {
		return
	}
	out, err := p.store.ListChatMessages(c.Request.Context(), id)
	if err != nil {
		p.log.Warn("list messages", zap.Uint64("proposal", id), zap.Error(err))
	}
	if out == nil {
		out = []gov.ChatMessage{}
	}
	c.JSON(http.StatusOK, out)
}

func (p Proposals) PostMessage(c *gin.Context) {
	id, ok := proposalID(c)
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	msg, err := p.pub.Publish(c.Request.Context(), chat.Draft{
		ProposalID: id,
		Sender:     gov.SenderUser,
		Content:    req.Content,
	})
	switch {
	case errors.Is(err, chat.ErrInvalidMessage):
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
	case errors.Is(err, chat.ErrUnknownProposal):
		c.JSON(http.StatusNotFound, gin.H{"err": "proposal not found"})
	case err != nil:
		p.log.Error("publish message", zap.Uint64("proposal", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"err": "could not store message"})
	default:
		c.JSON(http.StatusCreated, msg)
	}
}

func (p Proposals) Create(c *gin.Context) {
	var req struct {
		ChainID uint32 `json:"chainId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	prop, err := p.ingest.Ingest(c.Request.Context(), req.ChainID)
	switch {
	case errors.Is(err, ingest.ErrAlreadyIngested):
		c.JSON(http.StatusConflict, gin.H{"err": err.Error()})
	case errors.Is(err, ingest.ErrNotOnChain), errors.Is(err, polkassembly.ErrPostNotFound):
		c.JSON(http.StatusNotFound, gin.H{"err": err.Error()})
	case err != nil:
		p.log.Error("ingest referendum", zap.Uint32("referendum", req.ChainID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"err": "could not ingest referendum"})
	default:
		p.log.Info("referendum ingested", zap.Uint32("referendum", req.ChainID),
			zap.String("admin", c.GetString("addr")))
		c.JSON(http.StatusCreated, prop)
	}
}

func proposalID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"err": "bad proposal id"})
		return 0, false
	}
	return id, true
}
