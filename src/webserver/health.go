package webserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	polkadot "github.com/stake-plus/govagent/src/polkadot-go"
)

const healthTimeout = 5 * time.Second

// Chain reports relay chain connectivity; satisfied by *polkadot.Gateway.
type Chain interface {
	Health(ctx context.Context) (polkadot.Health, error)
	Address() string
}

type healthReport struct {
	Status   string           `json:"status"`
	Database string           `json:"database"`
	Chain    *polkadot.Health `json:"chain,omitempty"`
	ChainErr string           `json:"chainError,omitempty"`
	Agent    string           `json:"agent,omitempty"`
	Voting   bool             `json:"voting"`
}

// health reports "ok" only when the store answers; chain trouble degrades
// the status without failing the probe.
func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	rep := healthReport{Status: "ok", Database: "ok", Voting: s.opts.VotingEnabled}
	code := http.StatusOK
	if err := s.store.Ping(ctx); err != nil {
		rep.Status, rep.Database = "down", err.Error()
		code = http.StatusServiceUnavailable
	}
	if s.chain != nil {
		rep.Agent = s.chain.Address()
		h, err := s.chain.Health(ctx)
		if err != nil {
			rep.ChainErr = err.Error()
			if code == http.StatusOK {
				rep.Status = "degraded"
			}
		} else {
			rep.Chain = &h
		}
	}
	c.JSON(code, rep)
}
