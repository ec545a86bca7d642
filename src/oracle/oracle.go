package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stake-plus/govagent/src/ai/core"
	"github.com/stake-plus/govagent/src/gov"
	"github.com/stake-plus/govagent/src/logging"
	"go.uber.org/zap"
)

// Analysis is the one-shot assessment recorded when a proposal is ingested.
type Analysis struct {
	Score          int      `json:"score"`
	Reasoning      []string `json:"reasoning"`
	Recommendation string   `json:"recommendation"`
}

const (
	RecommendApprove = "approve"
	RecommendReject  = "reject"
	RecommendDiscuss = "discuss"
)

// DefaultAnalysis is returned whenever the model cannot produce a usable one.
func DefaultAnalysis() Analysis {
	return Analysis{Score: 50, Reasoning: []string{}, Recommendation: RecommendDiscuss}
}

// Decision is the outcome of one deliberation turn.
type Decision struct {
	ResponseText string
	Intent       *gov.VoteIntent
}

// Config tunes the oracle calls.
type Config struct {
	Timeout               time.Duration
	Model                 string
	DeliberationMaxTokens int
}

// Oracle wraps a language model. It never returns errors: every failure
// collapses into a fixed fallback.
type Oracle struct {
	client core.Client
	cfg    Config
	log    *zap.Logger
}

// New builds an Oracle. A nil client means no credential is configured.
func New(client core.Client, cfg Config, log *zap.Logger) *Oracle {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.DeliberationMaxTokens <= 0 {
		cfg.DeliberationMaxTokens = 500
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Oracle{client: client, cfg: cfg, log: log.Named("oracle")}
}

// Available reports whether a model client is configured.
func (o *Oracle) Available() bool { return o.client != nil }

// Analyze scores a proposal.
func (o *Oracle) Analyze(ctx context.Context, p *gov.Proposal) Analysis {
	if o.client == nil {
		return DefaultAnalysis()
	}
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	reply, err := o.client.Complete(ctx, []core.Message{
		{Role: core.RoleSystem, Content: systemPrompt},
		{Role: core.RoleUser, Content: fmt.Sprintf(analysisPrompt, p.Title, p.Description)},
	}, nil, core.Options{Model: o.cfg.Model, JSONMode: true})
	if err != nil {
		o.logFailure("analyze", p, err)
		return DefaultAnalysis()
	}

	a, err := parseAnalysis(reply.Content)
	if err != nil {
		o.log.Warn("unusable analysis", zap.Uint64("proposal", p.ID), zap.Error(err))
		return DefaultAnalysis()
	}
	return a
}

func parseAnalysis(raw string) (Analysis, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "```"), "```")

	var a Analysis
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return Analysis{}, fmt.Errorf("decode analysis: %w", err)
	}
	if a.Score < 0 || a.Score > 100 {
		return Analysis{}, fmt.Errorf("score %d out of range", a.Score)
	}
	switch a.Recommendation {
	case RecommendApprove, RecommendReject, RecommendDiscuss:
	default:
		a.Recommendation = RecommendDiscuss
	}
	if a.Reasoning == nil {
		a.Reasoning = []string{}
	}
	return a, nil
}

// Deliberate produces the agent's reply to the conversation so far.
func (o *Oracle) Deliberate(ctx context.Context, p *gov.Proposal, history []gov.ChatMessage) Decision {
	if o.client == nil {
		return Decision{ResponseText: CannedResponse}
	}
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	reply, err := o.client.Complete(ctx, deliberationMessages(p, history), []core.Tool{castVote}, core.Options{
		Model:               o.cfg.Model,
		MaxCompletionTokens: o.cfg.DeliberationMaxTokens,
	})
	if err != nil {
		o.logFailure("deliberate", p, err)
		return Decision{ResponseText: ApologyResponse}
	}

	out := Normalize(reply)
	switch out.Kind {
	case OutputVote:
		text := out.Content
		if text == "" {
			text = fmt.Sprintf("I have reached a decision and will vote %s.", strings.ToUpper(string(out.Vote)))
			if out.Reasoning != "" {
				text += " " + out.Reasoning
			}
		}
		reasoning := out.Reasoning
		if reasoning == "" {
			reasoning = text
		}
		o.log.Info("vote intent", zap.Uint64("proposal", p.ID), zap.String("vote", string(out.Vote)))
		return Decision{ResponseText: text, Intent: &gov.VoteIntent{Vote: out.Vote, Reasoning: reasoning}}
	default:
		if out.Content == "" {
			return Decision{ResponseText: ApologyResponse}
		}
		return Decision{ResponseText: out.Content}
	}
}

func (o *Oracle) logFailure(op string, p *gov.Proposal, err error) {
	o.log.Warn("model call failed",
		zap.String("op", op),
		zap.Uint64("proposal", p.ID),
		zap.Bool("rateLimited", logging.IsRateLimit(err)),
		zap.Error(err))
}
