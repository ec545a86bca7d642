package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/stake-plus/govagent/src/gov"
	"github.com/stake-plus/govagent/src/vote"
	"go.uber.org/zap"
)

// discord rejects longer message content
const maxMessageLen = 2000

// Sender is the subset of *discordgo.Session used for announcements.
type Sender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier posts executed votes to a Discord channel.
type Notifier struct {
	sender    Sender
	channelID string
	network   string
	log       *zap.Logger
	close     func() error
}

// Open starts a bot session for token.
func Open(token, channelID, network string, log *zap.Logger) (*Notifier, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord: open session: %w", err)
	}
	n := NewNotifier(session, channelID, network, log)
	n.close = session.Close
	return n, nil
}

func NewNotifier(sender Sender, channelID, network string, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{sender: sender, channelID: channelID, network: network, log: log.Named("discord")}
}

// Close ends the bot session, if any.
func (n *Notifier) Close() error {
	if n.close == nil {
		return nil
	}
	return n.close()
}

// VoteCast announces a successful vote.
func (n *Notifier) VoteCast(ctx context.Context, p *gov.Proposal, res vote.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	content := FormatVote(p, res, n.network)
	if _, err := n.sender.ChannelMessageSend(n.channelID, content); err != nil {
		return fmt.Errorf("discord: send announcement: %w", err)
	}
	n.log.Info("vote announced", zap.Uint32("referendum", p.ChainID), zap.String("channel", n.channelID))
	return nil
}

// FormatVote renders the announcement text.
func FormatVote(p *gov.Proposal, res vote.Result, network string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Referendum #%d: %s**\n", p.ChainID, p.Title)
	fmt.Fprintf(&b, "Voted **%s**", strings.ToUpper(string(res.Vote)))
	if res.Stake != nil {
		fmt.Fprintf(&b, " with %s planck", res.Stake.String())
	}
	b.WriteString("\n")
	if res.TxHash != "" {
		fmt.Fprintf(&b, "Transaction: `%s`\n", res.TxHash)
	}
	b.WriteString(ReferendumURL(network, p.ChainID))

	return gov.Truncate(WrapURLsNoEmbed(b.String()), maxMessageLen)
}
