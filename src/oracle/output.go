package oracle

import (
	"encoding/json"
	"strings"

	"github.com/stake-plus/govagent/src/ai/core"
	"github.com/stake-plus/govagent/src/gov"
)

// OutputKind tags a normalised oracle reply.
type OutputKind string

const (
	OutputText OutputKind = "text"
	OutputVote OutputKind = "vote"
)

// Output is a provider reply reduced to either prose or a vote decision.
type Output struct {
	Kind      OutputKind
	Content   string   // prose shown in chat, marker line removed
	Vote      gov.Vote // set when Kind == OutputVote
	Reasoning string
}

const markerPrefix = "VOTE: "

// Normalize maps a raw reply onto Output. A valid cast_vote call wins over a
// textual marker; anything else is plain text.
func Normalize(reply core.Reply) Output {
	text := strings.TrimSpace(reply.Content)

	for _, call := range reply.ToolCalls {
		if call.Name != castVoteTool {
			continue
		}
		var args struct {
			Vote      string `json:"vote"`
			Reasoning string `json:"reasoning"`
		}
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			continue
		}
		v := gov.Vote(strings.ToLower(strings.TrimSpace(args.Vote)))
		if !v.Valid() {
			continue
		}
		body, _, _ := splitMarker(text)
		return Output{Kind: OutputVote, Content: body, Vote: v, Reasoning: strings.TrimSpace(args.Reasoning)}
	}

	if body, v, ok := splitMarker(text); ok {
		return Output{Kind: OutputVote, Content: body, Vote: v, Reasoning: body}
	}
	return Output{Kind: OutputText, Content: text}
}

// splitMarker looks for "VOTE: AYE" or "VOTE: NAY" as the last non-empty
// line and returns the text without it.
func splitMarker(text string) (string, gov.Vote, bool) {
	lines := strings.Split(text, "\n")
	last := len(lines) - 1
	for last >= 0 && strings.TrimSpace(lines[last]) == "" {
		last--
	}
	if last < 0 {
		return text, "", false
	}

	var v gov.Vote
	switch strings.TrimSpace(lines[last]) {
	case markerPrefix + "AYE":
		v = gov.VoteAye
	case markerPrefix + "NAY":
		v = gov.VoteNay
	default:
		return text, "", false
	}
	return strings.TrimSpace(strings.Join(lines[:last], "\n")), v, true
}
