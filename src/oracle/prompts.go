package oracle

import (
	"fmt"

	"github.com/stake-plus/govagent/src/ai/core"
	"github.com/stake-plus/govagent/src/gov"
)

const systemPrompt = `You are an AI Governance Agent for a DAO. Your role is to:
1. Analyze governance proposals
2. Interact with proposers to understand their intentions
3. Make voting decisions based on the DAO's best interests

Consider these key factors:
- Community benefit
- Technical feasibility
- Economic impact
- Long-term sustainability`

const votingInstructions = `Your vote is binding and cannot be changed once cast. Only decide when the
discussion has convinced you. To vote, call the cast_vote function, or end your reply with a
final line that reads exactly "VOTE: AYE" or "VOTE: NAY". Otherwise keep the conversation going.`

const analysisPrompt = `Please analyze this governance proposal:
Title: %s
Description: %s

Provide:
1. A score (0-100)
2. Key points of reasoning
3. Recommendation (approve/reject/discuss)

Format your response as JSON:
{
  "score": number,
  "reasoning": string[],
  "recommendation": "approve" | "reject" | "discuss"
}`

const (
	// CannedResponse is sent when no language model is configured.
	CannedResponse = "The governance agent is not connected to a language model right now, so it cannot deliberate on this proposal. Your message has been recorded."
	// ApologyResponse is sent when the language model fails or times out.
	ApologyResponse = "Sorry, I could not process your message right now. Please try again in a moment."
)

const castVoteTool = "cast_vote"

var castVote = core.Tool{
	Name:        castVoteTool,
	Description: "Cast the agent's binding on-chain vote on the current proposal.",
	Parameters: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"vote": map[string]interface{}{
				"type": "string",
				"enum": []string{string(gov.VoteAye), string(gov.VoteNay)},
			},
			"reasoning": map[string]interface{}{
				"type":        "string",
				"description": "Why the agent votes this way.",
			},
		},
		"required": []string{"vote", "reasoning"},
	},
}

func proposalContext(p *gov.Proposal) string {
	return fmt.Sprintf(`Current proposal context:
Title: %s
Description: %s
Current Score: %d
Status: %s`, p.Title, p.Description, p.Score, p.Status)
}

func deliberationMessages(p *gov.Proposal, history []gov.ChatMessage) []core.Message {
	msgs := []core.Message{
		{Role: core.RoleSystem, Content: systemPrompt + "\n\n" + votingInstructions},
		{Role: core.RoleSystem, Content: proposalContext(p)},
	}
	for _, m := range history {
		role := core.RoleUser
		if m.Sender == gov.SenderAgent {
			role = core.RoleAssistant
		}
		msgs = append(msgs, core.Message{Role: role, Content: m.Content})
	}
	return msgs
}
