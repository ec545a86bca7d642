package gov

import "time"

// Status is the lifecycle state of a proposal.
type Status string

const (
	StatusPending Status = "pending"
	StatusVoted   Status = "voted"
)

// Vote is an on-chain vote direction.
type Vote string

const (
	VoteAye Vote = "aye"
	VoteNay Vote = "nay"
)

// Valid reports whether v is aye or nay.
func (v Vote) Valid() bool {
	return v == VoteAye || v == VoteNay
}

// Sender identifies who wrote a chat message.
type Sender string

const (
	SenderUser  Sender = "user"
	SenderAgent Sender = "agent"
)

// Valid reports whether s is a known sender.
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderAgent
}

// Proposal is a governance referendum under deliberation.
type Proposal struct {
	ID          uint64    `gorm:"primaryKey" json:"id"`
	ChainID     uint32    `gorm:"uniqueIndex;not null" json:"chainId"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text;not null" json:"description"`
	Proposer    string    `gorm:"size:128;not null" json:"proposer"`
	Score       int       `gorm:"not null;default:0" json:"score"`
	Status      Status    `gorm:"size:16;not null;default:pending;index" json:"status"`
	VoteResult  *Vote     `gorm:"size:8" json:"voteResult"`
	VoteTxHash  *string   `gorm:"size:80" json:"voteTxHash"`
	Analysis    *string   `gorm:"type:text" json:"analysis"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TableName returns the table name
func (Proposal) TableName() string {
	return "proposals"
}

// ChatMessage is one entry of a proposal's append-only deliberation log.
type ChatMessage struct {
	ID         uint64    `gorm:"primaryKey" json:"id"`
	ProposalID uint64    `gorm:"index:idx_chat_proposal_ts,priority:1;not null" json:"proposalId"`
	Sender     Sender    `gorm:"size:8;not null" json:"sender"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Timestamp  time.Time `gorm:"index:idx_chat_proposal_ts,priority:2;not null" json:"timestamp"`
}

// TableName returns the table name
func (ChatMessage) TableName() string {
	return "chat_messages"
}

// Setting represents a configuration setting stored in the database
type Setting struct {
	ID     uint8  `gorm:"primaryKey"`
	Name   string `gorm:"size:32;not null;uniqueIndex"`
	Value  string `gorm:"type:text;not null"`
	Active uint8  `gorm:"not null;default:1"`
}

// VoteIntent is the oracle's decision for one deliberation turn. It is never
// persisted on its own; its effect lands on the proposal and in the chat log.
type VoteIntent struct {
	Vote      Vote
	Reasoning string
}
