package types

import "time"

// Proposal statuses
const (
	StatusActive          = "ACTIVE"
	StatusExecuted        = "EXECUTED"
	StatusRejected        = "REJECTED"
	StatusTimedOut        = "TIMED_OUT"
	StatusCancelled       = "CANCELLED"
	StatusExecutionFailed = "EXECUTION_FAILED"
)

// Vote choices
const (
	ChoiceReject  int16 = 0
	ChoiceApprove int16 = 1
	ChoiceAbstain int16 = 2
)

// ChoiceName maps a stored choice to its display name.
func ChoiceName(choice int16) string {
	switch choice {
	case ChoiceApprove:
		return "approve"
	case ChoiceReject:
		return "reject"
	case ChoiceAbstain:
		return "abstain"
	}
	return "unknown"
}

// Settings
type Setting struct {
	ID    uint8  `gorm:"primaryKey"`
	Name  string `gorm:"size:32;not null"`
	Value string `gorm:"size:256;not null"`
}

// Council transfer proposals
type Proposal struct {
	ID               string `gorm:"primaryKey;size:36"`
	GuildID          string `gorm:"index;size:64;not null"`
	ProposerID       string `gorm:"size:64;not null"`
	TargetID         string `gorm:"size:64;not null"`
	TargetGroupID    string `gorm:"size:64"`
	Amount           uint64 `gorm:"not null"`
	Description      string `gorm:"type:text"`
	AttachmentURL    string `gorm:"size:512"`
	SnapshotN        int    `gorm:"not null"`
	ThresholdT       int    `gorm:"not null"`
	Status           string `gorm:"size:24;index;not null;default:ACTIVE"`
	DeadlineAt       time.Time
	ReminderSent     bool `gorm:"default:false"`
	ResultNotifiedAt *time.Time
	ExecutionRef     string `gorm:"size:128"`
	ExecutionError   string `gorm:"size:512"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Terminal reports whether the proposal can no longer change.
func (p *Proposal) Terminal() bool { return p.Status != StatusActive }

// Electorate snapshot, frozen at proposal creation
type ProposalVoter struct {
	ProposalID string `gorm:"primaryKey;size:36"`
	MemberID   string `gorm:"primaryKey;size:64"`
}

// Cast votes, latest choice per voter is authoritative
type ProposalVote struct {
	ID         uint64 `gorm:"primaryKey"`
	ProposalID string `gorm:"index;size:36;not null"`
	VoterID    string `gorm:"size:64;not null"`
	Choice     int16  `gorm:"not null"`
	CreatedAt  time.Time
}

// Audit export row
type AuditRecord struct {
	ProposalID  string     `json:"proposalId"`
	GuildID     string     `json:"guildId"`
	ProposerID  string     `json:"proposerId"`
	TargetID    string     `json:"targetId"`
	Amount      uint64     `json:"amount"`
	Status      string     `json:"status"`
	SnapshotN   int        `json:"snapshotN"`
	ThresholdT  int        `json:"thresholdT"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	DeadlineAt  time.Time  `json:"deadlineAt"`
	ExecutedRef string     `json:"executionRef,omitempty"`
	NotifiedAt  *time.Time `json:"resultNotifiedAt,omitempty"`
}
