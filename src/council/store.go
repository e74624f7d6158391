package council

import (
	"context"
	"time"

	"github.com/stake-plus/council-gov/src/types"
)

// CreateParams carries everything needed to open a proposal.
type CreateParams struct {
	GuildID       string
	ProposerID    string
	TargetID      string
	TargetGroupID string
	Amount        uint64
	Description   string
	AttachmentURL string
	Electorate    []string
	Window        time.Duration
}

// ProposalStore is the persistence boundary for proposals, electorate
// snapshots and votes. Implementations must make SetStatus a compare-and-set
// from ACTIVE so that a proposal can be resolved at most once, and must make
// MarkResultNotified a compare-and-set on the notified timestamp.
type ProposalStore interface {
	CreateProposal(ctx context.Context, p CreateParams) (*types.Proposal, error)
	GetProposal(ctx context.Context, id string) (*types.Proposal, error)
	UpsertVote(ctx context.Context, proposalID, voterID string, choice int16) error
	Tally(ctx context.Context, proposalID string) (Tally, error)
	SetStatus(ctx context.Context, proposalID, status, executionRef, executionError string) error
	ListDue(ctx context.Context, now time.Time) ([]types.Proposal, error)
	ListReminderCandidates(ctx context.Context, now time.Time, lead time.Duration) ([]types.Proposal, error)
	MarkReminded(ctx context.Context, proposalID string) error
	ListActive(ctx context.Context, guildID string) ([]types.Proposal, error)
	Electorate(ctx context.Context, proposalID string) ([]string, error)
	UnvotedMembers(ctx context.Context, proposalID string) ([]string, error)
	Votes(ctx context.Context, proposalID string) (map[string]int16, error)
	MarkResultNotified(ctx context.Context, proposalID string, at time.Time) (bool, error)
	ExportInterval(ctx context.Context, guildID string, start, end time.Time) ([]types.AuditRecord, error)
}

// TransferExecutor moves the approved amount out of the council treasury.
// Any error is a business outcome (EXECUTION_FAILED), never retried here.
type TransferExecutor interface {
	Execute(ctx context.Context, guildID, targetID string, amount uint64, metadata map[string]string) (string, error)
}
