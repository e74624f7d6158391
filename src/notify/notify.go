package notify

import (
	"context"

	"github.com/stake-plus/council-gov/src/types"
)

// Notifier delivers reminder and result messages to electorate members.
// Delivery is best effort; failures never block a status transition.
type Notifier interface {
	SendReminder(ctx context.Context, memberID string, p *types.Proposal) error
	BroadcastResult(ctx context.Context, electorate []string, p *types.Proposal, votes map[string]int16) error
}

// Noop drops every notification. Used when no Discord session is configured.
type Noop struct{}

func (Noop) SendReminder(ctx context.Context, memberID string, p *types.Proposal) error {
	return nil
}

func (Noop) BroadcastResult(ctx context.Context, electorate []string, p *types.Proposal, votes map[string]int16) error {
	return nil
}
