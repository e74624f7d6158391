package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stake-plus/council-gov/src/council"
	"github.com/stake-plus/council-gov/src/types"
)

// Memory is the reference ProposalStore, a mutex over plain maps. It backs
// the test suite and single-node deployments without MySQL.
type Memory struct {
	mu         sync.Mutex
	proposals  map[string]*types.Proposal
	electorate map[string][]string
	votes      map[string]map[string]int16
	now        func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		proposals:  make(map[string]*types.Proposal),
		electorate: make(map[string][]string),
		votes:      make(map[string]map[string]int16),
		now:        time.Now,
	}
}

// SetClock overrides the store clock. Tests only.
func (m *Memory) SetClock(now func() time.Time) { m.now = now }

func (m *Memory) CreateProposal(ctx context.Context, p council.CreateParams) (*types.Proposal, error) {
	if p.Amount == 0 {
		return nil, fmt.Errorf("%w: amount must be positive", council.ErrValidation)
	}
	members := dedupe(p.Electorate)
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: electorate is empty", council.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	prop := &types.Proposal{
		ID:            uuid.NewString(),
		GuildID:       p.GuildID,
		ProposerID:    p.ProposerID,
		TargetID:      p.TargetID,
		TargetGroupID: p.TargetGroupID,
		Amount:        p.Amount,
		Description:   p.Description,
		AttachmentURL: p.AttachmentURL,
		SnapshotN:     len(members),
		ThresholdT:    council.Threshold(len(members)),
		Status:        types.StatusActive,
		DeadlineAt:    now.Add(p.Window),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.proposals[prop.ID] = prop
	m.electorate[prop.ID] = members
	m.votes[prop.ID] = make(map[string]int16)

	out := *prop
	return &out, nil
}

func (m *Memory) GetProposal(ctx context.Context, id string) (*types.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prop, ok := m.proposals[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", council.ErrNotFound, id)
	}
	out := *prop
	return &out, nil
}

func (m *Memory) UpsertVote(ctx context.Context, proposalID, voterID string, choice int16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prop, ok := m.proposals[proposalID]
	if !ok {
		return fmt.Errorf("%w: %s", council.ErrNotFound, proposalID)
	}
	if prop.Status != types.StatusActive {
		return fmt.Errorf("%w: proposal %s is %s", council.ErrInvalidState, proposalID, prop.Status)
	}
	m.votes[proposalID][voterID] = choice
	prop.UpdatedAt = m.now()
	return nil
}

func (m *Memory) Tally(ctx context.Context, proposalID string) (council.Tally, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	votes, ok := m.votes[proposalID]
	if !ok {
		return council.Tally{}, fmt.Errorf("%w: %s", council.ErrNotFound, proposalID)
	}
	return tallyVotes(votes), nil
}

func (m *Memory) SetStatus(ctx context.Context, proposalID, status, executionRef, executionError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prop, ok := m.proposals[proposalID]
	if !ok {
		return fmt.Errorf("%w: %s", council.ErrNotFound, proposalID)
	}
	if prop.Status != types.StatusActive {
		return fmt.Errorf("%w: proposal %s is %s", council.ErrInvalidState, proposalID, prop.Status)
	}
	prop.Status = status
	prop.ExecutionRef = executionRef
	prop.ExecutionError = executionError
	prop.UpdatedAt = m.now()
	return nil
}

func (m *Memory) ListDue(ctx context.Context, now time.Time) ([]types.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Proposal
	for _, prop := range m.proposals {
		if prop.Status == types.StatusActive && !prop.DeadlineAt.After(now) {
			out = append(out, *prop)
		}
	}
	sortByCreated(out)
	return out, nil
}

func (m *Memory) ListReminderCandidates(ctx context.Context, now time.Time, lead time.Duration) ([]types.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Proposal
	for _, prop := range m.proposals {
		if prop.Status != types.StatusActive || prop.ReminderSent {
			continue
		}
		if prop.DeadlineAt.After(now) && prop.DeadlineAt.Sub(now) <= lead {
			out = append(out, *prop)
		}
	}
	sortByCreated(out)
	return out, nil
}

func (m *Memory) MarkReminded(ctx context.Context, proposalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prop, ok := m.proposals[proposalID]
	if !ok {
		return fmt.Errorf("%w: %s", council.ErrNotFound, proposalID)
	}
	prop.ReminderSent = true
	return nil
}

func (m *Memory) ListActive(ctx context.Context, guildID string) ([]types.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Proposal
	for _, prop := range m.proposals {
		if prop.Status != types.StatusActive {
			continue
		}
		if guildID != "" && prop.GuildID != guildID {
			continue
		}
		out = append(out, *prop)
	}
	sortByCreated(out)
	return out, nil
}

func (m *Memory) Electorate(ctx context.Context, proposalID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	members, ok := m.electorate[proposalID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", council.ErrNotFound, proposalID)
	}
	out := make([]string, len(members))
	copy(out, members)
	return out, nil
}

func (m *Memory) UnvotedMembers(ctx context.Context, proposalID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	members, ok := m.electorate[proposalID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", council.ErrNotFound, proposalID)
	}
	votes := m.votes[proposalID]
	var out []string
	for _, member := range members {
		if _, voted := votes[member]; !voted {
			out = append(out, member)
		}
	}
	return out, nil
}

func (m *Memory) Votes(ctx context.Context, proposalID string) (map[string]int16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	votes, ok := m.votes[proposalID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", council.ErrNotFound, proposalID)
	}
	out := make(map[string]int16, len(votes))
	for voter, choice := range votes {
		out[voter] = choice
	}
	return out, nil
}

func (m *Memory) MarkResultNotified(ctx context.Context, proposalID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prop, ok := m.proposals[proposalID]
	if !ok {
		return false, fmt.Errorf("%w: %s", council.ErrNotFound, proposalID)
	}
	if prop.ResultNotifiedAt != nil {
		return false, nil
	}
	t := at
	prop.ResultNotifiedAt = &t
	return true, nil
}

func (m *Memory) ExportInterval(ctx context.Context, guildID string, start, end time.Time) ([]types.AuditRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var props []types.Proposal
	for _, prop := range m.proposals {
		if prop.GuildID != guildID {
			continue
		}
		if prop.CreatedAt.Before(start) || prop.CreatedAt.After(end) {
			continue
		}
		props = append(props, *prop)
	}
	sortByCreated(props)

	out := make([]types.AuditRecord, 0, len(props))
	for i := range props {
		out = append(out, auditRecord(&props[i]))
	}
	return out, nil
}

func tallyVotes(votes map[string]int16) council.Tally {
	var t council.Tally
	for _, choice := range votes {
		switch choice {
		case types.ChoiceApprove:
			t.Approve++
		case types.ChoiceReject:
			t.Reject++
		case types.ChoiceAbstain:
			t.Abstain++
		}
	}
	return t
}

func auditRecord(p *types.Proposal) types.AuditRecord {
	return types.AuditRecord{
		ProposalID:  p.ID,
		GuildID:     p.GuildID,
		ProposerID:  p.ProposerID,
		TargetID:    p.TargetID,
		Amount:      p.Amount,
		Status:      p.Status,
		SnapshotN:   p.SnapshotN,
		ThresholdT:  p.ThresholdT,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		DeadlineAt:  p.DeadlineAt,
		ExecutedRef: p.ExecutionRef,
		NotifiedAt:  p.ResultNotifiedAt,
	}
}

func dedupe(members []string) []string {
	seen := make(map[string]struct{}, len(members))
	out := make([]string, 0, len(members))
	for _, m := range members {
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

func sortByCreated(props []types.Proposal) {
	sort.Slice(props, func(i, j int) bool {
		if props[i].CreatedAt.Equal(props[j].CreatedAt) {
			return props[i].ID < props[j].ID
		}
		return props[i].CreatedAt.Before(props[j].CreatedAt)
	})
}
