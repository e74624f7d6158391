package council

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stake-plus/council-gov/src/data"
	"github.com/stake-plus/council-gov/src/types"
)

type ServiceConfig struct {
	Store    ProposalStore
	Executor TransferExecutor
	Redis    *redis.Client // optional, lifecycle events stream
	Window   time.Duration // voting window for new proposals
}

// Service orchestrates the proposal lifecycle: create, vote, cancel and
// deadline expiry. All writes that can resolve a proposal run under a
// per-proposal lock so concurrent approving votes cannot both execute.
type Service struct {
	store    ProposalStore
	executor TransferExecutor
	rdb      *redis.Client
	window   time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(cfg ServiceConfig) *Service {
	window := cfg.Window
	if window <= 0 {
		window = 72 * time.Hour
	}
	return &Service{
		store:    cfg.Store,
		executor: cfg.Executor,
		rdb:      cfg.Redis,
		window:   window,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (s *Service) lock(proposalID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[proposalID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[proposalID] = l
	}
	return l
}

func (s *Service) release(proposalID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, proposalID)
}

// Create opens a new proposal against a frozen electorate snapshot.
func (s *Service) Create(ctx context.Context, p CreateParams) (*types.Proposal, error) {
	if p.Amount == 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if len(dedupe(p.Electorate)) == 0 {
		return nil, fmt.Errorf("%w: electorate is empty", ErrValidation)
	}
	if p.Window <= 0 {
		p.Window = s.window
	}

	prop, err := s.store.CreateProposal(ctx, p)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "created", prop, Tally{})
	return prop, nil
}

// VoteResult is the post-vote view of a proposal.
type VoteResult struct {
	Proposal *types.Proposal
	Tally    Tally
}

// Vote records a member's choice and resolves the proposal when the tally
// decides it. A voter may change their vote while the proposal is active;
// the latest choice wins.
func (s *Service) Vote(ctx context.Context, proposalID, voterID string, choice int16) (*VoteResult, error) {
	switch choice {
	case types.ChoiceApprove, types.ChoiceReject, types.ChoiceAbstain:
	default:
		return nil, fmt.Errorf("%w: unknown vote choice %d", ErrValidation, choice)
	}

	l := s.lock(proposalID)
	l.Lock()
	defer l.Unlock()

	prop, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if prop.Terminal() {
		return nil, fmt.Errorf("%w: proposal %s is %s", ErrInvalidState, proposalID, prop.Status)
	}

	electorate, err := s.store.Electorate(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if !contains(electorate, voterID) {
		return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, voterID)
	}

	if err := s.store.UpsertVote(ctx, proposalID, voterID, choice); err != nil {
		return nil, err
	}

	tally, err := s.store.Tally(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	switch Decide(tally, prop.SnapshotN, prop.ThresholdT) {
	case Approved:
		prop, err = s.execute(ctx, prop, tally)
	case RejectedEarly:
		prop, err = s.resolve(ctx, prop, types.StatusRejected, "", "", tally)
	default:
		return &VoteResult{Proposal: prop, Tally: tally}, nil
	}
	if err != nil {
		return nil, err
	}
	return &VoteResult{Proposal: prop, Tally: tally}, nil
}

// Cancel withdraws the proposal. It succeeds only while the proposal is
// active and no vote has been cast; anything else is a normal false, not an
// error.
func (s *Service) Cancel(ctx context.Context, proposalID string) (bool, error) {
	l := s.lock(proposalID)
	l.Lock()
	defer l.Unlock()

	prop, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return false, err
	}
	if prop.Terminal() {
		return false, nil
	}

	tally, err := s.store.Tally(ctx, proposalID)
	if err != nil {
		return false, err
	}
	if tally.Total() > 0 {
		return false, nil
	}

	if _, err := s.resolve(ctx, prop, types.StatusCancelled, "", "", tally); err != nil {
		return false, err
	}
	return true, nil
}

// ExpireDue resolves every proposal whose deadline has passed: executes the
// ones that already reached quorum, times out the rest. Returns the
// proposals it resolved.
func (s *Service) ExpireDue(ctx context.Context, now time.Time) ([]types.Proposal, error) {
	due, err := s.store.ListDue(ctx, now)
	if err != nil {
		return nil, err
	}

	var resolved []types.Proposal
	for i := range due {
		prop, err := s.expire(ctx, due[i].ID)
		if err != nil {
			log.Printf("Failed to expire proposal %s: %v", due[i].ID, err)
			continue
		}
		if prop != nil {
			resolved = append(resolved, *prop)
		}
	}
	return resolved, nil
}

func (s *Service) expire(ctx context.Context, proposalID string) (*types.Proposal, error) {
	l := s.lock(proposalID)
	l.Lock()
	defer l.Unlock()

	prop, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if prop.Terminal() {
		return nil, nil
	}

	tally, err := s.store.Tally(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	// Quorum reached at the deadline boundary but never resolved: execute
	// late rather than timing out an approved proposal.
	if Decide(tally, prop.SnapshotN, prop.ThresholdT) == Approved {
		return s.execute(ctx, prop, tally)
	}
	return s.resolve(ctx, prop, types.StatusTimedOut, "", "", tally)
}

func (s *Service) Get(ctx context.Context, proposalID string) (*types.Proposal, error) {
	return s.store.GetProposal(ctx, proposalID)
}

func (s *Service) Tally(ctx context.Context, proposalID string) (Tally, error) {
	return s.store.Tally(ctx, proposalID)
}

func (s *Service) Active(ctx context.Context, guildID string) ([]types.Proposal, error) {
	return s.store.ListActive(ctx, guildID)
}

func (s *Service) Export(ctx context.Context, guildID string, start, end time.Time) ([]types.AuditRecord, error) {
	return s.store.ExportInterval(ctx, guildID, start, end)
}

// execute attempts the treasury transfer exactly once and records the
// business outcome. A failed transfer is a terminal state, not an error.
func (s *Service) execute(ctx context.Context, prop *types.Proposal, tally Tally) (*types.Proposal, error) {
	metadata := map[string]string{
		"proposal": prop.ID,
		"proposer": prop.ProposerID,
	}
	if prop.TargetGroupID != "" {
		metadata["group"] = prop.TargetGroupID
	}

	ref, execErr := s.executor.Execute(ctx, prop.GuildID, prop.TargetID, prop.Amount, metadata)
	if execErr != nil {
		log.Printf("Transfer for proposal %s failed: %v", prop.ID, execErr)
		return s.resolve(ctx, prop, types.StatusExecutionFailed, "", execErr.Error(), tally)
	}
	return s.resolve(ctx, prop, types.StatusExecuted, ref, "", tally)
}

func (s *Service) resolve(ctx context.Context, prop *types.Proposal, status, executionRef, executionError string, tally Tally) (*types.Proposal, error) {
	if err := s.store.SetStatus(ctx, prop.ID, status, executionRef, executionError); err != nil {
		return nil, err
	}
	s.release(prop.ID)

	prop, err := s.store.GetProposal(ctx, prop.ID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, "resolved", prop, tally)
	return prop, nil
}

func (s *Service) publish(ctx context.Context, event string, prop *types.Proposal, tally Tally) {
	if s.rdb == nil {
		return
	}
	err := data.PublishEvent(ctx, s.rdb, event, prop.ID, map[string]interface{}{
		"guild":   prop.GuildID,
		"status":  prop.Status,
		"approve": tally.Approve,
		"reject":  tally.Reject,
		"abstain": tally.Abstain,
	})
	if err != nil {
		log.Printf("Failed to publish %s event for proposal %s: %v", event, prop.ID, err)
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

func contains(members []string, id string) bool {
	for _, m := range members {
		if m == id {
			return true
		}
	}
	return false
}
