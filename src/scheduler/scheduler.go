package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/stake-plus/council-gov/src/council"
	"github.com/stake-plus/council-gov/src/notify"
	"github.com/stake-plus/council-gov/src/types"
)

type Config struct {
	Service  *council.Service
	Store    council.ProposalStore
	Notifier notify.Notifier
	Interval time.Duration // tick interval, default 60s
	Lead     time.Duration // reminder lead time, default 24h
}

// Scheduler is the single background loop that advances proposals without
// external triggers: it expires overdue proposals, sends pre-deadline
// reminders and fans out final results.
type Scheduler struct {
	service  *council.Service
	store    council.ProposalStore
	notifier notify.Notifier
	interval time.Duration
	lead     time.Duration
	notified map[string]bool
	now      func() time.Time
}

func New(cfg Config) *Scheduler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	lead := cfg.Lead
	if lead <= 0 {
		lead = 24 * time.Hour
	}
	return &Scheduler{
		service:  cfg.Service,
		store:    cfg.Store,
		notifier: cfg.Notifier,
		interval: interval,
		lead:     lead,
		notified: make(map[string]bool),
		now:      time.Now,
	}
}

// SetClock overrides the scheduler clock. Tests only.
func (s *Scheduler) SetClock(now func() time.Time) { s.now = now }

func (s *Scheduler) Start(ctx context.Context) {
	log.Println("Starting proposal lifecycle scheduler")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Stopping proposal lifecycle scheduler")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one scheduler pass. Errors are logged and swallowed so one bad
// proposal never halts the loop.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()

	// Snapshot what is about to conclude this tick, then expire. The
	// snapshot drives the result fan-out below.
	due, err := s.store.ListDue(ctx, now)
	if err != nil {
		log.Printf("Scheduler: list due proposals: %v", err)
		due = nil
	}

	if _, err := s.service.ExpireDue(ctx, now); err != nil {
		log.Printf("Scheduler: expire due proposals: %v", err)
	}

	s.remind(ctx, now)
	s.fanOut(ctx, due, now)
}

func (s *Scheduler) remind(ctx context.Context, now time.Time) {
	candidates, err := s.store.ListReminderCandidates(ctx, now, s.lead)
	if err != nil {
		log.Printf("Scheduler: list reminder candidates: %v", err)
		return
	}

	for i := range candidates {
		prop := &candidates[i]
		unvoted, err := s.store.UnvotedMembers(ctx, prop.ID)
		if err != nil {
			log.Printf("Scheduler: unvoted members of %s: %v", prop.ID, err)
			continue
		}
		for _, memberID := range unvoted {
			if err := s.notifier.SendReminder(ctx, memberID, prop); err != nil {
				log.Printf("Scheduler: remind %s about %s: %v", memberID, prop.ID, err)
			}
		}
		if err := s.store.MarkReminded(ctx, prop.ID); err != nil {
			log.Printf("Scheduler: mark %s reminded: %v", prop.ID, err)
		}
	}
}

// fanOut broadcasts final results for proposals that concluded this tick,
// at most once each. The in-memory set is the fast path; the persisted
// result_notified_at timestamp is the claim that survives restarts.
func (s *Scheduler) fanOut(ctx context.Context, due []types.Proposal, now time.Time) {
	for i := range due {
		id := due[i].ID
		if s.notified[id] {
			continue
		}

		prop, err := s.store.GetProposal(ctx, id)
		if err != nil {
			log.Printf("Scheduler: load proposal %s: %v", id, err)
			continue
		}
		if !prop.Terminal() {
			continue
		}

		claimed, err := s.store.MarkResultNotified(ctx, id, now)
		if err != nil {
			log.Printf("Scheduler: claim result broadcast for %s: %v", id, err)
			continue
		}
		s.notified[id] = true
		if !claimed {
			continue
		}

		electorate, err := s.store.Electorate(ctx, id)
		if err != nil {
			log.Printf("Scheduler: electorate of %s: %v", id, err)
			continue
		}
		votes, err := s.store.Votes(ctx, id)
		if err != nil {
			log.Printf("Scheduler: votes of %s: %v", id, err)
			continue
		}
		if err := s.notifier.BroadcastResult(ctx, electorate, prop, votes); err != nil {
			log.Printf("Scheduler: broadcast result of %s: %v", id, err)
		}
	}
}
