package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stake-plus/council-gov/src/council"
	"github.com/stake-plus/council-gov/src/store"
	"github.com/stake-plus/council-gov/src/types"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeExecutor) Execute(ctx context.Context, guildID, targetID string, amount uint64, metadata map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return "tx-0001", nil
}

type broadcast struct {
	proposalID string
	electorate []string
	votes      map[string]int16
}

type fakeNotifier struct {
	mu         sync.Mutex
	reminders  map[string][]string // proposal id -> reminded members
	broadcasts []broadcast
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{reminders: make(map[string][]string)}
}

func (f *fakeNotifier) SendReminder(ctx context.Context, memberID string, p *types.Proposal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reminders[p.ID] = append(f.reminders[p.ID], memberID)
	return nil
}

func (f *fakeNotifier) BroadcastResult(ctx context.Context, electorate []string, p *types.Proposal, votes map[string]int16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, broadcast{proposalID: p.ID, electorate: electorate, votes: votes})
	return nil
}

func newScheduler(t *testing.T) (*Scheduler, *store.Memory, *fakeNotifier, *fakeExecutor) {
	t.Helper()
	mem := store.NewMemory()
	exec := &fakeExecutor{}
	svc := council.NewService(council.ServiceConfig{Store: mem, Executor: exec})
	notifier := newFakeNotifier()
	sched := New(Config{
		Service:  svc,
		Store:    mem,
		Notifier: notifier,
	})
	return sched, mem, notifier, exec
}

func createProposal(t *testing.T, mem *store.Memory, window time.Duration, members ...string) *types.Proposal {
	t.Helper()
	prop, err := mem.CreateProposal(context.Background(), council.CreateParams{
		GuildID:    "g",
		ProposerID: "proposer",
		TargetID:   "target",
		Amount:     100,
		Electorate: members,
		Window:     window,
	})
	require.NoError(t, err)
	return prop
}

func TestTickTimesOutOverdueProposal(t *testing.T) {
	sched, mem, notifier, exec := newScheduler(t)
	ctx := context.Background()

	prop := createProposal(t, mem, -time.Hour, "1", "2", "3")
	require.NoError(t, mem.UpsertVote(ctx, prop.ID, "1", types.ChoiceApprove))

	sched.Tick(ctx)

	got, err := mem.GetProposal(ctx, prop.ID)
	require.NoError(t, err)
	require.Equal(t, types.StatusTimedOut, got.Status)
	require.Equal(t, 0, exec.calls)

	// Result fan-out covers the full electorate, non-voters included.
	require.Len(t, notifier.broadcasts, 1)
	b := notifier.broadcasts[0]
	require.Equal(t, prop.ID, b.proposalID)
	require.ElementsMatch(t, []string{"1", "2", "3"}, b.electorate)
	require.Equal(t, map[string]int16{"1": types.ChoiceApprove}, b.votes)
}

func TestTickExecutesLateQuorum(t *testing.T) {
	sched, mem, notifier, exec := newScheduler(t)
	ctx := context.Background()

	prop := createProposal(t, mem, -time.Minute, "1", "2", "3")
	require.NoError(t, mem.UpsertVote(ctx, prop.ID, "1", types.ChoiceApprove))
	require.NoError(t, mem.UpsertVote(ctx, prop.ID, "2", types.ChoiceApprove))

	sched.Tick(ctx)

	got, err := mem.GetProposal(ctx, prop.ID)
	require.NoError(t, err)
	require.Equal(t, types.StatusExecuted, got.Status)
	require.Equal(t, 1, exec.calls)
	require.Len(t, notifier.broadcasts, 1)
}

func TestTickBroadcastsOnce(t *testing.T) {
	sched, mem, notifier, _ := newScheduler(t)
	ctx := context.Background()

	createProposal(t, mem, -time.Hour, "1", "2", "3")

	sched.Tick(ctx)
	sched.Tick(ctx)
	sched.Tick(ctx)

	require.Len(t, notifier.broadcasts, 1)
}

func TestBroadcastDedupSurvivesSchedulerRestart(t *testing.T) {
	sched, mem, notifier, _ := newScheduler(t)
	ctx := context.Background()

	prop := createProposal(t, mem, -time.Hour, "1")
	require.NoError(t, mem.SetStatus(ctx, prop.ID, types.StatusTimedOut, "", ""))

	due := []types.Proposal{*prop}
	sched.fanOut(ctx, due, time.Now())
	require.Len(t, notifier.broadcasts, 1)

	// A fresh scheduler has an empty in-memory set; the persisted claim on
	// the proposal row is what blocks the duplicate.
	svc := council.NewService(council.ServiceConfig{Store: mem, Executor: &fakeExecutor{}})
	restarted := New(Config{Service: svc, Store: mem, Notifier: notifier})
	restarted.fanOut(ctx, due, time.Now())
	require.Len(t, notifier.broadcasts, 1)
}

func TestTickRemindsUnvotedMembers(t *testing.T) {
	sched, mem, notifier, _ := newScheduler(t)
	ctx := context.Background()

	prop := createProposal(t, mem, 10*time.Hour, "1", "2", "3")
	require.NoError(t, mem.UpsertVote(ctx, prop.ID, "2", types.ChoiceApprove))

	sched.Tick(ctx)

	require.ElementsMatch(t, []string{"1", "3"}, notifier.reminders[prop.ID])

	got, err := mem.GetProposal(ctx, prop.ID)
	require.NoError(t, err)
	require.Equal(t, types.StatusActive, got.Status)
	require.True(t, got.ReminderSent)

	// Reminder fires once per proposal.
	sched.Tick(ctx)
	require.Len(t, notifier.reminders[prop.ID], 2)
}

func TestTickSkipsFarDeadlines(t *testing.T) {
	sched, mem, notifier, _ := newScheduler(t)
	ctx := context.Background()

	prop := createProposal(t, mem, 100*time.Hour, "1", "2")

	sched.Tick(ctx)

	require.Empty(t, notifier.reminders[prop.ID])
	require.Empty(t, notifier.broadcasts)

	got, err := mem.GetProposal(ctx, prop.ID)
	require.NoError(t, err)
	require.Equal(t, types.StatusActive, got.Status)
	require.False(t, got.ReminderSent)
}
