package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/policydoc"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/testutil"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Notify(_ context.Context, event Event) {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
}

func (n *recordingNotifier) types() []EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]EventType, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	db       *gorm.DB
	jobs     *testutil.Jobs
	notifier *recordingNotifier
	blocks   *BlockService
	policy   *PolicyService
	flags    *FlagService
}

func testSnapshot() *policydoc.Snapshot {
	return &policydoc.Snapshot{
		Version:                "2024.11.1",
		Title:                  "Career Misconduct Policy",
		Content:                "Be honest and respectful.",
		SeverityLevel:          "warning",
		RequiresAcknowledgment: true,
		DefaultBlockReason:     "Career misconduct policy violation",
	}
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithConfig(t, PolicyConfig{
		AutoBlockEnabled:      true,
		AutoBlockDurationDays: 30,
		AlertHighSeverity:     true,
	})
}

func newTestEnvWithConfig(t *testing.T, cfg PolicyConfig) *testEnv {
	t.Helper()

	db := testutil.NewDB(t)
	jobs := &testutil.Jobs{}
	notifier := &recordingNotifier{}
	blocks := NewBlockService(db, jobs, nil)
	policy := NewPolicyService(db, blocks, notifier, jobs, testSnapshot(), cfg)
	flags := NewFlagService(db, blocks, policy, notifier, nil)

	return &testEnv{
		db:       db,
		jobs:     jobs,
		notifier: notifier,
		blocks:   blocks,
		policy:   policy,
		flags:    flags,
	}
}

// setNow pins the clock of every service in the environment.
func (e *testEnv) setNow(now time.Time) {
	clock := func() time.Time { return now }
	e.blocks.now = clock
	e.policy.now = clock
	e.flags.now = clock
}
