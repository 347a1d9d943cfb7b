package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floguru/gurucore/internal/logger"
)

type recordingNotifier struct {
	mu        sync.Mutex
	started   []string
	completed []string
	failed    []string
}

func (n *recordingNotifier) AutomationStarted(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.started = append(n.started, id)
}

func (n *recordingNotifier) AutomationCompleted(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, id)
}

func (n *recordingNotifier) AutomationFailed(id string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, id)
}

func newTestScheduler(t *testing.T, execute ExecuteFunc) (*Scheduler, *recordingNotifier) {
	t.Helper()
	if execute == nil {
		execute = func(ctx context.Context, id string) error { return nil }
	}
	notifier := &recordingNotifier{}
	s := New(logger.NewNop(), "UTC", execute, notifier)
	s.Start(context.Background())
	t.Cleanup(s.Stop)
	return s, notifier
}

func TestScheduleAutomation(t *testing.T) {
	s, _ := newTestScheduler(t, nil)

	err := s.ScheduleAutomation("auto-1", Trigger{Time: "06:00", Days: []string{"*"}})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Count())
}

func TestScheduleSameIDReplacesJob(t *testing.T) {
	s, _ := newTestScheduler(t, nil)

	require.NoError(t, s.ScheduleAutomation("auto-1", Trigger{Time: "06:00", Days: []string{"*"}}))
	require.NoError(t, s.ScheduleAutomation("auto-1", Trigger{Time: "07:30", Days: []string{"mon"}}))

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "auto-1", jobs[0].ID)
}

func TestUnscheduleUnknownIDSucceeds(t *testing.T) {
	s, _ := newTestScheduler(t, nil)

	// Must not panic or report failure.
	s.UnscheduleAutomation("nonexistent")
	assert.Equal(t, 0, s.Count())
}

func TestUnscheduleRemovesJob(t *testing.T) {
	s, _ := newTestScheduler(t, nil)

	require.NoError(t, s.ScheduleAutomation("auto-1", Trigger{Time: "06:00", Days: []string{"*"}}))
	s.UnscheduleAutomation("auto-1")
	assert.Equal(t, 0, s.Count())
	assert.Empty(t, s.Jobs())
}

func TestJobsInsertionOrder(t *testing.T) {
	s, _ := newTestScheduler(t, nil)

	require.NoError(t, s.ScheduleAutomation("charlie", Trigger{Time: "09:00", Days: []string{"*"}}))
	require.NoError(t, s.ScheduleAutomation("alpha", Trigger{Time: "06:00", Days: []string{"*"}}))
	require.NoError(t, s.ScheduleAutomation("bravo", Trigger{Time: "07:00", Days: []string{"*"}}))

	jobs := s.Jobs()
	require.Len(t, jobs, 3)
	assert.Equal(t, "charlie", jobs[0].ID)
	assert.Equal(t, "alpha", jobs[1].ID)
	assert.Equal(t, "bravo", jobs[2].ID)
}

func TestReplaceKeepsRegistryPosition(t *testing.T) {
	s, _ := newTestScheduler(t, nil)

	require.NoError(t, s.ScheduleAutomation("first", Trigger{Time: "06:00", Days: []string{"*"}}))
	require.NoError(t, s.ScheduleAutomation("second", Trigger{Time: "07:00", Days: []string{"*"}}))
	require.NoError(t, s.ScheduleAutomation("first", Trigger{Time: "22:00", Days: []string{"fri"}}))

	jobs := s.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "first", jobs[0].ID)
	assert.Equal(t, "second", jobs[1].ID)
}

func TestJobsNextRunIsRFC3339(t *testing.T) {
	s, _ := newTestScheduler(t, nil)

	require.NoError(t, s.ScheduleAutomation("auto-1", Trigger{Time: "06:00", Days: []string{"*"}}))

	jobs := s.Jobs()
	require.Len(t, jobs, 1)

	next, err := time.Parse(time.RFC3339, jobs[0].NextRun)
	require.NoError(t, err)
	assert.True(t, next.After(time.Now().Add(-time.Minute)))
	assert.Equal(t, 6, next.UTC().Hour())
	assert.Equal(t, 0, next.Minute())
}

func TestScheduleInvalidTriggerReported(t *testing.T) {
	s, _ := newTestScheduler(t, nil)

	err := s.ScheduleAutomation("auto-1", Trigger{Time: "6 am", Days: []string{"*"}})
	require.Error(t, err)

	var invalid *InvalidTriggerError
	assert.ErrorAs(t, err, &invalid)
	assert.Equal(t, 0, s.Count())
}

func TestScheduleInvalidTimezoneFailsOnlyThatJob(t *testing.T) {
	s, _ := newTestScheduler(t, nil)

	require.NoError(t, s.ScheduleAutomation("good", Trigger{Time: "06:00", Days: []string{"*"}}))

	err := s.ScheduleAutomation("bad", Trigger{
		Time:     "06:00",
		Days:     []string{"*"},
		Timezone: "Mars/Olympus_Mons",
	})
	require.Error(t, err)

	// The failing job is not registered; existing jobs keep running.
	assert.Equal(t, 1, s.Count())
	assert.Equal(t, "good", s.Jobs()[0].ID)
}

func TestFireInvokesExecuteAndNotifier(t *testing.T) {
	fired := make(chan string, 1)
	s, notifier := newTestScheduler(t, func(ctx context.Context, id string) error {
		fired <- id
		return nil
	})

	// Exercise the fire path directly rather than waiting for a timer tick.
	s.fire("auto-1")

	select {
	case id := <-fired:
		assert.Equal(t, "auto-1", id)
	default:
		t.Fatal("execute callback not invoked")
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.Equal(t, []string{"auto-1"}, notifier.started)
	assert.Equal(t, []string{"auto-1"}, notifier.completed)
	assert.Empty(t, notifier.failed)
}

func TestFireReportsFailure(t *testing.T) {
	s, notifier := newTestScheduler(t, func(ctx context.Context, id string) error {
		return assert.AnError
	})

	s.fire("auto-1")

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.Equal(t, []string{"auto-1"}, notifier.started)
	assert.Equal(t, []string{"auto-1"}, notifier.failed)
	assert.Empty(t, notifier.completed)
}

func TestFireRecoversPanic(t *testing.T) {
	s, _ := newTestScheduler(t, func(ctx context.Context, id string) error {
		panic("automation exploded")
	})

	assert.NotPanics(t, func() { s.fire("auto-1") })
}
