package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"TaskAgent/backend/go/internal/capability/sim"
	"TaskAgent/backend/go/internal/consent"
	"TaskAgent/backend/go/internal/executor"
	"TaskAgent/backend/go/internal/models"
	"TaskAgent/backend/go/internal/reporter"
	"TaskAgent/backend/go/internal/store"
	"TaskAgent/backend/go/internal/task"
	"TaskAgent/backend/go/pkg/circuitbreaker"
	"TaskAgent/backend/go/pkg/clock"
	"TaskAgent/backend/go/pkg/logger"
)

const source = "dev_01"

// recordingExecutor succeeds every task and remembers the order.
type recordingExecutor struct {
	mu    sync.Mutex
	ids   []string
	gate  chan struct{}
	calls atomic.Int32
}

func (r *recordingExecutor) Execute(_ context.Context, t *task.ValidatedTask) models.TaskResult {
	r.calls.Add(1)
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	r.ids = append(r.ids, t.ID)
	r.mu.Unlock()
	return models.Succeeded(t.ID, string(t.Kind), nil)
}

type fixture struct {
	store    *store.MemoryStore
	consent  *consent.Static
	executor *recordingExecutor
	poller   *Poller
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		store:    store.NewMemoryStore(),
		consent:  consent.NewStatic(source),
		executor: &recordingExecutor{},
	}
	rep := reporter.New(nil, f.store, reporter.Options{SourceID: source, Logger: logger.Discard()})
	opts.SourceID = source
	opts.Logger = logger.Discard()
	f.poller = New(f.store, task.NewParser(task.DefaultLimits(), nil), f.consent, f.executor, rep, opts)
	return f
}

func (f *fixture) add(t *testing.T, rec models.TaskRecord) {
	t.Helper()
	if rec.SourceID == "" {
		rec.SourceID = source
	}
	if err := f.store.Create(context.Background(), &rec); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) row(t *testing.T, id string) *models.TaskRecord {
	t.Helper()
	rec, err := f.store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return rec
}

func TestRunCycle_ExecutesInFetchOrder(t *testing.T) {
	f := newFixture(t, Options{})
	base := time.Unix(1700000000, 0)
	f.add(t, models.TaskRecord{ID: "2", Action: "tap", Payload: map[string]interface{}{"x": 1, "y": 1}, CreatedAt: base.Add(time.Second)})
	f.add(t, models.TaskRecord{ID: "1", Action: "tap", Payload: map[string]interface{}{"x": 100, "y": 200}, CreatedAt: base})
	f.add(t, models.TaskRecord{ID: "3", Command: "back", CreatedAt: base.Add(2 * time.Second)})

	stats, err := f.poller.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if stats.Fetched != 3 || stats.Executed != 3 || stats.Succeeded != 3 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if got := f.executor.ids; len(got) != 3 || got[0] != "1" || got[1] != "2" || got[2] != "3" {
		t.Errorf("Expected fetch order [1 2 3], got %v", got)
	}
	for _, id := range []string{"1", "2", "3"} {
		if rec := f.row(t, id); rec.Status != models.TaskStatusDone || rec.Result["success"] != true {
			t.Errorf("Row %s: unexpected %+v", id, rec)
		}
	}
	if f.poller.State() != Idle {
		t.Errorf("Expected idle after cycle, got %s", f.poller.State())
	}
}

func TestRunCycle_ConsentRevokedNeverExecutes(t *testing.T) {
	f := newFixture(t, Options{})
	f.consent.Set(source, false)
	f.add(t, models.TaskRecord{ID: "1", Action: "rm", Payload: map[string]interface{}{"path": "Download/a.txt"}})

	stats, err := f.poller.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if f.executor.calls.Load() != 0 {
		t.Fatalf("Expected the executor to be skipped")
	}
	if stats.Rejected != 1 {
		t.Errorf("Expected one rejection, got %+v", stats)
	}
	rec := f.row(t, "1")
	if rec.Status != models.TaskStatusFailed || rec.Result["success"] != false || rec.Result["error"] != "ConsentRevoked" {
		t.Errorf("Unexpected row: %+v", rec)
	}
}

type failingChecker struct{}

func (failingChecker) Allowed(context.Context, string) (bool, error) {
	return true, errors.New("redis unavailable")
}

func TestRunCycle_ConsentErrorFailsClosed(t *testing.T) {
	f := newFixture(t, Options{})
	f.poller.consent = failingChecker{}
	f.add(t, models.TaskRecord{ID: "1", Action: "tap", Payload: map[string]interface{}{"x": 1, "y": 1}})

	if _, err := f.poller.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.executor.calls.Load() != 0 {
		t.Errorf("Expected the executor to be skipped")
	}
	if rec := f.row(t, "1"); rec.Error != string(models.ErrConsentRevoked) {
		t.Errorf("Expected ConsentRevoked, got %+v", rec)
	}
}

func TestRunCycle_ParseFailuresMarkedFailed(t *testing.T) {
	f := newFixture(t, Options{})
	base := time.Unix(1700000000, 0)
	f.add(t, models.TaskRecord{ID: "1", Action: "detonate", CreatedAt: base})
	f.add(t, models.TaskRecord{ID: "2", Action: "tap", Payload: map[string]interface{}{"x": 99999, "y": 0}, CreatedAt: base.Add(time.Second)})
	f.add(t, models.TaskRecord{ID: "3", Action: "home", CreatedAt: base.Add(2 * time.Second)})

	stats, err := f.poller.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Rejected != 2 || stats.Executed != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if rec := f.row(t, "1"); rec.Error != string(models.ErrUnknownKind) {
		t.Errorf("Expected UnknownKind, got %+v", rec)
	}
	if rec := f.row(t, "2"); rec.Error != string(models.ErrInvalidField) {
		t.Errorf("Expected InvalidField, got %+v", rec)
	}
	if rec := f.row(t, "3"); rec.Status != models.TaskStatusDone {
		t.Errorf("Expected the loop to continue past failures, got %+v", rec)
	}
}

func TestRunCycle_SkipsWhileBusy(t *testing.T) {
	f := newFixture(t, Options{})
	f.executor.gate = make(chan struct{})
	f.add(t, models.TaskRecord{ID: "1", Action: "home"})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.poller.RunCycle(context.Background())
	}()
	for f.executor.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	if f.poller.State() != Processing {
		t.Errorf("Expected processing, got %s", f.poller.State())
	}
	if _, err := f.poller.RunCycle(context.Background()); !errors.Is(err, ErrCycleInProgress) {
		t.Errorf("Expected ErrCycleInProgress, got %v", err)
	}
	close(f.executor.gate)
	<-done
	if s := f.poller.Stats(); s.Skipped != 1 || s.Cycles != 1 {
		t.Errorf("Unexpected stats: %+v", s)
	}
}

type brokenSource struct {
	*store.MemoryStore
	calls atomic.Int32
}

func (b *brokenSource) FetchPending(context.Context, string, int) ([]models.TaskRecord, error) {
	b.calls.Add(1)
	return nil, errors.New("connection reset")
}

func TestRunCycle_BreakerStopsFetching(t *testing.T) {
	f := newFixture(t, Options{Breaker: circuitbreaker.New(2, 1, time.Hour)})
	src := &brokenSource{MemoryStore: f.store}
	f.poller.source = src

	for i := 0; i < 4; i++ {
		if _, err := f.poller.RunCycle(context.Background()); err == nil {
			t.Fatalf("cycle %d: expected an error", i)
		}
	}
	if n := src.calls.Load(); n != 2 {
		t.Errorf("Expected the breaker to stop fetches after 2 failures, got %d", n)
	}
	if _, err := f.poller.RunCycle(context.Background()); !errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
}

func TestRun_StopWaitsForCycle(t *testing.T) {
	f := newFixture(t, Options{Interval: 5 * time.Millisecond})
	f.add(t, models.TaskRecord{ID: "1", Action: "home"})

	go f.poller.Run(context.Background())
	deadline := time.After(time.Second)
	for {
		if rec := f.row(t, "1"); rec.Status == models.TaskStatusDone {
			break
		}
		select {
		case <-deadline:
			t.Fatal("task was never processed")
		case <-time.After(time.Millisecond):
		}
	}
	f.poller.Stop()
	if f.poller.Stats().Cycles == 0 {
		t.Errorf("Expected at least one cycle")
	}
}

// blockingClock holds every Sleep until released, keeping a wait task on
// the worker.
type blockingClock struct {
	clock.Real
	sleeping chan struct{}
	release  chan struct{}
}

func (c *blockingClock) Sleep(time.Duration) {
	c.sleeping <- struct{}{}
	<-c.release
}

func TestRunCycle_ConsentRevokedWhileQueued(t *testing.T) {
	st := store.NewMemoryStore()
	chk := consent.NewStatic(source)
	device := sim.NewDevice(nil)
	clk := &blockingClock{sleeping: make(chan struct{}, 1), release: make(chan struct{})}
	exec := executor.New(executor.Capabilities{Gestures: device}, executor.Options{
		Clock: clk, Consent: chk, Logger: logger.Discard(),
	})
	defer exec.Stop()
	rep := reporter.New(nil, st, reporter.Options{SourceID: source, Logger: logger.Discard()})
	p := New(st, task.NewParser(task.DefaultLimits(), nil), chk, exec, rep, Options{SourceID: source, Logger: logger.Discard()})

	busy, err := exec.Submit(context.Background(), &task.ValidatedTask{ID: "w", SourceID: source, Kind: task.KindWait, Args: task.WaitArgs{Requested: time.Minute}})
	if err != nil {
		t.Fatal(err)
	}
	<-clk.sleeping

	if err := st.Create(context.Background(), &models.TaskRecord{ID: "1", SourceID: source, Action: "tap", Payload: map[string]interface{}{"x": 100, "y": 200}}); err != nil {
		t.Fatal(err)
	}
	cycle := make(chan CycleStats, 1)
	go func() {
		stats, _ := p.RunCycle(context.Background())
		cycle <- stats
	}()
	deadline := time.Now().Add(2 * time.Second)
	for exec.QueueDepth() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("tap was never queued")
		}
		time.Sleep(time.Millisecond)
	}

	chk.Set(source, false)
	close(clk.release)
	<-busy
	stats := <-cycle

	if events := device.Events(); len(events) != 0 {
		t.Errorf("Expected no gestures after revocation, got %+v", events)
	}
	if stats.Rejected != 1 || stats.Executed != 0 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	rec, err := st.GetByID(context.Background(), "1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != models.TaskStatusFailed || rec.Result["error"] != "ConsentRevoked" {
		t.Errorf("Expected failed row with ConsentRevoked, got %+v", rec)
	}
}
