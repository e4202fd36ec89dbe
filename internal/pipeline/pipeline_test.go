package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-data-windfield/internal/domain"
	"github.com/couchcryptid/storm-data-windfield/internal/observability"
	"github.com/couchcryptid/storm-data-windfield/internal/pipeline"
)

// --- mocks ---

// mockExtractor hands out its events as one batch, then blocks until the
// context is cancelled to simulate waiting for messages.
type mockExtractor struct {
	events []domain.RawEvent
	served atomic.Bool
	err    error
	calls  atomic.Int64
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	if !m.served.Swap(true) {
		return m.events[:min(batchSize, len(m.events))], nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

// mockBuilder echoes the request value, failing for values listed in fail.
type mockBuilder struct {
	fail  map[string]bool
	delay func(raw domain.RawEvent) time.Duration

	active    atomic.Int64
	maxActive atomic.Int64
}

func (m *mockBuilder) Build(_ context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	n := m.active.Add(1)
	defer m.active.Add(-1)
	for {
		cur := m.maxActive.Load()
		if n <= cur || m.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}
	if m.delay != nil {
		time.Sleep(m.delay(raw))
	}
	if m.fail[string(raw.Value)] {
		return domain.OutputEvent{}, errors.New("bad scenario")
	}
	return domain.OutputEvent{Key: raw.Key, Value: raw.Value}, nil
}

type mockLoader struct {
	mu     sync.Mutex
	loaded []domain.OutputEvent
	err    error
	calls  int
}

func (m *mockLoader) LoadBatch(_ context.Context, events []domain.OutputEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.loaded = append(m.loaded, events...)
	return nil
}

func (m *mockLoader) values() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.loaded))
	for i, e := range m.loaded {
		out[i] = string(e.Value)
	}
	return out
}

func rawEvents(values ...string) []domain.RawEvent {
	out := make([]domain.RawEvent, len(values))
	for i, v := range values {
		out[i] = domain.RawEvent{Key: []byte(v), Value: []byte(v), Offset: int64(i)}
	}
	return out
}

func runFor(t *testing.T, p *pipeline.Pipeline, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	require.NoError(t, p.Run(ctx))
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	ext := &mockExtractor{events: rawEvents("nowcast")}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockBuilder{}, ldr, slog.Default(), observability.NewMetricsForTesting(), 10, 2)
	require.Error(t, p.CheckReadiness(context.Background()))

	runFor(t, p, 300*time.Millisecond)

	assert.Equal(t, []string{"nowcast"}, ldr.values())
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockBuilder{}, ldr, slog.Default(), observability.NewMetricsForTesting(), 10, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.loaded)
}

func TestPipeline_Run_PreservesOrderUnderConcurrency(t *testing.T) {
	values := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	ext := &mockExtractor{events: rawEvents(values...)}
	// Earlier requests take longer so they finish last.
	bld := &mockBuilder{delay: func(raw domain.RawEvent) time.Duration {
		return time.Duration(int('h'-raw.Value[0])) * 5 * time.Millisecond
	}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, bld, ldr, slog.Default(), observability.NewMetricsForTesting(), 50, 4)
	runFor(t, p, 500*time.Millisecond)

	assert.Equal(t, values, ldr.values())
	assert.Equal(t, 1, ldr.calls, "one batch, one load")
	assert.LessOrEqual(t, bld.maxActive.Load(), int64(4))
	assert.Greater(t, bld.maxActive.Load(), int64(1))
}

func TestPipeline_Run_BuildErrorSkipsAndCommits(t *testing.T) {
	var committed []int64
	var mu sync.Mutex
	events := rawEvents("ok-1", "broken", "ok-2")
	for i := range events {
		events[i].Commit = func(_ context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			committed = append(committed, events[i].Offset)
			return nil
		}
	}

	ext := &mockExtractor{events: events}
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(ext, &mockBuilder{fail: map[string]bool{"broken": true}}, ldr, slog.Default(), metrics, 10, 3)
	runFor(t, p, 300*time.Millisecond)

	assert.Equal(t, []string{"ok-1", "ok-2"}, ldr.values())
	mu.Lock()
	assert.ElementsMatch(t, []int64{0, 1, 2}, committed)
	mu.Unlock()
}

func TestPipeline_Run_AllFailedNotReady(t *testing.T) {
	ext := &mockExtractor{events: rawEvents("bad")}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockBuilder{fail: map[string]bool{"bad": true}}, ldr, slog.Default(), observability.NewMetricsForTesting(), 10, 1)
	runFor(t, p, 200*time.Millisecond)

	assert.Empty(t, ldr.values())
	assert.Zero(t, ldr.calls)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_LoadErrorDoesNotCommit(t *testing.T) {
	var commits atomic.Int64
	events := rawEvents("nowcast")
	events[0].Commit = func(_ context.Context) error {
		commits.Add(1)
		return nil
	}

	ext := &mockExtractor{events: events}
	ldr := &mockLoader{err: errors.New("broker down")}

	p := pipeline.New(ext, &mockBuilder{}, ldr, slog.Default(), observability.NewMetricsForTesting(), 10, 1)
	runFor(t, p, 300*time.Millisecond)

	assert.Zero(t, commits.Load())
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_ExtractErrorBacksOff(t *testing.T) {
	ext := &mockExtractor{err: errors.New("no brokers")}

	p := pipeline.New(ext, &mockBuilder{}, &mockLoader{}, slog.Default(), observability.NewMetricsForTesting(), 10, 1)
	runFor(t, p, 500*time.Millisecond)

	// 200ms then 400ms: at most three attempts fit in the window.
	assert.GreaterOrEqual(t, ext.calls.Load(), int64(2))
	assert.LessOrEqual(t, ext.calls.Load(), int64(3))
}
