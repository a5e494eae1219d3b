package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-dev/ragpanel/pkg/ragapi"
	"github.com/kestrel-dev/ragpanel/pkg/reveal"
)

// fakeQuerier blocks each Query call until the test resolves it, so tests
// control completion order.
type fakeQuerier struct {
	mu    sync.Mutex
	calls map[string]chan queryOutcome
}

type queryOutcome struct {
	resp *ragapi.QueryResponse
	err  error
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{calls: make(map[string]chan queryOutcome)}
}

func (f *fakeQuerier) Query(ctx context.Context, question string) (*ragapi.QueryResponse, error) {
	f.mu.Lock()
	ch, ok := f.calls[question]
	if !ok {
		ch = make(chan queryOutcome, 1)
		f.calls[question] = ch
	}
	f.mu.Unlock()
	out := <-ch
	return out.resp, out.err
}

func (f *fakeQuerier) resolve(question string, resp *ragapi.QueryResponse, err error) {
	f.mu.Lock()
	ch, ok := f.calls[question]
	if !ok {
		ch = make(chan queryOutcome, 1)
		f.calls[question] = ch
	}
	f.mu.Unlock()
	ch <- queryOutcome{resp: resp, err: err}
}

func waitPhase(t *testing.T, s *QuerySession, phase Phase) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.View().Phase == phase
	}, time.Second, time.Millisecond)
}

func TestQueryBlankIsNoOp(t *testing.T) {
	f := newFakeQuerier()
	s := NewQuerySession(f)

	s.Submit(context.Background(), "   ")
	assert.Equal(t, PhaseIdle, s.View().Phase)
	assert.Empty(t, f.calls)
}

func TestQuerySuccessPopulatesResult(t *testing.T) {
	f := newFakeQuerier()

	base := time.Now()
	current := base
	s := NewQuerySession(f, WithQueryNow(func() time.Time { return current }))

	s.Submit(context.Background(), "q1")
	assert.Equal(t, PhaseInFlight, s.View().Phase)

	current = base.Add(842 * time.Millisecond)
	chunk := 0
	f.resolve("q1", &ragapi.QueryResponse{
		Answer: "Blue because scattering [1][2][3].",
		Citations: []ragapi.Citation{
			{Source: "a.pdf", Content: "one", ChunkIndex: &chunk},
			{Source: "b.pdf", Content: "two"},
			{Content: "three"},
		},
		InputTokens:  120,
		OutputTokens: 80,
	}, nil)

	waitPhase(t, s, PhaseSuccess)
	view := s.View()
	assert.Equal(t, "Blue because scattering [1][2][3].", view.Answer)
	require.Len(t, view.Sources, 3)
	assert.Equal(t, 1, view.Sources[0].Index)
	assert.Equal(t, "a.pdf", view.Sources[0].Label)
	assert.Equal(t, "Source 3", view.Sources[2].Label)

	require.NotNil(t, view.Metrics)
	assert.Equal(t, int64(842), view.Metrics.ElapsedMs)
	assert.Equal(t, 3, view.Metrics.SourceCount)
	assert.Equal(t, 200, view.Metrics.TokensUsed)
	assert.Equal(t, "Cohere", view.Metrics.Reranker)
	assert.Equal(t, "Gemini 2.0", view.Metrics.Model)
}

func TestQueryEmptyAnswerFallback(t *testing.T) {
	f := newFakeQuerier()
	s := NewQuerySession(f)

	s.Submit(context.Background(), "q1")
	f.resolve("q1", &ragapi.QueryResponse{}, nil)

	waitPhase(t, s, PhaseSuccess)
	view := s.View()
	assert.Equal(t, FallbackAnswer, view.Answer)
	assert.Empty(t, view.Sources)
	assert.Equal(t, 0, view.Metrics.SourceCount)
}

func TestQueryFailureSurfacesDetail(t *testing.T) {
	f := newFakeQuerier()
	s := NewQuerySession(f)

	s.Submit(context.Background(), "q1")
	f.resolve("q1", nil, &ragapi.APIError{StatusCode: 400, Detail: "Question is too short"})

	waitPhase(t, s, PhaseFailure)
	view := s.View()
	assert.Equal(t, "Question is too short", view.Error)
	assert.Empty(t, view.Answer)
	assert.Nil(t, view.Metrics)
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	f := newFakeQuerier()
	s := NewQuerySession(f)

	s.Submit(context.Background(), "old")
	s.Submit(context.Background(), "new")

	// The superseded request resolves after the newer one.
	f.resolve("new", &ragapi.QueryResponse{Answer: "new answer"}, nil)
	waitPhase(t, s, PhaseSuccess)

	f.resolve("old", &ragapi.QueryResponse{Answer: "old answer"}, nil)

	// Give the stale completion a chance to (incorrectly) land.
	assert.Never(t, func() bool {
		return s.View().Answer == "old answer"
	}, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, "new answer", s.View().Answer)
}

func TestStaleResponseWhileNewStillInFlight(t *testing.T) {
	f := newFakeQuerier()
	s := NewQuerySession(f)

	s.Submit(context.Background(), "old")
	s.Submit(context.Background(), "new")

	f.resolve("old", nil, &ragapi.APIError{StatusCode: 500, Detail: "boom"})

	// The stale failure must not move the session out of in-flight.
	assert.Never(t, func() bool {
		return s.View().Phase != PhaseInFlight
	}, 50*time.Millisecond, 5*time.Millisecond)

	f.resolve("new", &ragapi.QueryResponse{Answer: "fresh"}, nil)
	waitPhase(t, s, PhaseSuccess)
	assert.Equal(t, "fresh", s.View().Answer)
}

func TestNewSubmitClearsPriorResult(t *testing.T) {
	f := newFakeQuerier()
	s := NewQuerySession(f)

	s.Submit(context.Background(), "q1")
	f.resolve("q1", &ragapi.QueryResponse{
		Answer:    "first [1]",
		Citations: []ragapi.Citation{{Source: "a.pdf"}},
	}, nil)
	waitPhase(t, s, PhaseSuccess)

	s.Submit(context.Background(), "q2")
	view := s.View()
	assert.Equal(t, PhaseInFlight, view.Phase)
	assert.Empty(t, view.Answer)
	assert.Empty(t, view.Sources)
	assert.Nil(t, view.Metrics)
	assert.Empty(t, view.Error)
}

func TestPhaseHintCycles(t *testing.T) {
	f := newFakeQuerier()
	clock := reveal.NewManualClock()
	s := NewQuerySession(f, WithQueryClock(clock))

	s.Submit(context.Background(), "q1")
	assert.Equal(t, HintRetrieving, s.View().Hint)

	clock.Advance(DefaultHintInterval)
	assert.Equal(t, HintReranking, s.View().Hint)

	clock.Advance(DefaultHintInterval)
	assert.Equal(t, HintAnswering, s.View().Hint)

	clock.Advance(DefaultHintInterval)
	assert.Equal(t, HintRetrieving, s.View().Hint)
}

func TestPhaseHintStopsAfterCompletion(t *testing.T) {
	f := newFakeQuerier()
	clock := reveal.NewManualClock()
	s := NewQuerySession(f, WithQueryClock(clock))

	s.Submit(context.Background(), "q1")
	f.resolve("q1", &ragapi.QueryResponse{Answer: "done"}, nil)
	waitPhase(t, s, PhaseSuccess)

	before := s.View().Hint
	clock.Advance(10 * DefaultHintInterval)
	assert.Equal(t, before, s.View().Hint)
}

func TestSubmitAndSuccessHooks(t *testing.T) {
	f := newFakeQuerier()
	var mu sync.Mutex
	var submits int
	var revealed string

	s := NewQuerySession(f,
		WithSubmitHook(func() {
			mu.Lock()
			submits++
			mu.Unlock()
		}),
		WithSuccessHook(func(answer string) {
			mu.Lock()
			revealed = answer
			mu.Unlock()
		}),
	)

	s.Submit(context.Background(), "q1")
	f.resolve("q1", &ragapi.QueryResponse{Answer: "hooked"}, nil)
	waitPhase(t, s, PhaseSuccess)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return revealed == "hooked"
	}, time.Second, time.Millisecond)

	mu.Lock()
	assert.Equal(t, 1, submits)
	mu.Unlock()
}

func TestResubmitAfterFailureProceeds(t *testing.T) {
	f := newFakeQuerier()
	s := NewQuerySession(f)

	s.Submit(context.Background(), "q1")
	f.resolve("q1", nil, &ragapi.APIError{StatusCode: 500, Detail: "down"})
	waitPhase(t, s, PhaseFailure)

	s.Submit(context.Background(), "q2")
	assert.Equal(t, PhaseInFlight, s.View().Phase)
	assert.Empty(t, s.View().Error)

	f.resolve("q2", &ragapi.QueryResponse{Answer: "recovered"}, nil)
	waitPhase(t, s, PhaseSuccess)
	assert.Equal(t, "recovered", s.View().Answer)
}

func TestClearHookRunsBeforeSubmitHook(t *testing.T) {
	f := newFakeQuerier()
	var mu sync.Mutex
	var order []string

	s := NewQuerySession(f,
		WithClearHook(func() {
			mu.Lock()
			order = append(order, "clear")
			mu.Unlock()
		}),
		WithSubmitHook(func() {
			mu.Lock()
			order = append(order, "submit")
			mu.Unlock()
		}),
	)

	s.Submit(context.Background(), "   ")
	mu.Lock()
	assert.Empty(t, order)
	mu.Unlock()

	s.Submit(context.Background(), "q1")
	mu.Lock()
	assert.Equal(t, []string{"clear", "submit"}, order)
	mu.Unlock()
}
