package session

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kestrel-dev/ragpanel/pkg/observe"
	"github.com/kestrel-dev/ragpanel/pkg/ragapi"
	"github.com/kestrel-dev/ragpanel/pkg/reveal"
)

// Querier is the slice of the backend client the query session needs.
type Querier interface {
	Query(ctx context.Context, question string) (*ragapi.QueryResponse, error)
}

// PhaseHint is the display-only pipeline stage cycled while a query is in
// flight.
type PhaseHint string

const (
	HintRetrieving PhaseHint = "Retrieving"
	HintReranking  PhaseHint = "Reranking"
	HintAnswering  PhaseHint = "Answering"
)

var phaseHints = []PhaseHint{HintRetrieving, HintReranking, HintAnswering}

const (
	// DefaultHintInterval is the reference phase-hint cycle cadence.
	DefaultHintInterval = 1200 * time.Millisecond

	// FallbackAnswer replaces a missing answer field.
	FallbackAnswer = "No answer found."

	rerankerName = "Cohere"
	modelName    = "Gemini 2.0"
)

// Source is one positionally indexed entry of the source list. Index is
// 1-based; citation number N in the answer refers to the source with
// Index == N.
type Source struct {
	Index      int
	Label      string
	Content    string
	ChunkIndex *int
}

// QueryMetrics is the snapshot attached to a successful query.
type QueryMetrics struct {
	ElapsedMs    int64
	SourceCount  int
	InputTokens  int
	OutputTokens int
	TokensUsed   int
	Reranker     string
	Model        string
}

// QueryView is the render-ready state of the query session.
type QueryView struct {
	Phase   Phase
	Hint    PhaseHint
	Answer  string
	Sources []Source
	Metrics *QueryMetrics
	Error   string
}

// QuerySession drives query lifecycles. A new submission supersedes any
// in-flight one: each request carries a monotonically increasing sequence
// number and a completion whose number is no longer current is discarded
// without touching state.
type QuerySession struct {
	mu      sync.Mutex
	client  Querier
	clock   reveal.Clock
	now     func() time.Time
	log     zerolog.Logger
	metrics *observe.Metrics

	hintInterval time.Duration
	onSubmit     func()
	onClear      func()
	onSuccess    func(answer string)

	seq       uint64
	phase     Phase
	hintIdx   int
	hintTimer reveal.Timer
	startedAt time.Time

	answer  string
	sources []Source
	result  *QueryMetrics
	errMsg  string
}

// QueryOption configures a QuerySession.
type QueryOption func(*QuerySession)

// WithQueryClock sets the timer source.
func WithQueryClock(c reveal.Clock) QueryOption {
	return func(s *QuerySession) { s.clock = c }
}

// WithQueryNow sets the wall-clock source used for elapsed-time metrics.
func WithQueryNow(now func() time.Time) QueryOption {
	return func(s *QuerySession) { s.now = now }
}

// WithHintInterval sets the phase-hint cycle cadence.
func WithHintInterval(d time.Duration) QueryOption {
	return func(s *QuerySession) { s.hintInterval = d }
}

// WithQueryLogger sets the session logger.
func WithQueryLogger(log zerolog.Logger) QueryOption {
	return func(s *QuerySession) {
		s.log = log.With().Str("component", "query").Logger()
	}
}

// WithQueryMetrics attaches Prometheus instrumentation.
func WithQueryMetrics(m *observe.Metrics) QueryOption {
	return func(s *QuerySession) { s.metrics = m }
}

// WithSubmitHook sets a callback invoked on every accepted submission; the
// orchestrator uses it to request the deferred scroll to the answer region.
func WithSubmitHook(f func()) QueryOption {
	return func(s *QuerySession) { s.onSubmit = f }
}

// WithClearHook sets a callback invoked when an accepted submission wipes
// the prior result; the orchestrator tears down the reveal run and the
// highlight there. It runs inside the session critical section so teardown
// and a racing stale completion are strictly ordered; it must not call
// back into the session.
func WithClearHook(f func()) QueryOption {
	return func(s *QuerySession) { s.onClear = f }
}

// WithSuccessHook sets a callback invoked with the final answer text of the
// latest query; the orchestrator uses it to start the progressive reveal.
// It runs inside the session critical section, after the clear hook of any
// superseding submission; it must not call back into the session.
func WithSuccessHook(f func(answer string)) QueryOption {
	return func(s *QuerySession) { s.onSuccess = f }
}

// NewQuerySession creates an idle query session.
func NewQuerySession(client Querier, opts ...QueryOption) *QuerySession {
	s := &QuerySession{
		client:       client,
		clock:        reveal.SystemClock(),
		now:          time.Now,
		log:          zerolog.Nop(),
		hintInterval: DefaultHintInterval,
		phase:        PhaseIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit starts a new query. A blank question is a no-op. Any prior result
// is cleared before the request is issued, and any still-in-flight request
// is superseded.
func (s *QuerySession) Submit(ctx context.Context, question string) {
	question = strings.TrimSpace(question)
	if question == "" {
		return
	}

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.stopHintLocked()

	// A new query wipes the old result even before it resolves.
	s.answer = ""
	s.sources = nil
	s.result = nil
	s.errMsg = ""
	s.phase = PhaseInFlight
	s.hintIdx = 0
	s.startedAt = s.now()
	s.scheduleHintLocked(seq)
	if s.onClear != nil {
		s.onClear()
	}
	if s.onSubmit != nil {
		s.onSubmit()
	}
	s.mu.Unlock()

	s.log.Info().Uint64("seq", seq).Str("question", question).Msg("query submitted")

	go func() {
		resp, err := s.client.Query(ctx, question)
		s.complete(seq, resp, err)
	}()
}

func (s *QuerySession) scheduleHintLocked(seq uint64) {
	s.hintTimer = s.clock.AfterFunc(s.hintInterval, func() { s.hintTick(seq) })
}

func (s *QuerySession) hintTick(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq || s.phase != PhaseInFlight {
		return
	}
	s.hintIdx = (s.hintIdx + 1) % len(phaseHints)
	s.scheduleHintLocked(seq)
}

func (s *QuerySession) complete(seq uint64, resp *ragapi.QueryResponse, err error) {
	s.mu.Lock()

	if seq != s.seq {
		// Superseded by a newer submission; silently absorbed.
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.StaleResponsesDiscarded.Inc()
		}
		s.log.Debug().Uint64("seq", seq).Msg("stale query response discarded")
		return
	}

	s.stopHintLocked()

	if err != nil {
		s.phase = PhaseFailure
		s.errMsg = ragapi.UserMessage(err)
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.QueriesTotal.WithLabelValues("failure").Inc()
		}
		s.log.Error().Uint64("seq", seq).Err(err).Msg("query failed")
		return
	}

	elapsed := s.now().Sub(s.startedAt)

	answer := resp.Answer
	if answer == "" {
		answer = FallbackAnswer
	}
	s.answer = answer
	s.sources = buildSources(resp.Citations)
	s.result = &QueryMetrics{
		ElapsedMs:    elapsed.Milliseconds(),
		SourceCount:  len(s.sources),
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		TokensUsed:   resp.InputTokens + resp.OutputTokens,
		Reranker:     rerankerName,
		Model:        modelName,
	}
	s.phase = PhaseSuccess
	if s.onSuccess != nil {
		s.onSuccess(answer)
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.QueriesTotal.WithLabelValues("success").Inc()
		s.metrics.QueryDuration.Observe(elapsed.Seconds())
	}
	s.log.Info().Uint64("seq", seq).Dur("elapsed", elapsed).
		Int("sources", len(resp.Citations)).Msg("query succeeded")
}

// buildSources derives the positional source list. Indices come from
// position, not from carried identifiers.
func buildSources(citations []ragapi.Citation) []Source {
	sources := make([]Source, 0, len(citations))
	for i, c := range citations {
		label := c.Source
		if label == "" {
			label = "Source " + strconv.Itoa(i+1)
		}
		sources = append(sources, Source{
			Index:      i + 1,
			Label:      label,
			Content:    c.Content,
			ChunkIndex: c.ChunkIndex,
		})
	}
	return sources
}

// View returns the current render state.
func (s *QuerySession) View() QueryView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return QueryView{
		Phase:   s.phase,
		Hint:    phaseHints[s.hintIdx],
		Answer:  s.answer,
		Sources: s.sources,
		Metrics: s.result,
		Error:   s.errMsg,
	}
}

// SourceCount returns the length of the current source list.
func (s *QuerySession) SourceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sources)
}

func (s *QuerySession) stopHintLocked() {
	if s.hintTimer != nil {
		s.hintTimer.Stop()
		s.hintTimer = nil
	}
}
