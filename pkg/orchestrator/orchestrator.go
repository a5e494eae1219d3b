// Package orchestrator composes the client: it owns the canonical state of
// the ingest and query sessions, the progressive reveal of answers, and the
// citation highlight, and exposes a render-ready snapshot. State flows one
// way in through user actions and one way out through Snapshot.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kestrel-dev/ragpanel/pkg/citation"
	"github.com/kestrel-dev/ragpanel/pkg/observe"
	"github.com/kestrel-dev/ragpanel/pkg/ragapi"
	"github.com/kestrel-dev/ragpanel/pkg/reveal"
	"github.com/kestrel-dev/ragpanel/pkg/session"
)

// Backend is the remote service consumed by the orchestrator.
type Backend interface {
	Ingest(ctx context.Context, req ragapi.IngestRequest) (*ragapi.IngestResult, error)
	Query(ctx context.Context, question string) (*ragapi.QueryResponse, error)
	ListSources(ctx context.Context) (*ragapi.SourceList, error)
}

// Timings groups the lifecycle tunables; zero values take the reference
// defaults.
type Timings struct {
	RevealInterval     time.Duration
	HintInterval       time.Duration
	ProgressInterval   time.Duration
	IngestSuccessDwell time.Duration
	HighlightDwell     time.Duration
	MaxIngestBytes     int
}

// Orchestrator routes user actions to the right session and assembles the
// final render state.
type Orchestrator struct {
	backend   Backend
	ingest    *session.IngestSession
	query     *session.QuerySession
	reveal    *reveal.Engine
	highlight *session.Highlighter
	log       zerolog.Logger

	mu      sync.Mutex
	scrolls []session.ScrollRequest
}

// Option configures an Orchestrator.
type Option func(*builder)

type builder struct {
	clock   reveal.Clock
	log     zerolog.Logger
	metrics *observe.Metrics
	timings Timings
	onReset func()
}

// WithClock sets the timer source for every component.
func WithClock(c reveal.Clock) Option {
	return func(b *builder) { b.clock = c }
}

// WithLogger sets the logger propagated to every component.
func WithLogger(log zerolog.Logger) Option {
	return func(b *builder) { b.log = log }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *observe.Metrics) Option {
	return func(b *builder) { b.metrics = m }
}

// WithTimings overrides the lifecycle tunables.
func WithTimings(t Timings) Option {
	return func(b *builder) { b.timings = t }
}

// WithIngestResetHook forwards the ingest auto-reset signal to the
// presentation layer.
func WithIngestResetHook(f func()) Option {
	return func(b *builder) { b.onReset = f }
}

// New composes an orchestrator over the given backend.
func New(backend Backend, opts ...Option) *Orchestrator {
	b := &builder{
		clock: reveal.SystemClock(),
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}

	o := &Orchestrator{
		backend: backend,
		log:     b.log.With().Str("component", "orchestrator").Logger(),
	}

	revealOpts := []reveal.Option{
		reveal.WithClock(b.clock),
		reveal.WithLogger(b.log),
	}
	if b.timings.RevealInterval > 0 {
		revealOpts = append(revealOpts, reveal.WithInterval(b.timings.RevealInterval))
	}
	o.reveal = reveal.NewEngine(revealOpts...)

	highlightOpts := []session.HighlightOption{
		session.WithHighlightClock(b.clock),
		session.WithHighlightLogger(b.log),
		session.WithHighlightMetrics(b.metrics),
	}
	if b.timings.HighlightDwell > 0 {
		highlightOpts = append(highlightOpts, session.WithHighlightDwell(b.timings.HighlightDwell))
	}
	o.highlight = session.NewHighlighter(o.enqueueScroll, highlightOpts...)

	queryOpts := []session.QueryOption{
		session.WithQueryClock(b.clock),
		session.WithQueryLogger(b.log),
		session.WithQueryMetrics(b.metrics),
		session.WithClearHook(func() {
			// A new query tears down the previous answer's reveal run and
			// any lingering citation highlight before it resolves.
			o.highlight.Clear()
			o.reveal.Start("")
		}),
		session.WithSubmitHook(func() {
			// A deferred smooth scroll to the answer region accompanies
			// every accepted query.
			o.enqueueScroll(session.ScrollRequest{Target: session.ScrollAnswer})
		}),
		session.WithSuccessHook(func(answer string) {
			o.reveal.Start(answer)
		}),
	}
	if b.timings.HintInterval > 0 {
		queryOpts = append(queryOpts, session.WithHintInterval(b.timings.HintInterval))
	}
	o.query = session.NewQuerySession(backend, queryOpts...)

	ingestOpts := []session.IngestOption{
		session.WithIngestClock(b.clock),
		session.WithIngestLogger(b.log),
		session.WithIngestMetrics(b.metrics),
		session.WithIngestConfig(session.IngestConfig{
			ProgressInterval: b.timings.ProgressInterval,
			SuccessDwell:     b.timings.IngestSuccessDwell,
			MaxIngestBytes:   b.timings.MaxIngestBytes,
		}),
	}
	if b.onReset != nil {
		ingestOpts = append(ingestOpts, session.WithIngestResetHook(b.onReset))
	}
	o.ingest = session.NewIngestSession(backend, ingestOpts...)

	return o
}

// SubmitQuery starts a new query lifecycle. The previous answer, reveal
// run and highlight are torn down before the request is issued. A blank
// question leaves all state untouched.
func (o *Orchestrator) SubmitQuery(ctx context.Context, question string) {
	o.query.Submit(ctx, question)
}

// SubmitIngest starts an ingestion; ingest and query lifecycles are fully
// independent failure domains.
func (o *Orchestrator) SubmitIngest(ctx context.Context, req ragapi.IngestRequest) error {
	return o.ingest.Submit(ctx, req)
}

// ClickCitation handles a click on citation marker number.
func (o *Orchestrator) ClickCitation(number int) {
	o.highlight.Click(number, o.query.SourceCount())
}

// ListSources returns the backend's document listing.
func (o *Orchestrator) ListSources(ctx context.Context) (*ragapi.SourceList, error) {
	return o.backend.ListSources(ctx)
}

// RenderState is the complete input of the presentation layer.
type RenderState struct {
	// Visible is the raw revealed prefix of the answer text.
	Visible string
	// Paragraphs is the parsed visible prefix of the answer, recomputed
	// from the reveal cursor on every snapshot.
	Paragraphs []citation.Paragraph
	// Revealing reports an unfinished reveal run; the caret is shown
	// exactly while true.
	Revealing bool
	// RevealDone reports the terminal reveal state.
	RevealDone bool
	// HighlightedSource is the emphasized source index, 0 when none.
	HighlightedSource int
	// Query carries phase, hint, full answer, sources, metrics and error.
	Query session.QueryView
	// Ingest carries phase, progress, chunk count and error.
	Ingest session.IngestView
}

// Snapshot assembles the current render state. Derived values (parsed
// segments, visible text) are pure functions of the canonical state, never
// cached.
func (o *Orchestrator) Snapshot() RenderState {
	rv := o.reveal.Snapshot()
	return RenderState{
		Visible:           rv.Visible,
		Paragraphs:        citation.ParseAnswer(rv.Visible),
		Revealing:         rv.Revealing,
		RevealDone:        rv.Done,
		HighlightedSource: o.highlight.Current(),
		Query:             o.query.View(),
		Ingest:            o.ingest.View(),
	}
}

// TakeScroll pops the oldest pending scroll request, or nil.
func (o *Orchestrator) TakeScroll() *session.ScrollRequest {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.scrolls) == 0 {
		return nil
	}
	req := o.scrolls[0]
	o.scrolls = o.scrolls[1:]
	return &req
}

func (o *Orchestrator) enqueueScroll(req session.ScrollRequest) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scrolls = append(o.scrolls, req)
}
