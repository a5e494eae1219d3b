package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kestrel-dev/ragpanel/pkg/observe"
	"github.com/kestrel-dev/ragpanel/pkg/reveal"
)

const (
	// DefaultHighlightDwell is how long a clicked citation stays
	// emphasized before auto-clearing.
	DefaultHighlightDwell = 2 * time.Second

	// HeaderOffset is the scroll clearance above a target source entry.
	HeaderOffset = 120
)

// ScrollTarget names the region a scroll request points at.
type ScrollTarget string

const (
	ScrollAnswer ScrollTarget = "answer"
	ScrollSource ScrollTarget = "source"
)

// ScrollRequest asks the presentation layer to bring a region into view.
type ScrollRequest struct {
	Target ScrollTarget
	// SourceIndex is the 1-based source entry for ScrollSource targets.
	SourceIndex int
	// Offset is the clearance kept above the target.
	Offset int
}

// Highlighter links clicked citation numbers to source-list entries: it
// records the transient emphasis, requests a scroll to the matching entry,
// and arms a single-shot clear. A second click re-targets and re-arms; the
// earlier pending clear is cancelled, never stacked.
type Highlighter struct {
	mu      sync.Mutex
	clock   reveal.Clock
	dwell   time.Duration
	log     zerolog.Logger
	metrics *observe.Metrics

	requestScroll func(ScrollRequest)

	gen     uint64
	current int // 0 means no highlight
	timer   reveal.Timer
}

// HighlightOption configures a Highlighter.
type HighlightOption func(*Highlighter)

// WithHighlightClock sets the timer source.
func WithHighlightClock(c reveal.Clock) HighlightOption {
	return func(h *Highlighter) { h.clock = c }
}

// WithHighlightDwell sets the auto-clear dwell.
func WithHighlightDwell(d time.Duration) HighlightOption {
	return func(h *Highlighter) { h.dwell = d }
}

// WithHighlightLogger sets the highlighter logger.
func WithHighlightLogger(log zerolog.Logger) HighlightOption {
	return func(h *Highlighter) {
		h.log = log.With().Str("component", "highlight").Logger()
	}
}

// WithHighlightMetrics attaches Prometheus instrumentation.
func WithHighlightMetrics(m *observe.Metrics) HighlightOption {
	return func(h *Highlighter) { h.metrics = m }
}

// NewHighlighter creates a highlighter that reports scroll requests through
// requestScroll; pass nil to drop them.
func NewHighlighter(requestScroll func(ScrollRequest), opts ...HighlightOption) *Highlighter {
	h := &Highlighter{
		clock:         reveal.SystemClock(),
		dwell:         DefaultHighlightDwell,
		log:           zerolog.Nop(),
		requestScroll: requestScroll,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Click handles a citation click. The highlight is always set, even out of
// range (the UI no-ops gracefully); the scroll request is only emitted when
// the number resolves to an existing source entry.
func (h *Highlighter) Click(number, sourceCount int) {
	h.mu.Lock()
	h.gen++
	gen := h.gen
	h.stopTimerLocked()
	h.current = number
	h.timer = h.clock.AfterFunc(h.dwell, func() { h.expire(gen) })
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.CitationClicksTotal.Inc()
	}
	h.log.Debug().Int("citation", number).Int("sources", sourceCount).Msg("citation clicked")

	if number >= 1 && number <= sourceCount && h.requestScroll != nil {
		h.requestScroll(ScrollRequest{
			Target:      ScrollSource,
			SourceIndex: number,
			Offset:      HeaderOffset,
		})
	}
}

func (h *Highlighter) expire(gen uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if gen != h.gen {
		return
	}
	h.current = 0
	h.timer = nil
}

// Clear drops the highlight immediately and cancels any pending clear.
func (h *Highlighter) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gen++
	h.stopTimerLocked()
	h.current = 0
}

// Current returns the highlighted source index, 0 when none.
func (h *Highlighter) Current() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

func (h *Highlighter) stopTimerLocked() {
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}
