// Package reveal drives the progressive, typed-out presentation of answer
// text. One engine reveals one text at a time; starting a new text cancels
// the running reveal before the first new tick is scheduled.
package reveal

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultInterval is the cadence of one revealed character, matching the
// reference typing speed.
const DefaultInterval = 10 * time.Millisecond

// Engine reveals text one rune per tick. All methods are safe for
// concurrent use; tick callbacks from a superseded run are discarded by a
// generation check under the engine mutex, so no cancelled tick can advance
// the cursor after a newer Start.
type Engine struct {
	mu       sync.Mutex
	clock    Clock
	interval time.Duration
	log      zerolog.Logger

	gen    uint64
	text   []rune
	cursor int
	active bool
	done   bool
	timer  Timer
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used to schedule ticks.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithInterval sets the tick cadence.
func WithInterval(d time.Duration) Option {
	return func(e *Engine) { e.interval = d }
}

// WithLogger sets the engine logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log.With().Str("component", "reveal").Logger() }
}

// NewEngine creates an idle engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		clock:    SystemClock(),
		interval: DefaultInterval,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Snapshot is the render-ready view of a reveal run.
type Snapshot struct {
	// Visible is the revealed prefix of the text.
	Visible string
	// Revealing reports an active, unfinished run; the renderer appends a
	// blinking caret exactly while this is true.
	Revealing bool
	// Done reports the terminal state: the full text is visible.
	Done bool
}

// Start begins revealing text from the first rune. Any previous run is
// cancelled before the cursor is reset. An empty text is terminal
// immediately and schedules nothing.
func (e *Engine) Start(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.gen++
	e.stopTimerLocked()

	e.text = []rune(text)
	e.cursor = 0
	e.done = len(e.text) == 0
	e.active = !e.done

	if e.active {
		e.log.Debug().Int("runes", len(e.text)).Msg("reveal started")
		e.scheduleLocked(e.gen)
	}
}

// Stop cancels the current run without starting a new one. The cursor
// freezes where it is; the run is not terminal.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gen++
	e.stopTimerLocked()
	e.active = false
}

// Snapshot returns the current visible text and run state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		Visible:   string(e.text[:e.cursor]),
		Revealing: e.active && !e.done,
		Done:      e.done,
	}
}

// Cursor returns the rune offset of the reveal cursor.
func (e *Engine) Cursor() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor
}

func (e *Engine) scheduleLocked(gen uint64) {
	e.timer = e.clock.AfterFunc(e.interval, func() { e.tick(gen) })
}

func (e *Engine) tick(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Stale tick from a superseded or stopped run.
	if gen != e.gen || !e.active {
		return
	}

	e.cursor++
	if e.cursor >= len(e.text) {
		e.cursor = len(e.text)
		e.done = true
		e.active = false
		e.timer = nil
		e.log.Debug().Msg("reveal complete")
		return
	}
	e.scheduleLocked(gen)
}

func (e *Engine) stopTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}
