package session

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MaciejGL/shaper/internal/models"
	"github.com/jonboulle/clockwork"
)

// Field selects which draft value an edit targets.
type Field int

const (
	FieldReps Field = iota
	FieldWeight
)

// DraftJournal persists unflushed drafts across restarts.
type DraftJournal interface {
	Save(setID string, d models.Draft) error
	Delete(setID string) error
	Load() (map[string]models.Draft, error)
}

// FlushFunc writes a set's logged values to the remote store.
type FlushFunc func(ctx context.Context, setID string, reps *int, weight *float64) error

type draftEntry struct {
	draft  models.Draft
	edited bool
	timer  clockwork.Timer
	gen    uint64
}

// EditBuffer keeps per-set text drafts apart from the cached plan and writes
// them after the user stops typing for the configured delay. Values that
// arrive from the server through Sync never trigger a write.
type EditBuffer struct {
	ctx     context.Context
	clock   clockwork.Clock
	delay   time.Duration
	flush   FlushFunc
	journal DraftJournal
	log     *slog.Logger
	onError func(setID string, err error)

	mu      sync.Mutex
	entries map[string]*draftEntry
	closed  bool
}

// BufferOptions configures an EditBuffer.
type BufferOptions struct {
	Clock   clockwork.Clock
	Delay   time.Duration
	Journal DraftJournal
	Logger  *slog.Logger
	OnError func(setID string, err error)
}

// DefaultEditDebounce is the idle delay before a draft is written.
const DefaultEditDebounce = 500 * time.Millisecond

// NewEditBuffer returns a buffer that calls flush for settled drafts. ctx
// bounds every flush.
func NewEditBuffer(ctx context.Context, flush FlushFunc, opts BufferOptions) *EditBuffer {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Delay <= 0 {
		opts.Delay = DefaultEditDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &EditBuffer{
		ctx:     ctx,
		clock:   opts.Clock,
		delay:   opts.Delay,
		flush:   flush,
		journal: opts.Journal,
		log:     opts.Logger,
		onError: opts.OnError,
		entries: make(map[string]*draftEntry),
	}
}

// Edit records a keystroke-level change. raw is sanitized; the resulting
// draft is returned.
func (b *EditBuffer) Edit(setID string, field Field, raw string) models.Draft {
	value := SanitizeNumeric(raw)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return models.Draft{}
	}
	e := b.entryLocked(setID)
	switch field {
	case FieldReps:
		e.draft.Reps = value
	case FieldWeight:
		e.draft.Weight = value
	}
	e.edited = true
	b.armLocked(setID, e)
	d := e.draft
	b.mu.Unlock()

	b.save(setID, d)
	return d
}

// Sync applies values that came from the server. Fields are left alone while
// the user has an unflushed edit for the set.
func (b *EditBuffer) Sync(setID, reps, weight string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	e := b.entryLocked(setID)
	if e.edited {
		return
	}
	e.draft = models.Draft{Reps: reps, Weight: weight}
}

// Draft returns the current text for a set.
func (b *EditBuffer) Draft(setID string) (models.Draft, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[setID]
	if !ok {
		return models.Draft{}, false
	}
	return e.draft, true
}

// Pending returns the draft only when it holds an unflushed user edit.
func (b *EditBuffer) Pending(setID string) (models.Draft, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[setID]
	if !ok || !e.edited {
		return models.Draft{}, false
	}
	return e.draft, true
}

// Hold returns an unflushed draft and pauses its scheduled write while the
// caller persists the values itself. The draft stays pending and journaled
// until Commit; Release puts the write back on schedule. The returned token
// goes stale as soon as the set is edited again.
func (b *EditBuffer) Hold(setID string) (models.Draft, uint64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[setID]
	if !ok || !e.edited {
		return models.Draft{}, 0, false
	}
	b.stopLocked(e)
	return e.draft, e.gen, true
}

// Commit marks a held draft as written and drops it from the journal. It is
// a no-op when the set was edited after Hold.
func (b *EditBuffer) Commit(setID string, token uint64) {
	b.mu.Lock()
	e, ok := b.entries[setID]
	current := ok && e.gen == token && e.edited
	if current {
		e.edited = false
	}
	b.mu.Unlock()

	if current {
		b.forget(setID)
	}
}

// Release reschedules the write of a held draft that was not persisted.
func (b *EditBuffer) Release(setID string, token uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[setID]
	if !ok || b.closed || e.gen != token || !e.edited {
		return
	}
	b.armLocked(setID, e)
}

// Cancel drops a set's draft and timer, e.g. when the set is removed.
func (b *EditBuffer) Cancel(setID string) {
	b.mu.Lock()
	e, ok := b.entries[setID]
	if ok {
		b.stopLocked(e)
		delete(b.entries, setID)
	}
	b.mu.Unlock()

	if ok {
		b.forget(setID)
	}
}

// Restore reloads journaled drafts and schedules their writes.
func (b *EditBuffer) Restore() (int, error) {
	if b.journal == nil {
		return 0, nil
	}
	drafts, err := b.journal.Load()
	if err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for setID, d := range drafts {
		e := b.entryLocked(setID)
		e.draft = d
		e.edited = true
		b.armLocked(setID, e)
	}
	return len(drafts), nil
}

// Close stops every timer. Journaled drafts are kept for Restore.
func (b *EditBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for _, e := range b.entries {
		b.stopLocked(e)
	}
}

func (b *EditBuffer) entryLocked(setID string) *draftEntry {
	e, ok := b.entries[setID]
	if !ok {
		e = &draftEntry{}
		b.entries[setID] = e
	}
	return e
}

func (b *EditBuffer) armLocked(setID string, e *draftEntry) {
	b.stopLocked(e)
	gen := e.gen
	e.timer = b.clock.AfterFunc(b.delay, func() { b.fire(setID, gen) })
}

func (b *EditBuffer) stopLocked(e *draftEntry) {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.gen++
}

func (b *EditBuffer) fire(setID string, gen uint64) {
	b.mu.Lock()
	e, ok := b.entries[setID]
	if !ok || b.closed || e.gen != gen || !e.edited {
		b.mu.Unlock()
		return
	}
	e.edited = false
	e.timer = nil
	d := e.draft
	b.mu.Unlock()

	reps, weight := ParseDraft(d)
	if err := b.flush(b.ctx, setID, reps, weight); err != nil {
		b.log.Warn("draft flush failed", "set", setID, "error", err)
		// Keep the text pending and journaled for the next write.
		b.mu.Lock()
		if e, ok := b.entries[setID]; ok && e.gen == gen {
			e.edited = true
		}
		b.mu.Unlock()
		if b.onError != nil {
			b.onError(setID, err)
		}
		return
	}

	b.mu.Lock()
	e, ok = b.entries[setID]
	stillClean := ok && !e.edited
	b.mu.Unlock()
	if stillClean {
		b.forget(setID)
	}
}

func (b *EditBuffer) save(setID string, d models.Draft) {
	if b.journal == nil {
		return
	}
	if err := b.journal.Save(setID, d); err != nil {
		b.log.Warn("journal save failed", "set", setID, "error", err)
	}
}

func (b *EditBuffer) forget(setID string) {
	if b.journal == nil {
		return
	}
	if err := b.journal.Delete(setID); err != nil {
		b.log.Warn("journal delete failed", "set", setID, "error", err)
	}
}

// SanitizeNumeric keeps digits and the first decimal separator. A comma is
// normalized to a dot; everything else is dropped.
func SanitizeNumeric(raw string) string {
	var sb strings.Builder
	sb.Grow(len(raw))
	sep := false
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == '.' || r == ',':
			if !sep {
				sep = true
				sb.WriteByte('.')
			}
		}
	}
	return sb.String()
}

// ParseDraft converts sanitized draft text to values. Empty or
// unparseable text yields nil.
func ParseDraft(d models.Draft) (*int, *float64) {
	var reps *int
	if v, ok := parseNumber(d.Reps); ok {
		r := int(math.Round(v))
		reps = &r
	}
	var weight *float64
	if v, ok := parseNumber(d.Weight); ok {
		weight = &v
	}
	return reps, weight
}

func parseNumber(s string) (float64, bool) {
	s = SanitizeNumeric(s)
	if s == "" || s == "." {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// FormatInt and FormatFloat render logged values as draft text.
func FormatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func FormatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
