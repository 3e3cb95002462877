package stream

import (
	"time"

	"github.com/google/uuid"
)

// Role marks who produced an utterance. The pipeline only transcribes the
// local speaker today; the field exists so the conversation model matches
// the chat-style presentation.
type Role string

// RoleSpeaker is the microphone owner.
const RoleSpeaker Role = "speaker"

// Utterance is one silence-delimited unit of speech. Instances handed out of
// the tracker are value snapshots; a finalized utterance never changes again.
type Utterance struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Role      Role      `json:"role"`
	Final     bool      `json:"final"`
	CreatedAt time.Time `json:"created_at"`
}

// EventKind discriminates tracker events.
type EventKind int

const (
	// EventUtteranceOpened fires when speech resumes after a finalized (or
	// initial) state and a new utterance is created.
	EventUtteranceOpened EventKind = iota
	// EventPartialUpdated fires when a fragment merges into the open
	// utterance.
	EventPartialUpdated
	// EventUtteranceFinalized fires when the open utterance is frozen.
	EventUtteranceFinalized
)

// Event carries an utterance snapshot out of the scheduler toward the
// single-writer session loop.
type Event struct {
	Kind      EventKind
	Utterance Utterance
}

// Tracker is the utterance state machine: Finalized (no open utterance) ⇄
// Open (accumulating). It is confined to the scheduler goroutine and needs
// no locking.
type Tracker struct {
	merge   MergeOptions
	current *Utterance
}

// NewTracker starts in the Finalized state.
func NewTracker(merge MergeOptions) *Tracker {
	return &Tracker{merge: merge}
}

// Open reports whether an utterance is currently accumulating.
func (t *Tracker) Open() bool { return t.current != nil }

// Current returns a snapshot of the open utterance.
func (t *Tracker) Current() (Utterance, bool) {
	if t.current == nil {
		return Utterance{}, false
	}
	return *t.current, true
}

// Accept folds an accepted fragment into the state machine: while Finalized
// it opens a new utterance seeded with the fragment; while Open it merges
// into the current text. The returned event carries a value snapshot.
func (t *Tracker) Accept(fragment string, now time.Time) Event {
	if t.current == nil {
		t.current = &Utterance{
			ID:        uuid.NewString(),
			Text:      fragment,
			Role:      RoleSpeaker,
			CreatedAt: now,
		}
		return Event{Kind: EventUtteranceOpened, Utterance: *t.current}
	}

	t.current.Text = Merge(t.current.Text, fragment, t.merge)
	return Event{Kind: EventPartialUpdated, Utterance: *t.current}
}

// Finalize freezes the open utterance, transitioning back to Finalized. The
// second return is false when no utterance was open.
func (t *Tracker) Finalize() (Event, bool) {
	if t.current == nil {
		return Event{}, false
	}
	t.current.Final = true
	ev := Event{Kind: EventUtteranceFinalized, Utterance: *t.current}
	t.current = nil
	return ev, true
}
