// Package form holds the observable state of one form session: the record
// mirror, the identity outcome, and the derived flags the rendering layer
// subscribes to.
package form

import (
	"sync"

	"github.com/calejo/formgate/internal/authz"
	"github.com/calejo/formgate/internal/models"
	"github.com/calejo/formgate/pkg/outcome"
)

// Event names what changed in a notification.
type Event string

const (
	// EventIdentity fires when the current-user outcome changes.
	EventIdentity Event = "identity"
	// EventRecord fires when record data changes.
	EventRecord Event = "record"
	// EventFlags fires when permission flags are recomputed.
	EventFlags Event = "flags"
	// EventValidation fires when validation messages change.
	EventValidation Event = "validation"
	// EventPrint fires when a print was requested.
	EventPrint Event = "print"
)

// Validator computes the aggregate validation messages for a record.
// An empty result means the record is valid.
type Validator func(*models.Record) []string

// DefaultValidator requires a non-empty title.
func DefaultValidator(rec *models.Record) []string {
	var msgs []string
	if rec == nil || rec.Title == "" {
		msgs = append(msgs, "title is required")
	}
	return msgs
}

// Snapshot is the immutable view handed to subscribers and the rendering
// layer. It carries everything conditional visibility needs.
type Snapshot struct {
	Record     models.Record
	UserState  outcome.State
	User       *models.CurrentUser
	IsAuthor   bool
	IsValid    bool
	Validation []string
	Flags      authz.Flags
}

// State is the mutable, observable mirror of one remote record.
// Safe for concurrent use.
type State struct {
	mu         sync.Mutex
	rec        *models.Record
	user       outcome.Outcome[*models.CurrentUser]
	flags      authz.Flags
	validation []string
	validator  Validator
	subs       map[int]func(Event, Snapshot)
	nextSub    int
}

// NewState creates form state for the given record (which may be an empty,
// never-persisted record for a new form). The identity outcome starts
// unresolved, so IsAuthor reads false until resolution completes.
func NewState(rec *models.Record, validator Validator) *State {
	if rec == nil {
		rec = &models.Record{}
	}
	if validator == nil {
		validator = DefaultValidator
	}
	s := &State{
		rec:       rec,
		validator: validator,
		subs:      make(map[int]func(Event, Snapshot)),
	}
	s.validation = validator(rec)
	return s
}

// Subscribe registers fn for change notifications and returns an
// unsubscribe function.
func (s *State) Subscribe(fn func(Event, Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Snapshot returns the current view of the form.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *State) snapshotLocked() Snapshot {
	user, _ := s.user.Get()
	return Snapshot{
		Record:     s.rec.Clone(),
		UserState:  s.user.State(),
		User:       user,
		IsAuthor:   s.rec.IsAuthoredBy(user),
		IsValid:    len(s.validation) == 0,
		Validation: append([]string(nil), s.validation...),
		Flags:      s.flags,
	}
}

// SetUser records the identity resolution outcome.
func (s *State) SetUser(o outcome.Outcome[*models.CurrentUser]) {
	s.mu.Lock()
	s.user = o
	snap := s.snapshotLocked()
	subs := s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, EventIdentity, snap)
}

// User returns the current identity outcome.
func (s *State) User() outcome.Outcome[*models.CurrentUser] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Update applies fn to the record, revalidates, and notifies observers.
func (s *State) Update(fn func(*models.Record)) {
	s.mu.Lock()
	fn(s.rec)
	s.validation = s.validator(s.rec)
	snap := s.snapshotLocked()
	subs := s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, EventRecord, snap)
}

// SetFlags stores recomputed permission flags and notifies observers.
func (s *State) SetFlags(flags authz.Flags) {
	s.mu.Lock()
	s.flags = flags
	snap := s.snapshotLocked()
	subs := s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, EventFlags, snap)
}

// Flags returns the current permission flags.
func (s *State) Flags() authz.Flags {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags
}

// IsValid reports whether the aggregate validation gate passes.
func (s *State) IsValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.validation) == 0
}

// Validation returns the current validation messages.
func (s *State) Validation() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.validation...)
}

// SurfaceValidation re-announces the current validation messages, used when
// a submit was refused so the refusal is observable.
func (s *State) SurfaceValidation() {
	s.mu.Lock()
	snap := s.snapshotLocked()
	subs := s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, EventValidation, snap)
}

// RequestPrint announces a print request to observers.
func (s *State) RequestPrint() {
	s.mu.Lock()
	snap := s.snapshotLocked()
	subs := s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, EventPrint, snap)
}

func (s *State) subscribersLocked() []func(Event, Snapshot) {
	subs := make([]func(Event, Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return subs
}

// notify runs outside the state lock so subscribers may call back in.
func notify(subs []func(Event, Snapshot), ev Event, snap Snapshot) {
	for _, fn := range subs {
		fn(ev, snap)
	}
}
