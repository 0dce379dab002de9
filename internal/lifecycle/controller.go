// Package lifecycle translates UI intent into the five form actions
// (save, submit, delete, cancel, print), enforcing authorization and
// delegating persistence to the record store.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/calejo/formgate/internal/authz"
	"github.com/calejo/formgate/internal/form"
	"github.com/calejo/formgate/internal/metrics"
	"github.com/calejo/formgate/internal/models"
	"github.com/calejo/formgate/internal/store"
	"github.com/calejo/formgate/pkg/outcome"
)

var (
	// ErrDenied means an action was attempted without its required flag.
	ErrDenied = errors.New("action not permitted")

	// ErrNotValid means submit was refused because the form fails validation.
	ErrNotValid = errors.New("form is not valid")

	// ErrBusy means another lifecycle action is already in flight.
	ErrBusy = errors.New("another action is in flight")

	// ErrNotReady means a mutating action was attempted before identity
	// resolution completed.
	ErrNotReady = errors.New("identity not resolved")

	// ErrClosed means the form session has already ended.
	ErrClosed = errors.New("form session is closed")

	// ErrInvariant marks a state that the permission gates should have made
	// unreachable, e.g. a delete with no record identifier.
	ErrInvariant = errors.New("invariant violation")
)

// SessionState tracks where the form session stands.
type SessionState int

const (
	// StateUnresolved means identity has not been resolved yet. Only
	// cancel and print are available.
	StateUnresolved SessionState = iota
	// StateReady means identity is resolved and flags are computed.
	StateReady
	// StateClosed means the session ended (submit, delete, or cancel).
	StateClosed
)

// IdentityResolver is the slice of the identity client the controller needs.
type IdentityResolver interface {
	CurrentUser(ctx context.Context) (*models.CurrentUser, error)
	Groups(ctx context.Context, userID int64) ([]models.Group, error)
}

// Nav holds the navigation targets for cancel: the "source" location the
// form was opened from, and the fallback "root" location.
type Nav struct {
	Source string
	Root   string
}

// Controller is the single authority for lifecycle dispatch on one form
// session. All collaborators are injected; the controller never reaches up
// an object graph.
type Controller struct {
	state  *form.State
	store  store.RecordStore
	ids    IdentityResolver
	policy authz.Policy
	nav    Nav

	mu      sync.Mutex
	session SessionState

	// inFlight serializes mutating actions so a rapid double-dispatch
	// (e.g. double-clicked Submit) cannot reach the store twice.
	inFlight atomic.Bool
}

// New creates a controller for the given form state.
func New(state *form.State, recordStore store.RecordStore, ids IdentityResolver, policy authz.Policy, nav Nav) *Controller {
	c := &Controller{
		state:  state,
		store:  recordStore,
		ids:    ids,
		policy: policy,
		nav:    nav,
	}
	// Identity is unknown at construction; publish fail-closed flags so the
	// rendering layer starts with everything but print disabled.
	rec := state.Snapshot().Record
	state.SetFlags(authz.DeriveFlags(nil, &rec, policy))
	return c
}

// Session returns the current session state.
func (c *Controller) Session() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// ResolveIdentity fetches the current user and their groups, recomputes the
// permission flags, and moves the session to Ready.
//
// A failed user lookup leaves the session unresolved with fail-closed flags;
// the form stays usable for cancel and print. A failed group lookup degrades
// to an empty group list (no elevated permission) but still reaches Ready.
func (c *Controller) ResolveIdentity(ctx context.Context) error {
	user, err := c.ids.CurrentUser(ctx)
	if err != nil {
		slog.Warn("Identity resolution failed", "error", err)
		c.state.SetUser(outcome.Fail[*models.CurrentUser](err))
		rec := c.state.Snapshot().Record
		c.state.SetFlags(authz.DeriveFlags(nil, &rec, c.policy))
		return err
	}

	groups, err := c.ids.Groups(ctx, user.ID)
	if err != nil {
		slog.Warn("Group lookup failed, treating user as ungrouped",
			"user_id", user.ID, "error", err)
		groups = nil
	}
	user.Groups = groups

	c.state.SetUser(outcome.Of(user))
	c.recomputeFlags()

	c.mu.Lock()
	if c.session == StateUnresolved {
		c.session = StateReady
	}
	c.mu.Unlock()

	slog.Info("Identity resolved",
		"user_id", user.ID,
		"login", user.Login,
		"groups", len(user.Groups),
	)
	return nil
}

// recomputeFlags re-derives permission flags from the current identity
// outcome and record ownership data.
func (c *Controller) recomputeFlags() {
	user, _ := c.state.User().Get()
	rec := c.state.Snapshot().Record
	c.state.SetFlags(authz.DeriveFlags(user, &rec, c.policy))
}

// Cancel ends the session without any persistence side effect and returns
// the navigation target: the source location if one was supplied when the
// form was opened, otherwise the root location. Pending edits are discarded.
func (c *Controller) Cancel() string {
	c.mu.Lock()
	c.session = StateClosed
	c.mu.Unlock()

	metrics.LifecycleDispatches.WithLabelValues("cancel", "ok").Inc()

	if c.nav.Source != "" {
		return c.nav.Source
	}
	return c.nav.Root
}

// Print requests the platform print facility via the form state. It mutates
// nothing and performs no authorization check beyond AllowPrint.
func (c *Controller) Print() error {
	if !c.state.Flags().AllowPrint {
		metrics.LifecycleDispatches.WithLabelValues("print", "denied").Inc()
		return fmt.Errorf("print: %w", ErrDenied)
	}

	c.state.RequestPrint()
	metrics.LifecycleDispatches.WithLabelValues("print", "ok").Inc()
	return nil
}

// RemoveAttachment requests removal of one attachment through the record
// store. The boolean return is the suppress-default signal for the binding
// layer (always false, meaning "do not run the default action"); it is not
// a success signal for the removal itself, whose failure is logged and
// surfaced through the form state.
func (c *Controller) RemoveAttachment(ctx context.Context, att models.Attachment) bool {
	const suppressDefault = false

	if c.Session() == StateClosed {
		return suppressDefault
	}
	if !c.inFlight.CompareAndSwap(false, true) {
		metrics.LifecycleDispatches.WithLabelValues("remove_attachment", "busy").Inc()
		return suppressDefault
	}
	defer c.inFlight.Store(false)

	rec := c.state.Snapshot().Record
	if !rec.Exists() {
		// Nothing persisted remotely; drop the attachment locally.
		c.dropAttachment(att)
		metrics.LifecycleDispatches.WithLabelValues("remove_attachment", "ok").Inc()
		return suppressDefault
	}

	if err := c.store.RemoveAttachment(ctx, rec.ID, att); err != nil {
		slog.Error("Attachment removal failed",
			"record_id", rec.ID, "attachment", att.Name, "error", err)
		metrics.LifecycleDispatches.WithLabelValues("remove_attachment", "error").Inc()
		return suppressDefault
	}

	c.dropAttachment(att)
	slog.Info("Attachment removed", "record_id", rec.ID, "attachment", att.Name)
	metrics.LifecycleDispatches.WithLabelValues("remove_attachment", "ok").Inc()
	return suppressDefault
}

func (c *Controller) dropAttachment(att models.Attachment) {
	c.state.Update(func(rec *models.Record) {
		kept := rec.Attachments[:0]
		for _, a := range rec.Attachments {
			if a.URL != att.URL {
				kept = append(kept, a)
			}
		}
		rec.Attachments = kept
	})
}

// Delete removes the current record. Requires AllowDelete; a delete that
// reaches this method with no record identifier is a bug in flag
// computation, reported as ErrInvariant.
func (c *Controller) Delete(ctx context.Context) error {
	release, err := c.acquire("delete")
	if err != nil {
		return err
	}
	defer release()

	if !c.state.Flags().AllowDelete {
		metrics.LifecycleDispatches.WithLabelValues("delete", "denied").Inc()
		return fmt.Errorf("delete: %w", ErrDenied)
	}

	rec := c.state.Snapshot().Record
	if rec.ID == "" {
		metrics.LifecycleDispatches.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("delete of unsaved record: %w", ErrInvariant)
	}

	if err := c.store.Delete(ctx, rec.ID); err != nil {
		slog.Error("Delete failed", "record_id", rec.ID, "error", err)
		metrics.LifecycleDispatches.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("delete failed: %w", err)
	}

	c.close()
	slog.Info("Record deleted", "record_id", rec.ID)
	metrics.LifecycleDispatches.WithLabelValues("delete", "ok").Inc()
	return nil
}

// Save persists in-progress work with the not-final flag; the record stays
// editable and no routing is triggered. Requires AllowSave. Independent of
// validation state.
func (c *Controller) Save(ctx context.Context) error {
	release, err := c.acquire("save")
	if err != nil {
		return err
	}
	defer release()

	if !c.state.Flags().AllowSave {
		metrics.LifecycleDispatches.WithLabelValues("save", "denied").Inc()
		return fmt.Errorf("save: %w", ErrDenied)
	}

	if err := c.persist(ctx, false); err != nil {
		metrics.LifecycleDispatches.WithLabelValues("save", "error").Inc()
		return fmt.Errorf("save failed: %w", err)
	}

	// First save assigns an identifier, which can flip AllowDelete.
	c.recomputeFlags()

	slog.Info("Record saved", "record_id", c.state.Snapshot().Record.ID)
	metrics.LifecycleDispatches.WithLabelValues("save", "ok").Inc()
	return nil
}

// Submit persists the record with the final flag, routing it for approval,
// and ends the session. Submit is refused without contacting the store when
// the form is not valid; the refusal is surfaced through the form state.
func (c *Controller) Submit(ctx context.Context) error {
	release, err := c.acquire("submit")
	if err != nil {
		return err
	}
	defer release()

	if !c.state.IsValid() {
		c.state.SurfaceValidation()
		metrics.LifecycleDispatches.WithLabelValues("submit", "invalid").Inc()
		return fmt.Errorf("submit: %w", ErrNotValid)
	}

	if err := c.persist(ctx, true); err != nil {
		metrics.LifecycleDispatches.WithLabelValues("submit", "error").Inc()
		return fmt.Errorf("submit failed: %w", err)
	}

	c.close()
	slog.Info("Record submitted", "record_id", c.state.Snapshot().Record.ID)
	metrics.LifecycleDispatches.WithLabelValues("submit", "ok").Inc()
	return nil
}

// persist stamps the modifier and delegates to the store. The store works on
// a detached copy so observers never see a half-persisted record; the
// assigned id, timestamps and revisions are applied back only on success.
func (c *Controller) persist(ctx context.Context, final bool) error {
	user, hasUser := c.state.User().Get()

	var work models.Record
	c.state.Update(func(rec *models.Record) {
		if hasUser {
			rec.ModifiedBy = &models.Person{ID: user.ID, Title: user.Title}
			if rec.CreatedBy == nil {
				rec.CreatedBy = &models.Person{ID: user.ID, Title: user.Title}
			}
		}
		work = rec.Clone()
	})

	if err := c.store.Persist(ctx, &work, final); err != nil {
		return err
	}

	c.state.Update(func(rec *models.Record) {
		rec.ID = work.ID
		rec.Final = work.Final
		rec.CreatedAt = work.CreatedAt
		rec.UpdatedAt = work.UpdatedAt
		rec.Revisions = work.Revisions
	})
	return nil
}

// acquire validates session state and takes the in-flight guard for a
// mutating action. The returned release must be deferred by the caller.
func (c *Controller) acquire(action string) (func(), error) {
	switch c.Session() {
	case StateClosed:
		metrics.LifecycleDispatches.WithLabelValues(action, "denied").Inc()
		return nil, fmt.Errorf("%s: %w", action, ErrClosed)
	case StateUnresolved:
		metrics.LifecycleDispatches.WithLabelValues(action, "denied").Inc()
		return nil, fmt.Errorf("%s: %w", action, ErrNotReady)
	}

	if !c.inFlight.CompareAndSwap(false, true) {
		metrics.LifecycleDispatches.WithLabelValues(action, "busy").Inc()
		return nil, fmt.Errorf("%s: %w", action, ErrBusy)
	}
	return func() { c.inFlight.Store(false) }, nil
}

func (c *Controller) close() {
	c.mu.Lock()
	c.session = StateClosed
	c.mu.Unlock()
}
