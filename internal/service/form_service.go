// Package service exposes form sessions over HTTP for the rendering layer.
// Handlers only translate between the wire and the lifecycle controller; the
// controller is the sole authority on what is permitted.
package service

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/calejo/formgate/internal/authz"
	"github.com/calejo/formgate/internal/form"
	"github.com/calejo/formgate/internal/lifecycle"
	"github.com/calejo/formgate/internal/middleware"
	"github.com/calejo/formgate/internal/models"
	"github.com/calejo/formgate/internal/store"
	"github.com/calejo/formgate/pkg/outcome"
)

// FormService manages form sessions and binds UI-originated HTTP requests
// to lifecycle actions.
type FormService struct {
	store   store.RecordStore
	ids     lifecycle.IdentityResolver
	policy  authz.Policy
	navRoot string

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	id         string
	owner      int64 // token user id the session was opened with
	state      *form.State
	controller *lifecycle.Controller
}

// NewFormService creates a FormService with the given collaborators.
// navRoot is the fallback navigation target for cancel.
func NewFormService(recordStore store.RecordStore, ids lifecycle.IdentityResolver, policy authz.Policy, navRoot string) *FormService {
	return &FormService{
		store:    recordStore,
		ids:      ids,
		policy:   policy,
		navRoot:  navRoot,
		sessions: make(map[string]*session),
	}
}

// Register wires the session endpoints onto mux.
func (s *FormService) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /sessions", s.openSession)
	mux.HandleFunc("GET /sessions/{sid}", s.getSession)
	mux.HandleFunc("POST /sessions/{sid}/save", s.save)
	mux.HandleFunc("POST /sessions/{sid}/submit", s.submit)
	mux.HandleFunc("POST /sessions/{sid}/delete", s.deleteRecord)
	mux.HandleFunc("POST /sessions/{sid}/cancel", s.cancel)
	mux.HandleFunc("POST /sessions/{sid}/print", s.print)
	mux.HandleFunc("DELETE /sessions/{sid}/attachments", s.removeAttachment)
}

// openRequest is the body of POST /sessions.
type openRequest struct {
	// RecordID names an existing record to edit; empty opens a new form.
	RecordID string `json:"recordId,omitempty"`
	// Source is the location the form was opened from, used by cancel.
	Source string `json:"source,omitempty"`
}

// openSession creates a form session: it loads the record (or starts an
// empty one), resolves identity, and returns the first snapshot. A failed
// identity resolution still yields a usable session with fail-closed flags.
func (s *FormService) openSession(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if r.Body != nil {
		// An empty body opens a new form; a malformed one is an error.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "malformed request body", http.StatusBadRequest)
			return
		}
	}

	rec := &models.Record{}
	if req.RecordID != "" {
		loaded, err := s.store.Load(r.Context(), req.RecordID)
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "record not found", http.StatusNotFound)
			return
		}
		if err != nil {
			slog.Error("Record load failed", "record_id", req.RecordID, "error", err)
			http.Error(w, "record store unavailable", http.StatusBadGateway)
			return
		}
		rec = loaded
	}

	sess := &session{
		id:    uuid.New().String(),
		owner: middleware.GetUserID(r.Context()),
		state: form.NewState(rec, nil),
	}
	sess.controller = lifecycle.New(sess.state, s.store, s.ids, s.policy,
		lifecycle.Nav{Source: req.Source, Root: s.navRoot})

	if err := sess.controller.ResolveIdentity(r.Context()); err != nil {
		// Fail-closed: the session opens in a reduced capacity.
		slog.Warn("Session opened without identity", "session_id", sess.id, "error", err)
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	slog.Info("Session opened", "session_id", sess.id, "record_id", rec.ID)
	writeJSON(w, http.StatusCreated, snapshotResponse(sess))
}

func (s *FormService) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(r)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snapshotResponse(sess))
}

// editRequest carries the model values the operator edited.
type editRequest struct {
	Title *string `json:"title,omitempty"`
	Body  *string `json:"body,omitempty"`
}

func (s *FormService) applyEdits(sess *session, r *http.Request) error {
	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil // dispatch without edits
		}
		return err
	}
	sess.state.Update(func(rec *models.Record) {
		if req.Title != nil {
			rec.Title = *req.Title
		}
		if req.Body != nil {
			rec.Body = *req.Body
		}
	})
	return nil
}

func (s *FormService) save(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(r)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if err := s.applyEdits(sess, r); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	if err := sess.controller.Save(r.Context()); err != nil {
		writeDispatchError(w, sess, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotResponse(sess))
}

func (s *FormService) submit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(r)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if err := s.applyEdits(sess, r); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	if err := sess.controller.Submit(r.Context()); err != nil {
		writeDispatchError(w, sess, err)
		return
	}

	s.drop(sess.id)
	writeJSON(w, http.StatusOK, snapshotResponse(sess))
}

func (s *FormService) deleteRecord(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(r)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	if err := sess.controller.Delete(r.Context()); err != nil {
		writeDispatchError(w, sess, err)
		return
	}

	s.drop(sess.id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *FormService) cancel(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(r)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	target := sess.controller.Cancel()
	s.drop(sess.id)

	writeJSON(w, http.StatusOK, map[string]string{"navigateTo": target})
}

func (s *FormService) print(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(r)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	if err := sess.controller.Print(); err != nil {
		writeDispatchError(w, sess, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"print": true})
}

func (s *FormService) removeAttachment(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(r)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	url := r.URL.Query().Get("url")
	if url == "" {
		http.Error(w, "url parameter required", http.StatusBadRequest)
		return
	}

	suppress := sess.controller.RemoveAttachment(r.Context(), models.Attachment{URL: url})
	// The boolean is the binding-layer contract: it suppresses the default
	// action rather than reporting removal success.
	writeJSON(w, http.StatusOK, map[string]bool{"handled": !suppress})
}

// lookup resolves the session named in the request path. A session opened
// under one token is invisible to every other token: a mismatched operator
// gets the same miss as an unknown id.
func (s *FormService) lookup(r *http.Request) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[r.PathValue("sid")]
	if !ok || sess.owner != middleware.GetUserID(r.Context()) {
		return nil, false
	}
	return sess, true
}

func (s *FormService) drop(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Wire types for the rendering layer.

type personJSON struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

type attachmentJSON struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

type revisionJSON struct {
	Editor     string `json:"editor"`
	ModifiedAt int64  `json:"modifiedAt"`
	Comment    string `json:"comment,omitempty"`
}

type recordJSON struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Body        string           `json:"body"`
	CreatedBy   *personJSON      `json:"createdBy,omitempty"`
	ModifiedBy  *personJSON      `json:"modifiedBy,omitempty"`
	Attachments []attachmentJSON `json:"attachments"`
	Revisions   []revisionJSON   `json:"revisions"`
	Final       bool             `json:"final"`
}

type userJSON struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Title string `json:"title"`
	Email string `json:"email"`
}

type flagsJSON struct {
	AllowPrint  bool `json:"allowPrint"`
	AllowDelete bool `json:"allowDelete"`
	AllowSave   bool `json:"allowSave"`
}

type sessionJSON struct {
	SessionID  string     `json:"sessionId"`
	Record     recordJSON `json:"record"`
	UserState  string     `json:"userState"`
	User       *userJSON  `json:"user,omitempty"`
	IsAuthor   bool       `json:"isAuthor"`
	IsValid    bool       `json:"isValid"`
	Validation []string   `json:"validation"`
	Flags      flagsJSON  `json:"flags"`
}

func snapshotResponse(sess *session) sessionJSON {
	snap := sess.state.Snapshot()

	rec := recordJSON{
		ID:          snap.Record.ID,
		Title:       snap.Record.Title,
		Body:        snap.Record.Body,
		Final:       snap.Record.Final,
		Attachments: []attachmentJSON{},
		Revisions:   []revisionJSON{},
	}
	if snap.Record.CreatedBy != nil {
		rec.CreatedBy = &personJSON{ID: snap.Record.CreatedBy.ID, Title: snap.Record.CreatedBy.Title}
	}
	if snap.Record.ModifiedBy != nil {
		rec.ModifiedBy = &personJSON{ID: snap.Record.ModifiedBy.ID, Title: snap.Record.ModifiedBy.Title}
	}
	for _, att := range snap.Record.Attachments {
		rec.Attachments = append(rec.Attachments, attachmentJSON{URL: att.URL, Name: att.Name})
	}
	for _, rev := range snap.Record.Revisions {
		rec.Revisions = append(rec.Revisions, revisionJSON{
			Editor: rev.Editor, ModifiedAt: rev.ModifiedAt, Comment: rev.Comment,
		})
	}

	resp := sessionJSON{
		SessionID:  sess.id,
		Record:     rec,
		UserState:  snap.UserState.String(),
		IsAuthor:   snap.IsAuthor,
		IsValid:    snap.IsValid,
		Validation: snap.Validation,
		Flags: flagsJSON{
			AllowPrint:  snap.Flags.AllowPrint,
			AllowDelete: snap.Flags.AllowDelete,
			AllowSave:   snap.Flags.AllowSave,
		},
	}
	if snap.UserState == outcome.Resolved && snap.User != nil {
		resp.User = &userJSON{
			ID:    snap.User.ID,
			Login: snap.User.Login,
			Title: snap.User.Title,
			Email: snap.User.Email,
		}
	}
	return resp
}

// errorJSON is the uniform dispatch-error body.
type errorJSON struct {
	Error      string   `json:"error"`
	Validation []string `json:"validation,omitempty"`
}

// writeDispatchError maps controller errors to HTTP statuses. Denied and
// not-ready map to 403, busy and locked to 409, invalid to 422, missing
// records to 404, everything else to 502 (persistence failure).
func writeDispatchError(w http.ResponseWriter, sess *session, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrDenied),
		errors.Is(err, lifecycle.ErrNotReady),
		errors.Is(err, lifecycle.ErrClosed):
		writeJSON(w, http.StatusForbidden, errorJSON{Error: err.Error()})
	case errors.Is(err, lifecycle.ErrBusy), errors.Is(err, store.ErrLocked):
		writeJSON(w, http.StatusConflict, errorJSON{Error: err.Error()})
	case errors.Is(err, lifecycle.ErrNotValid):
		writeJSON(w, http.StatusUnprocessableEntity, errorJSON{
			Error:      err.Error(),
			Validation: sess.state.Validation(),
		})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorJSON{Error: err.Error()})
	default:
		writeJSON(w, http.StatusBadGateway, errorJSON{Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
