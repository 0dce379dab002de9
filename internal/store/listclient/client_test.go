package listclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/calejo/formgate/internal/models"
	"github.com/calejo/formgate/internal/store"
)

func TestLoad(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/items/42" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"d":{
			"id":"42","title":"Expense report","body":"Q3 travel",
			"createdBy":{"id":7,"title":"Alice"},
			"modifiedBy":{"id":8,"title":"Bob"},
			"attachments":[{"url":"/files/a.pdf","name":"a.pdf"}],
			"revisions":[{"editor":"Alice","modifiedAt":100},{"editor":"Bob","modifiedAt":200}],
			"final":false,"createdAt":100,"updatedAt":200}}`))
	}))
	defer server.Close()

	rec, err := New(server.URL, nil).Load(context.Background(), "42")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if rec.ID != "42" || rec.Title != "Expense report" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.CreatedBy == nil || rec.CreatedBy.ID != 7 {
		t.Errorf("CreatedBy: expected id 7, got %+v", rec.CreatedBy)
	}
	if len(rec.Attachments) != 1 || rec.Attachments[0].Name != "a.pdf" {
		t.Errorf("unexpected attachments: %+v", rec.Attachments)
	}
	if len(rec.Revisions) != 2 || rec.Revisions[0].Editor != "Alice" {
		t.Errorf("unexpected revisions: %+v", rec.Revisions)
	}
}

func TestLoadNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := New(server.URL, nil).Load(context.Background(), "nope")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPersistNewRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/items" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("request body not JSON: %v", err)
		}
		if payload["isFinal"] != false {
			t.Errorf("expected isFinal=false, got %v", payload["isFinal"])
		}
		w.Write([]byte(`{"id":"new-1","title":"Draft","final":false,"createdAt":50,"updatedAt":50,
			"revisions":[{"editor":"Alice","modifiedAt":50,"comment":"saved"}]}`))
	}))
	defer server.Close()

	rec := &models.Record{Title: "Draft"}
	if err := New(server.URL, nil).Persist(context.Background(), rec, false); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	if rec.ID != "new-1" {
		t.Errorf("expected assigned id new-1, got %q", rec.ID)
	}
	if rec.Final {
		t.Error("expected record to stay non-final")
	}
	if len(rec.Revisions) != 1 {
		t.Errorf("expected 1 revision from response, got %d", len(rec.Revisions))
	}
}

func TestPersistFinalFlag(t *testing.T) {
	var gotFinal bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/items/42" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var payload struct {
			IsFinal bool `json:"isFinal"`
		}
		json.Unmarshal(body, &payload)
		gotFinal = payload.IsFinal
		w.Write([]byte(`{"id":"42","title":"Done","final":true,"createdAt":50,"updatedAt":60}`))
	}))
	defer server.Close()

	rec := &models.Record{ID: "42", Title: "Done"}
	if err := New(server.URL, nil).Persist(context.Background(), rec, true); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	if !gotFinal {
		t.Error("expected isFinal=true on the wire")
	}
	if !rec.Final {
		t.Error("expected record marked final from response")
	}
}

func TestPersistLockedRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer server.Close()

	rec := &models.Record{ID: "42", Title: "Locked"}
	err := New(server.URL, nil).Persist(context.Background(), rec, false)
	if !errors.Is(err, store.ErrLocked) {
		t.Errorf("expected ErrLocked, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	var called bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/items/42" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		called = true
	}))
	defer server.Close()

	if err := New(server.URL, nil).Delete(context.Background(), "42"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !called {
		t.Error("expected delete request")
	}
}

func TestRemoveAttachment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/items/42/attachments" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("url"); got != "/files/a.pdf" {
			t.Errorf("url query: expected /files/a.pdf, got %q", got)
		}
	}))
	defer server.Close()

	err := New(server.URL, nil).RemoveAttachment(context.Background(), "42",
		models.Attachment{URL: "/files/a.pdf", Name: "a.pdf"})
	if err != nil {
		t.Fatalf("RemoveAttachment failed: %v", err)
	}
}
