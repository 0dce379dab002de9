package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCurrentUser(t *testing.T) {
	var gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/current-user" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte(`{"d":{"id":7,"loginName":"dom\\alice","title":"Alice","email":"a@x.com"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	user, err := client.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("CurrentUser failed: %v", err)
	}

	if user.ID != 7 {
		t.Errorf("id: expected 7, got %d", user.ID)
	}
	if user.Login != `dom\alice` {
		t.Errorf("login: expected dom\\alice, got %q", user.Login)
	}
	if user.Title != "Alice" {
		t.Errorf("title: expected Alice, got %q", user.Title)
	}
	if user.Email != "a@x.com" {
		t.Errorf("email: expected a@x.com, got %q", user.Email)
	}
	if len(user.Groups) != 0 {
		t.Errorf("expected empty group list, got %d groups", len(user.Groups))
	}
	if gotAccept != "application/json;odata=verbose" {
		t.Errorf("accept header: got %q", gotAccept)
	}
}

func TestCurrentUserWithoutEnvelope(t *testing.T) {
	// Some deployments return the payload bare; the client must tolerate both.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":3,"loginName":"dom\\bob","title":"Bob","email":"b@x.com"}`))
	}))
	defer server.Close()

	user, err := NewClient(server.URL, nil).CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("CurrentUser failed: %v", err)
	}
	if user.ID != 3 || user.Login != `dom\bob` {
		t.Errorf("unexpected user: %+v", user)
	}
}

func TestCurrentUserFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "malformed payload",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"d":`))
			},
		},
		{
			name: "missing id and login",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"d":{"title":"Nobody"}}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			user, err := NewClient(server.URL, nil).CurrentUser(context.Background())
			if user != nil {
				t.Errorf("expected no partial user, got %+v", user)
			}
			if !errors.Is(err, ErrLookupFailed) {
				t.Errorf("expected ErrLookupFailed, got %v", err)
			}
			var lookupErr *LookupError
			if !errors.As(err, &lookupErr) {
				t.Fatalf("expected *LookupError, got %T", err)
			}
			if lookupErr.Message == "" {
				t.Error("expected a human-readable message")
			}
		})
	}
}

func TestCurrentUserTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	user, err := NewClient(server.URL, nil).CurrentUser(context.Background())
	if user != nil {
		t.Errorf("expected no partial user, got %+v", user)
	}
	if !errors.Is(err, ErrLookupFailed) {
		t.Errorf("expected ErrLookupFailed, got %v", err)
	}
}

func TestGroups(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/7/groups" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"d":{"results":[{"id":1,"title":"HR"},{"id":2,"title":"Admins"}]}}`))
	}))
	defer server.Close()

	groups, err := NewClient(server.URL, nil).Groups(context.Background(), 7)
	if err != nil {
		t.Fatalf("Groups failed: %v", err)
	}

	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	// Service order must be preserved.
	if groups[0].ID != 1 || groups[0].Title != "HR" {
		t.Errorf("groups[0]: expected {1 HR}, got %+v", groups[0])
	}
	if groups[1].ID != 2 || groups[1].Title != "Admins" {
		t.Errorf("groups[1]: expected {2 Admins}, got %+v", groups[1])
	}
}

func TestGroupsBareArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":9,"title":"Editors"}]`))
	}))
	defer server.Close()

	groups, err := NewClient(server.URL, nil).Groups(context.Background(), 4)
	if err != nil {
		t.Fatalf("Groups failed: %v", err)
	}
	if len(groups) != 1 || groups[0].Title != "Editors" {
		t.Errorf("unexpected groups: %+v", groups)
	}
}

func TestGroupsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	groups, err := NewClient(server.URL, nil).Groups(context.Background(), 7)
	if groups != nil {
		t.Errorf("expected nil groups, got %+v", groups)
	}
	if !errors.Is(err, ErrLookupFailed) {
		t.Errorf("expected ErrLookupFailed, got %v", err)
	}
}
