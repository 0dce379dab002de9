package authz

import (
	"testing"

	"github.com/calejo/formgate/internal/models"
)

func TestDeriveFlags(t *testing.T) {
	alice := &models.CurrentUser{ID: 7, Login: `dom\alice`, Title: "Alice"}
	bob := &models.CurrentUser{ID: 8, Login: `dom\bob`, Title: "Bob"}
	admin := &models.CurrentUser{
		ID: 9, Login: `dom\carol`, Title: "Carol",
		Groups: []models.Group{{ID: 2, Title: "Admins"}},
	}
	editor := &models.CurrentUser{
		ID: 10, Login: `dom\dave`, Title: "Dave",
		Groups: []models.Group{{ID: 5, Title: "Editors"}},
	}

	saved := &models.Record{ID: "42", CreatedBy: &models.Person{ID: 7, Title: "Alice"}}
	unsaved := &models.Record{CreatedBy: nil}

	policy := Policy{
		AdminGroups:  []string{"Admins"},
		EditorGroups: []string{"Editors"},
		AllowPrint:   true,
	}

	tests := []struct {
		name       string
		user       *models.CurrentUser
		rec        *models.Record
		wantPrint  bool
		wantDelete bool
		wantSave   bool
	}{
		{
			name:       "unresolved user is fail-closed",
			user:       nil,
			rec:        saved,
			wantPrint:  true,
			wantDelete: false,
			wantSave:   false,
		},
		{
			name:       "author of a saved record may delete and save",
			user:       alice,
			rec:        saved,
			wantPrint:  true,
			wantDelete: true,
			wantSave:   true,
		},
		{
			name:       "non-author non-privileged user may do neither",
			user:       bob,
			rec:        saved,
			wantPrint:  true,
			wantDelete: false,
			wantSave:   false,
		},
		{
			name:       "admin group member may delete records they did not author",
			user:       admin,
			rec:        saved,
			wantPrint:  true,
			wantDelete: true,
			wantSave:   true,
		},
		{
			name:       "editor group member may save but not delete",
			user:       editor,
			rec:        saved,
			wantPrint:  true,
			wantDelete: false,
			wantSave:   true,
		},
		{
			name:       "unsaved record is never deletable even for its author",
			user:       alice,
			rec:        unsaved,
			wantPrint:  true,
			wantDelete: false,
			wantSave:   true,
		},
		{
			name:       "nil record is never deletable",
			user:       alice,
			rec:        nil,
			wantPrint:  true,
			wantDelete: false,
			wantSave:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := DeriveFlags(tt.user, tt.rec, policy)

			if flags.AllowPrint != tt.wantPrint {
				t.Errorf("AllowPrint = %v, want %v", flags.AllowPrint, tt.wantPrint)
			}
			if flags.AllowDelete != tt.wantDelete {
				t.Errorf("AllowDelete = %v, want %v", flags.AllowDelete, tt.wantDelete)
			}
			if flags.AllowSave != tt.wantSave {
				t.Errorf("AllowSave = %v, want %v", flags.AllowSave, tt.wantSave)
			}
		})
	}
}

func TestDeriveFlagsPrintPolicy(t *testing.T) {
	rec := &models.Record{ID: "1"}

	flags := DeriveFlags(nil, rec, Policy{AllowPrint: false})
	if flags.AllowPrint {
		t.Error("expected AllowPrint false when disabled by policy")
	}

	flags = DeriveFlags(nil, rec, DefaultPolicy())
	if !flags.AllowPrint {
		t.Error("expected AllowPrint true under default policy")
	}
}

func TestDeriveFlagsGroupLookupFailed(t *testing.T) {
	// A user whose group lookup failed carries an empty group list and must
	// not gain any group-based capability.
	userNoGroups := &models.CurrentUser{ID: 11, Login: `dom\eve`, Title: "Eve"}
	rec := &models.Record{ID: "42", CreatedBy: &models.Person{ID: 7, Title: "Alice"}}

	flags := DeriveFlags(userNoGroups, rec, DefaultPolicy())
	if flags.AllowDelete || flags.AllowSave {
		t.Errorf("expected fail-closed flags, got %+v", flags)
	}
}
