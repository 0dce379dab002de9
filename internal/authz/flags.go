// Package authz derives the permission flags that gate lifecycle actions.
//
// Derivation is a pure function of the resolved user, the record, and the
// policy. It is deliberately decoupled from any binding or rendering layer;
// the rendering layer subscribes to flag changes instead of computing them.
package authz

import "github.com/calejo/formgate/internal/models"

// Policy holds the configuration-controlled inputs to flag derivation.
type Policy struct {
	// AdminGroups are group titles whose members may delete any record.
	AdminGroups []string

	// EditorGroups are group titles granted edit (save) capability on
	// records they did not author.
	EditorGroups []string

	// AllowPrint enables the print action for loaded records. Print is not
	// identity-dependent; it is a static policy switch, default true.
	AllowPrint bool
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		AdminGroups: []string{"Admins"},
		AllowPrint:  true,
	}
}

// Flags are the capability gates the rendering layer conditions controls on
// and the controller re-checks at dispatch time.
type Flags struct {
	// AllowPrint permits the print action.
	AllowPrint bool

	// AllowDelete permits deleting the record. Requires an already-persisted
	// record and an author or admin-group user.
	AllowDelete bool

	// AllowSave permits saving in-progress work. Requires an author or
	// editor-group user. Independent of validation state.
	AllowSave bool
}

// DeriveFlags computes the permission flags for the given user and record.
//
// Fail-closed: a nil (unresolved or failed) user yields false for every
// identity-dependent flag regardless of record state. A record that was never
// persisted is never deletable, author or not.
func DeriveFlags(user *models.CurrentUser, rec *models.Record, policy Policy) Flags {
	flags := Flags{AllowPrint: policy.AllowPrint}

	if user == nil {
		return flags
	}

	// A never-persisted record has no author yet; the resolved user is its
	// prospective author and may save it.
	isAuthor := rec.IsAuthoredBy(user) || !rec.Exists()
	isAdmin := inAnyGroup(user, policy.AdminGroups)

	flags.AllowDelete = (isAuthor || isAdmin) && rec.Exists()
	flags.AllowSave = isAuthor || isAdmin || inAnyGroup(user, policy.EditorGroups)

	return flags
}

func inAnyGroup(user *models.CurrentUser, titles []string) bool {
	for _, title := range titles {
		if user.InGroup(title) {
			return true
		}
	}
	return false
}
