package models

// CurrentUser is the identity of the active operator, resolved once per form
// session by the identity client.
//
// A CurrentUser only exists after resolution succeeds; callers hold a nil
// pointer until then. ID and Login are non-empty on every resolved user.
type CurrentUser struct {
	// ID is the numeric identifier assigned by the remote service.
	ID int64

	// Login is the account name (e.g. "dom\\alice").
	Login string

	// Title is the display name.
	Title string

	// Email is the user's email address.
	Email string

	// Department is optional and may be empty.
	Department string

	// JobTitle is optional and may be empty.
	JobTitle string

	// Groups is the user's group memberships in service-defined order.
	// Empty until a separate group lookup populates it; a failed lookup
	// leaves it empty so authorization stays fail-closed.
	Groups []Group
}

// InGroup reports whether the user belongs to a group with the given title.
func (u *CurrentUser) InGroup(title string) bool {
	if u == nil {
		return false
	}
	for _, g := range u.Groups {
		if g.Title == title {
			return true
		}
	}
	return false
}

// Group represents a named membership unit on the remote service.
type Group struct {
	// ID is the numeric identifier assigned by the remote service.
	ID int64

	// Title is the display name of the group (e.g. "Admins").
	Title string
}
