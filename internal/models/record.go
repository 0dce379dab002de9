package models

// Person is the author or modifier identity stamped on a record by the
// remote service. Unlike CurrentUser it carries no group information.
type Person struct {
	// ID is the numeric identifier of the user on the remote service.
	ID int64

	// Title is the display name.
	Title string
}

// Record mirrors one remote list item: the data the form edits plus the
// ownership metadata authorization decisions are based on.
type Record struct {
	// ID is the remote item identifier. Empty for a record that has never
	// been persisted.
	ID string

	// Title is the record's title field.
	Title string

	// Body is the free-text content of the record.
	Body string

	// CreatedBy is the record author. Nil for an unsaved record.
	CreatedBy *Person

	// ModifiedBy is the last editor. Nil for an unsaved record.
	ModifiedBy *Person

	// Revisions is the change history in oldest-first order.
	Revisions []Revision

	// Attachments are the files tied to this record.
	Attachments []Attachment

	// Final marks a record that has been submitted for routing/approval.
	// A final record is read-only on the remote service.
	Final bool

	// CreatedAt is the Unix timestamp when the record was created.
	CreatedAt int64

	// UpdatedAt is the Unix timestamp of the last persist.
	UpdatedAt int64
}

// Clone returns a deep copy of the record. Mutating the copy, including its
// attachment and revision slices, never affects the original.
func (r *Record) Clone() Record {
	out := *r
	if r.CreatedBy != nil {
		cb := *r.CreatedBy
		out.CreatedBy = &cb
	}
	if r.ModifiedBy != nil {
		mb := *r.ModifiedBy
		out.ModifiedBy = &mb
	}
	if r.Revisions != nil {
		out.Revisions = append([]Revision(nil), r.Revisions...)
	}
	if r.Attachments != nil {
		out.Attachments = append([]Attachment(nil), r.Attachments...)
	}
	return out
}

// Exists reports whether the record has been persisted at least once.
func (r *Record) Exists() bool {
	return r != nil && r.ID != ""
}

// IsAuthoredBy reports whether the given user created this record.
// False whenever either side is unknown.
func (r *Record) IsAuthoredBy(u *CurrentUser) bool {
	if r == nil || u == nil || r.CreatedBy == nil {
		return false
	}
	return r.CreatedBy.ID == u.ID
}

// Attachment is a file reference owned by exactly one record.
type Attachment struct {
	// URL is the server-relative location of the file.
	URL string

	// Name is the display name of the file.
	Name string
}

// Revision is one entry in a record's change history.
type Revision struct {
	// Editor is the display name of the user who made the change.
	Editor string

	// ModifiedAt is the Unix timestamp of the change.
	ModifiedAt int64

	// Comment is an optional note attached to the change.
	Comment string
}
