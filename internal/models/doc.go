// Package models defines the core domain models for formgate.
//
// # Models
//
//   - CurrentUser: the resolved identity of the operator driving the form
//   - Group: a named membership unit used for authorization decisions
//   - Person: author/modifier identity stamped on a record
//   - Record: the local mirror of one remote list item
//   - Attachment: a file reference owned by a record
//   - Revision: one entry in a record's change history
//
// # Design Principles
//
// 1. **Fail-closed identity**: an absent CurrentUser is represented by a nil
// pointer, never a zero value, so authorization code cannot mistake
// "unresolved" for a real user.
//
// 2. **No back-references**: records do not point at stores or controllers;
// relationships flow one way through IDs.
//
// 3. **Immutable identity**: CurrentUser is built once per session by the
// identity client and never mutated afterward.
package models
