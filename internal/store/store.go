// Package store provides abstractions for record persistence.
package store

import (
	"context"
	"errors"

	"github.com/calejo/formgate/internal/models"
)

var (
	// ErrNotFound is returned when no record exists for the given id.
	ErrNotFound = errors.New("record not found")

	// ErrLocked is returned when a persist targets a record that was
	// already submitted as final.
	ErrLocked = errors.New("record is final and read-only")
)

// RecordStore defines the persistence surface the lifecycle controller
// delegates to. This abstraction allows swapping backends (remote list
// service, local SQLite) without changing the controller.
type RecordStore interface {
	// Load retrieves a record by its id, including attachments and
	// revision history. Returns ErrNotFound if no such record exists.
	Load(ctx context.Context, id string) (*models.Record, error)

	// Persist writes the record. final=false keeps the record editable;
	// final=true routes it for approval and locks it. The record's ID
	// field is populated on first persist.
	Persist(ctx context.Context, rec *models.Record, final bool) error

	// Delete removes the record with the given id.
	Delete(ctx context.Context, id string) error

	// RemoveAttachment detaches one attachment from the record.
	RemoveAttachment(ctx context.Context, recordID string, att models.Attachment) error

	// Close releases any resources held by the store.
	Close() error
}
