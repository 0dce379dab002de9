// Package sqlite provides a SQLite-backed implementation of the
// store.RecordStore interface, used for local mode and tests.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/calejo/formgate/internal/models"
	"github.com/calejo/formgate/internal/store"
)

// Ensure Store implements store.RecordStore
var _ store.RecordStore = (*Store)(nil)

// Store implements store.RecordStore using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load retrieves a record by id, including attachments and revisions.
func (s *Store) Load(ctx context.Context, id string) (*models.Record, error) {
	rec := &models.Record{}
	var createdByID, modifiedByID sql.NullInt64
	var createdByTitle, modifiedByTitle sql.NullString
	var final int

	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, body, created_by_id, created_by_title,
		       modified_by_id, modified_by_title, final, created_at, updated_at
		FROM records WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Title, &rec.Body, &createdByID, &createdByTitle,
		&modifiedByID, &modifiedByTitle, &final, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record: %w", err)
	}

	rec.Final = final != 0
	if createdByID.Valid {
		rec.CreatedBy = &models.Person{ID: createdByID.Int64, Title: createdByTitle.String}
	}
	if modifiedByID.Valid {
		rec.ModifiedBy = &models.Person{ID: modifiedByID.Int64, Title: modifiedByTitle.String}
	}

	if rec.Attachments, err = s.loadAttachments(ctx, id); err != nil {
		return nil, err
	}
	if rec.Revisions, err = s.loadRevisions(ctx, id); err != nil {
		return nil, err
	}

	return rec, nil
}

func (s *Store) loadAttachments(ctx context.Context, recordID string) ([]models.Attachment, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT url, name FROM attachments WHERE record_id = ? ORDER BY rowid", recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attachments: %w", err)
	}
	defer rows.Close()

	var atts []models.Attachment
	for rows.Next() {
		var att models.Attachment
		if err := rows.Scan(&att.URL, &att.Name); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		atts = append(atts, att)
	}
	return atts, rows.Err()
}

func (s *Store) loadRevisions(ctx context.Context, recordID string) ([]models.Revision, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT editor, modified_at, comment FROM revisions WHERE record_id = ? ORDER BY seq", recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to load revisions: %w", err)
	}
	defer rows.Close()

	var revs []models.Revision
	for rows.Next() {
		var rev models.Revision
		if err := rows.Scan(&rev.Editor, &rev.ModifiedAt, &rev.Comment); err != nil {
			return nil, fmt.Errorf("failed to scan revision: %w", err)
		}
		revs = append(revs, rev)
	}
	return revs, rows.Err()
}

// Persist writes the record, generating an ID on first persist and appending
// a revision entry. Persisting a record that is already final fails with
// store.ErrLocked; a record persisted with final=true locks from then on.
// The record is only stamped with the generated id and new timestamps after
// the transaction commits; a failed persist leaves it as it was.
func (s *Store) Persist(ctx context.Context, rec *models.Record, final bool) error {
	now := time.Now().Unix()

	id := rec.ID
	createdAt := rec.CreatedAt
	isNew := id == ""
	if isNew {
		id = uuid.New().String()
		if createdAt == 0 {
			createdAt = now
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if !isNew {
		var existingFinal int
		err := tx.QueryRowContext(ctx, "SELECT final FROM records WHERE id = ?", id).Scan(&existingFinal)
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("failed to check record state: %w", err)
		}
		if existingFinal != 0 {
			return store.ErrLocked
		}
	}

	var createdByID, modifiedByID sql.NullInt64
	var createdByTitle, modifiedByTitle sql.NullString
	if rec.CreatedBy != nil {
		createdByID = sql.NullInt64{Int64: rec.CreatedBy.ID, Valid: true}
		createdByTitle = sql.NullString{String: rec.CreatedBy.Title, Valid: true}
	}
	if rec.ModifiedBy != nil {
		modifiedByID = sql.NullInt64{Int64: rec.ModifiedBy.ID, Valid: true}
		modifiedByTitle = sql.NullString{String: rec.ModifiedBy.Title, Valid: true}
	}

	finalInt := 0
	if final {
		finalInt = 1
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO records (id, title, body, created_by_id, created_by_title,
		                     modified_by_id, modified_by_title, final, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    title = excluded.title,
		    body = excluded.body,
		    modified_by_id = excluded.modified_by_id,
		    modified_by_title = excluded.modified_by_title,
		    final = excluded.final,
		    updated_at = excluded.updated_at`,
		id, rec.Title, rec.Body, createdByID, createdByTitle,
		modifiedByID, modifiedByTitle, finalInt, createdAt, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}

	// Replace attachments with the current set.
	if _, err := tx.ExecContext(ctx, "DELETE FROM attachments WHERE record_id = ?", id); err != nil {
		return fmt.Errorf("failed to clear attachments: %w", err)
	}
	for _, att := range rec.Attachments {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO attachments (record_id, url, name) VALUES (?, ?, ?)",
			id, att.URL, att.Name)
		if err != nil {
			return fmt.Errorf("failed to insert attachment: %w", err)
		}
	}

	// Append the revision entry for this persist.
	editor := ""
	if rec.ModifiedBy != nil {
		editor = rec.ModifiedBy.Title
	}
	comment := "saved"
	if final {
		comment = "submitted"
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO revisions (record_id, seq, editor, modified_at, comment)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM revisions WHERE record_id = ?), ?, ?, ?)`,
		id, id, editor, now, comment)
	if err != nil {
		return fmt.Errorf("failed to append revision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	rec.ID = id
	rec.CreatedAt = createdAt
	rec.Final = final
	rec.UpdatedAt = now
	rec.Revisions = append(rec.Revisions, models.Revision{
		Editor: editor, ModifiedAt: now, Comment: comment,
	})

	return nil
}

// Delete removes the record with the given id.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// RemoveAttachment detaches one attachment from the record.
func (s *Store) RemoveAttachment(ctx context.Context, recordID string, att models.Attachment) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM attachments WHERE record_id = ? AND url = ?", recordID, att.URL)
	if err != nil {
		return fmt.Errorf("failed to remove attachment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check remove result: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
