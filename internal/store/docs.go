package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/germz92/gearbook/internal/model"
)

// ErrRevisionMismatch is returned when a document save carries a revision
// older than the stored one. The caller should reload and retry.
var ErrRevisionMismatch = errors.New("event document revision mismatch")

// GetEventDoc returns an event's gear list document. Events that have never
// saved a document get a fresh one at revision 0.
func GetEventDoc(ctx context.Context, db *sql.DB, eventID string) (*model.EventDocument, error) {
	var raw string
	var revision int64
	err := db.QueryRowContext(ctx,
		`SELECT doc, revision FROM event_docs WHERE event_id = ?`, eventID,
	).Scan(&raw, &revision)
	if err == sql.ErrNoRows {
		doc := model.NewEventDocument(eventID)
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting event document: %w", err)
	}

	doc := &model.EventDocument{}
	if err := json.Unmarshal([]byte(raw), doc); err != nil {
		return nil, fmt.Errorf("decoding event document: %w", err)
	}
	doc.EventID = eventID
	doc.Revision = revision
	return doc, nil
}

// SaveEventDoc stores a whole document, guarded by its revision. The stored
// revision must equal the document's or the save fails with
// ErrRevisionMismatch. Returns the new revision.
func SaveEventDoc(ctx context.Context, db *sql.DB, doc *model.EventDocument) (int64, error) {
	if doc.EventID == "" {
		return 0, fmt.Errorf("event document has no event id")
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("encoding event document: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning document save: %w", err)
	}
	defer tx.Rollback()

	var current int64
	err = tx.QueryRowContext(ctx,
		`SELECT revision FROM event_docs WHERE event_id = ?`, doc.EventID,
	).Scan(&current)
	switch {
	case err == sql.ErrNoRows:
		if doc.Revision != 0 {
			return 0, ErrRevisionMismatch
		}
		next := int64(1)
		_, err = tx.ExecContext(ctx,
			`INSERT INTO event_docs (event_id, doc, revision) VALUES (?, ?, ?)`,
			doc.EventID, string(raw), next,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting event document: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return 0, fmt.Errorf("committing document save: %w", err)
		}
		return next, nil
	case err != nil:
		return 0, fmt.Errorf("reading document revision: %w", err)
	}

	if current != doc.Revision {
		return 0, ErrRevisionMismatch
	}
	next := current + 1
	_, err = tx.ExecContext(ctx,
		`UPDATE event_docs SET doc = ?, revision = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE event_id = ?`,
		string(raw), next, doc.EventID,
	)
	if err != nil {
		return 0, fmt.Errorf("updating event document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing document save: %w", err)
	}
	return next, nil
}
