package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/blackbirdcodelabs/jnanagni-backend/models"
	"github.com/lib/pq"
)

var (
	ErrResultNotFound         = errors.New("result not found")
	ErrResultAlreadyPublished = errors.New("result is already published")
	ErrResultNotPublished     = errors.New("result is not published")
)

type ResultRepository interface {
	// Upsert creates or replaces the draft for (event, round). Entries and
	// the qualified list are stored whole; a republish requires an explicit
	// publish call afterwards.
	Upsert(ctx context.Context, result *models.Result) error
	FindByEventAndRound(ctx context.Context, eventID, roundID int) (*models.Result, error)
	ListByEvent(ctx context.Context, eventID int) ([]*models.Result, error)
	SetPublished(ctx context.Context, eventID, roundID int, publishedBy *int) error
	SetUnpublished(ctx context.Context, eventID, roundID int) error
	Delete(ctx context.Context, eventID, roundID int) error
}

type postgresResultRepository struct {
	db *sql.DB
}

func NewPostgresResultRepository(db *sql.DB) ResultRepository {
	return &postgresResultRepository{db: db}
}

func (r *postgresResultRepository) Upsert(ctx context.Context, result *models.Result) error {
	entries, err := json.Marshal(result.Entries)
	if err != nil {
		return fmt.Errorf("failed to marshal result entries: %w", err)
	}

	query := `
		INSERT INTO results (event_id, round_id, round_name, round_sequence_number, entries, qualified, published)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
		ON CONFLICT (event_id, round_id) DO UPDATE
		SET round_name = EXCLUDED.round_name,
		    round_sequence_number = EXCLUDED.round_sequence_number,
		    entries = EXCLUDED.entries,
		    qualified = EXCLUDED.qualified
		RETURNING id, published, created_at`

	err = r.db.QueryRowContext(ctx, query,
		result.EventID,
		result.RoundID,
		result.RoundName,
		result.RoundSequenceNumber,
		entries,
		pq.Array(result.Qualified),
	).Scan(&result.ID, &result.Published, &result.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return ErrEventNotFound
		}
		return fmt.Errorf("failed to upsert result: %w", err)
	}
	return nil
}

const resultColumns = `id, event_id, round_id, round_name, round_sequence_number, entries, qualified, published, published_by, published_at, created_at`

func scanResult(rowScanner interface {
	Scan(dest ...interface{}) error
}, result *models.Result) error {
	var entries []byte
	var qualified pq.Int64Array
	err := rowScanner.Scan(
		&result.ID,
		&result.EventID,
		&result.RoundID,
		&result.RoundName,
		&result.RoundSequenceNumber,
		&entries,
		&qualified,
		&result.Published,
		&result.PublishedBy,
		&result.PublishedAt,
		&result.CreatedAt,
	)
	if err != nil {
		return err
	}

	result.Entries = []models.ResultEntry{}
	if len(entries) > 0 {
		if err := json.Unmarshal(entries, &result.Entries); err != nil {
			return fmt.Errorf("failed to unmarshal result entries: %w", err)
		}
	}
	result.Qualified = make([]int, len(qualified))
	for i, id := range qualified {
		result.Qualified[i] = int(id)
	}
	return nil
}

func (r *postgresResultRepository) FindByEventAndRound(ctx context.Context, eventID, roundID int) (*models.Result, error) {
	result := &models.Result{}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+resultColumns+` FROM results WHERE event_id = $1 AND round_id = $2`, eventID, roundID)
	if err := scanResult(row, result); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("failed to find result: %w", err)
	}
	return result, nil
}

func (r *postgresResultRepository) ListByEvent(ctx context.Context, eventID int) ([]*models.Result, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+resultColumns+` FROM results WHERE event_id = $1 ORDER BY round_sequence_number ASC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	results := make([]*models.Result, 0)
	for rows.Next() {
		var result models.Result
		if err := scanResult(rows, &result); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		results = append(results, &result)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating result rows: %w", err)
	}
	return results, nil
}

func (r *postgresResultRepository) SetPublished(ctx context.Context, eventID, roundID int, publishedBy *int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE results
		SET published = TRUE, published_by = $3, published_at = NOW()
		WHERE event_id = $1 AND round_id = $2 AND published = FALSE`,
		eventID, roundID, publishedBy)
	if err != nil {
		return fmt.Errorf("failed to publish result: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		// Distinguish "no draft" from "already live".
		if _, findErr := r.FindByEventAndRound(ctx, eventID, roundID); findErr != nil {
			return findErr
		}
		return ErrResultAlreadyPublished
	}
	return nil
}

func (r *postgresResultRepository) SetUnpublished(ctx context.Context, eventID, roundID int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE results
		SET published = FALSE, published_by = NULL, published_at = NULL
		WHERE event_id = $1 AND round_id = $2 AND published = TRUE`,
		eventID, roundID)
	if err != nil {
		return fmt.Errorf("failed to unpublish result: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		if _, findErr := r.FindByEventAndRound(ctx, eventID, roundID); findErr != nil {
			return findErr
		}
		return ErrResultNotPublished
	}
	return nil
}

func (r *postgresResultRepository) Delete(ctx context.Context, eventID, roundID int) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM results WHERE event_id = $1 AND round_id = $2`, eventID, roundID)
	if err != nil {
		return fmt.Errorf("failed to delete result: %w", err)
	}
	return checkAffectedRows(result, ErrResultNotFound)
}
