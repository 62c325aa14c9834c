package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/blackbirdcodelabs/jnanagni-backend/models"
	"github.com/lib/pq"
)

var (
	ErrEventNotFound     = errors.New("event not found")
	ErrEventSlugConflict = errors.New("event slug is already in use")
	ErrRoundNotFound     = errors.New("round not found")
)

type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id int) (*models.Event, error)
	List(ctx context.Context) ([]*models.Event, error)
	SetRegistrationOpen(ctx context.Context, id int, open bool) error

	CreateRound(ctx context.Context, round *models.Round) error
	GetRound(ctx context.Context, eventID, roundID int) (*models.Round, error)
	ListRounds(ctx context.Context, eventID int) ([]models.Round, error)
	// ActivateRound clears every active flag for the event and sets the
	// target's in one statement, keeping the single-active invariant.
	ActivateRound(ctx context.Context, eventID, roundID int) error
	SetRoundResultsPublished(ctx context.Context, roundID int, published bool) error
	// DeleteRound removes the round and renumbers the remaining rounds so
	// sequence numbers stay contiguous.
	DeleteRound(ctx context.Context, eventID, roundID int) error
}

type postgresEventRepository struct {
	db *sql.DB
}

func NewPostgresEventRepository(db *sql.DB) EventRepository {
	return &postgresEventRepository{db: db}
}

func (r *postgresEventRepository) Create(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO events (name, slug, description, venue, date, participation_type, min_team_size, max_team_size, max_registrations, is_registration_open, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		event.Name,
		event.Slug,
		event.Description,
		event.Venue,
		event.Date,
		event.ParticipationType,
		event.MinTeamSize,
		event.MaxTeamSize,
		event.MaxRegistrations,
		event.IsRegistrationOpen,
		event.CreatedBy,
	).Scan(&event.ID, &event.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" && pqErr.Constraint == "events_slug_key" {
			return ErrEventSlugConflict
		}
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

const eventColumns = `id, name, slug, description, venue, date, participation_type, min_team_size, max_team_size, max_registrations, is_registration_open, created_by, created_at`

func (r *postgresEventRepository) scanEvent(rowScanner interface {
	Scan(dest ...interface{}) error
}, e *models.Event) error {
	return rowScanner.Scan(
		&e.ID,
		&e.Name,
		&e.Slug,
		&e.Description,
		&e.Venue,
		&e.Date,
		&e.ParticipationType,
		&e.MinTeamSize,
		&e.MaxTeamSize,
		&e.MaxRegistrations,
		&e.IsRegistrationOpen,
		&e.CreatedBy,
		&e.CreatedAt,
	)
}

func (r *postgresEventRepository) GetByID(ctx context.Context, id int) (*models.Event, error) {
	e := &models.Event{}
	row := r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	if err := r.scanEvent(row, e); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	rounds, err := r.ListRounds(ctx, id)
	if err != nil {
		return nil, err
	}
	e.Rounds = rounds
	return e, nil
}

func (r *postgresEventRepository) List(ctx context.Context) ([]*models.Event, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := make([]*models.Event, 0)
	for rows.Next() {
		var e models.Event
		if err := r.scanEvent(rows, &e); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		events = append(events, &e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}
	return events, nil
}

func (r *postgresEventRepository) SetRegistrationOpen(ctx context.Context, id int, open bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE events SET is_registration_open = $1 WHERE id = $2`, open, id)
	if err != nil {
		return fmt.Errorf("failed to update registration flag: %w", err)
	}
	return checkAffectedRows(result, ErrEventNotFound)
}

func (r *postgresEventRepository) CreateRound(ctx context.Context, round *models.Round) error {
	// Sequence number is assigned inside the insert so two concurrent
	// creations cannot produce duplicates under the unique constraint.
	query := `
		INSERT INTO rounds (event_id, name, sequence_number, is_active, results_published)
		SELECT $1, $2, COALESCE(MAX(sequence_number), 0) + 1, FALSE, FALSE
		FROM rounds WHERE event_id = $1
		RETURNING id, sequence_number, created_at`

	err := r.db.QueryRowContext(ctx, query, round.EventID, round.Name).
		Scan(&round.ID, &round.SequenceNumber, &round.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" && pqErr.Constraint == "rounds_event_id_fkey" {
			return ErrEventNotFound
		}
		return fmt.Errorf("failed to create round: %w", err)
	}
	return nil
}

const roundColumns = `id, event_id, name, sequence_number, is_active, results_published, created_at`

func scanRound(rowScanner interface {
	Scan(dest ...interface{}) error
}, round *models.Round) error {
	return rowScanner.Scan(
		&round.ID,
		&round.EventID,
		&round.Name,
		&round.SequenceNumber,
		&round.IsActive,
		&round.ResultsPublished,
		&round.CreatedAt,
	)
}

func (r *postgresEventRepository) GetRound(ctx context.Context, eventID, roundID int) (*models.Round, error) {
	round := &models.Round{}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+roundColumns+` FROM rounds WHERE event_id = $1 AND id = $2`, eventID, roundID)
	if err := scanRound(row, round); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoundNotFound
		}
		return nil, fmt.Errorf("failed to get round: %w", err)
	}
	return round, nil
}

func (r *postgresEventRepository) ListRounds(ctx context.Context, eventID int) ([]models.Round, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+roundColumns+` FROM rounds WHERE event_id = $1 ORDER BY sequence_number ASC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds: %w", err)
	}
	defer rows.Close()

	rounds := make([]models.Round, 0)
	for rows.Next() {
		var round models.Round
		if err := scanRound(rows, &round); err != nil {
			return nil, fmt.Errorf("failed to scan round row: %w", err)
		}
		rounds = append(rounds, round)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating round rows: %w", err)
	}
	return rounds, nil
}

func (r *postgresEventRepository) ActivateRound(ctx context.Context, eventID, roundID int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin round activation: %w", err)
	}
	defer tx.Rollback()

	// The target must exist before any flag is touched; the blanket update
	// below deactivates every other round of the event.
	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM rounds WHERE event_id = $1 AND id = $2 FOR UPDATE`, eventID, roundID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRoundNotFound
		}
		return fmt.Errorf("failed to verify round: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE rounds SET is_active = (id = $2) WHERE event_id = $1`, eventID, roundID)
	if err != nil {
		return fmt.Errorf("failed to activate round: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit round activation: %w", err)
	}
	return nil
}

func (r *postgresEventRepository) SetRoundResultsPublished(ctx context.Context, roundID int, published bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE rounds SET results_published = $1 WHERE id = $2`, published, roundID)
	if err != nil {
		return fmt.Errorf("failed to update round publish flag: %w", err)
	}
	return checkAffectedRows(result, ErrRoundNotFound)
}

func (r *postgresEventRepository) DeleteRound(ctx context.Context, eventID, roundID int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin round deletion: %w", err)
	}
	defer tx.Rollback()

	var seq int
	err = tx.QueryRowContext(ctx,
		`DELETE FROM rounds WHERE event_id = $1 AND id = $2 RETURNING sequence_number`,
		eventID, roundID).Scan(&seq)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRoundNotFound
		}
		return fmt.Errorf("failed to delete round: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE rounds SET sequence_number = sequence_number - 1 WHERE event_id = $1 AND sequence_number > $2`,
		eventID, seq)
	if err != nil {
		return fmt.Errorf("failed to renumber rounds: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit round deletion: %w", err)
	}
	return nil
}
