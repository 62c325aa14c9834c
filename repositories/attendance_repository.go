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
	ErrAttendanceNotFound = errors.New("attendance record not found")
	// ErrAttendanceConflict surfaces the (event, round, user) unique index.
	// Callers treat it as the idempotent "already checked in" case.
	ErrAttendanceConflict = errors.New("attendance already recorded for this user and round")
)

type AttendanceRepository interface {
	Create(ctx context.Context, att *models.Attendance) error
	Find(ctx context.Context, eventID, roundID, userID int) (*models.Attendance, error)
	Delete(ctx context.Context, eventID, roundID, userID int) error
	CountByRegistration(ctx context.Context, registrationID, eventID, roundID int) (int, error)
	ListByRound(ctx context.Context, eventID, roundID int) ([]*models.Attendance, error)
	StatsByRound(ctx context.Context, eventID, roundID int) ([]models.TeamAttendanceStat, error)
}

type postgresAttendanceRepository struct {
	db *sql.DB
}

func NewPostgresAttendanceRepository(db *sql.DB) AttendanceRepository {
	return &postgresAttendanceRepository{db: db}
}

func (r *postgresAttendanceRepository) Create(ctx context.Context, att *models.Attendance) error {
	query := `
		INSERT INTO attendances (event_id, round_id, round_name, registration_id, user_id, scanned_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		att.EventID,
		att.RoundID,
		att.RoundName,
		att.RegistrationID,
		att.UserID,
		att.ScannedBy,
	).Scan(&att.ID, &att.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505":
				if pqErr.Constraint == "attendances_event_id_round_id_user_id_key" {
					return ErrAttendanceConflict
				}
			case "23503":
				return fmt.Errorf("attendance references missing row: %w", err)
			}
		}
		return fmt.Errorf("failed to create attendance: %w", err)
	}
	return nil
}

const attendanceColumns = `id, event_id, round_id, round_name, registration_id, user_id, scanned_by, created_at`

func scanAttendance(rowScanner interface {
	Scan(dest ...interface{}) error
}, att *models.Attendance) error {
	return rowScanner.Scan(
		&att.ID,
		&att.EventID,
		&att.RoundID,
		&att.RoundName,
		&att.RegistrationID,
		&att.UserID,
		&att.ScannedBy,
		&att.CreatedAt,
	)
}

func (r *postgresAttendanceRepository) Find(ctx context.Context, eventID, roundID, userID int) (*models.Attendance, error) {
	att := &models.Attendance{}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+attendanceColumns+` FROM attendances WHERE event_id = $1 AND round_id = $2 AND user_id = $3`,
		eventID, roundID, userID)
	if err := scanAttendance(row, att); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAttendanceNotFound
		}
		return nil, fmt.Errorf("failed to find attendance: %w", err)
	}
	return att, nil
}

func (r *postgresAttendanceRepository) Delete(ctx context.Context, eventID, roundID, userID int) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM attendances WHERE event_id = $1 AND round_id = $2 AND user_id = $3`,
		eventID, roundID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete attendance: %w", err)
	}
	return checkAffectedRows(result, ErrAttendanceNotFound)
}

func (r *postgresAttendanceRepository) CountByRegistration(ctx context.Context, registrationID, eventID, roundID int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attendances WHERE registration_id = $1 AND event_id = $2 AND round_id = $3`,
		registrationID, eventID, roundID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count attendance: %w", err)
	}
	return count, nil
}

func (r *postgresAttendanceRepository) ListByRound(ctx context.Context, eventID, roundID int) ([]*models.Attendance, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+attendanceColumns+` FROM attendances WHERE event_id = $1 AND round_id = $2 ORDER BY created_at ASC`,
		eventID, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}
	defer rows.Close()

	records := make([]*models.Attendance, 0)
	for rows.Next() {
		var att models.Attendance
		if err := scanAttendance(rows, &att); err != nil {
			return nil, fmt.Errorf("failed to scan attendance row: %w", err)
		}
		records = append(records, &att)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attendance rows: %w", err)
	}
	return records, nil
}

func (r *postgresAttendanceRepository) StatsByRound(ctx context.Context, eventID, roundID int) ([]models.TeamAttendanceStat, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.registration_id,
		       COALESCE(reg.team_name, ''),
		       COUNT(*),
		       ARRAY_AGG(a.user_id ORDER BY a.created_at)
		FROM attendances a
		JOIN registrations reg ON reg.id = a.registration_id
		WHERE a.event_id = $1 AND a.round_id = $2
		GROUP BY a.registration_id, reg.team_name
		ORDER BY a.registration_id`, eventID, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate attendance stats: %w", err)
	}
	defer rows.Close()

	stats := make([]models.TeamAttendanceStat, 0)
	for rows.Next() {
		var stat models.TeamAttendanceStat
		var present pq.Int64Array
		if err := rows.Scan(&stat.RegistrationID, &stat.TeamName, &stat.PresentCount, &present); err != nil {
			return nil, fmt.Errorf("failed to scan attendance stat row: %w", err)
		}
		stat.PresentUserIDs = make([]int, len(present))
		for i, id := range present {
			stat.PresentUserIDs[i] = int(id)
		}
		stats = append(stats, stat)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attendance stat rows: %w", err)
	}
	return stats, nil
}
