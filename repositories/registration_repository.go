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
	ErrRegistrationNotFound     = errors.New("registration not found")
	ErrRegistrationEventInvalid = errors.New("registration event conflict or invalid")
	ErrMemberNotFound           = errors.New("team member not found")
	ErrMemberAlreadyResponded   = errors.New("team member has already responded")
	ErrTeamCapacityReached      = errors.New("team has reached its maximum size")
)

type RegistrationRepository interface {
	Create(ctx context.Context, reg *models.Registration) error
	GetByID(ctx context.Context, id int) (*models.Registration, error)
	Delete(ctx context.Context, id int) error
	UpdateStatus(ctx context.Context, id int, status models.RegistrationStatus) error
	UpdateSubmissionData(ctx context.Context, id int, data models.SubmissionData) error

	// FindActiveSlot runs the leader-or-accepted-member union query: the one
	// active registration in which the user occupies a slot for this event.
	FindActiveSlot(ctx context.Context, eventID, userID int) (*models.Registration, error)
	CountActiveByEvent(ctx context.Context, eventID int) (int, error)
	CountActiveByIDs(ctx context.Context, eventID int, ids []int) (int, error)
	ListByEvent(ctx context.Context, eventID, limit, offset int) ([]*models.Registration, int, error)
	ListActiveByUser(ctx context.Context, userID int) ([]*models.Registration, error)
	ListPendingInvites(ctx context.Context, userID int, email string) ([]*models.Registration, error)

	AddMember(ctx context.Context, member *models.TeamMember) error
	// AcceptMember flips a pending invite to accepted while holding a row
	// lock on the registration, so concurrent acceptances are serialized and
	// the team-size ceiling cannot be overshot.
	AcceptMember(ctx context.Context, registrationID, userID int, email string, data models.SubmissionData, maxTeamSize int) error
	RejectMember(ctx context.Context, registrationID, userID int, email string) error
	RemoveMember(ctx context.Context, registrationID, memberUserID int) error
}

type postgresRegistrationRepository struct {
	db *sql.DB
}

func NewPostgresRegistrationRepository(db *sql.DB) RegistrationRepository {
	return &postgresRegistrationRepository{db: db}
}

const registrationColumns = `id, event_id, registered_by, team_name, status, submission_data, created_at`

func scanRegistration(rowScanner interface {
	Scan(dest ...interface{}) error
}, reg *models.Registration) error {
	var raw []byte
	err := rowScanner.Scan(
		&reg.ID,
		&reg.EventID,
		&reg.RegisteredBy,
		&reg.TeamName,
		&reg.Status,
		&raw,
		&reg.CreatedAt,
	)
	if err != nil {
		return err
	}
	return scanSubmissionData(raw, &reg.SubmissionData)
}

func (r *postgresRegistrationRepository) Create(ctx context.Context, reg *models.Registration) error {
	data, err := submissionDataValue(reg.SubmissionData)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO registrations (event_id, registered_by, team_name, status, submission_data)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err = r.db.QueryRowContext(ctx, query,
		reg.EventID,
		reg.RegisteredBy,
		reg.TeamName,
		reg.Status,
		data,
	).Scan(&reg.ID, &reg.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" && pqErr.Constraint == "registrations_event_id_fkey" {
			return ErrRegistrationEventInvalid
		}
		return fmt.Errorf("failed to create registration: %w", err)
	}
	return nil
}

func (r *postgresRegistrationRepository) loadMembers(ctx context.Context, q queryer, regIDs []int) (map[int][]models.TeamMember, error) {
	if len(regIDs) == 0 {
		return map[int][]models.TeamMember{}, nil
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, registration_id, user_id, email, status, invited_at, submission_data
		FROM team_members
		WHERE registration_id = ANY($1)
		ORDER BY invited_at ASC, id ASC`, pq.Array(regIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to load team members: %w", err)
	}
	defer rows.Close()

	byReg := make(map[int][]models.TeamMember)
	for rows.Next() {
		var m models.TeamMember
		var raw []byte
		if err := rows.Scan(&m.ID, &m.RegistrationID, &m.UserID, &m.Email, &m.Status, &m.InvitedAt, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan team member row: %w", err)
		}
		if err := scanSubmissionData(raw, &m.SubmissionData); err != nil {
			return nil, err
		}
		byReg[m.RegistrationID] = append(byReg[m.RegistrationID], m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating team member rows: %w", err)
	}
	return byReg, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func (r *postgresRegistrationRepository) getByID(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}, id int, forUpdate bool) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	reg := &models.Registration{}
	if err := scanRegistration(q.QueryRowContext(ctx, query, id), reg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}

	members, err := r.loadMembers(ctx, q, []int{reg.ID})
	if err != nil {
		return nil, err
	}
	reg.TeamMembers = members[reg.ID]
	if reg.TeamMembers == nil {
		reg.TeamMembers = []models.TeamMember{}
	}
	return reg, nil
}

func (r *postgresRegistrationRepository) GetByID(ctx context.Context, id int) (*models.Registration, error) {
	return r.getByID(ctx, r.db, id, false)
}

func (r *postgresRegistrationRepository) Delete(ctx context.Context, id int) error {
	// team_members cascade via FK.
	result, err := r.db.ExecContext(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete registration: %w", err)
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}

func (r *postgresRegistrationRepository) UpdateStatus(ctx context.Context, id int, status models.RegistrationStatus) error {
	result, err := r.db.ExecContext(ctx, `UPDATE registrations SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update registration status: %w", err)
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}

func (r *postgresRegistrationRepository) UpdateSubmissionData(ctx context.Context, id int, data models.SubmissionData) error {
	value, err := submissionDataValue(data)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, `UPDATE registrations SET submission_data = $1 WHERE id = $2`, value, id)
	if err != nil {
		return fmt.Errorf("failed to update submission data: %w", err)
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}

func (r *postgresRegistrationRepository) FindActiveSlot(ctx context.Context, eventID, userID int) (*models.Registration, error) {
	query := `
		SELECT ` + registrationColumns + ` FROM registrations reg
		WHERE reg.event_id = $1 AND reg.status = 'active'
		  AND (reg.registered_by = $2
		       OR EXISTS (
		           SELECT 1 FROM team_members m
		           WHERE m.registration_id = reg.id AND m.user_id = $2 AND m.status = 'accepted'))
		LIMIT 1`

	reg := &models.Registration{}
	if err := scanRegistration(r.db.QueryRowContext(ctx, query, eventID, userID), reg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to find active slot: %w", err)
	}

	members, err := r.loadMembers(ctx, r.db, []int{reg.ID})
	if err != nil {
		return nil, err
	}
	reg.TeamMembers = members[reg.ID]
	if reg.TeamMembers == nil {
		reg.TeamMembers = []models.TeamMember{}
	}
	return reg, nil
}

func (r *postgresRegistrationRepository) CountActiveByEvent(ctx context.Context, eventID int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations WHERE event_id = $1 AND status = 'active'`, eventID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count registrations: %w", err)
	}
	return count, nil
}

func (r *postgresRegistrationRepository) CountActiveByIDs(ctx context.Context, eventID int, ids []int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations WHERE event_id = $1 AND status = 'active' AND id = ANY($2)`,
		eventID, pq.Array(ids)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count registrations by ids: %w", err)
	}
	return count, nil
}

func (r *postgresRegistrationRepository) listWithMembers(ctx context.Context, query string, args ...interface{}) ([]*models.Registration, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	defer rows.Close()

	regs := make([]*models.Registration, 0)
	ids := make([]int, 0)
	for rows.Next() {
		var reg models.Registration
		if err := scanRegistration(rows, &reg); err != nil {
			return nil, fmt.Errorf("failed to scan registration row: %w", err)
		}
		regs = append(regs, &reg)
		ids = append(ids, reg.ID)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating registration rows: %w", err)
	}

	members, err := r.loadMembers(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for _, reg := range regs {
		reg.TeamMembers = members[reg.ID]
		if reg.TeamMembers == nil {
			reg.TeamMembers = []models.TeamMember{}
		}
	}
	return regs, nil
}

func (r *postgresRegistrationRepository) ListByEvent(ctx context.Context, eventID, limit, offset int) ([]*models.Registration, int, error) {
	regs, err := r.listWithMembers(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE event_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		eventID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	var total int
	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations WHERE event_id = $1`, eventID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count registrations for event: %w", err)
	}
	return regs, total, nil
}

func (r *postgresRegistrationRepository) ListActiveByUser(ctx context.Context, userID int) ([]*models.Registration, error) {
	return r.listWithMembers(ctx, `
		SELECT `+registrationColumns+` FROM registrations reg
		WHERE reg.status = 'active'
		  AND (reg.registered_by = $1
		       OR EXISTS (
		           SELECT 1 FROM team_members m
		           WHERE m.registration_id = reg.id AND m.user_id = $1 AND m.status = 'accepted'))
		ORDER BY reg.created_at DESC`, userID)
}

func (r *postgresRegistrationRepository) ListPendingInvites(ctx context.Context, userID int, email string) ([]*models.Registration, error) {
	return r.listWithMembers(ctx, `
		SELECT `+registrationColumns+` FROM registrations reg
		WHERE EXISTS (
		    SELECT 1 FROM team_members m
		    WHERE m.registration_id = reg.id AND m.status = 'pending'
		      AND (m.user_id = $1 OR (m.user_id IS NULL AND lower(m.email) = lower($2))))
		ORDER BY reg.created_at DESC`, userID, email)
}

func (r *postgresRegistrationRepository) AddMember(ctx context.Context, member *models.TeamMember) error {
	data, err := submissionDataValue(member.SubmissionData)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO team_members (registration_id, user_id, email, status, submission_data)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, invited_at`

	err = r.db.QueryRowContext(ctx, query,
		member.RegistrationID,
		member.UserID,
		member.Email,
		member.Status,
		data,
	).Scan(&member.ID, &member.InvitedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" && pqErr.Constraint == "team_members_registration_id_fkey" {
			return ErrRegistrationNotFound
		}
		return fmt.Errorf("failed to add team member: %w", err)
	}
	return nil
}

func (r *postgresRegistrationRepository) AcceptMember(ctx context.Context, registrationID, userID int, email string, data models.SubmissionData, maxTeamSize int) error {
	value, err := submissionDataValue(data)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin invite acceptance: %w", err)
	}
	defer tx.Rollback()

	reg, err := r.getByID(ctx, tx, registrationID, true)
	if err != nil {
		return err
	}

	member := reg.FindMember(userID, email)
	if member == nil {
		return ErrMemberNotFound
	}
	if member.Status != models.MemberPending {
		return ErrMemberAlreadyResponded
	}

	// Re-counted under the row lock: a concurrent acceptance that committed
	// first is visible here, so only one invitee can take the last slot.
	if maxTeamSize > 0 && reg.EffectiveSize() >= maxTeamSize {
		return ErrTeamCapacityReached
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE team_members
		SET status = 'accepted', user_id = $2, submission_data = COALESCE($3, submission_data)
		WHERE id = $1 AND status = 'pending'`,
		member.ID, userID, value)
	if err != nil {
		return fmt.Errorf("failed to accept invite: %w", err)
	}
	if err := checkAffectedRows(result, ErrMemberNotFound); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit invite acceptance: %w", err)
	}
	return nil
}

func (r *postgresRegistrationRepository) RejectMember(ctx context.Context, registrationID, userID int, email string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE team_members
		SET status = 'rejected', user_id = COALESCE(user_id, $2)
		WHERE registration_id = $1 AND status = 'pending'
		  AND (user_id = $2 OR (user_id IS NULL AND lower(email) = lower($3)))`,
		registrationID, userID, email)
	if err != nil {
		return fmt.Errorf("failed to reject invite: %w", err)
	}
	return checkAffectedRows(result, ErrMemberNotFound)
}

func (r *postgresRegistrationRepository) RemoveMember(ctx context.Context, registrationID, memberUserID int) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM team_members WHERE registration_id = $1 AND user_id = $2`,
		registrationID, memberUserID)
	if err != nil {
		return fmt.Errorf("failed to remove team member: %w", err)
	}
	return checkAffectedRows(result, ErrMemberNotFound)
}
