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
	ErrUserNotFound           = errors.New("user not found")
	ErrUserEmailConflict      = errors.New("email address is already in use")
	ErrUserJnanagniIDConflict = errors.New("jnanagni id is already in use")
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByJnanagniID(ctx context.Context, jnanagniID string) (*models.User, error)
	UpdatePaymentStatus(ctx context.Context, id int, status models.PaymentStatus) error
	UpdateSpecialRoles(ctx context.Context, id int, roles []models.SpecialRole) error
	SetVerified(ctx context.Context, id int) error
}

type postgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

const userColumns = `id, name, email, jnanagni_id, college, contact_no, password_hash, role, special_roles, is_verified, payment_status, created_at`

func (r *postgresUserRepository) scanUser(rowScanner interface {
	Scan(dest ...interface{}) error
}, u *models.User) error {
	var roles pq.StringArray
	err := rowScanner.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.JnanagniID,
		&u.College,
		&u.ContactNo,
		&u.PasswordHash,
		&u.Role,
		&roles,
		&u.IsVerified,
		&u.Payment,
		&u.CreatedAt,
	)
	if err != nil {
		return err
	}
	u.SpecialRoles = make([]models.SpecialRole, len(roles))
	for i, role := range roles {
		u.SpecialRoles[i] = models.SpecialRole(role)
	}
	return nil
}

func rolesToArray(roles []models.SpecialRole) pq.StringArray {
	arr := make(pq.StringArray, len(roles))
	for i, role := range roles {
		arr[i] = string(role)
	}
	return arr
}

func (r *postgresUserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (name, email, jnanagni_id, college, contact_no, password_hash, role, special_roles, is_verified, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		user.Name,
		user.Email,
		user.JnanagniID,
		user.College,
		user.ContactNo,
		user.PasswordHash,
		user.Role,
		rolesToArray(user.SpecialRoles),
		user.IsVerified,
		user.Payment,
	).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			switch pqErr.Constraint {
			case "users_email_key":
				return ErrUserEmailConflict
			case "users_jnanagni_id_key":
				return ErrUserJnanagniIDConflict
			}
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *postgresUserRepository) findOne(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	u := &models.User{}
	row := r.db.QueryRowContext(ctx, query, args...)
	if err := r.scanUser(row, u); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return u, nil
}

func (r *postgresUserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *postgresUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
}

func (r *postgresUserRepository) GetByJnanagniID(ctx context.Context, jnanagniID string) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE jnanagni_id = upper($1)`, jnanagniID)
}

func (r *postgresUserRepository) UpdatePaymentStatus(ctx context.Context, id int, status models.PaymentStatus) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET payment_status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

func (r *postgresUserRepository) UpdateSpecialRoles(ctx context.Context, id int, roles []models.SpecialRole) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET special_roles = $1 WHERE id = $2`, rolesToArray(roles), id)
	if err != nil {
		return fmt.Errorf("failed to update special roles: %w", err)
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

func (r *postgresUserRepository) SetVerified(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET is_verified = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to set user verified: %w", err)
	}
	return checkAffectedRows(result, ErrUserNotFound)
}
