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
	ErrCertificateNotFound   = errors.New("certificate not found")
	ErrCertificateConflict   = errors.New("certificate already exists for this registration member")
	ErrCertificateIDConflict = errors.New("certificate id is already in use")
)

type CertificateRepository interface {
	Create(ctx context.Context, cert *models.Certificate) error
	FindByMember(ctx context.Context, registrationID, userID int) (*models.Certificate, error)
	FindByCertificateID(ctx context.Context, certificateID string) (*models.Certificate, error)
	ListByUser(ctx context.Context, userID int) ([]*models.Certificate, error)
	// AdvanceRound moves roundReached forward only; re-scans of earlier
	// rounds are no-ops thanks to the sequence guard in the WHERE clause.
	AdvanceRound(ctx context.Context, registrationID, userID int, roundName string, roundSeq int) error
	MarkWinner(ctx context.Context, registrationID, userID int, certType models.CertificateType, winnerRank int, roundName string, roundSeq int) error
	SetFile(ctx context.Context, id int, fileKey string) error
}

type postgresCertificateRepository struct {
	db *sql.DB
}

func NewPostgresCertificateRepository(db *sql.DB) CertificateRepository {
	return &postgresCertificateRepository{db: db}
}

func (r *postgresCertificateRepository) Create(ctx context.Context, cert *models.Certificate) error {
	query := `
		INSERT INTO certificates (user_id, event_id, registration_id, type, rank, team_name, round_reached, round_reached_seq, is_winner, winner_rank, certificate_id, is_generated, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		cert.UserID,
		cert.EventID,
		cert.RegistrationID,
		cert.Type,
		cert.Rank,
		cert.TeamName,
		cert.RoundReached,
		cert.RoundReachedSeq,
		cert.IsWinner,
		cert.WinnerRank,
		cert.CertificateID,
		cert.IsGenerated,
		cert.IssuedAt,
	).Scan(&cert.ID, &cert.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			switch pqErr.Constraint {
			case "certificates_certificate_id_key":
				return ErrCertificateIDConflict
			case "certificates_registration_id_user_id_key":
				return ErrCertificateConflict
			}
		}
		return fmt.Errorf("failed to create certificate: %w", err)
	}
	return nil
}

const certificateColumns = `id, user_id, event_id, registration_id, type, rank, team_name, round_reached, round_reached_seq, is_winner, winner_rank, certificate_id, is_generated, file_key, issued_at, created_at`

func scanCertificate(rowScanner interface {
	Scan(dest ...interface{}) error
}, cert *models.Certificate) error {
	return rowScanner.Scan(
		&cert.ID,
		&cert.UserID,
		&cert.EventID,
		&cert.RegistrationID,
		&cert.Type,
		&cert.Rank,
		&cert.TeamName,
		&cert.RoundReached,
		&cert.RoundReachedSeq,
		&cert.IsWinner,
		&cert.WinnerRank,
		&cert.CertificateID,
		&cert.IsGenerated,
		&cert.FileKey,
		&cert.IssuedAt,
		&cert.CreatedAt,
	)
}

func (r *postgresCertificateRepository) findOne(ctx context.Context, query string, args ...interface{}) (*models.Certificate, error) {
	cert := &models.Certificate{}
	row := r.db.QueryRowContext(ctx, query, args...)
	if err := scanCertificate(row, cert); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCertificateNotFound
		}
		return nil, fmt.Errorf("failed to find certificate: %w", err)
	}
	return cert, nil
}

func (r *postgresCertificateRepository) FindByMember(ctx context.Context, registrationID, userID int) (*models.Certificate, error) {
	return r.findOne(ctx,
		`SELECT `+certificateColumns+` FROM certificates WHERE registration_id = $1 AND user_id = $2`,
		registrationID, userID)
}

func (r *postgresCertificateRepository) FindByCertificateID(ctx context.Context, certificateID string) (*models.Certificate, error) {
	return r.findOne(ctx,
		`SELECT `+certificateColumns+` FROM certificates WHERE certificate_id = upper($1)`, certificateID)
}

func (r *postgresCertificateRepository) ListByUser(ctx context.Context, userID int) ([]*models.Certificate, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+certificateColumns+` FROM certificates WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}
	defer rows.Close()

	certs := make([]*models.Certificate, 0)
	for rows.Next() {
		var cert models.Certificate
		if err := scanCertificate(rows, &cert); err != nil {
			return nil, fmt.Errorf("failed to scan certificate row: %w", err)
		}
		certs = append(certs, &cert)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating certificate rows: %w", err)
	}
	return certs, nil
}

func (r *postgresCertificateRepository) AdvanceRound(ctx context.Context, registrationID, userID int, roundName string, roundSeq int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE certificates
		SET round_reached = $3, round_reached_seq = $4
		WHERE registration_id = $1 AND user_id = $2 AND round_reached_seq < $4`,
		registrationID, userID, roundName, roundSeq)
	if err != nil {
		return fmt.Errorf("failed to advance certificate round: %w", err)
	}
	// Zero affected rows means the certificate already records this round or
	// a later one; that is the expected re-scan outcome, not an error.
	return nil
}

func (r *postgresCertificateRepository) MarkWinner(ctx context.Context, registrationID, userID int, certType models.CertificateType, winnerRank int, roundName string, roundSeq int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE certificates
		SET type = $3,
		    is_winner = TRUE,
		    winner_rank = $4,
		    rank = $4,
		    round_reached = $5,
		    round_reached_seq = GREATEST(round_reached_seq, $6),
		    is_generated = TRUE,
		    issued_at = COALESCE(issued_at, NOW())
		WHERE registration_id = $1 AND user_id = $2`,
		registrationID, userID, certType, winnerRank, roundName, roundSeq)
	if err != nil {
		return fmt.Errorf("failed to mark certificate winner: %w", err)
	}
	return checkAffectedRows(result, ErrCertificateNotFound)
}

func (r *postgresCertificateRepository) SetFile(ctx context.Context, id int, fileKey string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE certificates SET file_key = $2, is_generated = TRUE, issued_at = COALESCE(issued_at, NOW()) WHERE id = $1`,
		id, fileKey)
	if err != nil {
		return fmt.Errorf("failed to set certificate file: %w", err)
	}
	return checkAffectedRows(result, ErrCertificateNotFound)
}
