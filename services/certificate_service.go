package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/blackbirdcodelabs/jnanagni-backend/models"
	"github.com/blackbirdcodelabs/jnanagni-backend/repositories"
	"github.com/blackbirdcodelabs/jnanagni-backend/storage"
)

// certificateIDRetries bounds the regenerate-and-retry loop when a freshly
// generated shareable id collides with an existing one.
const certificateIDRetries = 5

type CertificateService interface {
	// UpsertOnAttendance records that a registration member reached the given
	// round. Creates the member's certificate on first check-in, otherwise
	// only advances roundReached (never backwards).
	UpsertOnAttendance(ctx context.Context, reg *models.Registration, userID int, round *models.Round) (*models.Certificate, error)
	// MarkWinner upgrades the member's certificate after final results go
	// live. Creates the certificate first if the member was never scanned.
	MarkWinner(ctx context.Context, reg *models.Registration, userID int, finalRound *models.Round, winnerRank int) error
	GetByCertificateID(ctx context.Context, certificateID string) (*models.Certificate, error)
	ListByUser(ctx context.Context, userID int) ([]*models.Certificate, error)
	// AttachFile stores the generated certificate document and records its
	// object key on the certificate.
	AttachFile(ctx context.Context, certificateID string, contentType string, file io.Reader) (*models.Certificate, error)
}

type certificateService struct {
	certRepo repositories.CertificateRepository
	uploader storage.FileUploader
	logger   *slog.Logger
}

func NewCertificateService(
	certRepo repositories.CertificateRepository,
	uploader storage.FileUploader,
	logger *slog.Logger,
) CertificateService {
	return &certificateService{
		certRepo: certRepo,
		uploader: uploader,
		logger:   logger,
	}
}

func (s *certificateService) UpsertOnAttendance(ctx context.Context, reg *models.Registration, userID int, round *models.Round) (*models.Certificate, error) {
	cert, err := s.certRepo.FindByMember(ctx, reg.ID, userID)
	if err == nil {
		return s.advance(ctx, cert, round)
	}
	if !errors.Is(err, repositories.ErrCertificateNotFound) {
		return nil, fmt.Errorf("failed to look up certificate: %w", err)
	}

	cert, err = s.create(ctx, reg, userID, round)
	if err == nil {
		return cert, nil
	}
	if errors.Is(err, repositories.ErrCertificateConflict) {
		// A concurrent scan of the same member won the insert race; fall back
		// to advancing the row it created.
		cert, err = s.certRepo.FindByMember(ctx, reg.ID, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to reload certificate after conflict: %w", err)
		}
		return s.advance(ctx, cert, round)
	}
	return nil, err
}

func (s *certificateService) create(ctx context.Context, reg *models.Registration, userID int, round *models.Round) (*models.Certificate, error) {
	for attempt := 0; attempt < certificateIDRetries; attempt++ {
		certID, err := generateCertificateID()
		if err != nil {
			return nil, err
		}
		cert := &models.Certificate{
			UserID:          userID,
			EventID:         reg.EventID,
			RegistrationID:  reg.ID,
			Type:            models.CertificateParticipation,
			TeamName:        reg.TeamName,
			RoundReached:    round.Name,
			RoundReachedSeq: round.SequenceNumber,
			CertificateID:   certID,
		}
		err = s.certRepo.Create(ctx, cert)
		if err == nil {
			return cert, nil
		}
		if errors.Is(err, repositories.ErrCertificateIDConflict) {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("failed to allocate a unique certificate id after %d attempts", certificateIDRetries)
}

func (s *certificateService) advance(ctx context.Context, cert *models.Certificate, round *models.Round) (*models.Certificate, error) {
	if err := s.certRepo.AdvanceRound(ctx, cert.RegistrationID, cert.UserID, round.Name, round.SequenceNumber); err != nil {
		return nil, err
	}
	if round.SequenceNumber > cert.RoundReachedSeq {
		cert.RoundReached = round.Name
		cert.RoundReachedSeq = round.SequenceNumber
	}
	return cert, nil
}

func (s *certificateService) MarkWinner(ctx context.Context, reg *models.Registration, userID int, finalRound *models.Round, winnerRank int) error {
	_, err := s.certRepo.FindByMember(ctx, reg.ID, userID)
	if errors.Is(err, repositories.ErrCertificateNotFound) {
		// Winners who skipped the scanner still get a certificate.
		if _, err = s.create(ctx, reg, userID, finalRound); err != nil && !errors.Is(err, repositories.ErrCertificateConflict) {
			return err
		}
	} else if err != nil {
		return fmt.Errorf("failed to look up certificate: %w", err)
	}

	return s.certRepo.MarkWinner(ctx, reg.ID, userID, models.CertificateWinner, winnerRank, finalRound.Name, finalRound.SequenceNumber)
}

func (s *certificateService) GetByCertificateID(ctx context.Context, certificateID string) (*models.Certificate, error) {
	cert, err := s.certRepo.FindByCertificateID(ctx, strings.TrimSpace(certificateID))
	if err != nil {
		if errors.Is(err, repositories.ErrCertificateNotFound) {
			return nil, ErrCertificateNotFound
		}
		return nil, err
	}
	s.fillFileURL(cert)
	return cert, nil
}

func (s *certificateService) ListByUser(ctx context.Context, userID int) ([]*models.Certificate, error) {
	certs, err := s.certRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, cert := range certs {
		s.fillFileURL(cert)
	}
	return certs, nil
}

func (s *certificateService) AttachFile(ctx context.Context, certificateID string, contentType string, file io.Reader) (*models.Certificate, error) {
	cert, err := s.GetByCertificateID(ctx, certificateID)
	if err != nil {
		return nil, err
	}
	if s.uploader == nil {
		return nil, errors.New("file storage is not configured")
	}

	key := fmt.Sprintf("certificates/%s.pdf", strings.ToLower(cert.CertificateID))
	result, err := s.uploader.Upload(ctx, key, contentType, file)
	if err != nil {
		return nil, fmt.Errorf("failed to store certificate file: %w", err)
	}

	if err := s.certRepo.SetFile(ctx, cert.ID, result.Key); err != nil {
		return nil, err
	}
	cert.FileKey = &result.Key
	cert.IsGenerated = true
	s.fillFileURL(cert)
	return cert, nil
}

func (s *certificateService) fillFileURL(cert *models.Certificate) {
	if s.uploader == nil || cert.FileKey == nil {
		return
	}
	if url := s.uploader.GetPublicURL(*cert.FileKey); url != "" {
		cert.FileURL = &url
	}
}
