package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/blackbirdcodelabs/jnanagni-backend/models"
	"github.com/blackbirdcodelabs/jnanagni-backend/repositories"
)

// winnerCount is how many top-ranked registrations of the final round are
// treated as event winners.
const winnerCount = 3

// winnerCertConcurrency bounds the certificate fan-out on final publish.
const winnerCertConcurrency = 4

type CreateResultsInput struct {
	Entries   []models.ResultEntry `json:"results"`
	Qualified []int                `json:"qualified_for_next_round"`
}

type RoundService interface {
	CreateRound(ctx context.Context, eventID int, name string) (*models.Round, error)
	ListRounds(ctx context.Context, eventID int) ([]models.Round, error)
	// ActivateRound makes the round the event's single active one; any
	// previously active round is deactivated in the same operation.
	ActivateRound(ctx context.Context, eventID, roundID int) (*models.Round, error)
	DeleteRound(ctx context.Context, eventID, roundID int) error

	// CreateResults saves or replaces the draft outcome of the active round.
	// Drafts are invisible to participants and to the attendance gate.
	CreateResults(ctx context.Context, eventID, roundID int, input CreateResultsInput) (*models.Result, error)
	PublishResults(ctx context.Context, eventID, roundID, publishedBy int) (*models.Result, error)
	UnpublishResults(ctx context.Context, eventID, roundID int) (*models.Result, error)
	DeleteResults(ctx context.Context, eventID, roundID int) error

	GetResults(ctx context.Context, eventID, roundID int) (*models.Result, error)
	// GetPublicResults returns nil without error while no published result
	// exists, so callers can render "results pending".
	GetPublicResults(ctx context.Context, eventID, roundID int) (*models.Result, error)
	GetAllResultsByEvent(ctx context.Context, eventID int) ([]*models.Result, error)
	// GetQualifiedTeams resolves the round's qualified registrations. Empty
	// until the result is published, like GetPublicResults.
	GetQualifiedTeams(ctx context.Context, eventID, roundID int) ([]*models.Registration, error)
}

type roundService struct {
	eventRepo  repositories.EventRepository
	resultRepo repositories.ResultRepository
	regRepo    repositories.RegistrationRepository
	certSvc    CertificateService
	logger     *slog.Logger
}

func NewRoundService(
	eventRepo repositories.EventRepository,
	resultRepo repositories.ResultRepository,
	regRepo repositories.RegistrationRepository,
	certSvc CertificateService,
	logger *slog.Logger,
) RoundService {
	return &roundService{
		eventRepo:  eventRepo,
		resultRepo: resultRepo,
		regRepo:    regRepo,
		certSvc:    certSvc,
		logger:     logger,
	}
}

func (s *roundService) CreateRound(ctx context.Context, eventID int, name string) (*models.Round, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: round name is required", ErrValidationFailed)
	}

	round := &models.Round{EventID: eventID, Name: name}
	if err := s.eventRepo.CreateRound(ctx, round); err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return round, nil
}

func (s *roundService) ListRounds(ctx context.Context, eventID int) ([]models.Round, error) {
	if _, err := s.getEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.eventRepo.ListRounds(ctx, eventID)
}

func (s *roundService) ActivateRound(ctx context.Context, eventID, roundID int) (*models.Round, error) {
	if err := s.eventRepo.ActivateRound(ctx, eventID, roundID); err != nil {
		switch {
		case errors.Is(err, repositories.ErrEventNotFound):
			return nil, ErrEventNotFound
		case errors.Is(err, repositories.ErrRoundNotFound):
			return nil, ErrRoundNotFound
		}
		return nil, err
	}
	return s.eventRepo.GetRound(ctx, eventID, roundID)
}

func (s *roundService) DeleteRound(ctx context.Context, eventID, roundID int) error {
	round, err := s.eventRepo.GetRound(ctx, eventID, roundID)
	if err != nil {
		if errors.Is(err, repositories.ErrRoundNotFound) {
			return ErrRoundNotFound
		}
		return err
	}
	if round.ResultsPublished {
		return ErrRoundResultsPublished
	}

	if err := s.eventRepo.DeleteRound(ctx, eventID, roundID); err != nil {
		if errors.Is(err, repositories.ErrRoundNotFound) {
			return ErrRoundNotFound
		}
		return err
	}
	return nil
}

func (s *roundService) CreateResults(ctx context.Context, eventID, roundID int, input CreateResultsInput) (*models.Result, error) {
	event, err := s.getEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	round := event.FindRound(roundID)
	if round == nil {
		return nil, ErrRoundNotFound
	}
	if !round.IsActive {
		return nil, ErrRoundNotActive
	}

	existing, err := s.resultRepo.FindByEventAndRound(ctx, eventID, roundID)
	if err != nil && !errors.Is(err, repositories.ErrResultNotFound) {
		return nil, err
	}
	if existing != nil && existing.Published {
		return nil, ErrResultAlreadyPublished
	}

	if len(input.Entries) == 0 {
		return nil, ErrEmptyResults
	}

	entryIDs := make([]int, 0, len(input.Entries))
	entrySet := make(map[int]bool, len(input.Entries))
	for _, e := range input.Entries {
		if !entrySet[e.RegistrationID] {
			entrySet[e.RegistrationID] = true
			entryIDs = append(entryIDs, e.RegistrationID)
		}
	}
	if err := s.checkRegistrationRefs(ctx, eventID, entryIDs); err != nil {
		return nil, err
	}

	entries := make([]models.ResultEntry, len(input.Entries))
	copy(entries, input.Entries)
	// Rank order is authoritative; ties keep the submitted order.
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Rank < entries[j].Rank })

	var qualified []int
	if event.IsFinalRound(roundID) {
		// The final round has no next round; the qualified list records the
		// winning registrations instead, derived from rank order.
		qualified = make([]int, 0, winnerCount)
		seen := make(map[int]bool, winnerCount)
		for i := range entries {
			if len(qualified) == winnerCount {
				break
			}
			if seen[entries[i].RegistrationID] {
				continue
			}
			seen[entries[i].RegistrationID] = true
			entries[i].Won = true
			qualified = append(qualified, entries[i].RegistrationID)
		}
	} else {
		if len(input.Qualified) == 0 {
			return nil, ErrQualifiedListRequired
		}
		qualified = input.Qualified
		for _, id := range qualified {
			if !entrySet[id] {
				return nil, fmt.Errorf("%w: registration %d is qualified but has no result entry", ErrInvalidRegistrationRefs, id)
			}
		}
	}

	result := &models.Result{
		EventID:             eventID,
		RoundID:             roundID,
		RoundName:           round.Name,
		RoundSequenceNumber: round.SequenceNumber,
		Entries:             entries,
		Qualified:           qualified,
	}
	if err := s.resultRepo.Upsert(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *roundService) checkRegistrationRefs(ctx context.Context, eventID int, ids []int) error {
	count, err := s.regRepo.CountActiveByIDs(ctx, eventID, ids)
	if err != nil {
		return err
	}
	if count != len(ids) {
		return ErrInvalidRegistrationRefs
	}
	return nil
}

func (s *roundService) PublishResults(ctx context.Context, eventID, roundID, publishedBy int) (*models.Result, error) {
	event, err := s.getEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.FindRound(roundID) == nil {
		return nil, ErrRoundNotFound
	}

	if err := s.resultRepo.SetPublished(ctx, eventID, roundID, &publishedBy); err != nil {
		switch {
		case errors.Is(err, repositories.ErrResultNotFound):
			return nil, ErrResultNotFound
		case errors.Is(err, repositories.ErrResultAlreadyPublished):
			return nil, ErrResultAlreadyPublished
		}
		return nil, err
	}
	if err := s.eventRepo.SetRoundResultsPublished(ctx, roundID, true); err != nil {
		return nil, err
	}

	result, err := s.resultRepo.FindByEventAndRound(ctx, eventID, roundID)
	if err != nil {
		return nil, err
	}

	if event.IsFinalRound(roundID) {
		s.issueWinnerCertificates(ctx, event, result)
	}
	return result, nil
}

// issueWinnerCertificates upgrades certificates for every member of the
// winning registrations. Certificate failures never roll back the publish;
// they are logged for manual follow-up.
func (s *roundService) issueWinnerCertificates(ctx context.Context, event *models.Event, result *models.Result) {
	finalRound := event.FindRound(result.RoundID)
	if finalRound == nil || s.certSvc == nil {
		return
	}

	rankByReg := make(map[int]int, len(result.Entries))
	for _, e := range result.Entries {
		if e.Won {
			if _, ok := rankByReg[e.RegistrationID]; !ok {
				rankByReg[e.RegistrationID] = e.Rank
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(winnerCertConcurrency)
	for _, regID := range result.Qualified {
		rank, ok := rankByReg[regID]
		if !ok {
			continue
		}
		regID, rank := regID, rank
		g.Go(func() error {
			reg, err := s.regRepo.GetByID(gctx, regID)
			if err != nil {
				s.logger.Error("winner certificate skipped: registration lookup failed",
					slog.Int("registration_id", regID), slog.Any("error", err))
				return nil
			}
			memberIDs := []int{reg.RegisteredBy}
			for _, m := range reg.TeamMembers {
				if m.Status == models.MemberAccepted && m.UserID != nil {
					memberIDs = append(memberIDs, *m.UserID)
				}
			}
			for _, userID := range memberIDs {
				if err := s.certSvc.MarkWinner(gctx, reg, userID, finalRound, rank); err != nil {
					s.logger.Error("failed to mark winner certificate",
						slog.Int("registration_id", regID),
						slog.Int("user_id", userID),
						slog.Int("rank", rank),
						slog.Any("error", err))
				}
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *roundService) UnpublishResults(ctx context.Context, eventID, roundID int) (*models.Result, error) {
	if err := s.resultRepo.SetUnpublished(ctx, eventID, roundID); err != nil {
		switch {
		case errors.Is(err, repositories.ErrResultNotFound):
			return nil, ErrResultNotFound
		case errors.Is(err, repositories.ErrResultNotPublished):
			return nil, ErrResultNotPublished
		}
		return nil, err
	}
	if err := s.eventRepo.SetRoundResultsPublished(ctx, roundID, false); err != nil {
		return nil, err
	}
	return s.resultRepo.FindByEventAndRound(ctx, eventID, roundID)
}

func (s *roundService) DeleteResults(ctx context.Context, eventID, roundID int) error {
	if err := s.resultRepo.Delete(ctx, eventID, roundID); err != nil {
		if errors.Is(err, repositories.ErrResultNotFound) {
			return ErrResultNotFound
		}
		return err
	}
	// Deleting a published result reopens the round's gate.
	if err := s.eventRepo.SetRoundResultsPublished(ctx, roundID, false); err != nil && !errors.Is(err, repositories.ErrRoundNotFound) {
		return err
	}
	return nil
}

func (s *roundService) GetResults(ctx context.Context, eventID, roundID int) (*models.Result, error) {
	result, err := s.resultRepo.FindByEventAndRound(ctx, eventID, roundID)
	if err != nil {
		if errors.Is(err, repositories.ErrResultNotFound) {
			return nil, ErrResultNotFound
		}
		return nil, err
	}
	return result, nil
}

func (s *roundService) GetPublicResults(ctx context.Context, eventID, roundID int) (*models.Result, error) {
	result, err := s.resultRepo.FindByEventAndRound(ctx, eventID, roundID)
	if err != nil {
		if errors.Is(err, repositories.ErrResultNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !result.Published {
		return nil, nil
	}
	return result, nil
}

func (s *roundService) GetAllResultsByEvent(ctx context.Context, eventID int) ([]*models.Result, error) {
	if _, err := s.getEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.resultRepo.ListByEvent(ctx, eventID)
}

func (s *roundService) GetQualifiedTeams(ctx context.Context, eventID, roundID int) ([]*models.Registration, error) {
	result, err := s.resultRepo.FindByEventAndRound(ctx, eventID, roundID)
	if err != nil {
		if errors.Is(err, repositories.ErrResultNotFound) {
			return []*models.Registration{}, nil
		}
		return nil, err
	}
	// Draft qualification stays hidden until the result is published.
	if !result.Published {
		return []*models.Registration{}, nil
	}

	teams := make([]*models.Registration, 0, len(result.Qualified))
	for _, regID := range result.Qualified {
		reg, err := s.regRepo.GetByID(ctx, regID)
		if err != nil {
			if errors.Is(err, repositories.ErrRegistrationNotFound) {
				continue
			}
			return nil, err
		}
		teams = append(teams, reg)
	}
	return teams, nil
}

func (s *roundService) getEvent(ctx context.Context, eventID int) (*models.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event %d: %w", eventID, err)
	}
	return event, nil
}
