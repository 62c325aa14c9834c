package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/blackbirdcodelabs/jnanagni-backend/models"
	"github.com/blackbirdcodelabs/jnanagni-backend/repositories"
)

type CreateEventInput struct {
	Name               string     `json:"name"`
	Slug               string     `json:"slug"`
	Description        string     `json:"description"`
	Venue              string     `json:"venue"`
	Date               *time.Time `json:"date"`
	ParticipationType  string     `json:"participation_type"`
	MinTeamSize        int        `json:"min_team_size"`
	MaxTeamSize        int        `json:"max_team_size"`
	MaxRegistrations   int        `json:"max_registrations"`
	IsRegistrationOpen bool       `json:"is_registration_open"`
}

type EventService interface {
	Create(ctx context.Context, createdBy int, input CreateEventInput) (*models.Event, error)
	GetByID(ctx context.Context, id int) (*models.Event, error)
	List(ctx context.Context) ([]*models.Event, error)
	SetRegistrationOpen(ctx context.Context, id int, open bool) (*models.Event, error)
}

type eventService struct {
	eventRepo repositories.EventRepository
}

func NewEventService(eventRepo repositories.EventRepository) EventService {
	return &eventService{eventRepo: eventRepo}
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(slug, "-")
}

func (s *eventService) Create(ctx context.Context, createdBy int, input CreateEventInput) (*models.Event, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, fmt.Errorf("%w: event name is required", ErrValidationFailed)
	}

	participation := models.ParticipationType(input.ParticipationType)
	switch participation {
	case models.ParticipationSolo, models.ParticipationGroup:
	case "":
		participation = models.ParticipationSolo
	default:
		return nil, fmt.Errorf("%w: participation type must be solo or group", ErrValidationFailed)
	}

	minSize, maxSize := input.MinTeamSize, input.MaxTeamSize
	if participation == models.ParticipationSolo {
		minSize, maxSize = 1, 1
	} else {
		if minSize < 1 {
			minSize = 1
		}
		if maxSize < minSize {
			return nil, fmt.Errorf("%w: max team size must be at least the min team size", ErrValidationFailed)
		}
	}
	if input.MaxRegistrations < 0 {
		return nil, fmt.Errorf("%w: max registrations cannot be negative", ErrValidationFailed)
	}

	slug := input.Slug
	if slug == "" {
		slug = slugify(input.Name)
	}

	event := &models.Event{
		Name:               input.Name,
		Slug:               slug,
		Date:               input.Date,
		ParticipationType:  participation,
		MinTeamSize:        minSize,
		MaxTeamSize:        maxSize,
		MaxRegistrations:   input.MaxRegistrations,
		IsRegistrationOpen: input.IsRegistrationOpen,
		CreatedBy:          createdBy,
	}
	if input.Description != "" {
		event.Description = &input.Description
	}
	if input.Venue != "" {
		event.Venue = &input.Venue
	}

	if err := s.eventRepo.Create(ctx, event); err != nil {
		if errors.Is(err, repositories.ErrEventSlugConflict) {
			return nil, fmt.Errorf("%w: slug %q is already in use", ErrValidationFailed, slug)
		}
		return nil, err
	}
	event.Rounds = []models.Round{}
	return event, nil
}

func (s *eventService) GetByID(ctx context.Context, id int) (*models.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event %d: %w", id, err)
	}
	return event, nil
}

func (s *eventService) List(ctx context.Context) ([]*models.Event, error) {
	return s.eventRepo.List(ctx)
}

func (s *eventService) SetRegistrationOpen(ctx context.Context, id int, open bool) (*models.Event, error) {
	if err := s.eventRepo.SetRegistrationOpen(ctx, id, open); err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return s.GetByID(ctx, id)
}
