package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/balancepro/studio-server/internal/errors"
	"github.com/balancepro/studio-server/internal/model"
	"github.com/balancepro/studio-server/internal/repository"
)

const scheduleDisplayLayout = "2 Jan 2006, 3:04 PM"

type sessionLauncher interface {
	GoLive(ctx context.Context, invites model.InviteSet, roomID string) (string, error)
}

// ScheduleService keeps future classes and promotes them to live sessions.
type ScheduleService struct {
	repo     repository.ScheduleRepository
	live     sessionLauncher
	hostName string
	location *time.Location
}

func NewScheduleService(
	repo repository.ScheduleRepository,
	live sessionLauncher,
	hostName string,
	location *time.Location,
) *ScheduleService {
	if location == nil {
		location = time.UTC
	}
	return &ScheduleService{
		repo:     repo,
		live:     live,
		hostName: hostName,
		location: location,
	}
}

func (s *ScheduleService) Schedule(ctx context.Context, title string, scheduledAt time.Time, invites model.InviteSet) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", apperrors.ValidationError("title must not be empty")
	}
	if scheduledAt.IsZero() {
		return "", apperrors.ValidationError("scheduledAt is required")
	}

	class, err := s.repo.Create(ctx, model.CreateScheduledClassParams{
		ID:               uuid.NewString(),
		Title:            title,
		ScheduledAt:      scheduledAt,
		DisplayTime:      scheduledAt.In(s.location).Format(scheduleDisplayLayout),
		HostName:         s.hostName,
		InvitedMemberIDs: invites.Clone(),
	})
	if err != nil {
		return "", apperrors.Database(err)
	}

	log.Info().
		Str("scheduleId", class.ID).
		Str("title", class.Title).
		Time("scheduledAt", class.ScheduledAt).
		Int("inviteCount", class.InvitedMemberIDs.Len()).
		Msg("class scheduled")

	return class.ID, nil
}

// Launch takes a scheduled class live, using its id as the room id. The
// scheduled class itself is left in place.
func (s *ScheduleService) Launch(ctx context.Context, id string) (string, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return "", apperrors.Database(err)
	}
	if class == nil {
		return "", apperrors.NotFound("Scheduled class")
	}
	if class.InvitedMemberIDs.Len() == 0 {
		return "", apperrors.EmptyInviteList()
	}

	roomID, err := s.live.GoLive(ctx, class.InvitedMemberIDs, class.ID)
	if err != nil {
		return "", err
	}

	log.Info().
		Str("scheduleId", class.ID).
		Str("roomId", roomID).
		Msg("scheduled class launched")

	return roomID, nil
}

// Remove deletes a scheduled class. Removing an unknown id is not an error.
func (s *ScheduleService) Remove(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return apperrors.Database(err)
	}
	return nil
}

func (s *ScheduleService) List(ctx context.Context) ([]model.ScheduledClass, error) {
	classes, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return classes, nil
}
