package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/balancepro/studio-server/internal/conference"
	"github.com/balancepro/studio-server/internal/config"
	apperrors "github.com/balancepro/studio-server/internal/errors"
	"github.com/balancepro/studio-server/internal/model"
)

const joinAttempts = 3

type liveObserver interface {
	Current(ctx context.Context) (model.SessionState, error)
	Observe(ctx context.Context) (*SessionFeed, error)
}

type attendee struct {
	member model.Member
	handle *conference.Handle
}

// AttendanceService hands members into the conferencing room and takes
// them out again as soon as they stop being eligible.
type AttendanceService struct {
	live    liveObserver
	adapter conference.Adapter

	retryMin time.Duration
	retryMax time.Duration

	mu        sync.Mutex
	attendees map[string]*attendee
}

func NewAttendanceService(live liveObserver, adapter conference.Adapter) *AttendanceService {
	return &AttendanceService{
		live:      live,
		adapter:   adapter,
		retryMin:  config.AttendanceRetryMin,
		retryMax:  config.AttendanceRetryMax,
		attendees: make(map[string]*attendee),
	}
}

// Join admits member to the running class. The trainer hosts the class and
// does not need an invite.
func (s *AttendanceService) Join(ctx context.Context, member model.Member) (*conference.JoinInfo, error) {
	for range joinAttempts {
		info, retry, err := s.join(ctx, member)
		if !retry {
			return info, err
		}
	}
	return nil, apperrors.NoActiveSession()
}

// join reports retry when the class moved to another room while the member
// was being admitted.
func (s *AttendanceService) join(ctx context.Context, member model.Member) (*conference.JoinInfo, bool, error) {
	state, err := s.live.Current(ctx)
	if err != nil {
		return nil, false, err
	}
	if err := joinError(member, state); err != nil {
		return nil, false, err
	}

	roomID := state.Session.RoomID

	s.mu.Lock()
	current, ok := s.attendees[member.ID]
	if ok && current.handle.RoomID == roomID && !current.handle.Left() {
		s.mu.Unlock()
		info := current.handle.Info
		return &info, false, nil
	}

	handle, err := s.adapter.JoinRoom(roomID, conference.ParticipantName(member.DisplayName, member.IsTrainer()))
	if err != nil {
		s.mu.Unlock()
		return nil, false, apperrors.External("conference", err)
	}
	a := &attendee{member: member, handle: handle}
	s.attendees[member.ID] = a
	s.mu.Unlock()

	// OnLeft callbacks take s.mu, so handles are only left outside it.
	if ok {
		current.handle.Leave()
	}
	handle.OnLeft(func() { s.forget(member.ID, handle) })

	// A revocation may have run between the read above and the insert. Any
	// later one sees this attendee, so one fresh read settles it.
	latest, err := s.live.Current(ctx)
	if err == nil {
		err = joinError(member, latest)
	}
	if err != nil {
		handle.Leave()
		return nil, false, err
	}
	if !s.stillAdmitted(a, latest) {
		handle.Leave()
		return nil, true, nil
	}

	log.Info().
		Str("memberId", member.ID).
		Str("roomId", roomID).
		Msg("member joined live class")

	info := handle.Info
	return &info, false, nil
}

func joinError(member model.Member, state model.SessionState) error {
	if !state.IsLive() {
		return apperrors.NoActiveSession()
	}
	if !member.IsTrainer() && !CanJoin(member, state) {
		return apperrors.NotInvited()
	}
	return nil
}

// Leave takes member out of the room. It reports whether they were in it.
func (s *AttendanceService) Leave(memberID string) bool {
	s.mu.Lock()
	current, ok := s.attendees[memberID]
	if ok {
		delete(s.attendees, memberID)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	current.handle.Leave()
	log.Info().Str("memberId", memberID).Msg("member left live class")
	return true
}

func (s *AttendanceService) forget(memberID string, handle *conference.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.attendees[memberID]; ok && current.handle == handle {
		delete(s.attendees, memberID)
	}
}

// Revoke removes every attendee that may no longer be in the room under
// state and returns their ids.
func (s *AttendanceService) Revoke(state model.SessionState) []string {
	var revoked []*attendee

	s.mu.Lock()
	for id, a := range s.attendees {
		if s.stillAdmitted(a, state) {
			continue
		}
		delete(s.attendees, id)
		revoked = append(revoked, a)
	}
	s.mu.Unlock()

	ids := make([]string, 0, len(revoked))
	for _, a := range revoked {
		a.handle.Leave()
		ids = append(ids, a.member.ID)
	}

	if len(ids) > 0 {
		log.Info().
			Strs("memberIds", ids).
			Str("state", state.Kind.String()).
			Msg("revoked live class attendance")
	}
	return ids
}

func (s *AttendanceService) stillAdmitted(a *attendee, state model.SessionState) bool {
	if !state.IsLive() || state.Session.RoomID != a.handle.RoomID {
		return false
	}
	return a.member.IsTrainer() || CanJoin(a.member, state)
}

// Attendees returns the ids of members currently in the room.
func (s *AttendanceService) Attendees() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.attendees))
	for id := range s.attendees {
		ids = append(ids, id)
	}
	return ids
}

// Watch re-evaluates attendance on every live class change until ctx is
// done. A failed subscription is retried with backoff.
func (s *AttendanceService) Watch(ctx context.Context) {
	delay := s.retryMin
	for {
		feed, err := s.live.Observe(ctx)
		if err != nil {
			log.Warn().Err(err).Dur("retryIn", delay).Msg("attendance watcher could not subscribe")
		} else {
			delay = s.retryMin
			log.Info().Msg("attendance watcher started")
			for state := range feed.Updates() {
				s.Revoke(state)
			}
			feed.Close()
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("attendance watcher stopped")
			return
		case <-time.After(delay):
		}
		delay = min(delay*2, s.retryMax)
	}
}
