package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/balancepro/studio-server/internal/errors"
	"github.com/balancepro/studio-server/internal/model"
	"github.com/balancepro/studio-server/internal/store"
	"github.com/balancepro/studio-server/internal/stream"
)

const roomIDPrefix = "BPStudio"

// LiveSessionService owns the single live class record. Every write replaces
// the whole record; there is no field-level merge.
//
// UpdateInvites and ToggleInvite are read-modify-write. Two trainers editing
// invites at the same time can lose one edit: the last full write wins.
type LiveSessionService struct {
	store     store.Store
	hostName  string
	now       func() time.Time
	newRoomID func() string
}

func NewLiveSessionService(s store.Store, hostName string) *LiveSessionService {
	return &LiveSessionService{
		store:     s,
		hostName:  hostName,
		now:       time.Now,
		newRoomID: generateRoomID,
	}
}

// generateRoomID returns BPStudio<unix-ms><random hex>.
func generateRoomID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	return fmt.Sprintf("%s%d%s", roomIDPrefix, time.Now().UnixMilli(), suffix)
}

// GoLive starts a class, replacing any class that is already live. An empty
// roomID gets a freshly generated one.
func (s *LiveSessionService) GoLive(ctx context.Context, invites model.InviteSet, roomID string) (string, error) {
	if roomID == "" {
		roomID = s.newRoomID()
	}

	session := model.LiveSession{
		RoomID:           roomID,
		Status:           model.LiveStatusLive,
		HostName:         s.hostName,
		StartedAt:        s.now(),
		InvitedMemberIDs: invites.Clone(),
	}
	if err := s.write(ctx, session); err != nil {
		return "", err
	}

	log.Info().
		Str("roomId", roomID).
		Int("inviteCount", session.InvitedMemberIDs.Len()).
		Msg("live class started")

	return roomID, nil
}

// UpdateInvites replaces the invite set of the running class.
func (s *LiveSessionService) UpdateInvites(ctx context.Context, invites model.InviteSet) error {
	state, err := s.Current(ctx)
	if err != nil {
		return err
	}
	if !state.IsLive() {
		return apperrors.NoActiveSession()
	}

	session := state.Session
	session.InvitedMemberIDs = invites.Clone()
	if err := s.write(ctx, session); err != nil {
		return err
	}

	log.Info().
		Str("roomId", session.RoomID).
		Int("inviteCount", session.InvitedMemberIDs.Len()).
		Msg("live class invites updated")

	return nil
}

// ToggleInvite adds memberID to the running class, or removes it if it was
// already invited. It returns the resulting invite set.
func (s *LiveSessionService) ToggleInvite(ctx context.Context, memberID string) (model.InviteSet, error) {
	if memberID == "" {
		return nil, apperrors.MissingRequired("memberId")
	}

	state, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	if !state.IsLive() {
		return nil, apperrors.NoActiveSession()
	}

	invites := state.Session.InvitedMemberIDs.Clone()
	if invites.Contains(memberID) {
		delete(invites, memberID)
	} else {
		invites[memberID] = struct{}{}
	}

	if err := s.UpdateInvites(ctx, invites); err != nil {
		return nil, err
	}
	return invites, nil
}

// EndSession removes the live record. Ending an idle studio is a no-op.
func (s *LiveSessionService) EndSession(ctx context.Context) error {
	if err := s.store.Delete(ctx, store.PathLiveSession); err != nil {
		return apperrors.StoreUnavailable(err)
	}
	log.Info().Msg("live class ended")
	return nil
}

func (s *LiveSessionService) Current(ctx context.Context) (model.SessionState, error) {
	raw, err := s.store.Get(ctx, store.PathLiveSession)
	if err != nil {
		return model.IdleState(), apperrors.StoreUnavailable(err)
	}
	state, err := model.DecodeSessionState(raw)
	if err != nil {
		return model.IdleState(), apperrors.Internal("stored live class is unreadable").WithCause(err)
	}
	return state, nil
}

func (s *LiveSessionService) write(ctx context.Context, session model.LiveSession) error {
	raw, err := session.Encode()
	if err != nil {
		return apperrors.Internal("failed to encode live class").WithCause(err)
	}
	if err := s.store.Write(ctx, store.PathLiveSession, raw); err != nil {
		return apperrors.StoreUnavailable(err)
	}
	return nil
}

// Observe subscribes to the live record. The first state on the feed is the
// state at subscribe time. The feed stops when ctx is cancelled or Close is
// called.
func (s *LiveSessionService) Observe(ctx context.Context) (*SessionFeed, error) {
	feed := stream.NewFeed[model.SessionState]()

	unsubscribe, err := s.store.Subscribe(ctx, store.PathLiveSession, func(raw []byte) {
		state, err := model.DecodeSessionState(raw)
		if err != nil {
			log.Error().Err(err).Msg("skipping unreadable live class record")
			return
		}
		feed.Publish(state)
	})
	if err != nil {
		feed.Close()
		return nil, apperrors.StoreUnavailable(err)
	}

	sf := &SessionFeed{feed: feed, unsubscribe: unsubscribe}
	go func() {
		select {
		case <-ctx.Done():
			sf.Close()
		case <-feed.Done():
		}
	}()
	return sf, nil
}

// SessionFeed is a cancellable stream of live class states. Each state is a
// full replacement. A slow reader skips to the newest state.
type SessionFeed struct {
	feed        *stream.Feed[model.SessionState]
	unsubscribe store.Unsubscribe
	once        sync.Once
}

// Updates is closed once the feed stops.
func (f *SessionFeed) Updates() <-chan model.SessionState {
	return f.feed.C()
}

// Close stops the subscription. No state is delivered after it returns.
func (f *SessionFeed) Close() {
	f.once.Do(func() {
		f.unsubscribe()
		f.feed.Close()
	})
}
