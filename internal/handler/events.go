package handler

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/balancepro/studio-server/internal/config"
	apperrors "github.com/balancepro/studio-server/internal/errors"
	"github.com/balancepro/studio-server/internal/httputil"
	"github.com/balancepro/studio-server/internal/middleware"
	"github.com/balancepro/studio-server/internal/service"
	"github.com/balancepro/studio-server/internal/sse"
)

const (
	eventSession = "session"
	eventRevoked = "revoked"
)

// EventsHandler streams the live class to one member. Every change sends a
// session event; losing the right to join also sends a revoked event first.
type EventsHandler struct {
	live      *service.LiveSessionService
	heartbeat time.Duration
}

func NewEventsHandler(live *service.LiveSessionService) *EventsHandler {
	return &EventsHandler{
		live:      live,
		heartbeat: config.EventHeartbeatInterval,
	}
}

// GET /v1/live/events
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	member := middleware.GetMember(r.Context())
	if member == nil {
		httputil.WriteError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	ctx := r.Context()
	feed, err := h.live.Observe(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	defer feed.Close()

	stream, ok := sse.Open(w)
	if !ok {
		httputil.WriteError(w, apperrors.Internal("Streaming not supported"))
		return
	}

	log.Info().
		Str("memberId", member.ID).
		Msg("sse connection established")

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	var last liveView
	for {
		select {
		case <-ctx.Done():
			log.Info().
				Str("memberId", member.ID).
				Msg("sse connection closed by client")
			return

		case state, ok := <-feed.Updates():
			if !ok {
				log.Info().
					Str("memberId", member.ID).
					Msg("sse connection closed by store")
				return
			}

			view := newLiveView(*member, state)
			if last.CanJoin && (!view.CanJoin || view.RoomID != last.RoomID) {
				if err := stream.SendJSON(eventRevoked, map[string]string{"roomId": last.RoomID}); err != nil {
					log.Error().Err(err).Msg("failed to send event")
					return
				}
			}
			if err := stream.SendJSON(eventSession, view); err != nil {
				log.Error().Err(err).Msg("failed to send event")
				return
			}
			last = view

		case <-heartbeat.C:
			if err := stream.Ping(); err != nil {
				log.Debug().
					Str("memberId", member.ID).
					Msg("heartbeat failed, closing connection")
				return
			}
		}
	}
}
