package handler

import (
	"time"

	"github.com/balancepro/studio-server/internal/model"
	"github.com/balancepro/studio-server/internal/service"
)

// liveView is what a member sees of the live class. Only the trainer gets
// the invite list itself.
type liveView struct {
	Live             bool       `json:"live"`
	RoomID           string     `json:"roomId,omitempty"`
	HostName         string     `json:"hostName,omitempty"`
	StartedAt        *time.Time `json:"startedAt,omitempty"`
	InvitedCount     int        `json:"invitedCount"`
	InvitedMemberIDs *[]string  `json:"invitedMemberIds,omitempty"`
	CanJoin          bool       `json:"canJoin"`
}

func newLiveView(member model.Member, state model.SessionState) liveView {
	if !state.IsLive() {
		return liveView{}
	}

	session := state.Session
	startedAt := session.StartedAt.UTC()
	view := liveView{
		Live:         true,
		RoomID:       session.RoomID,
		HostName:     session.HostName,
		StartedAt:    &startedAt,
		InvitedCount: session.InvitedMemberIDs.Len(),
		CanJoin:      member.IsTrainer() || service.CanJoin(member, state),
	}
	if member.IsTrainer() {
		ids := session.InvitedMemberIDs.IDs()
		view.InvitedMemberIDs = &ids
	}
	return view
}
