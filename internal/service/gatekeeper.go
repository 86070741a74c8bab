package service

import "github.com/balancepro/studio-server/internal/model"

// CanJoin reports whether member may enter the class described by state.
func CanJoin(member model.Member, state model.SessionState) bool {
	if !state.IsLive() || state.Session.Status != model.LiveStatusLive {
		return false
	}
	return state.Session.InvitedMemberIDs.Contains(member.ID)
}
