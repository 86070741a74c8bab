package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

type LiveStatus string

const LiveStatusLive LiveStatus = "live"

// InviteSet is an unordered set of member ids. It always encodes as a JSON
// array, never as null, so an empty invite list is distinguishable from a
// missing one on the wire.
type InviteSet map[string]struct{}

func NewInviteSet(ids ...string) InviteSet {
	s := make(InviteSet, len(ids))
	for _, id := range ids {
		if id != "" {
			s[id] = struct{}{}
		}
	}
	return s
}

func (s InviteSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

func (s InviteSet) Len() int {
	return len(s)
}

// IDs returns the members in sorted order.
func (s InviteSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns a copy that is never nil.
func (s InviteSet) Clone() InviteSet {
	return NewInviteSet(s.IDs()...)
}

func (s InviteSet) Equal(other InviteSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if !other.Contains(id) {
			return false
		}
	}
	return true
}

func (s InviteSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}

func (s *InviteSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewInviteSet(ids...)
	return nil
}

// LiveSession is the single active-class record shared by every client.
type LiveSession struct {
	RoomID           string
	Status           LiveStatus
	HostName         string
	StartedAt        time.Time
	InvitedMemberIDs InviteSet
}

// liveSessionRecord is the stored shape of the active_class record.
type liveSessionRecord struct {
	MeetingID   string     `json:"meetingId"`
	Status      LiveStatus `json:"status"`
	TrainerName string     `json:"trainerName"`
	StartTime   int64      `json:"startTime"`
	InvitedUIDs InviteSet  `json:"invitedUids"`
}

// Encode renders the session in its stored shape.
func (s LiveSession) Encode() ([]byte, error) {
	invites := s.InvitedMemberIDs
	if invites == nil {
		invites = NewInviteSet()
	}
	return json.Marshal(liveSessionRecord{
		MeetingID:   s.RoomID,
		Status:      s.Status,
		TrainerName: s.HostName,
		StartTime:   s.StartedAt.UnixMilli(),
		InvitedUIDs: invites,
	})
}

type SessionKind int

const (
	SessionIdle SessionKind = iota
	SessionLive
)

func (k SessionKind) String() string {
	if k == SessionLive {
		return "live"
	}
	return "idle"
}

// SessionState is the decoded view of the live path: either Idle or Live
// with the session. A missing record is Idle.
type SessionState struct {
	Kind    SessionKind
	Session LiveSession
}

func IdleState() SessionState {
	return SessionState{Kind: SessionIdle}
}

func LiveState(s LiveSession) SessionState {
	if s.InvitedMemberIDs == nil {
		s.InvitedMemberIDs = NewInviteSet()
	}
	return SessionState{Kind: SessionLive, Session: s}
}

func (s SessionState) IsLive() bool {
	return s.Kind == SessionLive
}

// DecodeSessionState turns a raw stored value into a SessionState. A nil
// value, or a record whose status is not live, is Idle.
func DecodeSessionState(raw []byte) (SessionState, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return IdleState(), nil
	}

	var rec liveSessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return IdleState(), fmt.Errorf("decode live session: %w", err)
	}
	if rec.Status != LiveStatusLive {
		return IdleState(), nil
	}

	return LiveState(LiveSession{
		RoomID:           rec.MeetingID,
		Status:           rec.Status,
		HostName:         rec.TrainerName,
		StartedAt:        time.UnixMilli(rec.StartTime),
		InvitedMemberIDs: rec.InvitedUIDs,
	}), nil
}
