package model

import "time"

// ScheduledClass is a future class with a pre-committed invite list. It is
// not consumed when launched.
type ScheduledClass struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	ScheduledAt      time.Time `json:"timestamp"`
	DisplayTime      string    `json:"time"`
	HostName         string    `json:"trainer"`
	InvitedMemberIDs InviteSet `json:"invitedUids"`
	CreatedAt        time.Time `json:"createdAt"`
}

type CreateScheduledClassParams struct {
	ID               string
	Title            string
	ScheduledAt      time.Time
	DisplayTime      string
	HostName         string
	InvitedMemberIDs InviteSet
}
