package model

import (
	"strings"
	"time"
)

type Role string

const (
	RoleTrainer Role = "trainer"
	RoleClient  Role = "client"
)

const memberIDPrefix = "user_"

// Member is a studio identity. Clients are stored in the directory; the
// trainer is synthesized at login and never stored.
type Member struct {
	ID               string    `db:"id" json:"uid"`
	DisplayName      string    `db:"display_name" json:"name"`
	Phone            string    `db:"phone" json:"phone"`
	Role             Role      `db:"role" json:"role"`
	RegisteredAt     time.Time `db:"registered_at" json:"registeredOn"`
	AccessSecretHash *string   `db:"access_secret_hash" json:"-"`
}

func (m Member) IsTrainer() bool {
	return m.Role == RoleTrainer
}

type CreateMemberParams struct {
	DisplayName      string
	Phone            string
	AccessSecretHash string
}

// NormalizePhone strips whitespace and separators so the derived member id
// is stable regardless of how the number was typed.
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(phone))
}

// MemberIDForPhone derives the stable member id for a phone number.
func MemberIDForPhone(phone string) string {
	return memberIDPrefix + NormalizePhone(phone)
}
