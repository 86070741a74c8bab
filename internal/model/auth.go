package model

import "time"

// MemberSession is a login token issued to a member or the trainer.
type MemberSession struct {
	ID          string    `db:"id" json:"id"`
	TokenHash   string    `db:"token_hash" json:"-"`
	MemberID    string    `db:"member_id" json:"memberId"`
	Role        Role      `db:"role" json:"role"`
	DisplayName string    `db:"display_name" json:"name"`
	Phone       string    `db:"phone" json:"phone"`
	ExpiresAt   time.Time `db:"expires_at" json:"expiresAt"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

type CreateMemberSessionParams struct {
	TokenHash   string
	MemberID    string
	Role        Role
	DisplayName string
	Phone       string
	ExpiresAt   time.Time
}

// Member rebuilds the identity carried by the session.
func (s MemberSession) Member() Member {
	return Member{
		ID:          s.MemberID,
		DisplayName: s.DisplayName,
		Phone:       s.Phone,
		Role:        s.Role,
	}
}
