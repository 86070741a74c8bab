package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/balancepro/studio-server/internal/model"
)

type MemberSessionRepository interface {
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.MemberSession, error)
	Create(ctx context.Context, params model.CreateMemberSessionParams) (*model.MemberSession, error)
	DeleteByTokenHash(ctx context.Context, tokenHash string) error
	DeleteByMemberID(ctx context.Context, memberID string) error
	DeleteExpired(ctx context.Context) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) MemberSessionRepository
}

type memberSessionRepo struct {
	db sqlxDB
}

func NewMemberSessionRepository(db *sqlx.DB) MemberSessionRepository {
	return &memberSessionRepo{db: db}
}

func (r *memberSessionRepo) WithTx(tx *sqlx.Tx) MemberSessionRepository {
	return &memberSessionRepo{db: tx}
}

func (r *memberSessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.MemberSession, error) {
	var session model.MemberSession
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM member_sessions
		WHERE token_hash = $1 AND expires_at > NOW()
	`, tokenHash)
	return HandleNotFound(&session, err)
}

func (r *memberSessionRepo) Create(ctx context.Context, params model.CreateMemberSessionParams) (*model.MemberSession, error) {
	var session model.MemberSession
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO member_sessions (token_hash, member_id, role, display_name, phone, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`, params.TokenHash, params.MemberID, params.Role, params.DisplayName, params.Phone, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *memberSessionRepo) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM member_sessions WHERE token_hash = $1`, tokenHash)
	return err
}

func (r *memberSessionRepo) DeleteByMemberID(ctx context.Context, memberID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM member_sessions WHERE member_id = $1`, memberID)
	return err
}

func (r *memberSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM member_sessions WHERE expires_at < NOW()`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
