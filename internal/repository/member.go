package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/balancepro/studio-server/internal/model"
)

type MemberRepository interface {
	FindByID(ctx context.Context, id string) (*model.Member, error)
	FindAll(ctx context.Context) ([]model.Member, error)
	// Create returns nil without error when a member with the same id exists.
	Create(ctx context.Context, params model.CreateMemberParams) (*model.Member, error)
	UpdateSecret(ctx context.Context, id, secretHash string) error
	Delete(ctx context.Context, id string) error
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) MemberRepository
}

// sqlxDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type sqlxDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type memberRepo struct {
	db sqlxDB
}

func NewMemberRepository(db *sqlx.DB) MemberRepository {
	return &memberRepo{db: db}
}

func (r *memberRepo) WithTx(tx *sqlx.Tx) MemberRepository {
	return &memberRepo{db: tx}
}

func (r *memberRepo) FindByID(ctx context.Context, id string) (*model.Member, error) {
	var member model.Member
	err := r.db.GetContext(ctx, &member, `
		SELECT * FROM members WHERE id = $1
	`, id)
	return HandleNotFound(&member, err)
}

func (r *memberRepo) FindAll(ctx context.Context) ([]model.Member, error) {
	var members []model.Member
	err := r.db.SelectContext(ctx, &members, `
		SELECT * FROM members
		ORDER BY registered_at DESC
	`)
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *memberRepo) Create(ctx context.Context, params model.CreateMemberParams) (*model.Member, error) {
	var member model.Member
	err := r.db.GetContext(ctx, &member, `
		INSERT INTO members (id, display_name, phone, role, access_secret_hash)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
		RETURNING *
	`, model.MemberIDForPhone(params.Phone), params.DisplayName, model.NormalizePhone(params.Phone),
		model.RoleClient, params.AccessSecretHash)
	return HandleNotFound(&member, err)
}

func (r *memberRepo) UpdateSecret(ctx context.Context, id, secretHash string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE members SET access_secret_hash = $2 WHERE id = $1
	`, id, secretHash)
	return err
}

func (r *memberRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM members WHERE id = $1`, id)
	return err
}
