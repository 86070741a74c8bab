package service

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"

	"github.com/balancepro/studio-server/internal/database"
	"github.com/balancepro/studio-server/internal/model"
	"github.com/balancepro/studio-server/internal/repository"
)

type mockScheduleRepo struct {
	mock.Mock
}

func (m *mockScheduleRepo) FindByID(ctx context.Context, id string) (*model.ScheduledClass, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScheduledClass), args.Error(1)
}

func (m *mockScheduleRepo) List(ctx context.Context) ([]model.ScheduledClass, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ScheduledClass), args.Error(1)
}

func (m *mockScheduleRepo) Create(ctx context.Context, params model.CreateScheduledClassParams) (*model.ScheduledClass, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScheduledClass), args.Error(1)
}

func (m *mockScheduleRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockMemberRepo struct {
	mock.Mock
}

func (m *mockMemberRepo) FindByID(ctx context.Context, id string) (*model.Member, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Member), args.Error(1)
}

func (m *mockMemberRepo) FindAll(ctx context.Context) ([]model.Member, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Member), args.Error(1)
}

func (m *mockMemberRepo) Create(ctx context.Context, params model.CreateMemberParams) (*model.Member, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Member), args.Error(1)
}

func (m *mockMemberRepo) UpdateSecret(ctx context.Context, id, secretHash string) error {
	args := m.Called(ctx, id, secretHash)
	return args.Error(0)
}

func (m *mockMemberRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockMemberRepo) WithTx(tx *sqlx.Tx) repository.MemberRepository {
	return m
}

type mockDietRepo struct {
	mock.Mock
}

func (m *mockDietRepo) FindByMemberID(ctx context.Context, memberID string) (*model.DietPrescription, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DietPrescription), args.Error(1)
}

func (m *mockDietRepo) Upsert(ctx context.Context, params model.PrescribeDietParams) (*model.DietPrescription, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DietPrescription), args.Error(1)
}

func (m *mockDietRepo) DeleteByMemberID(ctx context.Context, memberID string) error {
	args := m.Called(ctx, memberID)
	return args.Error(0)
}

func (m *mockDietRepo) WithTx(tx *sqlx.Tx) repository.DietRepository {
	return m
}

type mockMemberSessionRepo struct {
	mock.Mock
}

func (m *mockMemberSessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.MemberSession, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MemberSession), args.Error(1)
}

func (m *mockMemberSessionRepo) Create(ctx context.Context, params model.CreateMemberSessionParams) (*model.MemberSession, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MemberSession), args.Error(1)
}

func (m *mockMemberSessionRepo) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	args := m.Called(ctx, tokenHash)
	return args.Error(0)
}

func (m *mockMemberSessionRepo) DeleteByMemberID(ctx context.Context, memberID string) error {
	args := m.Called(ctx, memberID)
	return args.Error(0)
}

func (m *mockMemberSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockMemberSessionRepo) WithTx(tx *sqlx.Tx) repository.MemberSessionRepository {
	return m
}

// inlineTx runs the transaction body without a database.
type inlineTx struct {
	calls int
}

func (r *inlineTx) WithTx(ctx context.Context, fn database.TxFunc) error {
	r.calls++
	return fn(nil)
}
