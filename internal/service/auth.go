package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/balancepro/studio-server/internal/errors"
	"github.com/balancepro/studio-server/internal/model"
	"github.com/balancepro/studio-server/internal/repository"
	"github.com/balancepro/studio-server/internal/util"
)

type TrainerIdentity struct {
	Phone      string
	Name       string
	SecretHash string
}

type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	Member    model.Member `json:"member"`
}

// AuthService signs members in with phone number and access code. The
// trainer is recognized by phone number and never stored as a member.
type AuthService struct {
	memberRepo  repository.MemberRepository
	sessionRepo repository.MemberSessionRepository
	trainer     TrainerIdentity
	sessionTTL  time.Duration
	now         func() time.Time
}

func NewAuthService(
	memberRepo repository.MemberRepository,
	sessionRepo repository.MemberSessionRepository,
	trainer TrainerIdentity,
	sessionTTL time.Duration,
) *AuthService {
	trainer.Phone = model.NormalizePhone(trainer.Phone)
	return &AuthService{
		memberRepo:  memberRepo,
		sessionRepo: sessionRepo,
		trainer:     trainer,
		sessionTTL:  sessionTTL,
		now:         time.Now,
	}
}

func (s *AuthService) Login(ctx context.Context, phone, secret string) (*LoginResult, error) {
	phone = model.NormalizePhone(phone)
	if phone == "" {
		return nil, apperrors.MissingRequired("phone")
	}

	member, err := s.identify(ctx, phone, secret)
	if err != nil {
		return nil, err
	}

	token, err := util.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	expiresAt := s.now().Add(s.sessionTTL)

	_, err = s.sessionRepo.Create(ctx, model.CreateMemberSessionParams{
		TokenHash:   util.HashToken(token),
		MemberID:    member.ID,
		Role:        member.Role,
		DisplayName: member.DisplayName,
		Phone:       member.Phone,
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	log.Info().
		Str("memberId", member.ID).
		Str("role", string(member.Role)).
		Msg("member logged in")

	return &LoginResult{Token: token, ExpiresAt: expiresAt, Member: *member}, nil
}

func (s *AuthService) identify(ctx context.Context, phone, secret string) (*model.Member, error) {
	if util.ConstantTimeEqual(phone, s.trainer.Phone) {
		if s.trainer.SecretHash != "" && !util.CheckSecretHash(secret, s.trainer.SecretHash) {
			return nil, apperrors.InvalidCredentials()
		}
		return &model.Member{
			ID:          model.MemberIDForPhone(phone),
			DisplayName: s.trainer.Name,
			Phone:       phone,
			Role:        model.RoleTrainer,
		}, nil
	}

	member, err := s.memberRepo.FindByID(ctx, model.MemberIDForPhone(phone))
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if member == nil || member.AccessSecretHash == nil {
		return nil, apperrors.InvalidCredentials()
	}
	if !util.CheckSecretHash(secret, *member.AccessSecretHash) {
		return nil, apperrors.InvalidCredentials()
	}
	return member, nil
}

// Authenticate resolves a bearer token to the member it was issued to.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.Member, error) {
	if token == "" {
		return nil, apperrors.Unauthorized("Missing authentication token")
	}

	session, err := s.sessionRepo.FindByTokenHash(ctx, util.HashToken(token))
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil {
		return nil, apperrors.Unauthorized("Invalid or expired session")
	}

	member := session.Member()
	return &member, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	if err := s.sessionRepo.DeleteByTokenHash(ctx, util.HashToken(token)); err != nil {
		return apperrors.Database(err)
	}
	return nil
}
