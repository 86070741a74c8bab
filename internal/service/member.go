package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/balancepro/studio-server/internal/database"
	apperrors "github.com/balancepro/studio-server/internal/errors"
	"github.com/balancepro/studio-server/internal/model"
	"github.com/balancepro/studio-server/internal/repository"
	"github.com/balancepro/studio-server/internal/util"
)

type txRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

// DirectoryService manages the members the trainer has registered.
type DirectoryService struct {
	db           txRunner
	memberRepo   repository.MemberRepository
	dietRepo     repository.DietRepository
	sessionRepo  repository.MemberSessionRepository
	trainerPhone string
}

func NewDirectoryService(
	db txRunner,
	memberRepo repository.MemberRepository,
	dietRepo repository.DietRepository,
	sessionRepo repository.MemberSessionRepository,
	trainerPhone string,
) *DirectoryService {
	return &DirectoryService{
		db:           db,
		memberRepo:   memberRepo,
		dietRepo:     dietRepo,
		sessionRepo:  sessionRepo,
		trainerPhone: model.NormalizePhone(trainerPhone),
	}
}

func (s *DirectoryService) Register(ctx context.Context, name, phone, secret string) (*model.Member, error) {
	name = strings.TrimSpace(name)
	phone = model.NormalizePhone(phone)

	if name == "" {
		return nil, apperrors.MissingRequired("name")
	}
	if phone == "" {
		return nil, apperrors.MissingRequired("phone")
	}
	if !util.IsValidPhone(phone) {
		return nil, apperrors.ValidationError("phone must be 7 to 15 digits")
	}
	if phone == s.trainerPhone {
		return nil, apperrors.ValidationError("phone belongs to the trainer")
	}
	if secret == "" {
		return nil, apperrors.MissingRequired("accessCode")
	}

	hash, err := util.HashSecret(secret)
	if err != nil {
		return nil, fmt.Errorf("hash access code: %w", err)
	}

	member, err := s.memberRepo.Create(ctx, model.CreateMemberParams{
		DisplayName:      name,
		Phone:            phone,
		AccessSecretHash: hash,
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if member == nil {
		return nil, apperrors.AlreadyExists("Member")
	}

	log.Info().
		Str("memberId", member.ID).
		Str("phone", util.MaskPhone(member.Phone)).
		Msg("member registered")

	return member, nil
}

func (s *DirectoryService) List(ctx context.Context) ([]model.Member, error) {
	members, err := s.memberRepo.FindAll(ctx)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if members == nil {
		members = []model.Member{}
	}
	return members, nil
}

func (s *DirectoryService) Get(ctx context.Context, id string) (*model.Member, error) {
	member, err := s.memberRepo.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if member == nil {
		return nil, apperrors.NotFound("Member")
	}
	return member, nil
}

// ReissueSecret replaces the member's access code and signs out every device
// that logged in with the old one.
func (s *DirectoryService) ReissueSecret(ctx context.Context, id, secret string) error {
	if secret == "" {
		return apperrors.MissingRequired("accessCode")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	hash, err := util.HashSecret(secret)
	if err != nil {
		return fmt.Errorf("hash access code: %w", err)
	}

	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.memberRepo.WithTx(tx).UpdateSecret(ctx, id, hash); err != nil {
			return fmt.Errorf("update secret: %w", err)
		}
		if err := s.sessionRepo.WithTx(tx).DeleteByMemberID(ctx, id); err != nil {
			return fmt.Errorf("delete sessions: %w", err)
		}
		return nil
	})
	if err != nil {
		return apperrors.Database(err)
	}

	log.Info().Str("memberId", id).Msg("member access code reissued")
	return nil
}

// Delete removes the member together with its diet prescription and login
// sessions. Deleting an unknown member is not an error.
func (s *DirectoryService) Delete(ctx context.Context, id string) error {
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.dietRepo.WithTx(tx).DeleteByMemberID(ctx, id); err != nil {
			return fmt.Errorf("delete diet: %w", err)
		}
		if err := s.sessionRepo.WithTx(tx).DeleteByMemberID(ctx, id); err != nil {
			return fmt.Errorf("delete sessions: %w", err)
		}
		if err := s.memberRepo.WithTx(tx).Delete(ctx, id); err != nil {
			return fmt.Errorf("delete member: %w", err)
		}
		return nil
	})
	if err != nil {
		return apperrors.Database(err)
	}

	log.Info().Str("memberId", id).Msg("member deleted")
	return nil
}
