package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	apperrors "github.com/balancepro/studio-server/internal/errors"
	"github.com/balancepro/studio-server/internal/model"
	"github.com/balancepro/studio-server/internal/repository"
)

type DietService struct {
	dietRepo   repository.DietRepository
	memberRepo repository.MemberRepository
}

func NewDietService(dietRepo repository.DietRepository, memberRepo repository.MemberRepository) *DietService {
	return &DietService{dietRepo: dietRepo, memberRepo: memberRepo}
}

// Prescribe issues a plan to a member, replacing any earlier one.
func (s *DietService) Prescribe(ctx context.Context, params model.PrescribeDietParams) (*model.DietPrescription, error) {
	params.NutrientGoals = strings.TrimSpace(params.NutrientGoals)
	params.MealPlan = strings.TrimSpace(params.MealPlan)
	params.Notes = strings.TrimSpace(params.Notes)

	if params.NutrientGoals == "" && params.MealPlan == "" {
		return nil, apperrors.ValidationError("nutrients or meals must be provided")
	}

	member, err := s.memberRepo.FindByID(ctx, params.MemberID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if member == nil {
		return nil, apperrors.NotFound("Member")
	}

	diet, err := s.dietRepo.Upsert(ctx, params)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	log.Info().Str("memberId", params.MemberID).Msg("diet prescribed")
	return diet, nil
}

func (s *DietService) ForMember(ctx context.Context, memberID string) (*model.DietPrescription, error) {
	diet, err := s.dietRepo.FindByMemberID(ctx, memberID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if diet == nil {
		return nil, apperrors.NotFound("Diet prescription")
	}
	return diet, nil
}
