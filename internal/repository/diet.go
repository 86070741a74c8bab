package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/balancepro/studio-server/internal/model"
)

type DietRepository interface {
	FindByMemberID(ctx context.Context, memberID string) (*model.DietPrescription, error)
	// Upsert replaces the member's prescription.
	Upsert(ctx context.Context, params model.PrescribeDietParams) (*model.DietPrescription, error)
	DeleteByMemberID(ctx context.Context, memberID string) error
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) DietRepository
}

type dietRepo struct {
	db sqlxDB
}

func NewDietRepository(db *sqlx.DB) DietRepository {
	return &dietRepo{db: db}
}

func (r *dietRepo) WithTx(tx *sqlx.Tx) DietRepository {
	return &dietRepo{db: tx}
}

func (r *dietRepo) FindByMemberID(ctx context.Context, memberID string) (*model.DietPrescription, error) {
	var diet model.DietPrescription
	err := r.db.GetContext(ctx, &diet, `
		SELECT * FROM diet_prescriptions WHERE member_id = $1
	`, memberID)
	return HandleNotFound(&diet, err)
}

func (r *dietRepo) Upsert(ctx context.Context, params model.PrescribeDietParams) (*model.DietPrescription, error) {
	var diet model.DietPrescription
	err := r.db.GetContext(ctx, &diet, `
		INSERT INTO diet_prescriptions (member_id, issued_at, nutrient_goals, meal_plan, notes)
		VALUES ($1, NOW(), $2, $3, $4)
		ON CONFLICT (member_id) DO UPDATE SET
			issued_at = EXCLUDED.issued_at,
			nutrient_goals = EXCLUDED.nutrient_goals,
			meal_plan = EXCLUDED.meal_plan,
			notes = EXCLUDED.notes
		RETURNING *
	`, params.MemberID, params.NutrientGoals, params.MealPlan, params.Notes)
	if err != nil {
		return nil, err
	}
	return &diet, nil
}

func (r *dietRepo) DeleteByMemberID(ctx context.Context, memberID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM diet_prescriptions WHERE member_id = $1`, memberID)
	return err
}
