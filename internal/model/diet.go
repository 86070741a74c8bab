package model

import "time"

type DietPrescription struct {
	MemberID      string    `db:"member_id" json:"memberId"`
	IssuedAt      time.Time `db:"issued_at" json:"date"`
	NutrientGoals string    `db:"nutrient_goals" json:"nutrients"`
	MealPlan      string    `db:"meal_plan" json:"meals"`
	Notes         string    `db:"notes" json:"notes"`
}

type PrescribeDietParams struct {
	MemberID      string
	NutrientGoals string
	MealPlan      string
	Notes         string
}
