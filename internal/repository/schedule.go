package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/balancepro/studio-server/internal/model"
)

type ScheduleRepository interface {
	FindByID(ctx context.Context, id string) (*model.ScheduledClass, error)
	List(ctx context.Context) ([]model.ScheduledClass, error)
	Create(ctx context.Context, params model.CreateScheduledClassParams) (*model.ScheduledClass, error)
	Delete(ctx context.Context, id string) error
}

// scheduledClassRow is the table shape; invites are a text[] column.
type scheduledClassRow struct {
	ID               string         `db:"id"`
	Title            string         `db:"title"`
	ScheduledAt      time.Time      `db:"scheduled_at"`
	DisplayTime      string         `db:"display_time"`
	HostName         string         `db:"host_name"`
	InvitedMemberIDs pq.StringArray `db:"invited_member_ids"`
	CreatedAt        time.Time      `db:"created_at"`
}

func (row scheduledClassRow) toModel() model.ScheduledClass {
	return model.ScheduledClass{
		ID:               row.ID,
		Title:            row.Title,
		ScheduledAt:      row.ScheduledAt,
		DisplayTime:      row.DisplayTime,
		HostName:         row.HostName,
		InvitedMemberIDs: model.NewInviteSet(row.InvitedMemberIDs...),
		CreatedAt:        row.CreatedAt,
	}
}

type scheduleRepo struct {
	db *sqlx.DB
}

func NewScheduleRepository(db *sqlx.DB) ScheduleRepository {
	return &scheduleRepo{db: db}
}

func (r *scheduleRepo) FindByID(ctx context.Context, id string) (*model.ScheduledClass, error) {
	var row scheduledClassRow
	err := r.db.GetContext(ctx, &row, `
		SELECT * FROM scheduled_classes WHERE id = $1
	`, id)
	found, err := HandleNotFound(&row, err)
	if err != nil || found == nil {
		return nil, err
	}
	class := found.toModel()
	return &class, nil
}

func (r *scheduleRepo) List(ctx context.Context) ([]model.ScheduledClass, error) {
	var rows []scheduledClassRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM scheduled_classes
		ORDER BY scheduled_at ASC, created_at ASC
	`)
	if err != nil {
		return nil, err
	}

	classes := make([]model.ScheduledClass, 0, len(rows))
	for _, row := range rows {
		classes = append(classes, row.toModel())
	}
	return classes, nil
}

func (r *scheduleRepo) Create(ctx context.Context, params model.CreateScheduledClassParams) (*model.ScheduledClass, error) {
	var row scheduledClassRow
	err := r.db.GetContext(ctx, &row, `
		INSERT INTO scheduled_classes (id, title, scheduled_at, display_time, host_name, invited_member_ids)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`, params.ID, params.Title, params.ScheduledAt, params.DisplayTime, params.HostName,
		pq.StringArray(params.InvitedMemberIDs.IDs()))
	if err != nil {
		return nil, err
	}
	class := row.toModel()
	return &class, nil
}

func (r *scheduleRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM scheduled_classes WHERE id = $1`, id)
	return err
}
