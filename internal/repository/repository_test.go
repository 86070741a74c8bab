package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balancepro/studio-server/internal/database"
	"github.com/balancepro/studio-server/internal/model"
)

// setupTestDB connects to TEST_DATABASE_URL, applies the schema and empties
// every table.
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := database.Connect(url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx))
	_, err = db.ExecContext(ctx, `
		TRUNCATE member_sessions, diet_prescriptions, scheduled_classes, members
	`)
	require.NoError(t, err)
	return db
}

func createMember(t *testing.T, repo MemberRepository, name, phone string) *model.Member {
	t.Helper()
	member, err := repo.Create(context.Background(), model.CreateMemberParams{
		DisplayName:      name,
		Phone:            phone,
		AccessSecretHash: "$2a$12$hash-" + phone,
	})
	require.NoError(t, err)
	require.NotNil(t, member)
	return member
}

func TestMemberRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMemberRepository(db.DB)
	ctx := context.Background()

	alice := createMember(t, repo, "Alice", "98765 43210")

	t.Run("create derives id and normalizes phone", func(t *testing.T) {
		assert.Equal(t, "user_9876543210", alice.ID)
		assert.Equal(t, "9876543210", alice.Phone)
		assert.Equal(t, model.RoleClient, alice.Role)
		require.NotNil(t, alice.AccessSecretHash)
		assert.False(t, alice.RegisteredAt.IsZero())
	})

	t.Run("duplicate phone returns nil", func(t *testing.T) {
		dup, err := repo.Create(ctx, model.CreateMemberParams{DisplayName: "Alice 2", Phone: "9876543210", AccessSecretHash: "x"})
		require.NoError(t, err)
		assert.Nil(t, dup)
	})

	t.Run("find by id", func(t *testing.T) {
		found, err := repo.FindByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "Alice", found.DisplayName)

		missing, err := repo.FindByID(ctx, "user_0")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("find all", func(t *testing.T) {
		createMember(t, repo, "Bob", "9123456780")
		members, err := repo.FindAll(ctx)
		require.NoError(t, err)
		assert.Len(t, members, 2)
	})

	t.Run("update secret", func(t *testing.T) {
		require.NoError(t, repo.UpdateSecret(ctx, alice.ID, "$2a$12$new"))
		found, err := repo.FindByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "$2a$12$new", *found.AccessSecretHash)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, alice.ID))
		require.NoError(t, repo.Delete(ctx, alice.ID))
		found, err := repo.FindByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestScheduleRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewScheduleRepository(db.DB)
	ctx := context.Background()

	later := time.Date(2026, 3, 3, 1, 35, 0, 0, time.UTC)
	earlier := time.Date(2026, 3, 2, 1, 35, 0, 0, time.UTC)

	created, err := repo.Create(ctx, model.CreateScheduledClassParams{
		ID:               "sched-later",
		Title:            "Evening Yoga",
		ScheduledAt:      later,
		DisplayTime:      "3 Mar 2026, 7:05 AM",
		HostName:         "Coach Priya",
		InvitedMemberIDs: model.NewInviteSet("user_2", "user_1"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"user_1", "user_2"}, created.InvitedMemberIDs.IDs())

	_, err = repo.Create(ctx, model.CreateScheduledClassParams{
		ID:               "sched-earlier",
		Title:            "Morning HIIT",
		ScheduledAt:      earlier,
		DisplayTime:      "2 Mar 2026, 7:05 AM",
		HostName:         "Coach Priya",
		InvitedMemberIDs: model.NewInviteSet(),
	})
	require.NoError(t, err)

	t.Run("list is ordered by time", func(t *testing.T) {
		classes, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, classes, 2)
		assert.Equal(t, "sched-earlier", classes[0].ID)
		assert.Equal(t, 0, classes[0].InvitedMemberIDs.Len())
		assert.Equal(t, "sched-later", classes[1].ID)
	})

	t.Run("find by id", func(t *testing.T) {
		class, err := repo.FindByID(ctx, "sched-later")
		require.NoError(t, err)
		assert.True(t, class.ScheduledAt.Equal(later))
		assert.True(t, class.InvitedMemberIDs.Equal(model.NewInviteSet("user_1", "user_2")))

		missing, err := repo.FindByID(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "sched-later"))
		require.NoError(t, repo.Delete(ctx, "sched-later"))
		classes, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, classes, 1)
	})
}

func TestDietRepository(t *testing.T) {
	db := setupTestDB(t)
	members := NewMemberRepository(db.DB)
	repo := NewDietRepository(db.DB)
	ctx := context.Background()

	alice := createMember(t, members, "Alice", "9876543210")

	diet, err := repo.Upsert(ctx, model.PrescribeDietParams{MemberID: alice.ID, NutrientGoals: "Protein 120g"})
	require.NoError(t, err)
	assert.Equal(t, "Protein 120g", diet.NutrientGoals)

	diet, err = repo.Upsert(ctx, model.PrescribeDietParams{MemberID: alice.ID, MealPlan: "Oats"})
	require.NoError(t, err)
	assert.Empty(t, diet.NutrientGoals)
	assert.Equal(t, "Oats", diet.MealPlan)

	found, err := repo.FindByMemberID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Oats", found.MealPlan)

	require.NoError(t, repo.DeleteByMemberID(ctx, alice.ID))
	found, err = repo.FindByMemberID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestMemberSessionRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMemberSessionRepository(db.DB)
	ctx := context.Background()

	create := func(tokenHash, memberID string, expiresAt time.Time) {
		_, err := repo.Create(ctx, model.CreateMemberSessionParams{
			TokenHash:   tokenHash,
			MemberID:    memberID,
			Role:        model.RoleClient,
			DisplayName: "Alice",
			Phone:       "9876543210",
			ExpiresAt:   expiresAt,
		})
		require.NoError(t, err)
	}

	create("active", "user_alice", time.Now().Add(time.Hour))
	create("expired", "user_alice", time.Now().Add(-time.Hour))
	create("other", "user_bob", time.Now().Add(time.Hour))

	t.Run("finds only unexpired sessions", func(t *testing.T) {
		session, err := repo.FindByTokenHash(ctx, "active")
		require.NoError(t, err)
		assert.Equal(t, "user_alice", session.MemberID)
		assert.Equal(t, model.RoleClient, session.Member().Role)

		expired, err := repo.FindByTokenHash(ctx, "expired")
		require.NoError(t, err)
		assert.Nil(t, expired)
	})

	t.Run("delete expired", func(t *testing.T) {
		count, err := repo.DeleteExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("delete by member inside a transaction", func(t *testing.T) {
		err := db.WithTx(ctx, func(tx *sqlx.Tx) error {
			return repo.WithTx(tx).DeleteByMemberID(ctx, "user_alice")
		})
		require.NoError(t, err)

		session, err := repo.FindByTokenHash(ctx, "active")
		require.NoError(t, err)
		assert.Nil(t, session)

		other, err := repo.FindByTokenHash(ctx, "other")
		require.NoError(t, err)
		assert.NotNil(t, other)
	})

	t.Run("delete by token hash", func(t *testing.T) {
		require.NoError(t, repo.DeleteByTokenHash(ctx, "other"))
		session, err := repo.FindByTokenHash(ctx, "other")
		require.NoError(t, err)
		assert.Nil(t, session)
	})
}
