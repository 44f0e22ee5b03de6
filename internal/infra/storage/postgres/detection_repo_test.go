package postgres

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/scamradar/internal/core/domain"
	"github.com/vietddude/scamradar/internal/infra/storage"
)

func TestMigrationsEmbedded(t *testing.T) {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	body, err := fs.ReadFile(migrations, files[0])
	require.NoError(t, err)
	assert.Contains(t, string(body), "-- +goose Up")
	assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS detections")
}

func TestConfigEnabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.True(t, Config{URL: "postgres://localhost/db"}.Enabled())
}

// Runs against a live database when SCAMRADAR_TEST_DATABASE_URL is set.
func TestDetectionRepo_Live(t *testing.T) {
	url := os.Getenv("SCAMRADAR_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SCAMRADAR_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := NewDB(ctx, Config{URL: url})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate(ctx))

	repo := NewDetectionRepo(db)
	p := 0.91
	addr := "0x" + uuid.NewString()[:8]
	d := &domain.Detection{
		ID:          uuid.NewString(),
		Task:        domain.TaskAccount,
		Address:     addr,
		Mode:        domain.ModeNormal,
		Probability: &p,
		TxCount:     10,
		Payload:     []byte(`{"detection_mode":"normal"}`),
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repo.Save(ctx, d))

	got, err := repo.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskAccount, got.Task)
	require.NotNil(t, got.Probability)
	assert.InDelta(t, 0.91, *got.Probability, 1e-12)
	assert.Equal(t, 10, got.TxCount)

	noData := &domain.Detection{
		ID:        uuid.NewString(),
		Task:      domain.TaskAccount,
		Address:   addr,
		Mode:      domain.ModeNoData,
		CreatedAt: d.CreatedAt.Add(time.Second),
	}
	require.NoError(t, repo.Save(ctx, noData))

	list, err := repo.ListByAddress(ctx, addr, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, noData.ID, list[0].ID)
	assert.Nil(t, list[0].Probability)

	_, err = repo.GetByID(ctx, uuid.NewString())
	assert.True(t, errors.Is(err, storage.ErrDetectionNotFound))
}
