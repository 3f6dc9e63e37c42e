package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bokzor/revenue-boost/internal/domain"
	"github.com/bokzor/revenue-boost/pkg/database"
	apperrors "github.com/bokzor/revenue-boost/pkg/errors"
)

func setupRepo(t *testing.T) (*CampaignRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	repo := NewCampaignRepository(mock)
	return repo, mock
}

func sampleCampaign() *domain.Campaign {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	config, _ := json.Marshal(map[string]any{
		"enabled":    true,
		"value":      15,
		"value_type": "percentage",
	})
	return &domain.Campaign{
		ID:             "camp-001",
		StoreID:        "store-001",
		Name:           "Exit Intent Spring",
		Status:         domain.CampaignStatusActive,
		DiscountConfig: config,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func campaignRow(c *domain.Campaign) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "store_id", "name", "status", "discount_config", "created_at", "updated_at",
	}).AddRow(
		c.ID, c.StoreID, c.Name, c.Status, []byte(c.DiscountConfig), c.CreatedAt, c.UpdatedAt,
	)
}

func TestCampaignRepository_GetByID_Success(t *testing.T) {
	repo, mock := setupRepo(t)
	defer mock.Close()

	c := sampleCampaign()
	mock.ExpectQuery("SELECT .+ FROM campaigns").
		WithArgs(c.ID).
		WillReturnRows(campaignRow(c))

	got, err := repo.GetByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, c.StoreID, got.StoreID)
	assert.Equal(t, domain.CampaignStatusActive, got.Status)

	raw := got.RawConfig()
	assert.Equal(t, true, raw["enabled"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := setupRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM campaigns").
		WithArgs("missing").
		WillReturnError(errors.New("no rows in result set"))

	_, err := repo.GetByID(context.Background(), "missing")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepository_GetByID_MapsNoRowsToNotFound(t *testing.T) {
	repo, mock := setupRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM campaigns").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "store_id", "name", "status", "discount_config", "created_at", "updated_at",
		}))

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
