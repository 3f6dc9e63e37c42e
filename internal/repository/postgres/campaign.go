package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bokzor/revenue-boost/internal/domain"
	"github.com/bokzor/revenue-boost/pkg/database"
	apperrors "github.com/bokzor/revenue-boost/pkg/errors"
)

// CampaignRepository implements repository.CampaignRepository using PostgreSQL.
type CampaignRepository struct {
	db database.DB
}

// NewCampaignRepository creates a new PostgreSQL-backed campaign repository.
func NewCampaignRepository(db database.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// GetByID retrieves a campaign by its ID.
func (r *CampaignRepository) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	query := `
		SELECT id, store_id, name, status, discount_config, created_at, updated_at
		FROM campaigns
		WHERE id = $1`

	var c domain.Campaign
	err := r.db.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.StoreID,
		&c.Name,
		&c.Status,
		&c.DiscountConfig,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan campaign: %w", err)
	}

	return &c, nil
}
