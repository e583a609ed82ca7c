package repository

import (
	"context"

	"github.com/ManuelReschke/Payline/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type catalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository creates a new product/price repository instance
func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) UpsertProduct(ctx context.Context, product *models.Product) error {
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "active", "updated_at"}),
	}).Create(product).Error; err != nil {
		return err
	}

	var stored models.Product
	if err := db.Where("provider_product_id = ?", product.ProviderProductID).First(&stored).Error; err != nil {
		return err
	}
	*product = stored
	return nil
}

func (r *catalogRepository) UpsertPrice(ctx context.Context, price *models.Price) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider_price_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"product_id",
			"currency",
			"unit_amount",
			"interval",
			"interval_count",
			"active",
			"updated_at",
		}),
	}).Create(price).Error; err != nil {
		return err
	}

	var stored models.Price
	if err := db.Where("provider_price_id = ?", price.ProviderPriceID).First(&stored).Error; err != nil {
		return err
	}
	*price = stored
	return nil
}

func (r *catalogRepository) GetProductByProviderID(ctx context.Context, providerProductID string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).Where("provider_product_id = ?", providerProductID).First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *catalogRepository) GetPriceByProviderID(ctx context.Context, providerPriceID string) (*models.Price, error) {
	var price models.Price
	err := r.db.WithContext(ctx).Where("provider_price_id = ?", providerPriceID).First(&price).Error
	if err != nil {
		return nil, err
	}
	return &price, nil
}
