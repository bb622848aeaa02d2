package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/freshlane/pkg/db/models"
)

// Repository reads and writes products, their bulk tiers and coupons.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Product loads the product with its price tiers ordered by threshold.
func (r *Repository) Product(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("PriceTiers", func(db *gorm.DB) *gorm.DB {
			return db.Order("min_quantity ASC")
		}).
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListByVendor returns the vendor's active products ordered by name.
func (r *Repository) ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Product, error) {
	var products []models.Product
	if err := r.db.WithContext(ctx).
		Where("vendor_id = ? AND is_active = ?", vendorID, true).
		Order("name ASC").
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// CreateProduct inserts a product and any tiers attached to it.
func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	for i := range product.PriceTiers {
		if product.PriceTiers[i].ID == uuid.Nil {
			product.PriceTiers[i].ID = uuid.New()
		}
		product.PriceTiers[i].ProductID = product.ID
	}
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// ReplacePriceTiers replaces all bulk tiers for the product.
func (r *Repository) ReplacePriceTiers(ctx context.Context, productID uuid.UUID, tiers []models.ProductPriceTier) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("product_id = ?", productID).Delete(&models.ProductPriceTier{}).Error; err != nil {
		return err
	}
	if len(tiers) == 0 {
		return nil
	}
	for i := range tiers {
		if tiers[i].ID == uuid.Nil {
			tiers[i].ID = uuid.New()
		}
		tiers[i].ProductID = productID
	}
	return tx.Create(&tiers).Error
}

// CouponsByCode loads coupons matching the codes, case-insensitively.
// Unknown codes are simply absent from the result.
func (r *Repository) CouponsByCode(ctx context.Context, codes []string) ([]models.Coupon, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	normalized := make([]string, 0, len(codes))
	for _, code := range codes {
		normalized = append(normalized, strings.ToUpper(strings.TrimSpace(code)))
	}
	var coupons []models.Coupon
	if err := r.db.WithContext(ctx).
		Where("UPPER(code) IN ?", normalized).
		Order("code ASC").
		Find(&coupons).Error; err != nil {
		return nil, err
	}
	return coupons, nil
}

// CreateCoupon inserts a coupon with its code upper-cased.
func (r *Repository) CreateCoupon(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error) {
	if coupon.ID == uuid.Nil {
		coupon.ID = uuid.New()
	}
	coupon.Code = strings.ToUpper(strings.TrimSpace(coupon.Code))
	if err := r.db.WithContext(ctx).Create(coupon).Error; err != nil {
		return nil, err
	}
	return coupon, nil
}
