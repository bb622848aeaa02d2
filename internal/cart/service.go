package cart

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/angelmondragon/freshlane/internal/catalog"
	"github.com/angelmondragon/freshlane/internal/pricing"
	"github.com/angelmondragon/freshlane/pkg/db"
	"github.com/angelmondragon/freshlane/pkg/db/models"
	"github.com/angelmondragon/freshlane/pkg/enums"
	pkgerrors "github.com/angelmondragon/freshlane/pkg/errors"
	"github.com/angelmondragon/freshlane/pkg/logger"
)

const (
	DefaultTTL          = 7 * 24 * time.Hour
	DefaultAbandonAfter = 24 * time.Hour
)

// Service exposes buyer cart operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*Detail, error)
	Get(ctx context.Context, cartID uuid.UUID) (*Detail, error)
	AddItem(ctx context.Context, input AddItemInput) (*Detail, error)
	UpdateItem(ctx context.Context, input UpdateItemInput) (*Detail, error)
	RemoveItem(ctx context.Context, ref Ref, itemID uuid.UUID) (*Detail, error)
	Clear(ctx context.Context, ref Ref) (*Detail, error)
	SetFulfillment(ctx context.Context, ref Ref, fulfillment enums.FulfillmentType) (*Detail, error)
	ApplyCoupon(ctx context.Context, ref Ref, code string) (*Detail, error)
	RemoveCoupon(ctx context.Context, ref Ref, code string) (*Detail, error)
	ExpireStale(ctx context.Context, now time.Time, limit int) (ExpiryResult, error)
}

// Ref identifies a cart and, when BuyerID is set, the buyer that must own it.
type Ref struct {
	CartID  uuid.UUID
	BuyerID uuid.UUID
}

type CreateInput struct {
	BuyerID         uuid.UUID
	VendorID        uuid.UUID
	FulfillmentType enums.FulfillmentType
}

type AddItemInput struct {
	Ref
	ProductID   uuid.UUID
	WarehouseID uuid.UUID
	Quantity    int
	Notes       *string
}

// UpdateItemInput sets a line's quantity. Zero removes the line.
type UpdateItemInput struct {
	Ref
	ItemID   uuid.UUID
	Quantity int
	Notes    *string
}

// Detail is a cart with its lines and the coupon outcome of the last pricing.
type Detail struct {
	Cart     models.Cart              `json:"cart"`
	Items    []models.CartItem        `json:"items"`
	Applied  []pricing.AppliedCoupon  `json:"applied_coupons,omitempty"`
	Rejected []pricing.RejectedCoupon `json:"rejected_coupons,omitempty"`
}

type ExpiryResult struct {
	Expired   int64
	Abandoned int64
}

type ServiceParams struct {
	Repository   Repository
	Catalog      *catalog.Repository
	Pricer       *Pricer
	TxRunner     db.TxRunner
	Logger       *logger.Logger
	Clock        func() time.Time
	TTL          time.Duration
	AbandonAfter time.Duration
}

type service struct {
	repo         Repository
	catalog      *catalog.Repository
	pricer       *Pricer
	tx           db.TxRunner
	logg         *logger.Logger
	now          func() time.Time
	ttl          time.Duration
	abandonAfter time.Duration
}

func NewService(p ServiceParams) (Service, error) {
	if p.Repository == nil {
		return nil, errors.New("cart repository required")
	}
	if p.Catalog == nil {
		return nil, errors.New("catalog repository required")
	}
	if p.Pricer == nil {
		return nil, errors.New("cart pricer required")
	}
	if p.TxRunner == nil {
		return nil, errors.New("transaction runner required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.Clock == nil {
		p.Clock = time.Now
	}
	if p.TTL <= 0 {
		p.TTL = DefaultTTL
	}
	if p.AbandonAfter <= 0 {
		p.AbandonAfter = DefaultAbandonAfter
	}
	return &service{
		repo:         p.Repository,
		catalog:      p.Catalog,
		pricer:       p.Pricer,
		tx:           p.TxRunner,
		logg:         p.Logger,
		now:          p.Clock,
		ttl:          p.TTL,
		abandonAfter: p.AbandonAfter,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*Detail, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	if input.FulfillmentType == "" {
		input.FulfillmentType = enums.FulfillmentTypeDelivery
	}
	if !input.FulfillmentType.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid fulfillment type %q", input.FulfillmentType)
	}

	now := s.now().UTC()
	expires := now.Add(s.ttl)
	cart := &models.Cart{
		BuyerID:         input.BuyerID,
		VendorID:        input.VendorID,
		Status:          enums.CartStatusActive,
		FulfillmentType: input.FulfillmentType,
		LastActivityAt:  now,
		ExpiresAt:       &expires,
	}
	applyTotals(cart, pricing.CartTotals{})
	if err := s.repo.Create(ctx, cart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return &Detail{Cart: *cart, Items: []models.CartItem{}}, nil
}

func (s *service) Get(ctx context.Context, cartID uuid.UUID) (*Detail, error) {
	cart, err := s.repo.Find(ctx, cartID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.Items(ctx, cart.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart items")
	}
	return &Detail{Cart: *cart, Items: items}, nil
}

func (s *service) AddItem(ctx context.Context, input AddItemInput) (*Detail, error) {
	if input.ProductID == uuid.Nil || input.WarehouseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id and warehouse id required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return s.mutate(ctx, input.Ref, func(repo Repository, cart *models.Cart, items []models.CartItem) error {
		for i := range items {
			if items[i].ProductID == input.ProductID && items[i].WarehouseID == input.WarehouseID {
				items[i].Quantity += input.Quantity
				if input.Notes != nil {
					items[i].Notes = input.Notes
				}
				return repo.SaveItem(ctx, &items[i])
			}
		}
		return repo.SaveItem(ctx, &models.CartItem{
			CartID:      cart.ID,
			ProductID:   input.ProductID,
			WarehouseID: input.WarehouseID,
			Quantity:    input.Quantity,
			Notes:       input.Notes,
		})
	}, nil)
}

func (s *service) UpdateItem(ctx context.Context, input UpdateItemInput) (*Detail, error) {
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}
	return s.mutate(ctx, input.Ref, func(repo Repository, cart *models.Cart, items []models.CartItem) error {
		if input.Quantity == 0 {
			return repo.DeleteItem(ctx, cart.ID, input.ItemID)
		}
		for i := range items {
			if items[i].ID != input.ItemID {
				continue
			}
			items[i].Quantity = input.Quantity
			if input.Notes != nil {
				items[i].Notes = input.Notes
			}
			return repo.SaveItem(ctx, &items[i])
		}
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}, nil)
}

func (s *service) RemoveItem(ctx context.Context, ref Ref, itemID uuid.UUID) (*Detail, error) {
	return s.mutate(ctx, ref, func(repo Repository, cart *models.Cart, _ []models.CartItem) error {
		return repo.DeleteItem(ctx, cart.ID, itemID)
	}, nil)
}

// Clear drops every line and coupon.
func (s *service) Clear(ctx context.Context, ref Ref) (*Detail, error) {
	return s.mutate(ctx, ref, func(repo Repository, cart *models.Cart, items []models.CartItem) error {
		for _, item := range items {
			if err := repo.DeleteItem(ctx, cart.ID, item.ID); err != nil {
				return err
			}
		}
		cart.CouponCodes = pq.StringArray{}
		return nil
	}, nil)
}

func (s *service) SetFulfillment(ctx context.Context, ref Ref, fulfillment enums.FulfillmentType) (*Detail, error) {
	if !fulfillment.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid fulfillment type %q", fulfillment)
	}
	return s.mutate(ctx, ref, func(_ Repository, cart *models.Cart, _ []models.CartItem) error {
		cart.FulfillmentType = fulfillment
		return nil
	}, nil)
}

// ApplyCoupon attaches a known coupon. A coupon the pricing engine rejects
// is not kept on the cart.
func (s *service) ApplyCoupon(ctx context.Context, ref Ref, code string) (*Detail, error) {
	code = normalizeCode(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code required")
	}
	attach := func(_ Repository, cart *models.Cart, _ []models.CartItem) error {
		for _, existing := range cart.CouponCodes {
			if normalizeCode(existing) == code {
				return pkgerrors.Newf(pkgerrors.CodeConflict, "coupon %s already applied", code)
			}
		}
		cart.CouponCodes = append(cart.CouponCodes, code)
		return nil
	}
	check := func(tx *gorm.DB, quote *Quote) error {
		found, err := s.catalog.WithTx(tx).CouponsByCode(ctx, []string{code})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
		}
		if len(found) == 0 {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "coupon %s not found", code)
		}
		for _, rejected := range quote.Totals.Rejected {
			if normalizeCode(rejected.Code) == code {
				return pkgerrors.Newf(pkgerrors.CodeValidation, "coupon %s cannot be applied: %s", code, rejected.Reason).
					WithDetails(map[string]any{"code": code, "reason": rejected.Reason})
			}
		}
		return nil
	}
	return s.mutate(ctx, ref, attach, check)
}

func (s *service) RemoveCoupon(ctx context.Context, ref Ref, code string) (*Detail, error) {
	code = normalizeCode(code)
	return s.mutate(ctx, ref, func(_ Repository, cart *models.Cart, _ []models.CartItem) error {
		kept := pq.StringArray{}
		for _, existing := range cart.CouponCodes {
			if normalizeCode(existing) != code {
				kept = append(kept, existing)
			}
		}
		if len(kept) == len(cart.CouponCodes) {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "coupon %s is not on the cart", code)
		}
		cart.CouponCodes = kept
		return nil
	}, nil)
}

// ExpireStale expires carts past their expiry and abandons carts idle longer
// than the abandonment window. Each pass touches at most limit carts.
func (s *service) ExpireStale(ctx context.Context, now time.Time, limit int) (ExpiryResult, error) {
	now = now.UTC()
	var result ExpiryResult
	expired, err := s.repo.ExpireBefore(ctx, now, limit)
	if err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire carts")
	}
	result.Expired = expired

	abandoned, err := s.repo.AbandonIdleSince(ctx, now.Add(-s.abandonAfter), now, limit)
	if err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "abandon carts")
	}
	result.Abandoned = abandoned

	if expired > 0 || abandoned > 0 {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"expired":   expired,
			"abandoned": abandoned,
		}), "stale carts swept")
	}
	return result, nil
}

type mutation func(repo Repository, cart *models.Cart, items []models.CartItem) error

// mutate locks the cart, applies fn, re-prices every line and persists the
// new totals in one transaction. check runs against the fresh quote before
// anything commits.
func (s *service) mutate(ctx context.Context, ref Ref, fn mutation, check func(tx *gorm.DB, quote *Quote) error) (*Detail, error) {
	if ref.CartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}
	now := s.now().UTC()
	var detail *Detail
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.Lock(ctx, ref.CartID)
		if err != nil {
			return err
		}
		if err := CheckWritable(cart, ref.BuyerID, now); err != nil {
			return err
		}
		items, err := repo.Items(ctx, cart.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart items")
		}
		if err := fn(repo, cart, items); err != nil {
			return err
		}

		if items, err = repo.Items(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart items")
		}
		quote, err := s.pricer.Quote(ctx, tx, cart, items, now)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(tx, quote); err != nil {
				return err
			}
		}
		for i := range quote.Items {
			if err := repo.SaveItem(ctx, &quote.Items[i]); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart item")
			}
		}

		applyTotals(cart, quote.Totals)
		expires := now.Add(s.ttl)
		cart.Status = enums.CartStatusActive
		cart.AbandonedAt = nil
		cart.LastActivityAt = now
		cart.ExpiresAt = &expires
		if err := repo.SaveTotals(ctx, cart); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart totals")
		}

		detail = &Detail{
			Cart:     *cart,
			Items:    quote.Items,
			Applied:  quote.Totals.Applied,
			Rejected: quote.Totals.Rejected,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// CheckWritable rejects carts that are checked out, expired or owned by
// another buyer. An abandoned cart comes back to life on activity.
func CheckWritable(cart *models.Cart, buyerID uuid.UUID, now time.Time) error {
	if buyerID != uuid.Nil && cart.BuyerID != buyerID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "cart belongs to another buyer")
	}
	switch cart.Status {
	case enums.CartStatusActive, enums.CartStatusAbandoned:
	default:
		return pkgerrors.Newf(pkgerrors.CodeInvalidState, "cart is %s", cart.Status).
			WithDetails(map[string]any{"status": cart.Status})
	}
	if cart.IsExpired(now) {
		return pkgerrors.New(pkgerrors.CodeInvalidState, "cart has expired")
	}
	return nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
