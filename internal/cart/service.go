package cart

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/coupons"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/angelmondragon/storefront-backend/pkg/visibility"
)

const (
	cacheScope = "cart"
	cacheTTL   = 10 * time.Minute
)

type cartStore interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	Insert(ctx context.Context, item *models.CartItem) error
	UpdateQuantity(ctx context.Context, userID, lineID uuid.UUID, quantity int) error
	Delete(ctx context.Context, userID, lineID uuid.UUID) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindLiveByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type engineSource interface {
	Engine(ctx context.Context) *pricing.Engine
}

// Service exposes the server-side cart.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
	AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*CartDTO, error)
	SetQuantity(ctx context.Context, userID, lineID uuid.UUID, quantity int) (*CartDTO, error)
	RemoveItem(ctx context.Context, userID, lineID uuid.UUID) (*CartDTO, error)
	Clear(ctx context.Context, userID uuid.UUID) error
	// RemoveOrdered takes ordered quantities out of the cart and keeps
	// anything added after the snapshot was taken.
	RemoveOrdered(ctx context.Context, userID uuid.UUID, ordered types.OrderLines) error
	Quote(ctx context.Context, userID uuid.UUID, input QuoteInput) (*QuoteDTO, error)
	// Snapshot returns the cart re-priced against the live catalog.
	Snapshot(ctx context.Context, userID uuid.UUID) (types.OrderLines, error)
}

// ServiceParams bundles the dependencies of the cart service.
type ServiceParams struct {
	Repo     cartStore
	Products productLoader
	Coupons  coupons.Resolver
	Pricing  engineSource
	Cache    redis.CacheStore
	Logger   *logger.Logger
}

type service struct {
	repo     cartStore
	products productLoader
	coupons  coupons.Resolver
	pricing  engineSource
	cache    redis.CacheStore
	logg     *logger.Logger
}

// NewService builds a cart service backed by the provided stack.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart repository required")
	}
	if params.Products == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product loader required")
	}
	if params.Coupons == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon resolver required")
	}
	if params.Pricing == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pricing source required")
	}
	return &service{
		repo:     params.Repo,
		products: params.Products,
		coupons:  params.Coupons,
		pricing:  params.Pricing,
		cache:    params.Cache,
		logg:     params.Logger,
	}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	items, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toCartDTO(items), nil
}

func (s *service) AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*CartDTO, error) {
	if input.Quantity < 1 || input.Quantity > MaxLineQuantity {
		return nil, pkgerrors.Validation("invalid quantity", pkgerrors.FieldErrors{"quantity": "quantity must be between 1 and 99"})
	}
	p, err := s.products.FindByID(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if err := visibility.EnsurePurchasable(p); err != nil {
		return nil, err
	}
	selections, err := normalizeSelections(p.Options, input.Options)
	if err != nil {
		return nil, err
	}

	items, err := s.fetch(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if item.ProductID == p.ID && sameOptions(item.Options, selections) {
			qty := item.Quantity + input.Quantity
			if qty > MaxLineQuantity {
				qty = MaxLineQuantity
			}
			if err := s.repo.UpdateQuantity(ctx, userID, item.ID, qty); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
			}
			return s.refresh(ctx, userID)
		}
	}

	line := &models.CartItem{
		UserID:            userID,
		ProductID:         p.ID,
		Title:             p.Title,
		UnitPrice:         p.Price,
		DiscountUnitPrice: p.DiscountPrice,
		Quantity:          input.Quantity,
		Options:           selections,
		Image:             p.PrimaryImage(),
	}
	if err := s.repo.Insert(ctx, line); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert cart line")
	}
	return s.refresh(ctx, userID)
}

func (s *service) SetQuantity(ctx context.Context, userID, lineID uuid.UUID, quantity int) (*CartDTO, error) {
	if quantity < 1 || quantity > MaxLineQuantity {
		return nil, pkgerrors.Validation("invalid quantity", pkgerrors.FieldErrors{"quantity": "quantity must be between 1 and 99"})
	}
	if err := s.repo.UpdateQuantity(ctx, userID, lineID, quantity); err != nil {
		return nil, mapLineErr(err, "update cart line")
	}
	return s.refresh(ctx, userID)
}

func (s *service) RemoveItem(ctx context.Context, userID, lineID uuid.UUID) (*CartDTO, error) {
	if err := s.repo.Delete(ctx, userID, lineID); err != nil {
		return nil, mapLineErr(err, "remove cart line")
	}
	return s.refresh(ctx, userID)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.DeleteByUser(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *service) RemoveOrdered(ctx context.Context, userID uuid.UUID, ordered types.OrderLines) error {
	if len(ordered) == 0 {
		return nil
	}
	items, err := s.fetch(ctx, userID)
	if err != nil {
		return err
	}

	pending := ordered.Clone()
	for _, item := range items {
		for i := range pending {
			line := &pending[i]
			if line.Quantity <= 0 || line.ProductID != item.ProductID || !sameOptions(line.Options, item.Options) {
				continue
			}
			if item.Quantity <= line.Quantity {
				err = s.repo.Delete(ctx, userID, item.ID)
				line.Quantity -= item.Quantity
			} else {
				err = s.repo.UpdateQuantity(ctx, userID, item.ID, item.Quantity-line.Quantity)
				line.Quantity = 0
			}
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				s.invalidate(ctx, userID)
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove ordered cart line")
			}
			break
		}
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *service) Quote(ctx context.Context, userID uuid.UUID, input QuoteInput) (*QuoteDTO, error) {
	method := input.ShippingMethod
	if method == "" {
		method = enums.ShippingMethodStandard
	}
	if !method.IsValid() {
		return nil, pkgerrors.Validation("invalid quote", pkgerrors.FieldErrors{"shippingMethod": "unknown shipping method"})
	}

	items, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	lines := make(types.OrderLines, 0, len(items))
	for _, item := range items {
		lines = append(lines, toOrderLine(item))
	}

	engine := s.pricing.Engine(ctx)
	coupon, err := s.coupons.Resolve(ctx, input.DiscountCode, engine.Quote(lines, nil, method).SubtotalBeforeDiscount)
	if err != nil {
		return nil, err
	}

	cart := toCartDTO(items)
	return &QuoteDTO{
		Lines:          cart.Lines,
		ShippingMethod: method,
		Coupon:         coupon,
		Pricing:        engine.Quote(lines, coupon, method),
	}, nil
}

func (s *service) Snapshot(ctx context.Context, userID uuid.UUID) (types.OrderLines, error) {
	items, err := s.fetch(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return types.OrderLines{}, nil
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	live, err := s.products.FindLiveByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart products")
	}
	byID := make(map[uuid.UUID]models.Product, len(live))
	for _, p := range live {
		byID[p.ID] = p
	}

	lines := make(types.OrderLines, 0, len(items))
	var unavailable []string
	for _, item := range items {
		p, ok := byID[item.ProductID]
		if !ok || !p.EffectivePrice().IsPositive() {
			unavailable = append(unavailable, item.Title)
			continue
		}
		item.Title = p.Title
		item.UnitPrice = p.Price
		item.DiscountUnitPrice = p.DiscountPrice
		lines = append(lines, toOrderLine(item))
	}
	if len(unavailable) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "some cart items are no longer available").
			WithDetails(map[string]any{"unavailable": unavailable})
	}
	return lines, nil
}

func (s *service) load(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, s.cache.CacheKey(cacheScope, userID.String()))
		if err == nil {
			var items []models.CartItem
			if jsonErr := json.Unmarshal([]byte(raw), &items); jsonErr == nil {
				return items, nil
			}
		} else if !errors.Is(err, redis.ErrNil) && s.logg != nil {
			s.logg.WarnErr(ctx, "cart cache read failed", err)
		}
	}

	items, err := s.fetch(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.store(ctx, userID, items)
	return items, nil
}

func (s *service) fetch(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart")
	}
	return items, nil
}

func (s *service) refresh(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	items, err := s.fetch(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.store(ctx, userID, items)
	return toCartDTO(items), nil
}

func (s *service) store(ctx context.Context, userID uuid.UUID, items []models.CartItem) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cache.CacheKey(cacheScope, userID.String()), string(payload), cacheTTL); err != nil && s.logg != nil {
		s.logg.WarnErr(ctx, "cart cache write failed", err)
	}
}

func (s *service) invalidate(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, s.cache.CacheKey(cacheScope, userID.String())); err != nil && s.logg != nil {
		s.logg.WarnErr(ctx, "cart cache invalidate failed", err)
	}
}

// normalizeSelections requires one valid choice per product option, in the
// product's option order.
func normalizeSelections(options []types.ProductOption, chosen types.OptionSelections) (types.OptionSelections, error) {
	byName := make(map[string]string, len(chosen))
	for _, sel := range chosen {
		byName[strings.TrimSpace(sel.Name)] = strings.TrimSpace(sel.Value)
	}

	fields := pkgerrors.FieldErrors{}
	out := make(types.OptionSelections, 0, len(options))
	for _, opt := range options {
		value, ok := byName[opt.Name]
		delete(byName, opt.Name)
		if !ok || value == "" {
			fields["options."+opt.Name] = "choose a " + strings.ToLower(opt.Name)
			continue
		}
		if !contains(opt.Values, value) {
			fields["options."+opt.Name] = "unavailable choice " + value
			continue
		}
		out = append(out, types.OptionSelection{Name: opt.Name, Value: value})
	}
	for name := range byName {
		fields["options."+name] = "unknown option"
	}
	if len(fields) > 0 {
		return nil, pkgerrors.Validation("invalid product options", fields)
	}
	return out, nil
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func mapLineErr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
