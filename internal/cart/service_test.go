package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/pricing"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type memCache struct {
	data map[string]string
	sets int
}

func newMemCache() *memCache { return &memCache{data: map[string]string{}} }

func (m *memCache) Get(ctx context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.ErrNil
}

func (m *memCache) Set(ctx context.Context, key string, value any, _ time.Duration) error {
	m.sets++
	m.data[key] = value.(string)
	return nil
}

func (m *memCache) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memCache) CacheKey(scope, id string) string { return scope + ":" + id }

type stubCoupons struct {
	coupon *pricing.Coupon
	err    error
}

func (s stubCoupons) Resolve(ctx context.Context, code string, subtotal decimal.Decimal) (*pricing.Coupon, error) {
	if code == "" {
		return nil, nil
	}
	return s.coupon, s.err
}

type staticEngine struct{ engine *pricing.Engine }

func (s staticEngine) Engine(context.Context) *pricing.Engine { return s.engine }

func testEngine() *pricing.Engine {
	return pricing.NewEngine(pricing.Rates{
		TaxRate:               decimal.RequireFromString("0.12"),
		FreeShippingThreshold: decimal.NewFromInt(1500),
		Shipping: map[enums.ShippingMethod]decimal.Decimal{
			enums.ShippingMethodStandard: decimal.NewFromInt(300),
			enums.ShippingMethodExpress:  decimal.NewFromInt(1200),
		},
	})
}

func setupCartDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Exec(`
CREATE TABLE products (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  subtitle TEXT,
  description TEXT NOT NULL DEFAULT '',
  ribbon TEXT,
  images TEXT NOT NULL DEFAULT '{}',
  price NUMERIC NOT NULL,
  discount_price NUMERIC NOT NULL DEFAULT 0,
  sku TEXT,
  weight NUMERIC,
  options TEXT,
  deleted_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`).Error)
	require.NoError(t, db.Exec(`
CREATE TABLE cart_items (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  title TEXT NOT NULL,
  unit_price NUMERIC NOT NULL,
  discount_unit_price NUMERIC NOT NULL DEFAULT 0,
  quantity INTEGER NOT NULL,
  options TEXT NOT NULL DEFAULT '[]',
  image TEXT NOT NULL DEFAULT '',
  created_at DATETIME,
  updated_at DATETIME
);`).Error)
	return db
}

func newCartService(t *testing.T, db *gorm.DB, cache redis.CacheStore, resolver stubCoupons) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(db),
		Products: product.NewRepository(db),
		Coupons:  resolver,
		Pricing:  staticEngine{engine: testEngine()},
		Cache:    cache,
	})
	require.NoError(t, err)
	return svc
}

func seedProduct(t *testing.T, db *gorm.DB, price string, options []types.ProductOption) *models.Product {
	t.Helper()
	p := &models.Product{
		ID:      uuid.New(),
		Title:   "Throw pillow",
		Price:   decimal.RequireFromString(price),
		Options: options,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func TestAddItemMergesMatchingOptions(t *testing.T) {
	db := setupCartDB(t)
	svc := newCartService(t, db, newMemCache(), stubCoupons{})
	ctx := context.Background()
	userID := uuid.New()
	p := seedProduct(t, db, "250", []types.ProductOption{{Name: "Color", Values: []string{"Red", "Blue"}}})

	_, err := svc.AddItem(ctx, userID, AddItemInput{ProductID: p.ID, Quantity: 1, Options: types.OptionSelections{{Name: "Color", Value: "Red"}}})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, userID, AddItemInput{ProductID: p.ID, Quantity: 2, Options: types.OptionSelections{{Name: "Color", Value: "Red"}}})
	require.NoError(t, err)
	cart, err := svc.AddItem(ctx, userID, AddItemInput{ProductID: p.ID, Quantity: 1, Options: types.OptionSelections{{Name: "Color", Value: "Blue"}}})
	require.NoError(t, err)

	require.Len(t, cart.Lines, 2)
	for _, line := range cart.Lines {
		if line.Options[0].Value == "Red" {
			assert.Equal(t, 3, line.Quantity)
		}
	}
	assert.Equal(t, 4, cart.ItemCount)
	assert.True(t, cart.Subtotal.Equal(decimal.NewFromInt(1000)))
}

func TestAddItemValidatesOptions(t *testing.T) {
	db := setupCartDB(t)
	svc := newCartService(t, db, nil, stubCoupons{})
	p := seedProduct(t, db, "250", []types.ProductOption{{Name: "Size", Values: []string{"S", "M"}}})

	_, err := svc.AddItem(context.Background(), uuid.New(), AddItemInput{ProductID: p.ID, Quantity: 1})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.AddItem(context.Background(), uuid.New(), AddItemInput{
		ProductID: p.ID,
		Quantity:  1,
		Options:   types.OptionSelections{{Name: "Size", Value: "XL"}},
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestQuoteMatchesPricingScenario(t *testing.T) {
	db := setupCartDB(t)
	svc := newCartService(t, db, newMemCache(), stubCoupons{coupon: &pricing.Coupon{Code: "FLAT200", Kind: enums.CouponKindFlat, Value: decimal.NewFromInt(200)}})
	ctx := context.Background()
	userID := uuid.New()
	p := seedProduct(t, db, "500", nil)

	_, err := svc.AddItem(ctx, userID, AddItemInput{ProductID: p.ID, Quantity: 2})
	require.NoError(t, err)

	quote, err := svc.Quote(ctx, userID, QuoteInput{})
	require.NoError(t, err)
	assert.True(t, quote.Pricing.Total.Equal(decimal.NewFromInt(1420)), quote.Pricing.Total.String())

	quote, err = svc.Quote(ctx, userID, QuoteInput{DiscountCode: "FLAT200"})
	require.NoError(t, err)
	assert.True(t, quote.Pricing.Total.Equal(decimal.NewFromInt(1196)), quote.Pricing.Total.String())

	_, err = svc.Quote(ctx, userID, QuoteInput{ShippingMethod: "drone"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestSnapshotRepricesAndRejectsUnavailable(t *testing.T) {
	db := setupCartDB(t)
	svc := newCartService(t, db, newMemCache(), stubCoupons{})
	ctx := context.Background()
	userID := uuid.New()
	vase := seedProduct(t, db, "100", nil)
	lamp := seedProduct(t, db, "80", nil)

	_, err := svc.AddItem(ctx, userID, AddItemInput{ProductID: vase.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, userID, AddItemInput{ProductID: lamp.ID, Quantity: 2})
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", vase.ID).Update("discount_price", decimal.NewFromInt(90)).Error)
	lines, err := svc.Snapshot(ctx, userID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	for _, line := range lines {
		if line.ProductID == vase.ID {
			assert.True(t, line.Price.Equal(decimal.NewFromInt(90)))
			assert.True(t, line.UnitPrice.Equal(decimal.NewFromInt(100)))
		}
	}

	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", lamp.ID).Update("deleted_at", time.Now().UTC()).Error)
	_, err = svc.Snapshot(ctx, userID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestCacheServesReadsAndClearInvalidates(t *testing.T) {
	db := setupCartDB(t)
	cache := newMemCache()
	svc := newCartService(t, db, cache, stubCoupons{})
	ctx := context.Background()
	userID := uuid.New()
	p := seedProduct(t, db, "40", nil)

	added, err := svc.AddItem(ctx, userID, AddItemInput{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)
	require.Len(t, added.Lines, 1)
	require.Contains(t, cache.data, "cart:"+userID.String())

	require.NoError(t, db.Exec("DELETE FROM cart_items").Error)
	cached, err := svc.Get(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, cached.Lines, 1)

	require.NoError(t, svc.Clear(ctx, userID))
	assert.NotContains(t, cache.data, "cart:"+userID.String())
	fresh, err := svc.Get(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, fresh.Lines)
}

func TestRemoveUnknownLine(t *testing.T) {
	svc := newCartService(t, setupCartDB(t), nil, stubCoupons{})
	_, err := svc.RemoveItem(context.Background(), uuid.New(), uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestRemoveOrderedKeepsLinesAddedAfterSnapshot(t *testing.T) {
	db := setupCartDB(t)
	cache := newMemCache()
	svc := newCartService(t, db, cache, stubCoupons{})
	ctx := context.Background()
	userID := uuid.New()
	rug := seedProduct(t, db, "900", nil)
	mug := seedProduct(t, db, "150", nil)
	tray := seedProduct(t, db, "300", nil)

	_, err := svc.AddItem(ctx, userID, AddItemInput{ProductID: rug.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, userID, AddItemInput{ProductID: mug.ID, Quantity: 2})
	require.NoError(t, err)
	ordered, err := svc.Snapshot(ctx, userID)
	require.NoError(t, err)
	require.Len(t, ordered, 2)

	_, err = svc.AddItem(ctx, userID, AddItemInput{ProductID: mug.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, userID, AddItemInput{ProductID: tray.ID, Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, svc.RemoveOrdered(ctx, userID, ordered))
	assert.NotContains(t, cache.data, "cart:"+userID.String())

	left, err := svc.Get(ctx, userID)
	require.NoError(t, err)
	quantities := map[uuid.UUID]int{}
	for _, line := range left.Lines {
		quantities[line.ProductID] = line.Quantity
	}
	assert.Equal(t, map[uuid.UUID]int{mug.ID: 1, tray.ID: 1}, quantities)
}
