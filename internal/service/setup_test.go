package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Mtaasisi/NEON-POS-sub042/internal/dto"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/infra"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/model"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// fakeClock advances one millisecond per reading so receipt order is strict.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

type testEnv struct {
	db       *gorm.DB
	variants repository.VariantRepository
	products ProductService
	variantS VariantService
	units    UnitService
	stock    StockService
}

// newTestEnv opens a private in-memory SQLite database with the real schema,
// including the partial unique index on active serials. One connection means
// concurrent callers queue on it, which stands in for the row lock.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString()[:8])
	db, err := gorm.Open(sqlite.Open(dsn), infra.NewGormConfig())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, infra.Migrate(db))

	productRepo := repository.NewProductRepository(db)
	variantRepo := repository.NewVariantRepository(db)
	movementRepo := repository.NewStockMovementRepository(db)
	priceRepo := repository.NewPriceHistoryRepository(db)

	clock := newFakeClock()
	ps := NewProductService(productRepo, variantRepo).(*productService)
	ps.now = clock.Now
	vs := NewVariantService(productRepo, variantRepo, movementRepo, priceRepo).(*variantService)
	vs.now = clock.Now
	us := NewUnitService(variantRepo, movementRepo, 2).(*unitService)
	us.now = clock.Now

	return &testEnv{
		db:       db,
		variants: variantRepo,
		products: ps,
		variantS: vs,
		units:    us,
		stock:    NewStockService(variantRepo, movementRepo, 2),
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// newParent creates an active product with one parent variant priced cost/selling.
func (e *testEnv) newParent(t *testing.T, cost, selling string) uuid.UUID {
	t.Helper()
	p, err := e.products.CreateProduct(context.Background(), dto.CreateProductRequest{
		Name: "iPhone 13",
		Variants: []dto.VariantInput{{
			Kind:         model.KindParent,
			Name:         "iPhone 13 128GB",
			SKU:          "IP13-128",
			CostPrice:    dec(cost),
			SellingPrice: dec(selling),
		}},
	})
	require.NoError(t, err)
	require.Len(t, p.Variants, 1)
	return uuid.MustParse(p.Variants[0].ID)
}

func (e *testEnv) receive(t *testing.T, parentID uuid.UUID, serial string) *dto.UnitResponse {
	t.Helper()
	u, err := e.units.ReceiveUnit(context.Background(), parentID, dto.ReceiveUnitRequest{Serial: serial})
	require.NoError(t, err)
	return u
}

func (e *testEnv) storedQty(t *testing.T, variantID uuid.UUID) int {
	t.Helper()
	v, err := e.variants.FindByID(context.Background(), variantID)
	require.NoError(t, err)
	return v.Quantity
}
