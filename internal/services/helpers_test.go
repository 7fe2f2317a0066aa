package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"shopforge/internal/domain"
	"shopforge/internal/repos"
	"shopforge/internal/services"
)

func memdb(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := repos.OpenDB("sqlite", ":memory:", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type published struct {
	Topic string
	Key   string
	Event any
}

type recorder struct {
	mu     sync.Mutex
	events []published
}

func (r *recorder) Publish(_ context.Context, topic, key string, event any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{Topic: topic, Key: key, Event: event})
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Topic)
	}
	return out
}

type fixture struct {
	db        *sqlx.DB
	events    *recorder
	stores    *services.StoreService
	catalog   *services.CatalogService
	orders    *services.OrderService
	payments  *services.PaymentService
	analytics *services.AnalyticsService
}

const testSecret = "test_key_secret"

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := memdb(t)
	storeRepo := repos.NewStoreRepo(db)
	prodRepo := repos.NewProductRepo(db)
	orderRepo := repos.NewOrderRepo(db)
	rec := &recorder{}

	return &fixture{
		db:        db,
		events:    rec,
		stores:    services.NewStoreService(storeRepo),
		catalog:   services.NewCatalogService(storeRepo, prodRepo),
		orders:    services.NewOrderService(db, storeRepo, prodRepo, orderRepo, rec),
		payments:  services.NewPaymentService(db, orderRepo, nil, testSecret, rec),
		analytics: services.NewAnalyticsService(storeRepo, prodRepo, orderRepo),
	}
}

func (f *fixture) store(t *testing.T, name string) domain.Store {
	t.Helper()
	st, err := f.stores.Create(context.Background(), services.StoreInput{Name: name})
	require.NoError(t, err)
	return st
}

func (f *fixture) product(t *testing.T, storeID, name, price string, inventory int) domain.Product {
	t.Helper()
	p := decimal.RequireFromString(price)
	prod, err := f.catalog.CreateProduct(context.Background(), storeID, services.ProductInput{
		Name:      name,
		Price:     &p,
		Inventory: &inventory,
	})
	require.NoError(t, err)
	return prod
}

func (f *fixture) countOrders(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.Get(&n, `SELECT COUNT(*) FROM orders`))
	return n
}

func customer() domain.CustomerInfo {
	return domain.CustomerInfo{Name: "Jane Doe", Email: "jane@example.com"}
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }
