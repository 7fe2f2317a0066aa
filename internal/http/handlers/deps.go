package handlers

import (
	"path/filepath"

	"github.com/jmoiron/sqlx"

	"shopforge/internal/blob"
	"shopforge/internal/config"
	"shopforge/internal/events"
	"shopforge/internal/payment"
	"shopforge/internal/repos"
	"shopforge/internal/services"
)

type Deps struct {
	StoreHandler      *StoreHandler
	ProductHandler    *ProductHandler
	StorefrontHandler *StorefrontHandler
	OrderHandler      *OrderHandler
	AnalyticsHandler  *AnalyticsHandler
	PaymentHandler    *PaymentHandler
	UploadHandler     *UploadHandler
	MediaHandler      *MediaHandler

	// requests per minute per client IP
	PublicRateLimit  int
	PaymentRateLimit int

	Version string
}

// NewDeps builds repos, services and handlers over one shared DB handle.
func NewDeps(db *sqlx.DB, cfg config.Config, gw payment.Gateway, pub events.Publisher) *Deps {
	storeRepo := repos.NewStoreRepo(db)
	prodRepo := repos.NewProductRepo(db)
	orderRepo := repos.NewOrderRepo(db)

	storeSvc := services.NewStoreService(storeRepo)
	catalogSvc := services.NewCatalogService(storeRepo, prodRepo)
	orderSvc := services.NewOrderService(db, storeRepo, prodRepo, orderRepo, pub)
	orderSvc.AllowTotalOverride = cfg.AllowTotalOverride
	orderSvc.DeductInventory = cfg.DeductInventory
	paymentSvc := services.NewPaymentService(db, orderRepo, gw, cfg.RazorpayKeySecret, pub)
	analyticsSvc := services.NewAnalyticsService(storeRepo, prodRepo, orderRepo)

	mediaDir := cfg.MediaDir
	if !filepath.IsAbs(mediaDir) {
		if abs, err := filepath.Abs(mediaDir); err == nil {
			mediaDir = abs
		}
	}

	return &Deps{
		StoreHandler:      &StoreHandler{Stores: storeSvc},
		ProductHandler:    &ProductHandler{Catalog: catalogSvc},
		StorefrontHandler: &StorefrontHandler{Catalog: catalogSvc},
		OrderHandler:      &OrderHandler{Orders: orderSvc},
		AnalyticsHandler:  &AnalyticsHandler{Analytics: analyticsSvc},
		PaymentHandler:    &PaymentHandler{Payments: paymentSvc},
		UploadHandler: &UploadHandler{
			Stores: storeSvc,
			Blobs:  blob.NewLocalStore(mediaDir, "/media", int64(cfg.MaxUploadBytes)),
		},
		MediaHandler:     &MediaHandler{Dir: mediaDir},
		PublicRateLimit:  120,
		PaymentRateLimit: 20,
		Version:          "1.0.0",
	}
}
