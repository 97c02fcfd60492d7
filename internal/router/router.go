package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sabordecasa/api/internal/config"
	"github.com/sabordecasa/api/internal/database"
	"github.com/sabordecasa/api/internal/enum"
	"github.com/sabordecasa/api/internal/handler"
	"github.com/sabordecasa/api/internal/mail"
	mw "github.com/sabordecasa/api/internal/middleware"
	"github.com/sabordecasa/api/internal/service"
	"github.com/sabordecasa/api/internal/ws"
	"github.com/sirupsen/logrus"
)

// New creates a Chi router with all application routes wired up.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub, log logrus.FieldLogger) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",            // SvelteKit dev server
			"https://app.sabordecasa.com.br",   // Production storefront
			"https://admin.sabordecasa.com.br", // Production back office
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// --- Services ---

	settings := service.NewSettingsCache(queries, cfg.SettingsCacheTTL)
	hours := service.NewStoreHours(queries, cfg.SettingsCacheTTL)
	pricing := service.NewPricing()
	stock := service.NewStockLedger(func(db database.DBTX) service.StockStore {
		return database.New(db)
	})
	loyalty := service.NewLoyaltyLedger(pool, func(db database.DBTX) service.LoyaltyStore {
		return database.New(db)
	}, settings)
	tables := service.NewTableBinder(func(db database.DBTX) service.TableStore {
		return database.New(db)
	})
	financial := service.NewFinancialPoster(func(db database.DBTX) service.FinancialStore {
		return database.New(db)
	})
	carts := service.NewCartService(pool, func(db database.DBTX) service.CartStore {
		return database.New(db)
	}, stock)
	orders := service.NewOrderService(service.OrderServiceDeps{
		Pool: pool,
		DB:   pool,
		NewStore: func(db database.DBTX) service.OrderStore {
			return database.New(db)
		},
		Stock:     stock,
		Pricing:   pricing,
		Loyalty:   loyalty,
		Tables:    tables,
		Financial: financial,
		Settings:  settings,
		Hours:     hours,
		Cart:      carts,
		Notifier:  ws.NewNotifier(hub, log),
		Mailer:    mail.NewLogMailer(log),
		Log:       log,
	})

	// --- Public routes ---

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/{channel}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	productHandler := handler.NewProductHandler(queries, pricing)
	promotionHandler := handler.NewPromotionHandler(queries, pricing)
	r.Route("/products", func(r chi.Router) {
		productHandler.RegisterRoutes(r)
		r.Get("/{id}/price", promotionHandler.ResolvePrice(queries))
	})

	// Carts work for guests too; a bearer token scopes the cart to the user.
	cartHandler := handler.NewCartHandler(carts, pool)
	r.Group(func(r chi.Router) {
		r.Use(mw.OptionalAuthenticate(cfg.JWTSecret))
		r.Route("/carts", cartHandler.RegisterRoutes)
	})

	// --- Authenticated routes ---

	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		staffOnly := mw.RequireRole(enum.UserRoleManager, enum.UserRoleAttendant, enum.UserRoleKitchen)
		managerOnly := mw.RequireRole(enum.UserRoleManager)

		orderHandler := handler.NewOrderHandler(orders)
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", orderHandler.Create)
			r.Post("/from-cart", orderHandler.CreateFromCart)
			r.Get("/mine", orderHandler.ListMine)
			r.Get("/{id}", orderHandler.Get)
			r.Delete("/{id}", orderHandler.Cancel)
			r.With(staffOnly).Get("/", orderHandler.List)
			r.With(staffOnly).Patch("/{id}/status", orderHandler.UpdateStatus)
			r.With(managerOnly).Post("/{id}/uncancel", orderHandler.Uncancel)
		})

		loyaltyHandler := handler.NewLoyaltyHandler(loyalty, pool)
		r.Route("/loyalty", func(r chi.Router) {
			loyaltyHandler.RegisterRoutes(r)
			r.With(managerOnly).Post("/expire", loyaltyHandler.ExpireSweep)
		})

		userHandler := handler.NewUserHandler(queries)
		r.Route("/addresses", userHandler.RegisterAddressRoutes)

		// Staff routes
		r.Group(func(r chi.Router) {
			r.Use(staffOnly)

			tableHandler := handler.NewTableHandler(tables, pool)
			r.Route("/tables", tableHandler.RegisterRoutes)

			stockHandler := handler.NewStockHandler(stock, queries, pool)
			r.Route("/stock", stockHandler.RegisterRoutes)
		})

		// Manager routes
		r.Group(func(r chi.Router) {
			r.Use(managerOnly)

			r.Route("/users", userHandler.RegisterStaffRoutes)
			r.Route("/promotions", promotionHandler.RegisterRoutes)

			financialHandler := handler.NewFinancialHandler(financial, pool)
			r.Route("/financial", financialHandler.RegisterRoutes)

			settingsHandler := handler.NewSettingsHandler(queries, settings, hours)
			r.Route("/settings", settingsHandler.RegisterRoutes)
		})
	})

	return r
}
