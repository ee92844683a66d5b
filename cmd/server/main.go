package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	glog "github.com/labstack/gommon/log"

	"github.com/ArRuslan/ticketer/internal/cache"
	"github.com/ArRuslan/ticketer/internal/claims"
	"github.com/ArRuslan/ticketer/internal/config"
	"github.com/ArRuslan/ticketer/internal/database"
	"github.com/ArRuslan/ticketer/internal/gateway"
	"github.com/ArRuslan/ticketer/internal/queue"
	"github.com/ArRuslan/ticketer/internal/repository"
	"github.com/ArRuslan/ticketer/internal/router"
	queue_publisher "github.com/ArRuslan/ticketer/internal/service"
	"github.com/ArRuslan/ticketer/internal/service/auth"
	"github.com/ArRuslan/ticketer/internal/service/tickets"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load()
	gwCfg := config.LoadGatewayConfig()
	cacheCfg := config.LoadCacheConfig()

	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(glog.INFO)
	if cfg.Env == "dev" {
		e.Logger.SetLevel(glog.DEBUG)
	}
	e.Use(echomw.RequestID())
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())

	store := openStore(cfg, e.Logger)

	rdb := config.NewRedisClient()
	if rdb == nil {
		e.Logger.Warn("redis unavailable: caching, rate limiting and gate replay protection are off")
	}

	opts := tickets.Options{
		Logger:         e.Logger,
		GatewayTimeout: gwCfg.Timeout,
		CacheTTL:       cacheCfg.TicketTTL,
	}
	if rdb != nil {
		if cacheCfg.Enabled {
			opts.Cache = cache.New(rdb)
		}
		opts.Ledger = cache.NewLedger(rdb)
	}
	if cfg.RabbitURL != "" {
		pub := queue_publisher.New(cfg.RabbitURL)
		defer pub.Close()
		opts.Events = pub
		go queue.StartTicketConsumer(cfg.RabbitURL)
	} else {
		e.Logger.Warn("RABBITMQ_URL not set: ticket events are not published")
	}

	codec := claims.NewCodec(cfg.JWTKey)
	paypal := gateway.NewPayPal(gateway.Config{
		BaseURL:      gwCfg.PayPalBaseURL,
		ClientID:     gwCfg.PayPalClientID,
		ClientSecret: gwCfg.PayPalClientSecret,
		Currency:     gwCfg.PayPalCurrency,
		Timeout:      gwCfg.Timeout,
	})

	var google auth.GoogleService
	if gwCfg.GoogleClientID != "" {
		google = gateway.NewGoogle(gateway.GoogleConfig{
			ClientID:     gwCfg.GoogleClientID,
			ClientSecret: gwCfg.GoogleClientSecret,
			RedirectURL:  gwCfg.GoogleRedirectURL,
			Timeout:      gwCfg.Timeout,
		})
	}

	router.Register(e, router.Deps{
		Auth:      auth.New(store, codec, google, auth.Config{BcryptCost: cfg.BcryptCost, SessionTTL: cfg.SessionTTL}),
		Tickets:   tickets.New(store, paypal, codec, opts),
		Redis:     rdb,
		Cache:     cacheCfg,
		RateLimit: config.LoadRateLimitConfig(),
	})

	addr := ":" + cfg.Port
	e.Logger.Infof("listening on %s (env=%s, store=%s)", addr, cfg.Env, cfg.StoreDriver)
	if err := e.Start(addr); err != nil {
		e.Logger.Fatal(err)
	}
}

func openStore(cfg config.Config, logger echo.Logger) repository.Store {
	if cfg.StoreDriver == config.DriverMemory {
		store := repository.NewMemoryStore()
		if cfg.SeedFile != "" {
			n, err := loadSeed(context.Background(), store, cfg.SeedFile, cfg.BcryptCost)
			if err != nil {
				logger.Fatalf("seed %s: %v", cfg.SeedFile, err)
			}
			logger.Infof("seeded %d events from %s", n, cfg.SeedFile)
		}
		return store
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := database.Migrate(ctx, db); err != nil {
		logger.Fatalf("migrate: %v", err)
	}
	return repository.NewMySQLStore(db)
}
