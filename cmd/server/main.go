package main

import (
	"flag"
	"log"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"crmsms/internal/api"
	"crmsms/internal/config"
	"crmsms/internal/query"
	"crmsms/internal/session"
	"crmsms/internal/warehouse"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	// The default path may be absent when everything comes from the
	// environment; an explicitly passed path must exist.
	explicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})
	load := config.LoadDefault
	if explicit {
		load = config.Load
	}
	cfg, err := load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zcfg := zap.NewProductionConfig()
	if *debug || os.Getenv("CRMSMS_DEBUG") == "1" {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	wh, err := warehouse.Open(
		cfg.Warehouse.DSN,
		cfg.Warehouse.MaxOpenConns,
		cfg.Warehouse.MaxIdleConns,
		cfg.Warehouse.MaxLifetime(),
		logger,
	)
	if err != nil {
		logger.Fatal("warehouse", zap.Error(err))
	}
	defer wh.Close()

	sessions := session.NewManager(cfg.Gate.Password, cfg.Warehouse.CacheTTL())

	schema := query.Schema{
		AccountTable:    cfg.Schema.AccountTable,
		ShopTable:       cfg.Schema.ShopTable,
		SalesTable:      cfg.Schema.SalesTable,
		CIDColumn:       cfg.Schema.CIDColumn,
		ExcludeStatuses: cfg.Eligibility.ExcludeStatuses,
		RequireStatus:   cfg.Eligibility.RequireStatus,
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORS())
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	h := api.NewHandler(wh, sessions, schema, cfg.Pricing.UnitCost, logger)
	h.RegisterRoutes(e)

	logger.Info("server ready",
		zap.String("listen", cfg.Server.Listen),
		zap.String("cache_ttl", cfg.Warehouse.QueryCacheTTL))
	e.Logger.Fatal(e.Start(cfg.Server.Listen))
}
