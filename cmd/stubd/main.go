package main

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/vanmilkco/storefront/internal/config"
	"github.com/vanmilkco/storefront/internal/stub"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	store := stub.NewStore()
	stub.Seed(store)

	opts := stub.Options{
		JWTKey: []byte(cfg.SessionJWTKey),
		Logger: logger,
	}
	if cfg.DatabaseURL != "" {
		products, err := stub.NewPostgresProductStore(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("connect product database", zap.Error(err))
		}
		logger.Info("serving products from postgres")
		opts.Products = products
	}

	server := stub.NewServer(store, opts)
	logger.Info("stub backend listening", zap.String("port", cfg.AppPort))
	if err := http.ListenAndServe(":"+cfg.AppPort, server); err != nil {
		logger.Fatal("serve", zap.Error(err))
	}
}
