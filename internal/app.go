// Package internal contains core application functionality
package internal

import (
	"fmt"

	"github.com/karloscodes/cartridge"

	"photokiosk/internal/config"
	"photokiosk/internal/database"
	"photokiosk/internal/kiosk"
)

// Application wraps cartridge.Application with the kiosk's components
type Application struct {
	*cartridge.Application
	DBManager *database.DBManager
	Services  *kiosk.Services
}

// NewApp creates a new application from the environment configuration
func NewApp(opts ...kiosk.Option) (*Application, error) {
	return NewAppWithConfig(config.GetConfig(), opts...)
}

// NewAppWithConfig creates a new application with the provided config
func NewAppWithConfig(cfg *config.Config, opts ...kiosk.Option) (*Application, error) {
	logger := cartridge.NewLogger(cfg, nil)

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	svc, err := kiosk.New(cfg, dbManager.GetConnection(), logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app, err := cartridge.NewApplication(cartridge.ApplicationOptions{
		Config:            cfg,
		Logger:            logger,
		DBManager:         dbManager,
		ServerConfig:      NewServerConfig(),
		RouteMountFunc:    MountAppRoutes(svc),
		BackgroundWorkers: svc.Workers(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &Application{
		Application: app,
		DBManager:   dbManager,
		Services:    svc,
	}, nil
}

// NewServerConfig returns the cartridge server defaults with the global
// Sec-Fetch-Site check turned off. Booth routes run their own check and
// admin routes authenticate with bearer tokens.
func NewServerConfig() *cartridge.ServerConfig {
	cfg := cartridge.DefaultServerConfig()
	cfg.EnableSecFetchSite = false
	return cfg
}
