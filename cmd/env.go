package cmd

import (
	"context"
	"fmt"
	"time"

	"access-sync/core/config"
	"access-sync/core/database"
	"access-sync/core/logger"
	"access-sync/core/storage"
	"access-sync/feature/access"
	"access-sync/feature/access/device/idface"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// environment holds the connections shared by the start and sync commands.
type environment struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *gorm.DB
	device  *idface.Client
	feature *access.Feature
}

func newEnvironment() (*environment, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}
	l.Info("Connected to database", zap.String("driver", cfg.Database.Driver), zap.String("name", cfg.Database.Name))

	// The object storage client is only needed for the archive.
	var objects storage.Client
	if cfg.Sync.ArchiveEnabled {
		if objects, err = storage.NewClient(cfg.Storage); err != nil {
			return nil, err
		}
	}

	device := idface.NewClient(cfg.Device, l)
	feature, err := access.NewFeature(cfg.Sync, device, db, objects, cfg.Storage.Bucket, l)
	if err != nil {
		return nil, err
	}

	return &environment{cfg: cfg, logger: l, db: db, device: device, feature: feature}, nil
}

// close logs out of the device and flushes the logger.
func (e *environment) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = e.device.Close(ctx)

	if sqlDB, err := e.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = e.logger.Sync()
}
