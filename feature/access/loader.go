package access

import (
	"errors"
	"fmt"

	"access-sync/core/metrics"
	"access-sync/core/reconcile"
	"access-sync/core/storage"
	"access-sync/feature/access/archive"
	"access-sync/feature/access/device"
	"access-sync/feature/access/store"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DeviceClient is the device connection the feature reads from.
type DeviceClient interface {
	device.Loader
	Device
}

// Feature implements the loader.Feature interface.
type Feature struct {
	service *Service
	handler *Handler
}

// NewFeature wires the device adapter, the store gateway, the orchestrator
// and, when enabled, the report archive. objects may be nil when archiving
// is disabled.
func NewFeature(cfg Config, client DeviceClient, db *gorm.DB, objects storage.Client, bucket string, logger *zap.Logger) (*Feature, error) {
	types, err := cfg.EntityTypes()
	if err != nil {
		return nil, fmt.Errorf("sync.types: %w", err)
	}
	policy, err := cfg.Policy()
	if err != nil {
		return nil, fmt.Errorf("sync.on_protocol_error: %w", err)
	}

	gateway := store.New(db, logger)
	reconciler := reconcile.NewReconciler(device.NewAdapter(client), gateway, logger)

	opts := []reconcile.OrchestratorOption{
		reconcile.WithPolicy(policy),
		reconcile.WithObserver(metrics.NewRecorder()),
	}
	if len(types) > 0 {
		opts = append(opts, reconcile.WithDefaultTypes(types...))
	}
	orchestrator := reconcile.NewOrchestrator(reconciler, logger, opts...)

	var arch Archiver
	if cfg.ArchiveEnabled {
		if objects == nil {
			return nil, errors.New("sync.archive_enabled requires a storage client")
		}
		arch = archive.New(objects, bucket, cfg.ArchivePrefix)
	}

	svc := NewService(orchestrator, gateway, arch, client, cfg.HistoryLimit, logger)
	return &Feature{service: svc, handler: NewHandler(svc)}, nil
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "access"
}

// IsEnabled checks if the feature is enabled.
func (f *Feature) IsEnabled() bool {
	return true
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}

// Service returns the sync service, for callers outside HTTP.
func (f *Feature) Service() *Service {
	return f.service
}
