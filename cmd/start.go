package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"access-sync/core/loader"
	"access-sync/core/logger"
	"access-sync/core/middleware/auth"
	"access-sync/core/middleware/rayid"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the sync HTTP server",
	Long:  `Starts the HTTP server exposing sync passes, history, device status and mirrored entities.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnvironment()
		if err != nil {
			return err
		}
		defer env.close()
		logg := env.logger
		zap.ReplaceGlobals(logg)

		prepareCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = env.feature.Service().Prepare(prepareCtx)
		cancel()
		if err != nil {
			logg.Warn("Report archive unavailable", zap.Error(err))
		}

		app := fiber.New(fiber.Config{
			DisableStartupMessage: true,
			JSONEncoder:           json.Marshal,
			JSONDecoder:           json.Unmarshal,
		})

		mgr := loader.NewManager(logg)
		mgr.Register(env.feature)

		// 1. RayID first so every line can be traced
		app.Use(rayid.New())

		// 2. Request logging
		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		// 3. Metrics stay public for the scraper
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

		// 4. Auth
		app.Use(auth.New(auth.Config{ApiKey: env.cfg.Server.ApiKey}))

		if err := mgr.LoadAll(app); err != nil {
			return err
		}

		errCh := make(chan error, 1)
		go func() {
			logg.Info("Starting server",
				zap.String("port", env.cfg.Server.Port),
				zap.String("device", env.cfg.Device.BaseURL()),
			)
			errCh <- app.Listen(env.cfg.Server.Addr())
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		select {
		case err := <-errCh:
			return err
		case <-quit:
		}

		logg.Info("Shutting down server...")
		return app.ShutdownWithTimeout(10 * time.Second)
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}
