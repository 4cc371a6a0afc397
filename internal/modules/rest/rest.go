// @title FileConv API
// @version 1.0
// @description Local media conversion service API
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://github.com/eric2788/fileconv

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// @host localhost:8080
// @BasePath /
// @schemes http https
package rest

import (
	"context"
	"strings"
	"time"

	"github.com/eric2788/fileconv/internal/modules/config"

	"github.com/sirupsen/logrus"
	"go.uber.org/fx"

	jwtware "github.com/gofiber/contrib/v3/jwt"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	logging "github.com/gofiber/fiber/v3/middleware/logger"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
)

var logger = logrus.WithField("module", "rest")

// routes under these prefixes carry their own signed token
var publicPrefixes = []string{"/results/"}

func provider(ls fx.Lifecycle, cfg *config.Config) *fiber.App {
	app := New(cfg)

	ls.Append(
		fx.StartStopHook(
			func(ctx context.Context) error {
				addr := ":" + cfg.Port
				logger.Infof("starting http server on %s", addr)
				go func() {
					if err := app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
						logger.Errorf("http server error: %v", err)
					}
				}()
				return nil
			},
			func(ctx context.Context) error {
				logger.Info("stopping http server")
				return app.ShutdownWithContext(ctx)
			},
		),
	)

	return app
}

// New builds the app with its middleware stack, without listening.
func New(cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "fileconv",
		BodyLimit: cfg.MaxUploadSize,
	})

	app.Use(recoverer.New())
	app.Use(logging.New(logging.Config{
		Format: "| ${status} | ${latency} | ${ip} | ${method} | ${path} | ${error}\n",
		Stream: logger.Writer(),
	}))

	if cfg.Username != "" && cfg.PasswordHash != "" {
		logger.Info("JWT authentication enabled for REST API")
		app.Post("/login",
			limiter.New(limiter.Config{Max: 10, Expiration: 1 * time.Minute}),
			loginHandler(cfg),
		)
		app.Use(jwtware.New(jwtware.Config{
			Next:       isPublic,
			SigningKey: jwtware.SigningKey{Key: []byte(cfg.JwtSecret)},
		}))
	}

	return app
}

func isPublic(c fiber.Ctx) bool {
	path := c.Path()
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

var Module = fx.Module("rest", fx.Provide(provider))
