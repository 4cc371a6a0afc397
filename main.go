package main

import (
	"time"

	"github.com/eric2788/fileconv/internal/controllers/convert"
	"github.com/eric2788/fileconv/internal/controllers/engine"
	"github.com/eric2788/fileconv/internal/controllers/result"
	"github.com/eric2788/fileconv/internal/modules/config"
	e "github.com/eric2788/fileconv/internal/modules/engine"
	"github.com/eric2788/fileconv/internal/modules/rest"
	c "github.com/eric2788/fileconv/internal/services/convert"
	r "github.com/eric2788/fileconv/internal/services/result"
	"go.uber.org/fx"
)

func main() {

	app := fx.New(
		config.Module,
		e.Module,
		rest.Module,

		fx.Provide(r.NewService),
		fx.Provide(c.NewService),

		fx.Invoke(convert.NewController),
		fx.Invoke(engine.NewController),
		fx.Invoke(result.NewController),

		fx.StartTimeout(30*time.Second),
	)

	app.Run()
}
