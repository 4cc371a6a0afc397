package main_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/eric2788/fileconv/internal/controllers/convert"
	"github.com/eric2788/fileconv/internal/controllers/engine"
	"github.com/eric2788/fileconv/internal/controllers/result"
	"github.com/eric2788/fileconv/internal/modules/config"
	e "github.com/eric2788/fileconv/internal/modules/engine"
	"github.com/eric2788/fileconv/internal/modules/rest"
	c "github.com/eric2788/fileconv/internal/services/convert"
	r "github.com/eric2788/fileconv/internal/services/result"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

func TestAppLaunch(t *testing.T) {
	t.Setenv("WORK_DIR", t.TempDir())
	t.Setenv("PORT", "0")
	t.Setenv("FFMPEG_PATH", "")
	t.Setenv("USERNAME", "")
	t.Setenv("PASSWORD", "")

	var app *fiber.App
	fxApp := fxtest.New(t,
		config.Module,
		e.Module,
		rest.Module,

		fx.Provide(r.NewService),
		fx.Provide(c.NewService),

		fx.Invoke(convert.NewController),
		fx.Invoke(engine.NewController),
		fx.Invoke(result.NewController),

		fx.Populate(&app),
	)
	fxApp.RequireStart()
	defer fxApp.RequireStop()

	for _, path := range []string{"/jobs", "/formats", "/engine"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
	t.Log("REST app started successfully")
}
