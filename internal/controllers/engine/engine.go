package engine

import (
	"github.com/eric2788/fileconv/internal/modules/engine"
	"github.com/eric2788/fileconv/internal/services/format"
	"github.com/eric2788/fileconv/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("controller", "engine")

type Controller struct {
	loader *engine.Loader
}

func NewController(app *fiber.App, loader *engine.Loader) *Controller {
	ec := &Controller{loader: loader}
	app.Get("/engine", ec.getStatus)
	app.Get("/formats", ec.listFormats)
	return ec
}

// @Summary Engine status
// @Description Show whether the conversion engine is loaded, plus host resources
// @Tags engine
// @Security BearerAuth
// @Produce json
// @Success 200 {object} engine.Status "Engine status"
// @Router /engine [get]
func (c *Controller) getStatus(ctx fiber.Ctx) error {
	st := c.loader.Status(ctx.Context())
	logger.Debugf("engine status: %s", utils.PrettyPrintJSON(st))
	return ctx.JSON(st)
}

// @Summary Supported formats
// @Description List every file category with its target formats and default
// @Tags engine
// @Security BearerAuth
// @Produce json
// @Success 200 {array} format.Category "Format table"
// @Router /formats [get]
func (c *Controller) listFormats(ctx fiber.Ctx) error {
	return ctx.JSON(format.All())
}
