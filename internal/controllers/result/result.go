package result

import (
	"bytes"
	"context"
	"errors"

	"github.com/eric2788/fileconv/internal/modules/config"
	"github.com/eric2788/fileconv/internal/services/result"
	"github.com/eric2788/fileconv/pkg/pool"
	"github.com/eric2788/fileconv/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("controller", "result")

type Controller struct {
	resultSvc *result.Service
	rateLimit int
}

func NewController(app *fiber.App, cfg *config.Config, resultSvc *result.Service) *Controller {
	rc := &Controller{
		resultSvc: resultSvc,
		rateLimit: cfg.DownloadRateLimit,
	}
	app.Get("/results/:token", rc.download)
	return rc
}

// @Summary Download result
// @Description Download a converted file through its signed link (no auth required)
// @Tags results
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary "File stream"
// @Failure 404 {string} string "Not Found"
// @Router /results/{token} [get]
func (c *Controller) download(ctx fiber.Ctx) error {
	id, err := c.resultSvc.Resolve(ctx.Params("token"))
	if err != nil {
		logger.Debugf("rejected download token: %v", err)
		return c.parseFiberError(err)
	}
	handle, data, err := c.resultSvc.Open(id)
	if err != nil {
		logger.Warnf("error opening result %s: %v", id, err)
		return c.parseFiberError(err)
	}

	ctx.Set(fiber.HeaderContentType, handle.ContentType)
	ctx.Set(fiber.HeaderContentDisposition, utils.AttachmentDisposition(handle.Filename))

	// the body is streamed after the handler returns, so the request context cannot bound it
	reader := pool.NewLimitReader(context.Background(), bytes.NewReader(data), c.rateLimit, config.ReadOnly.DownloadBufferSize())
	return ctx.SendStream(reader, len(data))
}

func (c *Controller) parseFiberError(err error) error {
	switch {
	case errors.Is(err, result.ErrLinkRevoked), errors.Is(err, result.ErrHandleNotFound):
		return fiber.NewError(fiber.StatusNotFound, "下載連結已失效或檔案不存在")
	case errors.Is(err, result.ErrClosed):
		return fiber.ErrServiceUnavailable
	default:
		return fiber.ErrInternalServerError
	}
}
