package convert

import (
	"errors"
	"io"
	"mime/multipart"

	"github.com/eric2788/fileconv/internal/services/convert"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("controller", "convert")

// multipart field names accepted for uploads
var uploadFields = []string{"files", "files[]"}

type Controller struct {
	convertSvc *convert.Service
}

func NewController(app *fiber.App, convertSvc *convert.Service) *Controller {
	cc := &Controller{
		convertSvc: convertSvc,
	}

	jobs := app.Group("/jobs")
	jobs.Get("/", cc.listJobs)
	jobs.Post("/", cc.addJobs)
	jobs.Delete("/", cc.clearJobs)
	jobs.Post("/convert", cc.convertAll)
	jobs.Get("/:id", cc.getJob)
	jobs.Patch("/:id", cc.setTargetFormat)
	jobs.Delete("/:id", cc.removeJob)
	jobs.Post("/:id/convert", cc.convertJob)
	jobs.Post("/:id/retry", cc.retryJob)
	return cc
}

// @Summary List jobs
// @Description List every queued job in insertion order
// @Tags jobs
// @Security BearerAuth
// @Accept json
// @Produce json
// @Success 200 {object} JobList "Queued jobs"
// @Router /jobs [get]
func (c *Controller) listJobs(ctx fiber.Ctx) error {
	return ctx.JSON(&JobList{
		Jobs:         c.convertSvc.List(),
		BatchRunning: c.convertSvc.BatchRunning(),
		Stats:        c.convertSvc.Stats(),
	})
}

// @Summary Add files
// @Description Upload one or more files as pending jobs. Without category the category is detected per file.
// @Tags jobs
// @Security BearerAuth
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "Files to convert"
// @Param category formData string false "video, audio or image"
// @Success 201 {array} convert.View "Added jobs"
// @Failure 400 {string} string "Bad Request"
// @Failure 413 {string} string "Request Entity Too Large"
// @Router /jobs [post]
func (c *Controller) addJobs(ctx fiber.Ctx) error {
	form, err := ctx.MultipartForm()
	if err != nil {
		logger.Warnf("error parsing multipart form: %v", err)
		return fiber.NewError(fiber.StatusBadRequest, "無效的上傳表單")
	}

	var headers []*multipart.FileHeader
	for _, field := range uploadFields {
		headers = append(headers, form.File[field]...)
	}

	uploads := make([]convert.Upload, 0, len(headers))
	for _, fh := range headers {
		upload, err := readUpload(fh)
		if err != nil {
			logger.Errorf("error reading uploaded file %s: %v", fh.Filename, err)
			return fiber.ErrInternalServerError
		}
		uploads = append(uploads, upload)
	}

	views, err := c.convertSvc.Add(uploads, ctx.FormValue("category"))
	if err != nil {
		return c.parseFiberError(err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(views)
}

// @Summary Get job
// @Tags jobs
// @Security BearerAuth
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} convert.View "Job"
// @Failure 404 {string} string "Not Found"
// @Router /jobs/{id} [get]
func (c *Controller) getJob(ctx fiber.Ctx) error {
	view, err := c.convertSvc.Get(ctx.Params("id"))
	if err != nil {
		return c.parseFiberError(err)
	}
	return ctx.JSON(view)
}

// @Summary Change target format
// @Description Change the target format of a pending job
// @Tags jobs
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Job ID"
// @Param body body FormatRequest true "Target format"
// @Success 200 {object} convert.View "Updated job"
// @Failure 400 {string} string "Bad Request"
// @Failure 404 {string} string "Not Found"
// @Failure 409 {string} string "Conflict: job is not pending"
// @Router /jobs/{id} [patch]
func (c *Controller) setTargetFormat(ctx fiber.Ctx) error {
	var req FormatRequest
	if err := ctx.Bind().Body(&req); err != nil || req.Format == "" {
		return fiber.ErrBadRequest
	}
	id := ctx.Params("id")
	if err := c.convertSvc.SetTargetFormat(id, req.Format); err != nil {
		return c.parseFiberError(err)
	}
	view, err := c.convertSvc.Get(id)
	if err != nil {
		return c.parseFiberError(err)
	}
	return ctx.JSON(view)
}

// @Summary Remove job
// @Description Remove a job in any state and release its result. Unknown ids are ignored.
// @Tags jobs
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Success 204 "No Content"
// @Router /jobs/{id} [delete]
func (c *Controller) removeJob(ctx fiber.Ctx) error {
	c.convertSvc.Remove(ctx.Params("id"))
	return ctx.SendStatus(fiber.StatusNoContent)
}

// @Summary Clear jobs
// @Description Remove every job and release every result
// @Tags jobs
// @Security BearerAuth
// @Success 204 "No Content"
// @Router /jobs [delete]
func (c *Controller) clearJobs(ctx fiber.Ctx) error {
	c.convertSvc.ClearAll()
	return ctx.SendStatus(fiber.StatusNoContent)
}

// @Summary Convert job
// @Description Start converting a pending job in background
// @Tags jobs
// @Security BearerAuth
// @Produce json
// @Param id path string true "Job ID"
// @Success 202 {object} convert.View "Job accepted"
// @Failure 404 {string} string "Not Found"
// @Failure 503 {string} string "Engine not ready"
// @Router /jobs/{id}/convert [post]
func (c *Controller) convertJob(ctx fiber.Ctx) error {
	id := ctx.Params("id")
	if err := c.convertSvc.StartConvert(id); err != nil {
		logger.Warnf("cannot start conversion of job %s: %v", id, err)
		return c.parseFiberError(err)
	}
	view, err := c.convertSvc.Get(id)
	if err != nil {
		return c.parseFiberError(err)
	}
	return ctx.Status(fiber.StatusAccepted).JSON(view)
}

// @Summary Retry job
// @Description Put a failed job back to pending
// @Tags jobs
// @Security BearerAuth
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} convert.View "Pending job"
// @Failure 404 {string} string "Not Found"
// @Failure 409 {string} string "Conflict: job has not failed"
// @Router /jobs/{id}/retry [post]
func (c *Controller) retryJob(ctx fiber.Ctx) error {
	id := ctx.Params("id")
	if err := c.convertSvc.Retry(id); err != nil {
		return c.parseFiberError(err)
	}
	view, err := c.convertSvc.Get(id)
	if err != nil {
		return c.parseFiberError(err)
	}
	return ctx.JSON(view)
}

// @Summary Convert all
// @Description Start converting every pending job in queue order
// @Tags jobs
// @Security BearerAuth
// @Produce json
// @Success 202 {object} BatchStatus "Batch started"
// @Failure 409 {string} string "Conflict: batch already running"
// @Failure 503 {string} string "Engine not ready"
// @Router /jobs/convert [post]
func (c *Controller) convertAll(ctx fiber.Ctx) error {
	if err := c.convertSvc.StartConvertAll(); err != nil {
		logger.Warnf("cannot start batch conversion: %v", err)
		return c.parseFiberError(err)
	}
	return ctx.Status(fiber.StatusAccepted).JSON(&BatchStatus{BatchRunning: true})
}

func (c *Controller) parseFiberError(err error) error {
	switch {
	case errors.Is(err, convert.ErrJobNotFound):
		return fiber.NewError(fiber.StatusNotFound, "找不到該轉檔任務")
	case errors.Is(err, convert.ErrJobNotPending):
		return fiber.NewError(fiber.StatusConflict, "只能修改等待中的任務")
	case errors.Is(err, convert.ErrJobNotFailed):
		return fiber.NewError(fiber.StatusConflict, "只能重試失敗的任務")
	case errors.Is(err, convert.ErrUnsupportedFormat):
		return fiber.NewError(fiber.StatusBadRequest, "不支援此檔案類別的目標格式")
	case errors.Is(err, convert.ErrUnknownCategory):
		return fiber.NewError(fiber.StatusBadRequest, "未知的檔案類別")
	case errors.Is(err, convert.ErrBatchRunning):
		return fiber.NewError(fiber.StatusConflict, "批次轉檔已在進行中")
	case errors.Is(err, convert.ErrEngineNotReady), errors.Is(err, convert.ErrShuttingDown):
		return fiber.NewError(fiber.StatusServiceUnavailable, "轉檔引擎尚未就緒")
	default:
		logger.Errorf("unexpected error: %v", err)
		return fiber.ErrInternalServerError
	}
}

func readUpload(fh *multipart.FileHeader) (convert.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return convert.Upload{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return convert.Upload{}, err
	}
	return convert.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
