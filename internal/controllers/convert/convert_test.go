package convert_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	convertctl "github.com/eric2788/fileconv/internal/controllers/convert"
	resultctl "github.com/eric2788/fileconv/internal/controllers/result"
	"github.com/eric2788/fileconv/internal/modules/config"
	"github.com/eric2788/fileconv/internal/modules/engine"
	"github.com/eric2788/fileconv/internal/services/convert"
	"github.com/eric2788/fileconv/internal/services/result"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// copyEngine writes the input back as output with a prefix.
type copyEngine struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (e *copyEngine) WriteFile(_ context.Context, name string, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.files[name] = data
	return nil
}

func (e *copyEngine) Exec(_ context.Context, args []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.files[args[len(args)-1]] = append([]byte("converted:"), e.files[args[1]]...)
	return nil
}

func (e *copyEngine) ReadFile(_ context.Context, name string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.files[name], nil
}

func (e *copyEngine) DeleteFile(_ context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.files, name)
	return nil
}

type source struct {
	handle engine.Handle
	err    error
}

func (s source) Handle() (engine.Handle, error) { return s.handle, s.err }

func setup(t *testing.T, src source) (*fiber.App, *convert.Service) {
	t.Helper()
	store, err := result.Open(t.TempDir(), []byte("secret"), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc := convert.New(src, store)
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

	app := fiber.New()
	convertctl.NewController(app, svc)
	resultctl.NewController(app, &config.Config{}, store)
	return app, svc
}

func ready() source {
	return source{handle: &copyEngine{files: make(map[string][]byte)}}
}

func uploadRequest(t *testing.T, category string, files map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for name, content := range files {
		part, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	if category != "" {
		require.NoError(t, w.WriteField("category", category))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/jobs", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func jsonRequest(method, target, body string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func do(t *testing.T, app *fiber.App, req *http.Request, out any) int {
	t.Helper()
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, out), string(raw))
	}
	return resp.StatusCode
}

func TestUploadConvertDownload(t *testing.T) {
	app, _ := setup(t, ready())

	var added []convert.View
	status := do(t, app, uploadRequest(t, "", map[string]string{"clip.mov": "movie"}), &added)
	require.Equal(t, http.StatusCreated, status)
	require.Len(t, added, 1)
	job := added[0]
	assert.Equal(t, "video", job.Category)
	assert.Equal(t, "mp4", job.TargetFormat)

	var patched convert.View
	status = do(t, app, jsonRequest(http.MethodPatch, "/jobs/"+job.ID, `{"format":"webm"}`), &patched)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "webm", patched.TargetFormat)

	status = do(t, app, jsonRequest(http.MethodPost, "/jobs/"+job.ID+"/convert", ""), nil)
	require.Equal(t, http.StatusAccepted, status)

	var got convert.View
	require.Eventually(t, func() bool {
		do(t, app, jsonRequest(http.MethodGet, "/jobs/"+job.ID, ""), &got)
		return got.Status == convert.StatusConverted
	}, 2*time.Second, 10*time.Millisecond)
	require.NotNil(t, got.Result)
	assert.Equal(t, "clip.webm", got.Result.Filename)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, got.Result.URL, nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `filename="clip.webm"`)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "converted:movie", string(data))

	// deleting the job revokes the link
	status = do(t, app, jsonRequest(http.MethodDelete, "/jobs/"+job.ID, ""), nil)
	assert.Equal(t, http.StatusNoContent, status)
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, got.Result.URL, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListAndClear(t *testing.T) {
	app, _ := setup(t, ready())

	status := do(t, app, uploadRequest(t, "audio", map[string]string{"a.wav": "x", "b.mp4": "y"}), nil)
	require.Equal(t, http.StatusCreated, status)

	var list convertctl.JobList
	require.Equal(t, http.StatusOK, do(t, app, jsonRequest(http.MethodGet, "/jobs", ""), &list))
	assert.Len(t, list.Jobs, 2)
	assert.False(t, list.BatchRunning)
	assert.Equal(t, 2, list.Stats.Pending)
	for _, j := range list.Jobs {
		assert.Equal(t, "audio", j.Category)
	}

	assert.Equal(t, http.StatusNoContent, do(t, app, jsonRequest(http.MethodDelete, "/jobs", ""), nil))
	assert.Equal(t, http.StatusNoContent, do(t, app, jsonRequest(http.MethodDelete, "/jobs/missing", ""), nil))
	require.Equal(t, http.StatusOK, do(t, app, jsonRequest(http.MethodGet, "/jobs", ""), &list))
	assert.Empty(t, list.Jobs)
}

func TestConvertAllEndpoint(t *testing.T) {
	app, svc := setup(t, ready())

	do(t, app, uploadRequest(t, "", map[string]string{"a.png": "x", "b.gif": "y"}), nil)

	var batch convertctl.BatchStatus
	require.Equal(t, http.StatusAccepted, do(t, app, jsonRequest(http.MethodPost, "/jobs/convert", ""), &batch))
	assert.True(t, batch.BatchRunning)

	assert.Eventually(t, func() bool {
		return !svc.BatchRunning() && svc.Stats().Converted == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestErrorMapping(t *testing.T) {
	app, svc := setup(t, source{err: engine.ErrNotReady})

	assert.Equal(t, http.StatusBadRequest, do(t, app, uploadRequest(t, "document", map[string]string{"a.txt": "x"}), nil))

	views, err := svc.Add([]convert.Upload{{Filename: "a.mp3", Data: []byte("x")}, {Filename: "b.mp3", Data: []byte("y")}}, "")
	require.NoError(t, err)
	id := views[0].ID

	assert.Equal(t, http.StatusNotFound, do(t, app, jsonRequest(http.MethodGet, "/jobs/missing", ""), nil))
	assert.Equal(t, http.StatusBadRequest, do(t, app, jsonRequest(http.MethodPatch, "/jobs/"+id, `{"format":"mp4"}`), nil))
	assert.Equal(t, http.StatusBadRequest, do(t, app, jsonRequest(http.MethodPatch, "/jobs/"+id, `{}`), nil))
	assert.Equal(t, http.StatusNotFound, do(t, app, jsonRequest(http.MethodPatch, "/jobs/missing", `{"format":"wav"}`), nil))
	assert.Equal(t, http.StatusConflict, do(t, app, jsonRequest(http.MethodPost, "/jobs/"+id+"/retry", ""), nil))

	assert.Equal(t, http.StatusServiceUnavailable, do(t, app, jsonRequest(http.MethodPost, "/jobs/convert", ""), nil))
	assert.Equal(t, http.StatusServiceUnavailable, do(t, app, jsonRequest(http.MethodPost, "/jobs/"+id+"/convert", ""), nil))

	// the job failed with the engine error and can be retried
	var retried convert.View
	assert.Equal(t, http.StatusOK, do(t, app, jsonRequest(http.MethodPost, "/jobs/"+id+"/retry", ""), &retried))
	assert.Equal(t, convert.StatusPending, retried.Status)

	assert.Equal(t, http.StatusNotFound, do(t, app, jsonRequest(http.MethodGet, "/results/bogus", ""), nil))
}
