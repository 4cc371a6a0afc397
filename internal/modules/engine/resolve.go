package engine

import (
	"context"
	"net/http"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/eric2788/fileconv/internal/modules/config"
	"github.com/eric2788/fileconv/pkg/monitor"
	"github.com/eric2788/fileconv/pkg/pool"
	"github.com/eric2788/fileconv/utils"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

const downloadLogStep = 16 * 1024 * 1024

// Resolver locates the ffmpeg binary: an explicit path first, then $PATH, then a
// copy previously fetched into binDir, then a fresh download.
type Resolver struct {
	path        string
	downloadURL string
	binDir      string
	client      *resty.Client
	probe       func(bin string) bool
}

func NewResolver(path, downloadURL, binDir string) *Resolver {
	return &Resolver{
		path:        path,
		downloadURL: downloadURL,
		binDir:      binDir,
		client:      resty.New().SetHeader("User-Agent", "fileconv"),
		probe:       utils.BinaryAvailable,
	}
}

func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	if r.path != "" {
		if !r.probe(r.path) {
			return "", errors.Wrapf(ErrBinaryNotFound, "configured path %s is not runnable", r.path)
		}
		return r.path, nil
	}

	if p, err := exec.LookPath(binaryName()); err == nil && r.probe(p) {
		return p, nil
	}

	local := filepath.Join(r.binDir, binaryName())
	if utils.IsFileExists(local) && r.probe(local) {
		return local, nil
	}

	if r.downloadURL == "" {
		return "", ErrBinaryNotFound
	}

	logger.Infof("ffmpeg not found locally, downloading from %s", r.downloadURL)
	if err := r.download(ctx, local); err != nil {
		return "", errors.Wrap(err, "download ffmpeg")
	}
	if !r.probe(local) {
		return "", errors.Wrapf(ErrBinaryNotFound, "downloaded binary %s is not runnable", local)
	}
	return local, nil
}

func (r *Resolver) download(ctx context.Context, dest string) error {
	resp, err := r.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(r.downloadURL)
	if err != nil {
		return err
	}
	body := resp.RawBody()
	if resp.StatusCode() != http.StatusOK {
		body.Close()
		return errors.Errorf("unexpected status code: %d", resp.StatusCode())
	}
	progress := monitor.NewProgressReader(body, downloadLogStep, func(read int64) {
		logger.Infof("downloaded %s of ffmpeg", humanize.Bytes(uint64(read)))
	})
	writer := pool.NewFileStreamWriter(ctx, pool.NewBytesPool(config.ReadOnly.DownloadBufferSize())).WithPerm(0755)
	return writer.WriteToFile(progress, dest, config.ReadOnly.DownloadWriterBufferSize())
}

func binaryName() string {
	if runtime.GOOS == "windows" {
		return "ffmpeg.exe"
	}
	return "ffmpeg"
}
