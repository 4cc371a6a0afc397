package engine

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/eric2788/fileconv/pkg/ds"
	"github.com/eric2788/fileconv/utils"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const stderrTailSize = 4 * 1024

var engineFlags = []string{"-hide_banner", "-nostdin", "-y"}

// FFmpeg runs the ffmpeg binary inside a scratch directory which serves as the
// instance's virtual filesystem.
type FFmpeg struct {
	bin    string
	dir    string
	files  ds.Set[string]
	logger *logrus.Entry
}

func NewFFmpeg(bin, dir string) (*FFmpeg, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "create engine workspace")
	}
	return &FFmpeg{
		bin:    bin,
		dir:    dir,
		files:  ds.NewSyncedSet[string](),
		logger: logger.WithField("workspace", filepath.Base(dir)),
	}, nil
}

func (f *FFmpeg) Binary() string {
	return f.bin
}

func (f *FFmpeg) Dir() string {
	return f.dir
}

func (f *FFmpeg) WriteFile(ctx context.Context, name string, data []byte) error {
	path, err := f.resolve(name)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "write %s", name)
	}
	f.files.Add(name)
	return nil
}

func (f *FFmpeg) Exec(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, f.bin, append(append([]string{}, engineFlags...), args...)...)
	cmd.Dir = f.dir

	out := f.logger.WriterLevel(logrus.DebugLevel)
	defer out.Close()

	tail := &tailWriter{max: stderrTailSize}
	cmd.Stdout = out
	cmd.Stderr = io.MultiWriter(out, tail)

	f.logger.Debugf("exec %s %s", filepath.Base(f.bin), strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Wrap(ctxErr, "exec aborted")
		}
		execErr := &ExecError{
			Args:     args,
			ExitCode: -1,
			Message:  utils.EmptyOrElse(tail.lastLine(), err.Error()),
			err:      err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			execErr.ExitCode = exitErr.ExitCode()
		}
		return execErr
	}
	return nil
}

func (f *FFmpeg) ReadFile(ctx context.Context, name string) ([]byte, error) {
	path, err := f.resolve(name)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", name)
	}
	f.files.Add(name)
	return data, nil
}

func (f *FFmpeg) DeleteFile(ctx context.Context, name string) error {
	path, err := f.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "delete %s", name)
	}
	f.files.Remove(name)
	return nil
}

// Files lists the names written or read through this instance and not deleted since.
func (f *FFmpeg) Files() []string {
	return f.files.ToSlice()
}

func (f *FFmpeg) Close() error {
	f.files.Clear()
	return os.RemoveAll(f.dir)
}

func (f *FFmpeg) resolve(name string) (string, error) {
	if name == "" || name == "." || name == ".." || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) {
		return "", errors.Wrapf(ErrInvalidName, "%q", name)
	}
	return filepath.Join(f.dir, name), nil
}

// tailWriter keeps the last max bytes written to it.
type tailWriter struct {
	buf []byte
	max int
}

func (t *tailWriter) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailWriter) lastLine() string {
	lines := strings.FieldsFunc(string(t.buf), func(r rune) bool {
		return r == '\n' || r == '\r'
	})
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
