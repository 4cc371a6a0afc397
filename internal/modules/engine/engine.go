package engine

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("module", "engine")

var (
	ErrNotReady       = errors.New("engine not loaded, please wait and try again")
	ErrInvalidName    = errors.New("invalid virtual file name")
	ErrBinaryNotFound = errors.New("ffmpeg binary not found")
)

// Handle is a loaded engine instance. Files live in a flat namespace private to
// the instance, so callers must never run two commands against it at once.
type Handle interface {
	WriteFile(ctx context.Context, name string, data []byte) error
	Exec(ctx context.Context, args []string) error
	ReadFile(ctx context.Context, name string) ([]byte, error)
	DeleteFile(ctx context.Context, name string) error
}

// LoadError marks the engine as unavailable for the rest of the process.
type LoadError struct {
	cause error
}

func (e *LoadError) Error() string {
	return "engine unavailable: " + e.cause.Error()
}

func (e *LoadError) Unwrap() error {
	return e.cause
}

// ExecError is a command that exited unsuccessfully. Message is the last line
// the engine reported.
type ExecError struct {
	Args     []string
	ExitCode int
	Message  string
	err      error
}

func (e *ExecError) Error() string {
	return e.Message
}

func (e *ExecError) Unwrap() error {
	return e.err
}
