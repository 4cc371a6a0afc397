package convert

import (
	"context"
	"errors"
	"time"

	"github.com/eric2788/fileconv/internal/modules/engine"
	"github.com/eric2788/fileconv/pkg/pipeline"
	"github.com/sirupsen/logrus"
)

const (
	fileStageTimeout     = 5 * time.Minute
	cleanupTimeout       = 10 * time.Second
	cleanupRetries       = 2
	cleanupRetryInterval = 200 * time.Millisecond
)

// task carries one conversion through the engine stages.
type task struct {
	handle engine.Handle
	cmd    Command
	input  []byte
	output []byte
}

func writeInput(ctx context.Context, log *logrus.Entry, t *task) (*task, error) {
	log.Debugf("writing %s (%d bytes)", t.cmd.Input, len(t.input))
	return t, t.handle.WriteFile(ctx, t.cmd.Input, t.input)
}

func execCommand(ctx context.Context, log *logrus.Entry, t *task) (*task, error) {
	log.Debugf("exec %v", t.cmd.Args)
	return t, t.handle.Exec(ctx, t.cmd.Args)
}

func readOutput(ctx context.Context, log *logrus.Entry, t *task) (*task, error) {
	data, err := t.handle.ReadFile(ctx, t.cmd.Output)
	if err != nil {
		return t, err
	}
	log.Debugf("read %s (%d bytes)", t.cmd.Output, len(data))
	t.output = data
	return t, nil
}

// deleteFiles removes both virtual files of the task. Missing files are not an error.
func deleteFiles(ctx context.Context, log *logrus.Entry, t *task) (*task, error) {
	var errs []error
	for _, name := range []string{t.cmd.Input, t.cmd.Output} {
		if err := t.handle.DeleteFile(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return t, errors.Join(errs...)
}

// newEnginePipe builds the write, exec, read sequence for one conversion.
// A pipe is single use since its processors are closed after Run.
func newEnginePipe(log *logrus.Entry, execTimeout time.Duration) *pipeline.Pipe[*task] {
	return pipeline.New(
		pipeline.NewProcessorInfo[*task]("write", pipeline.ProcessFunc[*task](writeInput),
			pipeline.WithTimeout[*task](fileStageTimeout),
			pipeline.WithLogger[*task](log.WithField("stage", "write")),
		),
		pipeline.NewProcessorInfo[*task]("exec", pipeline.ProcessFunc[*task](execCommand),
			pipeline.WithTimeout[*task](execTimeout),
			pipeline.WithSlowThreshold[*task](execTimeout/2),
			pipeline.WithLogger[*task](log.WithField("stage", "exec")),
		),
		pipeline.NewProcessorInfo[*task]("read", pipeline.ProcessFunc[*task](readOutput),
			pipeline.WithTimeout[*task](fileStageTimeout),
			pipeline.WithLogger[*task](log.WithField("stage", "read")),
		),
	)
}

func newCleanupPipe(log *logrus.Entry) *pipeline.Pipe[*task] {
	return pipeline.New(
		pipeline.NewProcessorInfo[*task]("cleanup", pipeline.ProcessFunc[*task](deleteFiles),
			pipeline.WithErrorStrategy[*task](pipeline.RetryOnError),
			pipeline.WithRetryOptions[*task](cleanupRetries, cleanupRetryInterval),
			pipeline.WithTimeout[*task](cleanupTimeout),
			pipeline.WithLogger[*task](log.WithField("stage", "cleanup")),
		),
	)
}
