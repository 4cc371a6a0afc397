package pipeline_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/eric2788/fileconv/pkg/pipeline"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepFunc func(ctx context.Context, item []string) ([]string, error)

type step struct {
	fn     stepFunc
	opened bool
	closed bool
}

func (s *step) Open(ctx context.Context, log *logrus.Entry) error {
	s.opened = true
	return nil
}

func (s *step) Process(ctx context.Context, log *logrus.Entry, item []string) ([]string, error) {
	return s.fn(ctx, item)
}

func (s *step) Close() error {
	s.closed = true
	return nil
}

func appendStep(name string) *step {
	return &step{fn: func(ctx context.Context, item []string) ([]string, error) {
		return append(item, name), nil
	}}
}

func TestRun_OrderedAndClosed(t *testing.T) {
	a, b, c := appendStep("write"), appendStep("exec"), appendStep("read")
	pipe := pipeline.New(
		pipeline.NewProcessorInfo[[]string]("a", a),
		pipeline.NewProcessorInfo[[]string]("b", b),
		pipeline.NewProcessorInfo[[]string]("c", c),
	)

	out, err := pipe.Run(t.Context(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"write", "exec", "read"}, out)
	for _, s := range []*step{a, b, c} {
		assert.True(t, s.opened)
		assert.True(t, s.closed)
	}
}

func TestRun_StopOnError(t *testing.T) {
	boom := errors.New("boom")
	failing := &step{fn: func(ctx context.Context, item []string) ([]string, error) {
		return item, boom
	}}
	after := appendStep("never")

	pipe := pipeline.New(
		pipeline.NewProcessorInfo[[]string]("fail", failing),
		pipeline.NewProcessorInfo[[]string]("after", after),
	)
	out, err := pipe.Run(t.Context(), []string{"start"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"start"}, out)

	var stageErr *pipeline.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "fail", stageErr.Stage)
	assert.EqualError(t, err, "fail: boom")
}

func TestProcessFunc(t *testing.T) {
	double := pipeline.ProcessFunc[int](func(ctx context.Context, log *logrus.Entry, n int) (int, error) {
		return n * 2, nil
	})
	pipe := pipeline.New(
		pipeline.NewProcessorInfo[int]("x2", double),
		pipeline.NewProcessorInfo[int]("x2 again", double),
	)
	out, err := pipe.Run(t.Context(), 3)
	require.NoError(t, err)
	assert.Equal(t, 12, out)
}

func TestProcess_Timeout(t *testing.T) {
	slow := &step{fn: func(ctx context.Context, item []string) ([]string, error) {
		<-ctx.Done()
		return item, ctx.Err()
	}}
	pipe := pipeline.New(
		pipeline.NewProcessorInfo("slow", slow, pipeline.WithTimeout[[]string](50*time.Millisecond)),
	)
	_, err := pipe.Run(t.Context(), nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProcess_RetryOnError(t *testing.T) {
	attempts := 0
	flaky := &step{fn: func(ctx context.Context, item []string) ([]string, error) {
		attempts++
		if attempts < 3 {
			return item, errors.New("flaky")
		}
		return append(item, "ok"), nil
	}}
	pipe := pipeline.New(
		pipeline.NewProcessorInfo("flaky", flaky,
			pipeline.WithErrorStrategy[[]string](pipeline.RetryOnError),
			pipeline.WithRetryOptions[[]string](3, 10*time.Millisecond),
		),
	)
	out, err := pipe.Run(t.Context(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, out)
	assert.Equal(t, 3, attempts)
}

func TestProcess_AfterCloseFails(t *testing.T) {
	pipe := pipeline.New(pipeline.NewProcessorInfo[[]string]("a", appendStep("a")))
	_, err := pipe.Run(t.Context(), nil)
	require.NoError(t, err)

	_, err = pipe.Process(t.Context(), nil)
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}
