package monitor_test

import (
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/eric2788/fileconv/pkg/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressReader_Steps(t *testing.T) {
	var reports []int64
	src := io.NopCloser(iotest.OneByteReader(strings.NewReader(strings.Repeat("x", 25))))
	r := monitor.NewProgressReader(src, 10, func(read int64) {
		reports = append(reports, read)
	})

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Len(t, data, 25)
	assert.Equal(t, []int64{10, 20, 25}, reports)
	assert.EqualValues(t, 25, r.BytesRead())
	require.NoError(t, r.Close())
}

func TestProgressReader_ExactMultipleReportsOnce(t *testing.T) {
	var reports []int64
	src := io.NopCloser(iotest.OneByteReader(strings.NewReader(strings.Repeat("x", 20))))
	r := monitor.NewProgressReader(src, 10, func(read int64) {
		reports = append(reports, read)
	})

	_, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20}, reports)
}

func TestProgressReader_EveryRead(t *testing.T) {
	calls := 0
	src := io.NopCloser(iotest.OneByteReader(strings.NewReader("abc")))
	r := monitor.NewProgressReader(src, 0, func(read int64) { calls++ })

	_, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}
