package pool

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
)

type FileStreamWriter struct {
	ctx  context.Context
	bp   *BytesPool
	perm os.FileMode
}

func NewFileStreamWriter(ctx context.Context, pool *BytesPool) *FileStreamWriter {
	return &FileStreamWriter{
		ctx:  ctx,
		bp:   pool,
		perm: 0644,
	}
}

// WithPerm sets the mode applied to the finished file.
func (f *FileStreamWriter) WithPerm(perm os.FileMode) *FileStreamWriter {
	f.perm = perm
	return f
}

// WriteToFile streams rc into outPath through a temp file in the same directory
// which is renamed into place on success. rc is always closed.
func (f *FileStreamWriter) WriteToFile(rc io.ReadCloser, outPath string, writerBufferSize int) error {
	defer rc.Close()

	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "download-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	writer := bufio.NewWriterSize(tmp, writerBufferSize)

	buf := f.bp.GetBytes()
	defer f.bp.PutBytes(buf)

	// copy in a goroutine so ctx cancellation is observed
	copyErrCh := make(chan error, 1)
	go func() {
		_, err := io.CopyBuffer(writer, rc, buf)
		if err == nil {
			if err = writer.Flush(); err == nil {
				err = tmp.Sync()
			}
		}
		copyErrCh <- err
	}()

	select {
	case <-f.ctx.Done():
		// closing rc usually makes io.Copy return
		_ = rc.Close()
		<-copyErrCh
		cleanup()
		return f.ctx.Err()
	case err := <-copyErrCh:
		if err != nil {
			cleanup()
			return err
		}
	}

	if err := tmp.Chmod(f.perm); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	// remove existing target (Windows may block rename), ignore errors
	_ = os.Remove(outPath)
	if err := os.Rename(tmpName, outPath); err != nil {
		cleanup()
		return err
	}
	return nil
}
