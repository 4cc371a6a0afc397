package pool

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

type LimitReader struct {
	r io.Reader
	l *rate.Limiter
	c context.Context
}

// NewLimitReader throttles r to limit bytes per second. A non-positive limit
// returns r unchanged.
func NewLimitReader(ctx context.Context, r io.Reader, limit, burst int) io.Reader {
	if limit <= 0 {
		return r
	}
	if burst < limit {
		burst = limit
	}
	return &LimitReader{
		r: r,
		l: rate.NewLimiter(rate.Limit(limit), burst),
		c: ctx,
	}
}

func (lr *LimitReader) Read(p []byte) (n int, err error) {
	// never ask the limiter for more than one burst at once
	if b := lr.l.Burst(); len(p) > b {
		p = p[:b]
	}
	n, err = lr.r.Read(p)
	if n > 0 {
		if werr := lr.l.WaitN(lr.c, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
