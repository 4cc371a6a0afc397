package monitor

import "io"

// ProgressReader reports the running byte count of r. With a positive step the
// callback only fires each time another step is crossed, and once more at EOF.
type ProgressReader struct {
	r        io.ReadCloser
	read     int64 // bytes read so far
	reported int64
	step     int64
	next     int64
	callback func(read int64)
}

func NewProgressReader(r io.ReadCloser, step int64, cb func(read int64)) *ProgressReader {
	return &ProgressReader{
		r:        r,
		step:     step,
		next:     step,
		callback: cb,
	}
}

func (p *ProgressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		if p.step <= 0 || p.read >= p.next {
			for p.step > 0 && p.next <= p.read {
				p.next += p.step
			}
			p.notify()
		}
	}
	if err == io.EOF {
		p.notify()
	}
	return n, err
}

func (p *ProgressReader) BytesRead() int64 {
	return p.read
}

func (p *ProgressReader) Close() error {
	return p.r.Close()
}

func (p *ProgressReader) notify() {
	if p.read == p.reported {
		return
	}
	p.reported = p.read
	if p.callback != nil {
		p.callback(p.read)
	}
}
