package pool

import (
	"bytes"
	"encoding/gob"
)

// Serializer gob-encodes values through pooled buffers.
type Serializer struct {
	encPool *BufferPool
	decPool *BufferPool
}

func NewSerializer() *Serializer {
	return &Serializer{
		encPool: NewBufferPool(1024, 64*1024),
		decPool: NewBufferPool(1024, 64*1024),
	}
}

func (s *Serializer) Serialize(v any) ([]byte, error) {
	var out []byte
	err := s.encPool.With(func(buf *bytes.Buffer) error {
		if err := gob.NewEncoder(buf).Encode(v); err != nil {
			return err
		}
		out = bytes.Clone(buf.Bytes())
		return nil
	})
	return out, err
}

func (s *Serializer) Deserialize(data []byte, v any) error {
	return s.decPool.With(func(buf *bytes.Buffer) error {
		buf.Write(data)
		return gob.NewDecoder(buf).Decode(v)
	})
}
