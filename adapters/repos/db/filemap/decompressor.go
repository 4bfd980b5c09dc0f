//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package filemap

import (
	"sync/atomic"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// Decompressor is the zstd decoder shared by all readers of the files which
// were written with the same dictionary. It is reference counted, the
// decoder is closed when the last holder releases it.
//
// A nil *Decompressor stands for uncompressed files.
type Decompressor struct {
	decoder *zstd.Decoder
	refs    atomic.Int64
}

// NewDecompressor builds a decoder for an optional zstd dictionary. The
// caller holds the first reference.
func NewDecompressor(dict []byte) (*Decompressor, error) {
	opts := []zstd.DOption{zstd.WithDecoderConcurrency(1)}
	if len(dict) > 0 {
		opts = append(opts, zstd.WithDecoderDicts(dict))
	}

	dec, err := zstd.NewReader(nil, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create zstd decoder")
	}

	d := &Decompressor{decoder: dec}
	d.refs.Store(1)
	return d, nil
}

// Acquire takes another reference and returns d for convenience.
func (d *Decompressor) Acquire() *Decompressor {
	if d == nil {
		return nil
	}
	if d.refs.Add(1) <= 1 {
		panic("acquire on released decompressor")
	}
	return d
}

// Release drops a reference.
func (d *Decompressor) Release() {
	if d == nil {
		return
	}
	switch refs := d.refs.Add(-1); {
	case refs == 0:
		d.decoder.Close()
	case refs < 0:
		panic("decompressor released more often than acquired")
	}
}

func (d *Decompressor) Closed() bool {
	return d != nil && d.refs.Load() <= 0
}

// DecodeAll appends the decompressed src to dst.
func (d *Decompressor) DecodeAll(src, dst []byte) ([]byte, error) {
	if d == nil {
		return append(dst, src...), nil
	}
	if d.Closed() {
		return nil, errors.New("decompressor already released")
	}

	out, err := d.decoder.DecodeAll(src, dst)
	if err != nil {
		return nil, errors.Wrap(err, "zstd decode")
	}
	return out, nil
}
