package protocol

import (
	"bytes"
	"sync"
)

// Buffer pooling for frame I/O.
//
// The pools are safe for concurrent use. Oversized buffers are dropped on
// return instead of being pooled.

// bufferPool is a pool of bytes.Buffer objects used by WriteFrame
var bufferPool = sync.Pool{
	New: func() interface{} {
		return &bytes.Buffer{}
	},
}

func getBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 64*1024 {
		return
	}
	bufferPool.Put(buf)
}

// frameHeaderPool is a pool for frame header bytes (7 bytes)
var frameHeaderPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, FrameHeaderSize)
		return &b
	},
}

func getFrameHeader() *[]byte {
	return frameHeaderPool.Get().(*[]byte)
}

func putFrameHeader(b *[]byte) {
	frameHeaderPool.Put(b)
}

// Tiered pools for encoding whole frames. Method and header frames fit the
// small tier; body frames use the medium or large tier depending on the
// negotiated frame-max.

var frameSerializationPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, 0, 1024)
		return &b
	},
}

var mediumBodyPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, 0, 65536)
		return &b
	},
}

var largeFramePool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, 0, DefaultFrameMax)
		return &b
	},
}

// GetBufferForSize returns an empty buffer from the tier that fits size.
// Return it with PutBufferForSize.
func GetBufferForSize(size int) *[]byte {
	var b *[]byte
	switch {
	case size <= 1024:
		b = frameSerializationPool.Get().(*[]byte)
	case size <= 65536:
		b = mediumBodyPool.Get().(*[]byte)
	default:
		b = largeFramePool.Get().(*[]byte)
	}
	*b = (*b)[:0]
	return b
}

// PutBufferForSize returns a buffer to the tier matching its capacity.
// Buffers larger than the default frame-max are left to the GC.
func PutBufferForSize(b *[]byte) {
	capacity := cap(*b)
	switch {
	case capacity <= 1024:
		frameSerializationPool.Put(b)
	case capacity <= 65536:
		mediumBodyPool.Put(b)
	case capacity <= DefaultFrameMax+FrameOverhead:
		largeFramePool.Put(b)
	}
}
