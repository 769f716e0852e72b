// Package capture records raw AMQP frames as a stream of CBOR records so a
// tapped connection can be replayed and decoded later.
package capture

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	amqperrors "github.com/maxpert/amqp-wire/errors"
	"github.com/maxpert/amqp-wire/protocol"
)

// FileExtension is the conventional suffix of capture files.
const FileExtension = ".cbor"

// Direction tells which peer sent a frame.
type Direction uint8

const (
	ClientToServer Direction = 1
	ServerToClient Direction = 2
)

func (d Direction) String() string {
	switch d {
	case ClientToServer:
		return "client->server"
	case ServerToClient:
		return "server->client"
	default:
		return fmt.Sprintf("Direction(%d)", uint8(d))
	}
}

// Record is one captured frame. For the protocol header Type is
// protocol.FrameProtocolHeader and Payload holds the full 8 bytes.
type Record struct {
	Time      time.Time `cbor:"1,keyasint"`
	Direction Direction `cbor:"2,keyasint"`
	Channel   uint16    `cbor:"3,keyasint"`
	Type      byte      `cbor:"4,keyasint"`
	Payload   []byte    `cbor:"5,keyasint"`
}

// NewRecord builds a record from the wire bytes of exactly one frame or the
// protocol header. The payload is copied.
func NewRecord(at time.Time, dir Direction, raw []byte) (Record, error) {
	rec := Record{Time: at, Direction: dir}

	if len(raw) == protocol.ProtocolHeaderSize && raw[0] == 'A' {
		rec.Type = protocol.FrameProtocolHeader
		rec.Payload = append([]byte(nil), raw...)
		return rec, nil
	}

	rd := bytes.NewReader(raw)
	frame, err := protocol.ReadFrame(rd)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return Record{}, amqperrors.NewTruncated("captured frame", protocol.FrameOverhead, len(raw))
	}
	if err != nil {
		return Record{}, err
	}
	if rd.Len() != 0 {
		return Record{}, amqperrors.NewFrameError("captured frame size mismatch", raw[0])
	}

	rec.Type = frame.Type
	rec.Channel = frame.Channel
	rec.Payload = frame.Payload
	return rec, nil
}

// Frame rebuilds the wire bytes of the record.
func (r Record) Frame() []byte {
	if r.Type == protocol.FrameProtocolHeader {
		return append([]byte(nil), r.Payload...)
	}
	var buf bytes.Buffer
	_ = protocol.WriteFrame(&buf, &protocol.Frame{Type: r.Type, Channel: r.Channel, Payload: r.Payload})
	return buf.Bytes()
}

// Decode decodes the captured frame.
func (r Record) Decode() (protocol.FrameValue, error) {
	_, _, frame, err := protocol.DecodeFrame(r.Frame())
	return frame, err
}

var encMode = func() cbor.EncMode {
	mode, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

// Writer appends records to a stream. It is safe for concurrent use so both
// directions of a connection can share one capture.
type Writer struct {
	mu     sync.Mutex
	buf    *bufio.Writer
	enc    *cbor.Encoder
	closer io.Closer
}

// NewWriter returns a Writer on w. Records are buffered until Flush or Close.
func NewWriter(w io.Writer) *Writer {
	buf := bufio.NewWriter(w)
	cw := &Writer{buf: buf, enc: encMode.NewEncoder(buf)}
	if c, ok := w.(io.Closer); ok {
		cw.closer = c
	}
	return cw
}

// Create creates or truncates the capture file at path.
func Create(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create capture directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture file: %w", err)
	}
	return NewWriter(file), nil
}

// Write appends one record.
func (w *Writer) Write(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode capture record: %w", err)
	}
	return nil
}

// WriteFrame records the wire bytes of one frame.
func (w *Writer) WriteFrame(dir Direction, raw []byte) error {
	rec, err := NewRecord(time.Now().UTC(), dir, raw)
	if err != nil {
		return err
	}
	return w.Write(rec)
}

// Flush writes buffered records to the underlying writer.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Flush()
}

// Close flushes and closes the underlying writer when it is an io.Closer.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// Reader reads records written by a Writer.
type Reader struct {
	dec    *cbor.Decoder
	closer io.Closer
}

// NewReader returns a Reader on r.
func NewReader(r io.Reader) *Reader {
	cr := &Reader{dec: cbor.NewDecoder(bufio.NewReader(r))}
	if c, ok := r.(io.Closer); ok {
		cr.closer = c
	}
	return cr
}

// Open opens the capture file at path.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file: %w", err)
	}
	return NewReader(file), nil
}

// Next returns the next record, or io.EOF after the last one.
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if err == io.EOF {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("failed to decode capture record: %w", err)
	}
	return rec, nil
}

// Close closes the underlying reader when it is an io.Closer.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
