package capture

import (
	"bytes"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amqperrors "github.com/maxpert/amqp-wire/errors"
	"github.com/maxpert/amqp-wire/protocol"
)

func cancelOkFrame() []byte {
	return []byte("\x01\x00\x01\x00\x00\x00\x0c\x00<\x00\x1f\x07ctag1.0\xce")
}

func TestNewRecord(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.UTC)

	rec, err := NewRecord(at, ServerToClient, cancelOkFrame())
	require.NoError(t, err)
	assert.Equal(t, byte(protocol.FrameMethod), rec.Type)
	assert.Equal(t, uint16(1), rec.Channel)
	assert.Equal(t, []byte("\x00<\x00\x1f\x07ctag1.0"), rec.Payload)
	assert.Equal(t, cancelOkFrame(), rec.Frame())

	frame, err := rec.Decode()
	require.NoError(t, err)
	assert.Equal(t, "Basic.CancelOk", frame.(protocol.MethodFrame).Method.Name())
}

func TestNewRecordProtocolHeader(t *testing.T) {
	rec, err := NewRecord(time.Now(), ClientToServer, []byte("AMQP\x00\x00\x09\x01"))
	require.NoError(t, err)
	assert.Equal(t, byte(protocol.FrameProtocolHeader), rec.Type)

	frame, err := rec.Decode()
	require.NoError(t, err)
	assert.Equal(t, protocol.DefaultProtocolHeader, frame)
}

func TestNewRecordErrors(t *testing.T) {
	_, err := NewRecord(time.Now(), ClientToServer, []byte{0x01, 0x00})
	assert.Error(t, err)

	assert.ErrorIs(t, err, amqperrors.ErrTruncated)

	_, err = NewRecord(time.Now(), ClientToServer, []byte("\x08\x00\x00\x00\x00\x00\x05\xce"))
	assert.ErrorIs(t, err, amqperrors.ErrTruncated)

	_, err = NewRecord(time.Now(), ClientToServer, append(cancelOkFrame(), 0xce))
	assert.ErrorIs(t, err, amqperrors.ErrMalformedFrame)

	bad := cancelOkFrame()
	bad[len(bad)-1] = 0x00
	_, err = NewRecord(time.Now(), ClientToServer, bad)
	assert.ErrorIs(t, err, amqperrors.ErrInvalidFrameEnd)
}

func TestWriterReaderRoundTrip(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 987654321, time.UTC)
	heartbeat, _ := protocol.EncodeFrame(0, protocol.HeartbeatFrame{})
	body, _ := protocol.EncodeFrame(3, protocol.BodyFrame{Payload: []byte{0xce, 0x00, 0xce}})

	var records []Record
	for i, raw := range [][]byte{[]byte("AMQP\x00\x00\x09\x01"), cancelOkFrame(), heartbeat, body} {
		rec, err := NewRecord(at.Add(time.Duration(i)*time.Millisecond), Direction(1+i%2), raw)
		require.NoError(t, err)
		records = append(records, rec)
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, rec := range records {
		require.NoError(t, w.Write(rec))
	}
	require.NoError(t, w.Close())

	r := NewReader(&buf)
	for i, expected := range records {
		rec, err := r.Next()
		require.NoError(t, err, "record %d", i)
		assert.True(t, expected.Time.Equal(rec.Time), "record %d time", i)
		assert.Equal(t, expected.Direction, rec.Direction)
		assert.Equal(t, expected.Channel, rec.Channel)
		assert.Equal(t, expected.Type, rec.Type)
		assert.Equal(t, expected.Frame(), rec.Frame())
	}

	_, err := r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestCaptureFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session"+FileExtension)

	w, err := Create(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, dir := range []Direction{ClientToServer, ServerToClient} {
		wg.Add(1)
		go func(dir Direction) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				assert.NoError(t, w.WriteFrame(dir, cancelOkFrame()))
			}
		}(dir)
	}
	wg.Wait()
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	counts := map[Direction]int{}
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		counts[rec.Direction]++
	}
	assert.Equal(t, map[Direction]int{ClientToServer: 50, ServerToClient: 50}, counts)
}

func TestDirectionString(t *testing.T) {
	assert.Equal(t, "client->server", ClientToServer.String())
	assert.Equal(t, "server->client", ServerToClient.String())
	assert.Equal(t, "Direction(7)", Direction(7).String())
}
