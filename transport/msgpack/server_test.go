package msgpack

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	vmsgpack "github.com/vmihailenco/msgpack/v5"

	"github.com/stretchr/testify/require"

	"github.com/ratelimitd/ratelimitd/internal/actor"
	"github.com/ratelimitd/ratelimitd/internal/metrics"
)

func startTestListener(t *testing.T, m *metrics.Metrics) (addr string, stop func()) {
	t.Helper()
	a := actor.NewPeriodic(16, time.Minute, 8)
	go a.Run()

	log := logrus.New()
	log.SetOutput(io.Discard)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr = ln.Addr().String()
	ln.Close()

	l := New(addr, actor.NewHandle(a), m, log)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = l.ListenAndServe(ctx) }()
	time.Sleep(20 * time.Millisecond)

	return addr, func() {
		cancel()
		a.Stop()
	}
}

func writeFrame(t *testing.T, conn net.Conn, payload []byte) {
	t.Helper()
	lenBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBytes, uint32(len(payload)))
	_, err := conn.Write(lenBytes)
	require.NoError(t, err)
	_, err = conn.Write(payload)
	require.NoError(t, err)
}

func readFrame(t *testing.T, conn net.Conn) []byte {
	t.Helper()
	lenBytes := make([]byte, 4)
	_, err := io.ReadFull(conn, lenBytes)
	require.NoError(t, err)
	n := binary.BigEndian.Uint32(lenBytes)
	body := make([]byte, n)
	_, err = io.ReadFull(conn, body)
	require.NoError(t, err)
	return body
}

func TestMsgpackThrottleRoundTrip(t *testing.T) {
	addr, stop := startTestListener(t, nil)
	defer stop()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	payload, err := vmsgpack.Marshal(request{
		Key: "k", MaxBurst: 5, CountPerPeriod: 10, Period: 60,
	})
	require.NoError(t, err)
	writeFrame(t, conn, payload)

	body := readFrame(t, conn)
	var resp response
	require.NoError(t, vmsgpack.Unmarshal(body, &resp))
	require.True(t, resp.Allowed)
	require.Equal(t, int64(5), resp.Limit)
	require.Equal(t, int64(4), resp.Remaining)
	require.Empty(t, resp.Error)
}

func TestMsgpackRejectsOversizedFrame(t *testing.T) {
	addr, stop := startTestListener(t, nil)
	defer stop()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	lenBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBytes, maxMessageBytes+1)
	_, err = conn.Write(lenBytes)
	require.NoError(t, err)

	_, err = conn.Read(make([]byte, 1))
	require.Error(t, err, "connection should be closed after an oversized frame")
}

func TestMsgpackInvalidBodyReturnsErrorResponse(t *testing.T) {
	addr, stop := startTestListener(t, nil)
	defer stop()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	writeFrame(t, conn, []byte{0xff, 0xff, 0xff})

	body := readFrame(t, conn)
	var resp response
	require.NoError(t, vmsgpack.Unmarshal(body, &resp))
	require.False(t, resp.Allowed)
	require.NotEmpty(t, resp.Error)
}

func TestMsgpackRecordsDeniedKeyMetric(t *testing.T) {
	m := metrics.New()
	addr, stop := startTestListener(t, m)
	defer stop()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	payload, err := vmsgpack.Marshal(request{
		Key: "denied-key", MaxBurst: 1, CountPerPeriod: 1, Period: 60,
	})
	require.NoError(t, err)

	// Exhaust the burst so the second request is denied.
	writeFrame(t, conn, payload)
	readFrame(t, conn)
	writeFrame(t, conn, payload)
	readFrame(t, conn)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Contains(t, rec.Body.String(), "denied-key")
}
