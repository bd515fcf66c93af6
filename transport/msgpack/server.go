// Package msgpack is the MessagePack collaborator transport supplemented
// from original_source/throttlecrab-server/src/transport/msgpack.rs: a
// length-prefixed framing of MessagePack-encoded requests/responses, one
// goroutine per connection, adapted to this repo's native-listener idiom
// (internal/server/native) rather than the original's per-connection async
// task.
package msgpack

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ratelimitd/ratelimitd/internal/actor"
	"github.com/ratelimitd/ratelimitd/internal/metrics"
	"github.com/ratelimitd/ratelimitd/internal/types"
)

// maxMessageBytes bounds a single frame's body, matching the 1MB guard in
// the original implementation's msgpack transport.
const maxMessageBytes = 1024 * 1024

// request mirrors the common throttle DTO (internal/types.ThrottleRequest)
// in MessagePack form: quantity and timestamp are optional, defaulting to
// 1 and server-now.
type request struct {
	Key            string `msgpack:"key"`
	MaxBurst       int64  `msgpack:"max_burst"`
	CountPerPeriod int64  `msgpack:"count_per_period"`
	Period         int64  `msgpack:"period"`
	Quantity       *int64 `msgpack:"quantity"`
	TimestampNanos *int64 `msgpack:"timestamp"`
}

type response struct {
	Allowed    bool   `msgpack:"allowed"`
	Limit      int64  `msgpack:"limit"`
	Remaining  int64  `msgpack:"remaining"`
	ResetAfter int64  `msgpack:"reset_after"`
	RetryAfter int64  `msgpack:"retry_after"`
	Error      string `msgpack:"error,omitempty"`
}

func errorResponse(msg string) response {
	return response{Error: msg}
}

// Listener accepts MessagePack-framed connections and forwards each
// decoded request to an actor handle, mirroring internal/server/native's
// connection lifecycle and shutdown sequencing.
type Listener struct {
	addr    string
	handle  actor.Handle
	metrics *metrics.Metrics
	log     *logrus.Logger

	listener net.Listener

	wg    sync.WaitGroup
	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// New builds a MessagePack transport listener bound to addr, dispatching
// through handle. m may be nil, in which case decisions aren't recorded.
func New(addr string, handle actor.Handle, m *metrics.Metrics, log *logrus.Logger) *Listener {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Listener{
		addr:    addr,
		handle:  handle,
		metrics: m,
		log:     log,
		conns:   make(map[net.Conn]struct{}),
	}
}

// ListenAndServe binds addr and serves connections until ctx is canceled.
func (l *Listener) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return err
	}
	l.listener = ln

	go func() {
		<-ctx.Done()
		_ = ln.Close()
		l.closeActiveConns()
	}()

	l.log.WithField("addr", l.addr).Info("msgpack listener started")

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		if tc, ok := conn.(*net.TCPConn); ok {
			_ = tc.SetNoDelay(true)
		}
		l.trackConn(conn)
		l.wg.Add(1)
		go l.serve(ctx, conn)
	}
}

func (l *Listener) trackConn(conn net.Conn) {
	l.mu.Lock()
	l.conns[conn] = struct{}{}
	l.mu.Unlock()
}

func (l *Listener) untrackConn(conn net.Conn) {
	l.mu.Lock()
	delete(l.conns, conn)
	l.mu.Unlock()
}

func (l *Listener) closeActiveConns() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for conn := range l.conns {
		_ = conn.Close()
	}
}

// Close stops the listener's accept loop.
func (l *Listener) Close() error {
	if l.listener != nil {
		return l.listener.Close()
	}
	return nil
}

// Shutdown blocks until every in-flight serve goroutine has returned or
// ctx's deadline passes, matching internal/server/native.Listener.Shutdown's
// contract: callers must not stop the actor until this returns.
func (l *Listener) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// serve runs the read-length/read-body/decode/throttle/encode/write loop
// for one connection until EOF or an I/O error.
func (l *Listener) serve(ctx context.Context, conn net.Conn) {
	log := l.log.WithField("remote_addr", conn.RemoteAddr().String())
	defer l.wg.Done()
	defer l.untrackConn(conn)
	defer conn.Close()

	lenBytes := make([]byte, 4)

	for {
		if _, err := io.ReadFull(conn, lenBytes); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			log.WithError(err).Info("connection closed reading length prefix")
			return
		}

		n := binary.BigEndian.Uint32(lenBytes)
		if n > maxMessageBytes {
			log.WithField("size", n).Warn("message too large, closing connection")
			return
		}

		body := make([]byte, n)
		if _, err := io.ReadFull(conn, body); err != nil {
			log.WithError(err).Info("connection closed reading message body")
			return
		}

		resp := l.handleMessage(ctx, body, log)

		respBytes, err := msgpack.Marshal(resp)
		if err != nil {
			log.WithError(err).Error("failed to encode response")
			return
		}

		if err := writeFramed(conn, respBytes); err != nil {
			log.WithError(err).Info("connection closed writing response")
			return
		}
	}
}

func (l *Listener) handleMessage(ctx context.Context, body []byte, log *logrus.Entry) response {
	var req request
	if err := msgpack.Unmarshal(body, &req); err != nil {
		log.WithError(err).Debug("failed to decode request")
		return errorResponse("invalid request")
	}

	quantity := int64(1)
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	now := time.Now()
	if req.TimestampNanos != nil {
		now = time.Unix(0, *req.TimestampNanos)
	}

	allowed, verdict, err := l.handle.Throttle(ctx, types.ThrottleRequest{
		Key:            req.Key,
		MaxBurst:       req.MaxBurst,
		CountPerPeriod: req.CountPerPeriod,
		PeriodSeconds:  req.Period,
		Quantity:       quantity,
		Timestamp:      now,
	}, now)
	if err != nil {
		log.WithError(err).Debug("throttle request rejected by engine")
		return errorResponse(err.Error())
	}

	if l.metrics != nil {
		l.metrics.RecordDecisionForKey(allowed, req.Key)
	}

	out := types.NewThrottleResponse(allowed, verdict.ToTypes())
	return response{
		Allowed:    out.Allowed,
		Limit:      out.Limit,
		Remaining:  out.Remaining,
		ResetAfter: out.ResetAfterSeconds,
		RetryAfter: out.RetryAfterSeconds,
	}
}

func writeFramed(w io.Writer, body []byte) error {
	lenBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBytes, uint32(len(body)))
	if _, err := w.Write(lenBytes); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}
