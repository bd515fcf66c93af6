// Package native implements the native binary protocol listener (C6): one
// TCP connection carries an unbounded, non-pipelined sequence of
// request/response pairs.
package native

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ratelimitd/ratelimitd/internal/actor"
	"github.com/ratelimitd/ratelimitd/internal/gcra"
	"github.com/ratelimitd/ratelimitd/internal/types"
	"github.com/ratelimitd/ratelimitd/internal/wire"
)

// Listener accepts native-protocol connections and forwards each fully-read
// request to an actor handle.
type Listener struct {
	addr   string
	handle actor.Handle
	log    *logrus.Logger

	listener net.Listener

	wg    sync.WaitGroup
	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// New builds a native-protocol listener bound to addr, dispatching through
// handle.
func New(addr string, handle actor.Handle, log *logrus.Logger) *Listener {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Listener{
		addr:   addr,
		handle: handle,
		log:    log,
		conns:  make(map[net.Conn]struct{}),
	}
}

// ListenAndServe binds addr and serves connections until ctx is canceled or
// Close is called. It returns once the accept loop stops; in-flight
// connections may still be draining, so shutdown code calling Throttle's
// producer after this returns should observe ctx cancellation through
// Shutdown, not this method's return, to avoid racing actor.Stop.
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

	l.log.WithField("addr", l.addr).Info("native listener started")

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

// Shutdown does not itself stop accepting: cancelling the ctx given to
// ListenAndServe closes the listener and active conns. Shutdown blocks until
// every in-flight serve goroutine has returned or ctx's deadline passes.
// Callers must not stop the actor behind the handed-in Handle until Shutdown
// returns, since a serve goroutine mid-Throttle would otherwise send on a
// closed inbox.
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

// serve runs the read-request/forward-to-actor/write-response loop for one
// connection until EOF or an I/O error.
func (l *Listener) serve(ctx context.Context, conn net.Conn) {
	connID := uuid.NewString()
	log := l.log.WithField("conn", connID).WithField("remote_addr", conn.RemoteAddr().String())
	defer l.wg.Done()
	defer l.untrackConn(conn)
	defer conn.Close()

	header := make([]byte, wire.RequestHeaderSize)
	respBuf := make([]byte, wire.ResponseSize)

	for {
		if _, err := io.ReadFull(conn, header); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			log.WithError(err).Info("connection closed reading header")
			return
		}

		keyLen := wire.KeyLen(header)
		req, _ := wire.DecodeHeader(header)

		if err := wire.Validate(req.Cmd, keyLen); err != nil {
			if keyLen > 0 {
				if _, derr := io.CopyN(io.Discard, conn, int64(keyLen)); derr != nil {
					log.WithError(derr).Info("connection closed draining malformed frame's key")
					return
				}
			}
			wire.EncodeErrorResponse(respBuf)
			if _, werr := conn.Write(respBuf); werr != nil {
				log.WithError(werr).Info("connection closed writing error response")
				return
			}
			continue
		}

		key := make([]byte, keyLen)
		if _, err := io.ReadFull(conn, key); err != nil {
			log.WithError(err).Info("connection closed reading key")
			return
		}

		in := wire.ToThrottleRequest(req, key)

		allowed, verdict, err := l.handle.Throttle(ctx, in, time.Now())
		if err != nil {
			wire.EncodeErrorResponse(respBuf)
		} else {
			resp := toResponse(allowed, verdict)
			wire.EncodeResponse(respBuf, resp)
		}

		if _, err := conn.Write(respBuf); err != nil {
			log.WithError(err).Info("connection closed writing response")
			return
		}
	}
}

func toResponse(allowed bool, v gcra.Verdict) types.ThrottleResponse {
	return types.NewThrottleResponse(allowed, v.ToTypes())
}
