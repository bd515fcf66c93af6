// Package ratelimitd is the embeddable form of the GCRA rate limiter: the
// same decision engine and actor the standalone server (cmd/ratelimitd)
// wraps in native/HTTP/RPC transports, usable directly in-process.
//
// A Limiter owns one actor goroutine and one store; Allow submits a
// decision request to it and waits for the reply.
package ratelimitd
