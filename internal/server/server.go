// Package server implements the TCP connection server: it binds the
// listening socket, accepts clients, and spawns one worker goroutine per
// connection. Each worker reads newline-delimited request lines, resolves
// the named collection through the registry, executes the operation, and
// writes back exactly one response line per request line.
package server

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/dreamware/linedb/internal/applog"
	"github.com/dreamware/linedb/internal/handler"
	"github.com/dreamware/linedb/internal/metrics"
	"github.com/dreamware/linedb/internal/registry"
	"github.com/dreamware/linedb/internal/wire"
)

// Server multiplexes connections over a shared Registry. The zero value is
// not usable; construct one with New.
type Server struct {
	reg       *registry.Registry
	connSeq   uint64
	listening net.Listener
}

// New creates a Server resolving collections through reg.
func New(reg *registry.Registry) *Server {
	return &Server{reg: reg}
}

// ListenAndServe binds addr (host:port, or ":port"), accepts connections
// until ctx is cancelled, and blocks until the listener
// stops. It returns nil when shutdown was triggered by ctx, or the error
// that caused the accept loop to stop otherwise.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	lc := net.ListenConfig{Control: setReuseAddr}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", addr, err)
	}
	s.listening = ln

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	log := applog.WithComponent("server")
	log.Info().Str("addr", addr).Msg("listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("server: accept: %w", err)
			}
		}
		connID := strconv.FormatUint(atomic.AddUint64(&s.connSeq, 1), 10)
		go s.serveConn(conn, connID)
	}
}

// setReuseAddr enables SO_REUSEADDR on the listening socket so a restarted
// server can rebind a port still draining TIME_WAIT connections from a
// previous run.
func setReuseAddr(_, _ string, c syscall.RawConn) error {
	var sockErr error
	if err := c.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
	}); err != nil {
		return err
	}
	return sockErr
}

// serveConn services one accepted connection until the client disconnects
// or a read/write failure occurs. It never returns an error to the caller:
// the accept loop continues regardless of how any one connection ends.
func (s *Server) serveConn(conn net.Conn, connID string) {
	log := applog.WithConnID(connID)
	metrics.ConnectionsActive.Inc()
	log.Info().Str("remote", conn.RemoteAddr().String()).Msg("connection accepted")

	defer func() {
		conn.Close()
		metrics.ConnectionsActive.Dec()
		log.Info().Msg("connection closed")
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	writer := bufio.NewWriter(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		resp := s.handleLine(line, log)

		if _, err := writer.WriteString(resp.Encode()); err != nil {
			log.Error().Err(err).Msg("write failed, closing connection")
			return
		}
		if err := writer.Flush(); err != nil {
			log.Error().Err(err).Msg("flush failed, closing connection")
			return
		}
	}
	if err := scanner.Err(); err != nil {
		log.Warn().Err(err).Msg("read failed, closing connection")
	}
}

// handleLine decodes, dispatches, and times one request line, recovering
// from any panic raised while doing so and converting it into an error
// response so a single bad request never takes down a worker.
func (s *Server) handleLine(line string, log zerolog.Logger) (resp wire.Response) {
	operation := "unknown"
	database := ""
	timer := metrics.NewTimer()
	defer func() {
		if r := recover(); r != nil {
			resp = wire.Error(fmt.Sprintf("internal error: %v", r))
			log.Error().Interface("panic", r).Str("operation", operation).Msg("recovered from panic handling request")
		}
		metrics.RequestsTotal.WithLabelValues(operation, resp.Status).Inc()
		timer.ObserveSeconds(operation)
		log.Debug().Str("database", database).Str("operation", operation).Str("status", resp.Status).Msg("operation complete")
	}()

	req, err := wire.DecodeRequest(line)
	if err != nil {
		return wire.Error("Invalid request JSON format")
	}
	operation = req.Operation
	database = req.Database

	col, err := s.reg.Get(req.Database)
	if err != nil {
		return wire.Error(fmt.Sprintf("cannot open database %q: %v", req.Database, err))
	}

	resp = handler.Handle(req, col)
	metrics.ObserveCollection(req.Database, col.DocumentCount(), col.StoreCapacity())
	return resp
}

// Addr returns the address the listener is actually bound to, useful for
// tests that bind to port 0. It is only valid after ListenAndServe has
// started listening.
func (s *Server) Addr() net.Addr {
	if s.listening == nil {
		return nil
	}
	return s.listening.Addr()
}
