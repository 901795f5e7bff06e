// Package smpp is the TCP listener server: it accepts SMPP connections and
// hands each one to a new session.Session, following the same
// server.Server lifecycle shape as internal/server/http.
package smpp

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"

	"github.com/smppgw/gateway/internal/server"
	"github.com/smppgw/gateway/internal/session"
)

const smppProtocol = "smpp"

// SessionFactory builds a Session for each accepted connection.
type SessionFactory func(conn net.Conn) *session.Session

type Server struct {
	server.BaseServer
	listener net.Listener
	newSess  SessionFactory
	addr     atomic.Value // net.Addr, set once Start has bound the listener
}

// Addr returns the listener's bound address, or nil if Start has not yet
// finished binding. Useful in tests that bind to port 0.
func (s *Server) Addr() net.Addr {
	a, _ := s.addr.Load().(net.Addr)
	return a
}

var _ server.Server = (*Server)(nil)

// New returns an SMPP listener server. newSess is called once per accepted
// connection to build the Session that owns it.
func New(ctx context.Context, cancel context.CancelFunc, name string, config server.Config, newSess SessionFactory, logger *slog.Logger) *Server {
	listenFullAddress := fmt.Sprintf("%s:%s", config.Host, config.Port)
	return &Server{
		BaseServer: server.BaseServer{
			Ctx:      ctx,
			Cancel:   cancel,
			Name:     name,
			Address:  listenFullAddress,
			Config:   config,
			Logger:   logger,
			Protocol: smppProtocol,
		},
		newSess: newSess,
	}
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.Address)
	if err != nil {
		return fmt.Errorf("%s service smpp server failed to listen at %s: %w", s.Name, s.Address, err)
	}
	s.listener = ln
	s.addr.Store(ln.Addr())
	s.Logger.Info(fmt.Sprintf("%s service smpp server listening at %s", s.Name, s.Address))

	errCh := make(chan error, 1)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				errCh <- err
				return
			}
			sess := s.newSess(conn)
			go func() {
				if err := sess.Run(s.Ctx); err != nil {
					s.Logger.Info(fmt.Sprintf("%s session from %s terminated: %s", s.Name, conn.RemoteAddr(), err))
				}
			}()
		}
	}()

	select {
	case <-s.Ctx.Done():
		return s.Stop()
	case err := <-errCh:
		return err
	}
}

func (s *Server) Stop() error {
	defer s.Cancel()
	if s.listener == nil {
		return nil
	}
	if err := s.listener.Close(); err != nil {
		s.Logger.Error(fmt.Sprintf("%s service smpp server error occurred during shutdown at %s: %s", s.Name, s.Address, err))
		return fmt.Errorf("%s service smpp server error occurred during shutdown at %s: %w", s.Name, s.Address, err)
	}
	s.Logger.Info(fmt.Sprintf("%s service shutdown of smpp listener at %s", s.Name, s.Address))
	return nil
}
