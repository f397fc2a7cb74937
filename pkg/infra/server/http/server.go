// Package http provides the gin based HTTP server.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/contract-assistant/pkg/infra/middleware"
	"github.com/kart-io/contract-assistant/pkg/infra/server"
	mwopts "github.com/kart-io/contract-assistant/pkg/options/middleware"
	options "github.com/kart-io/contract-assistant/pkg/options/server/http"
	apierrors "github.com/kart-io/contract-assistant/pkg/utils/errors"
	"github.com/kart-io/contract-assistant/pkg/utils/response"
)

// Server is a gin engine bound to one listen address.
type Server struct {
	name     string
	opts     *options.Options
	engine   *gin.Engine
	server   *http.Server
	listener net.Listener
	errCh    chan error
}

var (
	_ server.Runnable = (*Server)(nil)
	_ server.Failer   = (*Server)(nil)
)

// NewServer creates a server with the shared middleware chain applied.
func NewServer(name string, serverOpts *options.Options, middlewareOpts *mwopts.Options) *Server {
	if serverOpts == nil {
		serverOpts = options.NewOptions()
	}
	if middlewareOpts == nil {
		middlewareOpts = mwopts.NewOptions()
	}
	_ = middlewareOpts.Complete()

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	s := &Server{
		name:   name,
		opts:   serverOpts,
		engine: engine,
		errCh:  make(chan error, 1),
	}
	// 中间件必须在注册路由前应用，子路由组才会继承。
	s.applyMiddleware(middlewareOpts)

	engine.NoRoute(func(c *gin.Context) {
		resp := response.Err(apierrors.ErrRouteNotFound).WithRequestID(middleware.RequestIDFrom(c))
		c.JSON(resp.HTTPStatus(), resp)
	})
	return s
}

// Name returns the server name.
func (s *Server) Name() string {
	return s.name
}

// Engine returns the underlying gin.Engine for route registration.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Addr returns the bound address once started, otherwise the configured one.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.opts.Addr
}

// Err implements server.Failer.
func (s *Server) Err() <-chan error {
	return s.errCh
}

// Start binds the listen address synchronously and serves in the background.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errCh <- err
		}
	}()
	return nil
}

// Stop stops the HTTP server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) applyMiddleware(opts *mwopts.Options) {
	s.engine.Use(
		middleware.RequestID(*opts.RequestID),
		middleware.Recovery(*opts.Recovery, nil),
		middleware.Tracing(opts.Logger.SkipPaths...),
		middleware.Logger(*opts.Logger),
		middleware.CORS(*opts.CORS),
		middleware.BodyLimit(s.opts.MaxBodyBytes),
	)
}
