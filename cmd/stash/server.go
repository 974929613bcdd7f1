package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/soheilhy/cmux"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"go.klb.dev/stash/internal/rpc"
	"go.klb.dev/stash/internal/tlsconf"
)

// listenerCredentials keys the TCP listener's certificate from the token.
func listenerCredentials(token string) (*tlsconf.Credentials, error) {
	if token == "" {
		slog.Warn("--listen without --token: any client knowing the default token can connect")
		token = tlsconf.DefaultToken
	}
	creds, err := tlsconf.New(token)
	if err != nil {
		return nil, fmt.Errorf("tls credentials: %w", err)
	}
	return creds, nil
}

// serveTCP serves gRPC and the HTTP JSON gateway on one TLS port. TLS is
// terminated first; cmux then splits gRPC (HTTP/2 with a grpc content-type)
// from everything else.
func serveTCP(ctx context.Context, g *errgroup.Group, addr string, creds *tlsconf.Credentials, srv *grpc.Server, svc rpc.HistoryServer) error {
	gw, err := rpc.NewGateway(svc)
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	slog.Info("listening", "addr", ln.Addr(), "fingerprint", creds.Fingerprint())

	m := cmux.New(tls.NewListener(ln, creds.Server()))
	grpcL := m.MatchWithWriters(cmux.HTTP2MatchHeaderFieldPrefixSendSettings("content-type", "application/grpc"))
	httpL := m.Match(cmux.Any())

	httpSrv := &http.Server{
		Handler:           h2c.NewHandler(gw, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		if err := srv.Serve(grpcL); err != nil && !errors.Is(err, cmux.ErrListenerClosed) && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc: %w", err)
		}
		return nil
	})
	g.Go(func() error { return serveHTTPGateway(httpSrv, httpL) })
	g.Go(func() error {
		if err := m.Serve(); err != nil && !errors.Is(err, net.ErrClosed) {
			return fmt.Errorf("mux: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		_ = httpSrv.Close()
		m.Close()
		_ = ln.Close()
		return nil
	})
	return nil
}

// serveHTTPGateway runs the gateway until the listener closes.
func serveHTTPGateway(srv *http.Server, ln net.Listener) error {
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, cmux.ErrListenerClosed) {
		return fmt.Errorf("http gateway: %w", err)
	}
	return nil
}
