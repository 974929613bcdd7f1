// Package rpc serves the history over gRPC and HTTP/JSON and provides the
// matching client.
//
// Messages are plain Go structs carried by a JSON codec registered under the
// "json" content-subtype, so the service needs no generated stubs.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"go.klb.dev/stash/internal/entry"
	"go.klb.dev/stash/internal/hub"
	"go.klb.dev/stash/internal/paste"
	"go.klb.dev/stash/internal/store"
)

const (
	DefaultLimit = 50
	MaxLimit     = 1000

	// SourceHeader names the caller in watcher lists.
	SourceHeader = "x-stash-source"
)

// Store is the history the service exposes.
type Store interface {
	FetchRecent(ctx context.Context, limit int) ([]entry.Entry, error)
	FetchBefore(ctx context.Context, ts int64, limit int) ([]entry.Entry, error)
	Search(ctx context.Context, query string, limit int) ([]entry.Entry, error)
	FetchText(ctx context.Context, id int64) (string, error)
	FetchImage(ctx context.Context, id int64) ([]byte, error)
	Delete(ctx context.Context, id int64) error
	Touch(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (entry.Entry, error)
	Count(ctx context.Context) (int64, error)
}

// Paster writes an entry back to the clipboard.
type Paster interface {
	Paste(ctx context.Context, req paste.Request) error
}

// Writer puts text on the clipboard.
type Writer interface {
	WriteText(text string) error
}

// Service implements HistoryServer.
type Service struct {
	store    Store
	hub      *hub.Hub
	token    string
	suppress paste.Suppressor
	paster   Paster
	writer   Writer
	toggle   func(ctx context.Context) (bool, error)
	status   func(ctx context.Context, resp *StatusResponse)
}

// Option configures a Service.
type Option func(*Service)

// WithToken requires a bearer token from callers that are not on the local
// socket.
func WithToken(token string) Option { return func(s *Service) { s.token = token } }

// WithSuppressor enables Suppress.
func WithSuppressor(sp paste.Suppressor) Option { return func(s *Service) { s.suppress = sp } }

// WithPaster enables Paste.
func WithPaster(p Paster) Option { return func(s *Service) { s.paster = p } }

// WithWriter enables Copy.
func WithWriter(w Writer) Option { return func(s *Service) { s.writer = w } }

// WithToggle enables Toggle.
func WithToggle(fn func(ctx context.Context) (bool, error)) Option {
	return func(s *Service) { s.toggle = fn }
}

// WithStatus lets the daemon fill in the parts of Status it owns.
func WithStatus(fn func(ctx context.Context, resp *StatusResponse)) Option {
	return func(s *Service) { s.status = fn }
}

// New returns a Service over st. h may be nil, which disables Watch.
func New(st Store, h *hub.Hub, opts ...Option) *Service {
	s := &Service{store: st, hub: h}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Recent(ctx context.Context, req *RecentRequest) (*EntriesResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	var (
		got []entry.Entry
		err error
	)
	if req.Before > 0 {
		got, err = s.store.FetchBefore(ctx, req.Before, clampLimit(req.Limit))
	} else {
		got, err = s.store.FetchRecent(ctx, clampLimit(req.Limit))
	}
	if err != nil {
		return nil, toStatus(err)
	}
	return &EntriesResponse{Entries: nonNil(got)}, nil
}

func (s *Service) Search(ctx context.Context, req *SearchRequest) (*EntriesResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	got, err := s.store.Search(ctx, req.Query, clampLimit(req.Limit))
	if err != nil {
		return nil, toStatus(err)
	}
	return &EntriesResponse{Entries: nonNil(got)}, nil
}

func (s *Service) Text(ctx context.Context, req *IDRequest) (*TextResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	text, err := s.store.FetchText(ctx, req.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &TextResponse{Text: text}, nil
}

func (s *Service) Image(ctx context.Context, req *IDRequest) (*ImageResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	data, err := s.store.FetchImage(ctx, req.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ImageResponse{Data: data}, nil
}

func (s *Service) Delete(ctx context.Context, req *IDRequest) (*Empty, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, req.ID); err != nil {
		return nil, toStatus(err)
	}
	s.publish(ctx, hub.Event{Kind: hub.Deleted, ID: req.ID})
	return &Empty{}, nil
}

func (s *Service) Touch(ctx context.Context, req *IDRequest) (*Empty, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	if err := s.store.Touch(ctx, req.ID); err != nil {
		return nil, toStatus(err)
	}
	s.publish(ctx, hub.Event{Kind: hub.Touched, ID: req.ID})
	return &Empty{}, nil
}

func (s *Service) Suppress(ctx context.Context, req *SuppressRequest) (*Empty, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	if s.suppress == nil {
		return nil, status.Error(codes.Unimplemented, "clipboard monitor not running")
	}
	if req.Cancel {
		s.suppress.CancelSkip()
	} else {
		s.suppress.SkipNextChange()
	}
	return &Empty{}, nil
}

func (s *Service) Paste(ctx context.Context, req *PasteRequest) (*Empty, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	if s.paster == nil {
		return nil, status.Error(codes.Unimplemented, "paste-back not available")
	}
	e, err := s.store.Get(ctx, req.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.paster.Paste(ctx, paste.Request{Entry: e, PlainText: req.Plain}); err != nil {
		return nil, status.Error(codes.Unavailable, err.Error())
	}
	return &Empty{}, nil
}

func (s *Service) Copy(ctx context.Context, req *CopyRequest) (*Empty, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	if s.writer == nil {
		return nil, status.Error(codes.Unimplemented, "clipboard not available")
	}
	if req.Text == "" {
		return nil, status.Error(codes.InvalidArgument, "empty text")
	}
	if err := s.writer.WriteText(req.Text); err != nil {
		return nil, status.Error(codes.Unavailable, err.Error())
	}
	return &Empty{}, nil
}

func (s *Service) Toggle(ctx context.Context, _ *Empty) (*ToggleResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	if s.toggle == nil {
		return nil, status.Error(codes.Unimplemented, "no panel attached")
	}
	visible, err := s.toggle(ctx)
	if err != nil {
		return nil, status.Error(codes.Unavailable, err.Error())
	}
	return &ToggleResponse{Visible: visible}, nil
}

func (s *Service) Status(ctx context.Context, _ *Empty) (*StatusResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	n, err := s.store.Count(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &StatusResponse{Entries: n, Watchers: []hub.PeerInfo{}}
	if s.hub != nil {
		resp.Watchers = s.hub.Peers()
		if ev, ok := s.hub.Latest(); ok {
			resp.LatestEntry = ev.At
		}
	}
	if s.status != nil {
		s.status(ctx, resp)
	}
	return resp, nil
}

func (s *Service) Watch(req *WatchRequest, stream grpc.ServerStream) error {
	ctx := stream.Context()
	if err := s.auth(ctx); err != nil {
		return err
	}
	if s.hub == nil {
		return status.Error(codes.Unimplemented, "watch not available")
	}

	addr := addrFromCtx(ctx)
	wp := hub.NewChanPeer(fmt.Sprintf("%s/watch/%p", addr, stream), sourceFromCtx(ctx, ""), addr, req.Accepts, 16)
	s.hub.Register(wp)
	defer s.hub.Unregister(wp)

	slog.Info("watch started", "peer", wp.ID(), "accept", req.Accepts)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-wp.C():
			if err := stream.SendMsg(&ev); err != nil {
				return err
			}
		}
	}
}

func (s *Service) publish(ctx context.Context, ev hub.Event) {
	if s.hub == nil {
		return
	}
	ev.Source = sourceFromCtx(ctx, "")
	hub.LogEvent("history changed", ev)
	s.hub.Publish(ev, "")
}

// auth validates the bearer token in ctx metadata. Skipped when no token is
// configured and for callers on the local socket, which the OS already
// restricts to the owner.
func (s *Service) auth(ctx context.Context) error {
	if s.token == "" || isLocal(ctx) {
		return nil
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return status.Error(codes.Unauthenticated, "missing authorization header")
	}
	tok, _ := strings.CutPrefix(vals[0], "Bearer ")
	if tok != s.token {
		return status.Error(codes.Unauthenticated, "invalid token")
	}
	return nil
}

func isLocal(ctx context.Context) bool {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return false
	}
	switch p.Addr.Network() {
	case "unix", "pipe":
		return true
	}
	return false
}

func sourceFromCtx(ctx context.Context, fallback string) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(SourceHeader); len(vals) > 0 {
			return vals[0]
		}
	}
	if fallback != "" {
		return fallback
	}
	return addrFromCtx(ctx)
}

func addrFromCtx(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return "unknown"
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	}
	return n
}

func nonNil(in []entry.Entry) []entry.Entry {
	if in == nil {
		return []entry.Entry{}
	}
	return in
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, store.ErrNotInitialized):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
