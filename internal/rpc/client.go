package rpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"go.klb.dev/stash/internal/entry"
	"go.klb.dev/stash/internal/ipc"
	"go.klb.dev/stash/internal/store"
)

// suppressTimeout bounds the Suppress call a paste-back makes before it
// writes the clipboard.
const suppressTimeout = 2 * time.Second

// Client talks to a HistoryService. It satisfies the store interfaces of the
// history, paste, and imagecache packages, so a panel can run against a
// remote daemon exactly as it runs against a local store.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// DialIPC connects to the daemon's local socket. No auth is needed; the
// socket is owner-restricted by the OS.
func DialIPC() (*grpc.ClientConn, error) {
	opts := append(DialOptions(insecure.NewCredentials(), "", ""),
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return ipc.Dial() }),
	)
	return grpc.NewClient("passthrough:///stash", opts...)
}

// DialOptions returns the options every stash client connection uses.
func DialOptions(creds credentials.TransportCredentials, token, source string) []grpc.DialOption {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}
	if token != "" || source != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(&clientCreds{token: token, source: source}))
	}
	return opts
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	err := c.cc.Invoke(ctx, fullMethod(method), req, resp, grpc.CallContentSubtype(codecName))
	return fromStatus(err)
}

func (c *Client) FetchRecent(ctx context.Context, limit int) ([]entry.Entry, error) {
	var resp EntriesResponse
	if err := c.invoke(ctx, "Recent", &RecentRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

func (c *Client) FetchBefore(ctx context.Context, ts int64, limit int) ([]entry.Entry, error) {
	var resp EntriesResponse
	if err := c.invoke(ctx, "Recent", &RecentRequest{Limit: limit, Before: ts}, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

func (c *Client) Search(ctx context.Context, query string, limit int) ([]entry.Entry, error) {
	var resp EntriesResponse
	if err := c.invoke(ctx, "Search", &SearchRequest{Query: query, Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

func (c *Client) FetchText(ctx context.Context, id int64) (string, error) {
	var resp TextResponse
	if err := c.invoke(ctx, "Text", &IDRequest{ID: id}, &resp); err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (c *Client) FetchImage(ctx context.Context, id int64) ([]byte, error) {
	var resp ImageResponse
	if err := c.invoke(ctx, "Image", &IDRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.invoke(ctx, "Delete", &IDRequest{ID: id}, &Empty{})
}

func (c *Client) Touch(ctx context.Context, id int64) error {
	return c.invoke(ctx, "Touch", &IDRequest{ID: id}, &Empty{})
}

// Paste asks the daemon to put entry id on its clipboard.
func (c *Client) Paste(ctx context.Context, id int64, plain bool) error {
	return c.invoke(ctx, "Paste", &PasteRequest{ID: id, Plain: plain}, &Empty{})
}

// Copy asks the daemon to put text on its clipboard.
func (c *Client) Copy(ctx context.Context, text string) error {
	return c.invoke(ctx, "Copy", &CopyRequest{Text: text}, &Empty{})
}

// Toggle shows or cycles the daemon's panel.
func (c *Client) Toggle(ctx context.Context) (bool, error) {
	var resp ToggleResponse
	if err := c.invoke(ctx, "Toggle", &Empty{}, &resp); err != nil {
		return false, err
	}
	return resp.Visible, nil
}

func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.invoke(ctx, "Status", &Empty{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SkipNextChange tells the daemon's monitor to ignore the next clipboard
// change. Failures are logged: the paste-back still happens, it is just
// recorded again.
func (c *Client) SkipNextChange() { c.suppress(false) }

// CancelSkip withdraws a SkipNextChange whose write did not change the
// clipboard.
func (c *Client) CancelSkip() { c.suppress(true) }

func (c *Client) suppress(cancelSkip bool) {
	ctx, cancel := context.WithTimeout(context.Background(), suppressTimeout)
	defer cancel()
	if err := c.invoke(ctx, "Suppress", &SuppressRequest{Cancel: cancelSkip}, &Empty{}); err != nil {
		slog.Warn("could not suppress the daemon monitor", "cancel", cancelSkip, "err", err)
	}
}

// Watch streams history events to fn until ctx is done or the stream ends.
func (c *Client) Watch(ctx context.Context, accepts []entry.ContentType, fn func(WatchEvent)) error {
	stream, err := c.cc.NewStream(ctx, &serviceDesc.Streams[0], fullMethod("Watch"), grpc.CallContentSubtype(codecName))
	if err != nil {
		return fromStatus(err)
	}
	if err := stream.SendMsg(&WatchRequest{Accepts: accepts}); err != nil {
		return fromStatus(err)
	}
	if err := stream.CloseSend(); err != nil {
		return fromStatus(err)
	}
	for {
		var ev WatchEvent
		if err := stream.RecvMsg(&ev); err != nil {
			if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled {
				return nil
			}
			return fromStatus(err)
		}
		fn(ev)
	}
}

// fromStatus maps well-known codes back to store sentinels.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.NotFound:
		return store.ErrNotFound
	}
	return err
}

type clientCreds struct {
	token  string
	source string
}

func (c *clientCreds) GetRequestMetadata(_ context.Context, _ ...string) (map[string]string, error) {
	md := make(map[string]string, 2)
	if c.token != "" {
		md["authorization"] = "Bearer " + c.token
	}
	if c.source != "" {
		md[SourceHeader] = c.source
	}
	return md, nil
}

func (c *clientCreds) RequireTransportSecurity() bool { return false }
