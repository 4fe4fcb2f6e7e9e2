package syncnet

import (
	"context"
	"crypto/ed25519"
	"time"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/kompoti121/kompoti/blob"
	"github.com/kompoti121/kompoti/doc"
)

// Client talks to one peer's Sync service. Its content side implements
// blob.Getter so it can slot into a blob.Fallback behind the local store.
type Client struct {
	cc     *grpc.ClientConn
	client SyncClient

	// Timeout applies per unary RPC when non-zero. It never applies to the
	// subscription stream, which is expected to stay open indefinitely.
	Timeout time.Duration
}

type DialOptions struct {
	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration

	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int
}

func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc, client: NewSyncClient(cc)}, nil
}

// NewClientConn wraps an existing connection (in-process transports in
// tests).
func NewClientConn(cc grpc.ClientConnInterface) *Client {
	return &Client{client: NewSyncClient(cc)}
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

// EntryStream yields verified-decodable entries from a subscription.
type EntryStream struct {
	stream Sync_SubscribeClient
}

// Recv blocks for the next entry. It returns io.EOF-wrapping gRPC errors
// when the stream ends; callers decide whether to reconnect.
func (s *EntryStream) Recv() (*doc.Entry, error) {
	frame, err := s.stream.Recv()
	if err != nil {
		return nil, err
	}
	return doc.DecodeEntry(frame.GetValue())
}

// Subscribe opens the entry stream for the document identified by docPub.
// The stream stays open until ctx is cancelled or the peer goes away.
func (c *Client) Subscribe(ctx context.Context, docPub ed25519.PublicKey) (*EntryStream, error) {
	hello, err := EncodeHello(docPub)
	if err != nil {
		return nil, err
	}
	stream, err := c.client.Subscribe(ctx, wrapperspb.Bytes(hello))
	if err != nil {
		return nil, err
	}
	return &EntryStream{stream: stream}, nil
}

// Get fetches content bytes by CID from the peer, verifying them against
// the requested CID before returning.
func (c *Client) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, blob.ErrInvalidCID
	}
	ctx, cancel := c.ctx()
	defer cancel()

	reply, err := c.client.Content(ctx, wrapperspb.String(id.String()))
	if err != nil {
		return nil, mapRPC(err)
	}
	b := reply.GetValue()
	got, err := blob.Sum(b)
	if err != nil {
		return nil, err
	}
	if got != id {
		return nil, blob.ErrCIDMismatch
	}
	return b, nil
}

// Has probes the peer for content. Errors degrade to false; the caller
// falls back to Get anyway.
func (c *Client) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	_, err := c.Get(id)
	return err == nil
}

func (c *Client) ctx() (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), c.Timeout)
}
