package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kompoti121/kompoti/blob"
	"github.com/kompoti121/kompoti/config"
	"github.com/kompoti121/kompoti/doc"
	"github.com/kompoti121/kompoti/syncnet"
	"github.com/kompoti121/kompoti/ticket"
)

// Replica is a passive redundancy node: it joins a document through a ticket,
// converges on the publisher's state and keeps serving it to further peers.
type Replica struct {
	Cfg *config.Config
	Log *slog.Logger

	// Backoff bounds the reconnect delay after a dropped stream.
	BackoffMin time.Duration
	BackoffMax time.Duration
}

// NewReplica builds a replica from config.
func NewReplica(cfg *config.Config, logger *slog.Logger) *Replica {
	return &Replica{
		Cfg:        cfg,
		Log:        logger,
		BackoffMin: time.Second,
		BackoffMax: 30 * time.Second,
	}
}

// ErrNoReachablePeer is returned when none of the ticket's bootstrap
// addresses answered during the initial join.
var ErrNoReachablePeer = errors.New("node: no bootstrap address reachable")

// Run joins the document named by ticketStr and replicates it until ctx is
// cancelled. A malformed ticket fails before any network activity.
func (r *Replica) Run(ctx context.Context, ticketStr string) error {
	r.Log.Info("joining", "phase", "decoding")
	tk, err := ticket.Decode(ticketStr)
	if err != nil {
		return fmt.Errorf("decode ticket: %w", err)
	}
	if len(tk.Addrs) == 0 {
		return errors.New("decode ticket: no bootstrap addresses")
	}
	docID, err := tk.Cap.DocID()
	if err != nil {
		return fmt.Errorf("derive document id: %w", err)
	}

	// The replica has its own identity, unrelated to the publisher's.
	if _, err := loadIdentity(r.Cfg, r.Log); err != nil {
		return fmt.Errorf("load identity: %w", err)
	}

	store, err := openStore(r.Cfg, r.Log)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.ImportCapability(ctx, tk.Cap); err != nil {
		return fmt.Errorf("import capability: %w", err)
	}
	r.Log.Info("joined document", "doc", docID, "mode", tk.Cap.Mode)

	// A replica serves the sync service itself, so the set survives the
	// publisher going away.
	lis, err := listenSync(r.Cfg)
	if err != nil {
		return err
	}
	defer lis.Close()
	srvCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	srvDone := make(chan error, 1)
	go func() { srvDone <- serveSync(srvCtx, lis, store, r.Log) }()

	syncErr := r.syncLoop(ctx, store, tk)
	cancel()
	srvErr := <-srvDone
	if syncErr != nil {
		return syncErr
	}
	return srvErr
}

// syncLoop connects to a bootstrap peer and applies its entry stream,
// reconnecting with backoff until ctx is cancelled. The very first pass over
// the address list must reach someone or the join fails outright.
func (r *Replica) syncLoop(ctx context.Context, store *doc.Store, tk *ticket.Ticket) error {
	joined := false
	backoff := r.BackoffMin
	for {
		connected := false
		for _, addr := range tk.Addrs {
			if ctx.Err() != nil {
				return nil
			}
			err := r.syncOnce(ctx, store, tk, addr)
			switch {
			case err == nil:
				// Stream ended because ctx was cancelled.
				return nil
			case errors.Is(err, context.Canceled):
				return nil
			default:
				r.Log.Warn("sync stream failed", "addr", addr, "err", err)
			}
			if errors.Is(err, errStreamEstablished) || !errors.Is(err, errPeerUnreachable) {
				connected = true
			}
		}
		if !joined && !connected {
			return fmt.Errorf("%w: tried %v", ErrNoReachablePeer, tk.Addrs)
		}
		joined = joined || connected

		backoff = r.reconnectDelay(backoff, connected)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
	}
}

// reconnectDelay escalates the wait between passes over the address list
// across consecutive failures and resets it once a pass held a stream, so a
// peer that flaps after hours of healthy syncing is retried promptly again.
func (r *Replica) reconnectDelay(prev time.Duration, connected bool) time.Duration {
	if connected {
		return r.BackoffMin
	}
	next := prev * 2
	if next > r.BackoffMax {
		next = r.BackoffMax
	}
	return next
}

var (
	errPeerUnreachable   = errors.New("node: peer unreachable")
	errStreamEstablished = errors.New("node: stream dropped after establishing")
)

// syncOnce opens one subscription against addr and applies entries until the
// stream breaks or ctx is cancelled. Returning nil means a clean shutdown.
func (r *Replica) syncOnce(ctx context.Context, store *doc.Store, tk *ticket.Ticket, addr string) error {
	r.Log.Info("joining", "phase", "connecting", "addr", addr)
	client, err := syncnet.Dial(addr, syncnet.DialOptions{})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", errPeerUnreachable, addr, err)
	}
	defer client.Close()

	stream, err := client.Subscribe(ctx, tk.Cap.PublicKey())
	if err != nil {
		return fmt.Errorf("%w: %s: %v", errPeerUnreachable, addr, err)
	}
	r.Log.Info("joining", "phase", "importing", "addr", addr)

	// Local blobs win; only missing content crosses the wire.
	content := &blob.Fallback{Local: store.Blobs(), Remotes: []blob.Getter{client}}

	applied := 0
	received := false
	for {
		e, err := stream.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// The connection is lazy, so a refused dial surfaces as
			// Unavailable on the first Recv rather than at Subscribe.
			if !received && status.Code(err) == codes.Unavailable {
				return fmt.Errorf("%w: %s: %v", errPeerUnreachable, addr, err)
			}
			return fmt.Errorf("%w: %v", errStreamEstablished, err)
		}
		received = true
		data, err := content.Get(e.Content)
		if err != nil {
			return fmt.Errorf("%w: fetch content %s: %v", errStreamEstablished, e.Content, err)
		}
		ok, err := store.ApplyRemote(ctx, e, data)
		if err != nil {
			if errors.Is(err, doc.ErrBadEntry) {
				r.Log.Warn("rejected remote entry", "key", string(e.Key), "err", err)
				continue
			}
			return fmt.Errorf("apply entry: %w", err)
		}
		if ok {
			applied++
			if applied == 1 {
				r.Log.Info("joining", "phase", "syncing", "addr", addr)
			}
		}
	}
}
