// Package node wires the stores, the identity, the ticket and the sync
// transport into the two long-running roles: the authoritative publisher
// and the passive redundancy node.
package node

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"

	"github.com/kompoti121/kompoti/blob"
	"github.com/kompoti121/kompoti/config"
	"github.com/kompoti121/kompoti/doc"
	"github.com/kompoti121/kompoti/keys"
	"github.com/kompoti121/kompoti/syncnet"
)

// openStore opens the blob store and document store under the data dir.
func openStore(cfg *config.Config, logger *slog.Logger) (*doc.Store, error) {
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}
	blobs, err := blob.NewFS(cfg.BlobDir())
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	store, err := doc.Open(cfg.StorePath(), blobs, logger)
	if err != nil {
		return nil, fmt.Errorf("open document store: %w", err)
	}
	return store, nil
}

// loadIdentity loads or creates the node identity, honoring an
// environment-distributed secret on first run.
func loadIdentity(cfg *config.Config, logger *slog.Logger) (*keys.Identity, error) {
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}
	if cfg.SecretHex != "" {
		if err := keys.ImportSeedHex(cfg.SecretKeyPath(), cfg.SecretHex); err != nil {
			return nil, fmt.Errorf("import secret from environment: %w", err)
		}
	}
	id, err := keys.LoadOrCreate(cfg.SecretKeyPath())
	if err != nil {
		return nil, err
	}
	logger.Info("node identity ready", "id", id.PublicID())
	return id, nil
}

// listenSync binds the sync listener. Kept separate from serving so a node
// can be reachable before it hands out its address in a ticket.
func listenSync(cfg *config.Config) (net.Listener, error) {
	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.ListenAddr, err)
	}
	return lis, nil
}

// serveSync serves the Sync service on lis until ctx is cancelled, then
// stops gracefully so peers mid-transfer are not cut off.
func serveSync(ctx context.Context, lis net.Listener, store *doc.Store, logger *slog.Logger) error {
	srv := grpc.NewServer()
	syncnet.RegisterSyncServer(srv, &syncnet.Server{Store: store, Log: logger})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(lis) }()
	logger.Info("serving sync traffic", "addr", lis.Addr().String())

	select {
	case <-ctx.Done():
		// Subscriptions are long-lived, so graceful stop alone could wait
		// forever on a connected replica.
		stopped := make(chan struct{})
		go func() {
			srv.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(5 * time.Second):
			srv.Stop()
			<-stopped
		}
		<-errCh
		return nil
	case err := <-errCh:
		return fmt.Errorf("sync server: %w", err)
	}
}
