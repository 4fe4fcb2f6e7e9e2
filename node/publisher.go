package node

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/kompoti121/kompoti/config"
	"github.com/kompoti121/kompoti/doc"
	"github.com/kompoti121/kompoti/ingest"
	"github.com/kompoti121/kompoti/keys"
	"github.com/kompoti121/kompoti/registry"
	"github.com/kompoti121/kompoti/ticket"
)

// Publisher is the authoritative node: it owns the write capability for the
// catalog document, ingests scraped payloads into it and serves the sync
// service for replicas.
type Publisher struct {
	Cfg *config.Config
	Log *slog.Logger
	Reg registry.Publisher
}

// NewPublisher builds a publisher from config. The registry client is a nop
// unless both a registry URL and token are configured.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	var reg registry.Publisher = registry.Nop{}
	if cfg.RegistryEnabled() {
		reg = registry.NewHTTP(cfg.RegistryURL, cfg.RegistryToken)
	}
	return &Publisher{Cfg: cfg, Log: logger, Reg: reg}
}

// Run ingests the payload at jsonPath into the writable catalog document and
// then serves sync traffic until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context, jsonPath string) error {
	id, err := loadIdentity(p.Cfg, p.Log)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}

	store, err := openStore(p.Cfg, p.Log)
	if err != nil {
		return err
	}
	defer store.Close()

	cap, err := store.OpenOrCreateWritable(ctx)
	if err != nil {
		return fmt.Errorf("open catalog document: %w", err)
	}
	docID, err := cap.DocID()
	if err != nil {
		return fmt.Errorf("derive document id: %w", err)
	}
	author, err := keys.LoadOrDeriveAuthor(p.Cfg.AuthorKeyPath(), id, docID)
	if err != nil {
		return fmt.Errorf("derive author key: %w", err)
	}

	// Bind before the ticket exists anywhere: a replica that consumes the
	// ticket the moment it is published must find the port open.
	lis, err := listenSync(p.Cfg)
	if err != nil {
		return err
	}
	defer lis.Close()

	if err := p.mintTicket(ctx, cap.Read()); err != nil {
		return err
	}

	payload, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("read payload %s: %w", jsonPath, err)
	}

	// Serve before ingesting so a replica joining during a long import sees
	// entries as they land instead of waiting for the full snapshot.
	srvCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	srvDone := make(chan error, 1)
	go func() { srvDone <- serveSync(srvCtx, lis, store, p.Log) }()

	if err := ingest.WriteGlobalConfig(ctx, store, cap, author, p.Cfg.YTSURL); err != nil {
		if ctx.Err() != nil {
			return <-srvDone
		}
		cancel()
		<-srvDone
		return fmt.Errorf("write global config: %w", err)
	}
	report, err := ingest.Ingest(ctx, store, cap, author, payload, p.Log)
	if err != nil {
		// A shutdown signal mid-ingest is a clean stop, not a failure.
		if ctx.Err() != nil {
			return <-srvDone
		}
		cancel()
		<-srvDone
		return fmt.Errorf("ingest %s: %w", jsonPath, err)
	}
	p.Log.Info("ingest complete", "accepted", report.Accepted, "skipped", report.Skipped)

	return <-srvDone
}

// mintTicket encodes a read-only ticket for the document, writes it next to
// the store and publishes it to the registry. Registry failures are logged
// and swallowed: the node must keep serving even when the registry is down.
func (p *Publisher) mintTicket(ctx context.Context, readCap doc.Capability) error {
	tk := ticket.Ticket{Cap: readCap, Addrs: p.Cfg.AnnounceAddrs}
	encoded, err := tk.Encode()
	if err != nil {
		return fmt.Errorf("encode ticket: %w", err)
	}
	if err := os.WriteFile(p.Cfg.TicketPath(), []byte(encoded), 0o644); err != nil {
		return fmt.Errorf("write ticket file: %w", err)
	}
	p.Log.Info("ticket minted", "path", p.Cfg.TicketPath(), "addrs", p.Cfg.AnnounceAddrs)

	if err := p.Reg.Publish(ctx, p.Cfg.TicketName, encoded); err != nil {
		p.Log.Warn("registry publish failed, continuing", "name", p.Cfg.TicketName, "err", err)
	}
	return nil
}
