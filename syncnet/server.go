package syncnet

import (
	"context"
	"log/slog"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/kompoti121/kompoti/blob"
	"github.com/kompoti121/kompoti/doc"
)

// Server exposes a doc.Store over the Sync gRPC service. Both publishers
// and redundancy nodes run one, so any converged replica can serve further
// replicas.
type Server struct {
	UnimplementedSyncServer

	Store *doc.Store
	Log   *slog.Logger
}

func (s *Server) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

// Subscribe streams a snapshot of all current entries for the requested
// document, then live updates until the subscriber goes away.
func (s *Server) Subscribe(hello *wrapperspb.BytesValue, stream Sync_SubscribeServer) error {
	if s == nil || s.Store == nil {
		return status.Error(codes.FailedPrecondition, "missing document store")
	}
	ctx := stream.Context()

	docPub, err := DecodeHello(hello.GetValue())
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	docID, err := blob.Sum(docPub)
	if err != nil {
		return status.Error(codes.Internal, "doc id computation failed")
	}
	if _, err := s.Store.Capability(ctx, docID); err != nil {
		// Unknown document: the subscriber's key does not match anything
		// served here.
		return status.Error(codes.NotFound, "unknown document")
	}

	// Watch before snapshotting so no entry committed in between is lost;
	// an entry delivered by both passes is harmless, merging is idempotent.
	updates, cancel := s.Store.Watch(docID)
	defer cancel()

	entries, err := s.Store.Entries(ctx, docID)
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	for _, e := range entries {
		if err := sendEntry(stream, e); err != nil {
			return err
		}
	}

	s.logger().Info("replica subscribed", "doc", docID.String(), "snapshot", len(entries))
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-updates:
			if !ok {
				// The store cut us off because this stream lagged behind
				// the writers. Break the stream so the subscriber comes
				// back for a fresh snapshot.
				s.logger().Warn("subscriber lagged, dropping stream", "doc", docID.String())
				return status.Error(codes.Unavailable, "subscriber lagged; resubscribe for a snapshot")
			}
			if err := sendEntry(stream, e); err != nil {
				return err
			}
		}
	}
}

func sendEntry(stream Sync_SubscribeServer, e *doc.Entry) error {
	wire, err := e.Encode()
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	return stream.Send(wrapperspb.Bytes(wire))
}

// Content serves entry value bytes by CID, re-deriving the CID before
// replying so corrupted storage surfaces as DataLoss instead of bad bytes.
func (s *Server) Content(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	_ = ctx
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing document store")
	}
	id, err := cid.Decode(in.GetValue())
	if err != nil || !id.Defined() {
		return nil, status.Error(codes.InvalidArgument, blob.ErrInvalidCID.Error())
	}
	b, err := s.Store.Blobs().Get(id)
	if err != nil {
		return nil, mapErr(err)
	}
	got, err := blob.Sum(b)
	if err != nil {
		return nil, status.Error(codes.Internal, "cid computation failed")
	}
	if got != id {
		return nil, status.Error(codes.DataLoss, blob.ErrCIDMismatch.Error())
	}
	return wrapperspb.Bytes(b), nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case blob.IsNotFound(err):
		return status.Error(codes.NotFound, blob.ErrNotFound.Error())
	case err == blob.ErrInvalidCID:
		return status.Error(codes.InvalidArgument, err.Error())
	case err == blob.ErrCIDMismatch:
		return status.Error(codes.DataLoss, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
