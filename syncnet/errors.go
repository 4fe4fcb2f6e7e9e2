package syncnet

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kompoti121/kompoti/blob"
)

// mapRPC translates Sync service status codes back to the blob sentinels
// so a remote store behaves like a local one to callers.
func mapRPC(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	switch st.Code() {
	case codes.NotFound:
		return blob.ErrNotFound
	case codes.InvalidArgument:
		return blob.ErrInvalidCID
	case codes.DataLoss:
		return blob.ErrCIDMismatch
	default:
		switch st.Message() {
		case blob.ErrNotFound.Error():
			return blob.ErrNotFound
		case blob.ErrInvalidCID.Error():
			return blob.ErrInvalidCID
		case blob.ErrCIDMismatch.Error():
			return blob.ErrCIDMismatch
		default:
			return err
		}
	}
}
