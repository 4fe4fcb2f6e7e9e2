package doc

import "errors"

var (
	// ErrNotFound reports an absent entry or document.
	ErrNotFound = errors.New("doc: not found")

	// ErrReadOnly reports a write attempted with a read capability.
	ErrReadOnly = errors.New("doc: capability does not authorize writes")

	// ErrAmbiguousDocuments reports that more than one locally-known
	// document carries a write capability. Picking one silently risks
	// fragmenting the catalog, so the condition is surfaced instead.
	ErrAmbiguousDocuments = errors.New("doc: multiple writable documents found; refusing to pick one")

	// ErrBadEntry reports an entry that failed signature or content
	// verification and was rejected before touching local state.
	ErrBadEntry = errors.New("doc: entry failed verification")
)
