package blob

import (
	"errors"

	"github.com/ipfs/go-cid"
)

// Fallback resolves content through an ordered list of sources. A replica
// uses it to read converged content from its local store first and reach
// out to a peer only for content it has not replicated yet.
//
// The order is the slice order; callers supply a fixed order so retrieval
// stays deterministic. Put writes only to the first source, which must be a
// full Store.
type Fallback struct {
	Local   Store
	Remotes []Getter
}

func (f Fallback) Put(bytes []byte) (cid.Cid, error) {
	if f.Local == nil {
		return cid.Undef, errors.New("blob: Fallback has no local store")
	}
	return f.Local.Put(bytes)
}

func (f Fallback) Get(id cid.Cid) ([]byte, error) {
	for _, src := range f.sources() {
		b, err := src.Get(id)
		if err == nil {
			return b, nil
		}
		if IsNotFound(err) {
			continue
		}
		return nil, err
	}
	return nil, ErrNotFound
}

func (f Fallback) Has(id cid.Cid) bool {
	for _, src := range f.sources() {
		if src.Has(id) {
			return true
		}
	}
	return false
}

func (f Fallback) sources() []Getter {
	var out []Getter
	if f.Local != nil {
		out = append(out, f.Local)
	}
	return append(out, f.Remotes...)
}
