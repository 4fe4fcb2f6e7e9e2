package doc

import (
	"sync"

	"github.com/google/uuid"
	"github.com/ipfs/go-cid"
)

// hub fans committed entries out to sync subscribers. Send never blocks the
// writer: a subscriber whose buffer is full is disconnected (its channel is
// closed) instead of silently missing entries, so it must resubscribe and
// take a fresh snapshot to reconverge.
type hub struct {
	mu   sync.Mutex
	subs map[cid.Cid]map[string]chan *Entry
}

func newHub() *hub {
	return &hub{subs: make(map[cid.Cid]map[string]chan *Entry)}
}

func (h *hub) subscribe(docID cid.Cid) (<-chan *Entry, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := uuid.NewString()
	ch := make(chan *Entry, 64)
	if h.subs[docID] == nil {
		h.subs[docID] = make(map[string]chan *Entry)
	}
	h.subs[docID][id] = ch
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[docID][id]; ok {
			delete(h.subs[docID], id)
			close(sub)
		}
	}
	return ch, cancel
}

func (h *hub) publish(e *Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs[e.Doc] {
		select {
		case ch <- e:
		default:
			// Cutting the subscriber off here makes the gap visible; a
			// silent drop would never be re-delivered on a live stream.
			delete(h.subs[e.Doc], id)
			close(ch)
		}
	}
}
