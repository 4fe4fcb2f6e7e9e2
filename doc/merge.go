package doc

import "bytes"

// Supersedes is the last-writer-wins rule: incoming replaces current iff
// its timestamp is strictly greater, or equal with a lexicographically
// greater author key. This function must stay bit-exact across every node
// in a replication set; divergent tie-breaks would prevent convergence.
func Supersedes(incoming, current *Entry) bool {
	if current == nil {
		return true
	}
	if incoming.Timestamp != current.Timestamp {
		return incoming.Timestamp > current.Timestamp
	}
	return bytes.Compare(incoming.Author, current.Author) > 0
}
