// Package doc implements the replicated catalog document: an append-only,
// per-key last-writer-wins store of author-signed entries that independent
// processes holding the same capability converge on.
//
// Entry values are content-addressed: the entry records the CID of the
// value bytes and the bytes themselves live in a blob store. Merging is a
// pure function of (timestamp, author) and is commutative, associative and
// idempotent, so replicas that receive entries in different orders still
// converge.
package doc
