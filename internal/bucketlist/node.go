// Package bucketlist is the L2 ordered bucket list: a fixed-size array of
// hash buckets, each heading a sorted singly linked list of Node values.
// Every structural mutation goes through a single compare-and-swap on a
// bucket head or an internal next pointer, and every operation brackets
// its traversal with internal/reclaim's Enter/Leave so a successfully
// unlinked node stays valid until every reader that could have observed
// it has left.
//
// The node shape and its atomic-pointer CAS style are adapted from the
// teacher's pkg/cowbtree/node.go (CowNode's atomic.Pointer-based
// children/next fields); the bucketed sorted-list traversal itself
// follows other_examples/8bc048f1_dustinxie-lockfree__hashmap-bucket.go.go.
package bucketlist

import "sync/atomic"

// Node is the unit of memory the reclamation engine manages. While live,
// next links it into its bucket's sorted chain; once retired, the very
// same field is reused as the retirement stack's intrusive link — the
// node is never simultaneously on a bucket chain and the retirement
// stack, so the field's meaning is unambiguous at any point in its
// lifecycle (see spec's node lifecycle: Live -> Unlinked -> Retired ->
// Freed).
type Node[K Ordered, V any] struct {
	key   K
	value V
	next  atomic.Pointer[Node[K, V]]
	nref  atomic.Int64
}

// Ordered is the key constraint: a node's key must be totally ordered so
// buckets can keep sorted chains and linear scans can stop early at the
// first key greater than the target.
type Ordered interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr |
		~float32 | ~float64 | ~string
}

// RetireLink returns the atomic field the reclamation engine uses to
// thread this node into the retirement stack. Satisfies reclaim.Entry.
func (n *Node[K, V]) RetireLink() *atomic.Pointer[Node[K, V]] {
	return &n.next
}

// RetireRefCount returns the node's retirement reference count. Satisfies
// reclaim.Entry.
func (n *Node[K, V]) RetireRefCount() *atomic.Int64 {
	return &n.nref
}

// Key returns the node's key.
func (n *Node[K, V]) Key() K { return n.key }

// Value returns a copy of the node's value, honoring the get/remove
// copy-semantics the spec requires (§4.3): a reader never hands out a
// pointer into a node another thread might be retiring.
func (n *Node[K, V]) Value() V { return n.value }
