package bucketlist

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// HashInt64 hashes an int64 key with xxhash over its little-endian byte
// encoding — the stable 64-bit hash spec.md §4.3 requires bucket() to use.
func HashInt64(k int64) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(k))
	return xxhash.Sum64(b[:])
}

// HashUint64 hashes a uint64 key the same way as HashInt64.
func HashUint64(k uint64) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], k)
	return xxhash.Sum64(b[:])
}

// HashInt hashes an int key by widening it to int64.
func HashInt(k int) uint64 {
	return HashInt64(int64(k))
}

// HashString hashes a string key directly, avoiding the extra copy
// xxhash.Sum64([]byte(k)) would incur.
func HashString(k string) uint64 {
	return xxhash.Sum64String(k)
}
