package cmap

import "hash/fnv"

// HashString returns an FNV-1a hash of s, suitable for use as the hash
// function of a Map[string, V] (the instrument -> book index).
func HashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// HashUint32 returns a cheap avalanche-mixed hash of k, suitable for use as
// the hash function of a Map[uint32, V] (the order-id -> order index).
func HashUint32(k uint32) uint64 {
	x := uint64(k)
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	x = x ^ (x >> 31)
	return x
}
