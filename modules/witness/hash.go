package witness

import "hash/fnv"

// signalHash computes the FNV-1a 64-bit hash of a signal name and splits it
// into the (msb, lsb) pair the sandbox's symbol table is keyed by.
func signalHash(name string) (msb, lsb uint32) {
	h := fnv.New64a()
	h.Write([]byte(name))
	sum := h.Sum64()
	return uint32(sum >> 32), uint32(sum)
}
