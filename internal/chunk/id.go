package chunk

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// hash64 hashes b with 64-bit xxHash (XXH64), used for both file and
// chunk content hashes.
func hash64(b []byte) uint64 {
	return xxhash.Sum64(b)
}

// computeID derives a content-addressed chunk ID: xxhash over
// "path:le64(startLine0):le64(endLine0):le64(fileHash):le64(chunkHash)",
// using the function's own start/end line (never the attached comment's).
func computeID(path string, startLine0, endLine0 uint32, fileHash, chunkHash uint64) uint64 {
	h := xxhash.New()
	_, _ = h.Write([]byte(path))
	_, _ = h.Write([]byte(":"))
	writeLE64(h, uint64(startLine0))
	_, _ = h.Write([]byte(":"))
	writeLE64(h, uint64(endLine0))
	_, _ = h.Write([]byte(":"))
	writeLE64(h, fileHash)
	_, _ = h.Write([]byte(":"))
	writeLE64(h, chunkHash)
	return h.Sum64()
}

func writeLE64(h *xxhash.Digest, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, _ = h.Write(buf[:])
}
