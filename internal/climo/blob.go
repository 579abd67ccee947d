package climo

import (
	"encoding/binary"
	"fmt"
	"math"
)

// BlobVersion tags the on-disk decile layout. Any change to the value
// width, count, or percentile policy must bump this so historical rows are
// never silently misread.
const BlobVersion = 1

// Blob layout: [version:1][count:1][count x float64 little-endian].
// count is 0 for an empty bucket or NumDeciles otherwise.

// EncodeDeciles serializes a decile vector into its versioned binary form.
// Encoding is deterministic: identical inputs yield identical bytes.
func EncodeDeciles(d Deciles) []byte {
	buf := make([]byte, 2+8*len(d))
	buf[0] = BlobVersion
	buf[1] = byte(len(d))
	for i, v := range d {
		binary.LittleEndian.PutUint64(buf[2+8*i:], math.Float64bits(v))
	}
	return buf
}

// DecodeDeciles parses a versioned decile blob. Layout or version
// mismatches return ErrEncodingMismatch.
func DecodeDeciles(blob []byte) (Deciles, error) {
	if len(blob) < 2 {
		return nil, fmt.Errorf("blob of %d bytes: %w", len(blob), ErrEncodingMismatch)
	}
	if blob[0] != BlobVersion {
		return nil, fmt.Errorf("blob version %d, want %d: %w", blob[0], BlobVersion, ErrEncodingMismatch)
	}
	count := int(blob[1])
	if count != 0 && count != NumDeciles {
		return nil, fmt.Errorf("decile count %d: %w", count, ErrEncodingMismatch)
	}
	if len(blob) != 2+8*count {
		return nil, fmt.Errorf("blob of %d bytes for %d deciles: %w", len(blob), count, ErrEncodingMismatch)
	}

	out := make(Deciles, count)
	for i := 0; i < count; i++ {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[2+8*i:]))
	}
	return out, nil
}
