// Package idhash computes deterministic content identifiers.
package idhash

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"solana-telemetry-lab/internal/domain"
)

// ComputeDatasetFingerprint computes a deterministic fingerprint of a dataset.
// Formula: SHA256(label_rule | rows | cols | row-major float64 bits | label float64 bits),
// numbers little-endian. Returns hex-encoded hash (64 characters).
// Two runs over the same telemetry with the same label rule share a fingerprint.
func ComputeDatasetFingerprint(ds *domain.Dataset) string {
	h := sha256.New()
	h.Write([]byte(ds.LabelRule))
	h.Write([]byte{'|'})

	var buf [8]byte
	putUint := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}

	putUint(uint64(ds.Len()))
	putUint(uint64(ds.Width()))
	for _, row := range ds.Rows {
		for _, v := range row {
			putUint(math.Float64bits(v))
		}
	}
	for _, l := range ds.Labels {
		putUint(math.Float64bits(l))
	}

	return hex.EncodeToString(h.Sum(nil))
}
