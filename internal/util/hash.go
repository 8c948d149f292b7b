// Package util provides shared utility functions.
package util

import (
	"bytes"
	"encoding/json"
	"hash/fnv"
)

// Fingerprint computes a 64-bit hash of a JSON payload after removing
// insignificant whitespace, so that the same value re-encoded by another
// peer hashes identically. It is used for identification only.
func Fingerprint(payload []byte) uint64 {
	var buf bytes.Buffer
	h := fnv.New64a()
	if err := json.Compact(&buf, payload); err != nil {
		h.Write(payload)
	} else {
		h.Write(buf.Bytes())
	}
	return h.Sum64()
}
