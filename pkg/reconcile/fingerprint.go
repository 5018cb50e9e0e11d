package reconcile

import (
	"github.com/goccy/go-json"
	"github.com/zeebo/blake3"

	"github.com/vanderheijden86/beadsync/pkg/model"
)

// fingerprint is a content hash of a record's canonical JSON encoding. Map
// keys are emitted in sorted order, so structurally equal records hash equal.
type fingerprint struct {
	sum [32]byte
	ok  bool
}

func fingerprintOf(issue *model.Issue) fingerprint {
	b, err := json.Marshal(issue)
	if err != nil {
		// Custom fields that cannot be encoded fall back to deep comparison.
		return fingerprint{}
	}
	return fingerprint{sum: blake3.Sum256(b), ok: true}
}

// sameRecord decides structural equality, using fingerprints when both sides
// have one.
func sameRecord(held *entry, incoming *model.Issue, fp fingerprint) bool {
	if held.fp.ok && fp.ok {
		return held.fp.sum == fp.sum
	}
	return held.issue.Equal(incoming)
}
