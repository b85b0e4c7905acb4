// Package ids mints and validates the time-ordered 128-bit identifiers
// (UUIDv7) used for every inference, episode and feedback row. Primary-key
// order on the analytical store tracks insertion order because these ids
// carry a millisecond timestamp in their high bits (spec §3, §6.3).
package ids

import (
	"time"

	"github.com/google/uuid"
)

// New mints a fresh time-ordered id.
func New() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		// uuid.NewV7 only fails if the global random source errors, which
		// the standard library's crypto/rand does not do in practice.
		return uuid.Must(uuid.NewRandom())
	}

	return id
}

// Timestamp extracts the millisecond timestamp embedded in a UUIDv7's first
// 48 bits. Returns false if id is not a version-7 UUID.
func Timestamp(id uuid.UUID) (time.Time, bool) {
	if id.Version() != 7 {
		return time.Time{}, false
	}

	ms := uint64(id[0])<<40 | uint64(id[1])<<32 | uint64(id[2])<<24 |
		uint64(id[3])<<16 | uint64(id[4])<<8 | uint64(id[5])

	return time.UnixMilli(int64(ms)), true
}

// Less reports whether a sorts before b as an unsigned 128-bit integer,
// which for UUIDv7 ids is equivalent to wall-clock order to millisecond
// granularity, with bytes after the timestamp breaking ties.
func Less(a, b uuid.UUID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}

	return false
}

// DynamicEvaluationEpochOffset is added to "now" when minting episode ids for
// dynamic-evaluation runs, so they sit in a timestamp band far beyond any
// plausible wall-clock reading while still fitting in UUIDv7's 48-bit
// millisecond timestamp field (spec §9 open question). 100 years comfortably
// clears any clock-skew window a real request could present, while leaving
// room before the field overflows (the 48-bit field does not roll over until
// the year ~10889).
const DynamicEvaluationEpochOffset = 100 * 365 * 24 * time.Hour

// NewDynamicEvaluationEpisodeID mints an episode id for a dynamic-evaluation
// run, banded into the future so it is trivially distinguishable from a
// normal request's episode id.
func NewDynamicEvaluationEpisodeID() uuid.UUID {
	return newAt(time.Now().Add(DynamicEvaluationEpochOffset))
}

// IsDynamicEvaluation reports whether id sits in the dynamic-evaluation
// timestamp band (more than half the offset beyond "now").
func IsDynamicEvaluation(id uuid.UUID) bool {
	ts, ok := Timestamp(id)
	if !ok {
		return false
	}

	return ts.After(time.Now().Add(DynamicEvaluationEpochOffset / 2))
}

func newAt(t time.Time) uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Must(uuid.NewRandom())
	}

	// Re-stamp the timestamp bytes (the first 6 bytes of a UUIDv7) without
	// disturbing the version/variant bits or the random tail, so ordering
	// among dynamic-evaluation ids still reflects the order they were minted.
	ms := uint64(t.UnixMilli())

	id[0] = byte(ms >> 40)
	id[1] = byte(ms >> 32)
	id[2] = byte(ms >> 24)
	id[3] = byte(ms >> 16)
	id[4] = byte(ms >> 8)
	id[5] = byte(ms)

	return id
}

// DefaultClockSkewWindow bounds how far in the past or future a client-supplied
// episode id's embedded timestamp may be for the gateway to accept it as
// a continuation of an existing episode (spec §4.6 step 2).
const DefaultClockSkewWindow = 5 * time.Minute

// ValidateEpisodeID reports whether id is a time-ordered UUID whose
// timestamp falls within window of now.
func ValidateEpisodeID(id uuid.UUID, window time.Duration, now time.Time) bool {
	if id == uuid.Nil {
		return false
	}

	ts, ok := Timestamp(id)
	if !ok {
		return false
	}

	if IsDynamicEvaluation(id) {
		return true
	}

	delta := ts.Sub(now)
	if delta < 0 {
		delta = -delta
	}

	return delta <= window
}
