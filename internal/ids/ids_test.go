package ids

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrdering(t *testing.T) {
	a := New()
	time.Sleep(time.Millisecond)
	b := New()

	assert.True(t, Less(a, b), "id minted earlier must sort first")
}

func TestTimestampRoundTrip(t *testing.T) {
	id := New()
	ts, ok := Timestamp(id)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), ts, 2*time.Second)
}

func TestTimestampRejectsNonV7(t *testing.T) {
	v4 := uuid.New()
	_, ok := Timestamp(v4)
	assert.False(t, ok)
}

func TestValidateEpisodeID(t *testing.T) {
	now := time.Now()
	fresh := New()
	assert.True(t, ValidateEpisodeID(fresh, DefaultClockSkewWindow, now))

	assert.False(t, ValidateEpisodeID(uuid.Nil, DefaultClockSkewWindow, now))
}

func TestDynamicEvaluationBand(t *testing.T) {
	normal := New()
	assert.False(t, IsDynamicEvaluation(normal))

	dyn := NewDynamicEvaluationEpisodeID()
	assert.True(t, IsDynamicEvaluation(dyn))
	assert.True(t, Less(normal, dyn), "dynamic-evaluation ids sit far in the future")

	// Even with a tight clock-skew window, dynamic-evaluation ids are
	// always accepted since they are recognized by band, not recency.
	assert.True(t, ValidateEpisodeID(dyn, time.Second, time.Now()))
}
