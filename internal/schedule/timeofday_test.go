package schedule

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("09:30")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay(570), tod)

	tod, err = ParseTimeOfDay("00:00")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay(0), tod)

	_, err = ParseTimeOfDay("9:30am")
	assert.Error(t, err)

	_, err = ParseTimeOfDay("25:00")
	assert.Error(t, err)
}

func TestTimeOfDay_String(t *testing.T) {
	assert.Equal(t, "09:05", TimeOfDay(545).String())
	assert.Equal(t, "00:00", TimeOfDay(0).String())
	assert.Equal(t, "23:59", TimeOfDay(1439).String())
}

func TestTimeOfDay_JSON(t *testing.T) {
	data, err := json.Marshal(MustTimeOfDay("14:45"))
	require.NoError(t, err)
	assert.Equal(t, `"14:45"`, string(data))

	var tod TimeOfDay
	require.NoError(t, json.Unmarshal([]byte(`"08:15"`), &tod))
	assert.Equal(t, MustTimeOfDay("08:15"), tod)

	assert.Error(t, json.Unmarshal([]byte(`"junk"`), &tod))
}

func TestIntervalsOverlap(t *testing.T) {
	nine := MustTimeOfDay("09:00")
	nineThirty := MustTimeOfDay("09:30")
	ten := MustTimeOfDay("10:00")
	tenThirty := MustTimeOfDay("10:30")

	// Partial and full overlap.
	assert.True(t, intervalsOverlap(nine, ten, nineThirty, tenThirty))
	assert.True(t, intervalsOverlap(nine, tenThirty, nineThirty, ten))
	assert.True(t, intervalsOverlap(nine, ten, nine, ten))

	// Back-to-back intervals share a boundary but do not overlap.
	assert.False(t, intervalsOverlap(nine, nineThirty, nineThirty, ten))
	assert.False(t, intervalsOverlap(ten, tenThirty, nine, ten))

	// Disjoint.
	assert.False(t, intervalsOverlap(nine, nineThirty, ten, tenThirty))
}

func TestNormalizeDate(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	in := time.Date(2026, 9, 2, 3, 15, 0, 0, loc) // 2026-09-01 22:15 UTC

	got := NormalizeDate(in)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestSameDate(t *testing.T) {
	a := time.Date(2026, 9, 2, 23, 59, 0, 0, time.UTC)
	b := time.Date(2026, 9, 2, 0, 1, 0, 0, time.UTC)
	c := time.Date(2026, 9, 3, 0, 1, 0, 0, time.UTC)

	assert.True(t, SameDate(a, b))
	assert.False(t, SameDate(a, c))
}
