package schedule

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gap(start, end string) Gap {
	return Gap{Start: MustTimeOfDay(start), End: MustTimeOfDay(end)}
}

func slotAt(start, end string) Slot {
	return Slot{
		ID:    uuid.New(),
		Start: MustTimeOfDay(start),
		End:   MustTimeOfDay(end),
	}
}

func TestGaps(t *testing.T) {
	dayStart := MustTimeOfDay("09:00")
	dayEnd := MustTimeOfDay("17:00")

	t.Run("empty day is one gap", func(t *testing.T) {
		got := Gaps(nil, dayStart, dayEnd)
		assert.Equal(t, []Gap{gap("09:00", "17:00")}, got)
	})

	t.Run("leading inter and trailing gaps", func(t *testing.T) {
		slots := []Slot{
			slotAt("10:00", "11:00"),
			slotAt("13:00", "14:00"),
		}
		got := Gaps(slots, dayStart, dayEnd)
		assert.Equal(t, []Gap{
			gap("09:00", "10:00"),
			gap("11:00", "13:00"),
			gap("14:00", "17:00"),
		}, got)
	})

	t.Run("unsorted input", func(t *testing.T) {
		slots := []Slot{
			slotAt("13:00", "14:00"),
			slotAt("10:00", "11:00"),
		}
		got := Gaps(slots, dayStart, dayEnd)
		assert.Equal(t, []Gap{
			gap("09:00", "10:00"),
			gap("11:00", "13:00"),
			gap("14:00", "17:00"),
		}, got)
	})

	t.Run("overlapping slots collapse", func(t *testing.T) {
		slots := []Slot{
			slotAt("09:00", "12:00"),
			slotAt("10:00", "11:00"),
		}
		got := Gaps(slots, dayStart, dayEnd)
		assert.Equal(t, []Gap{gap("12:00", "17:00")}, got)
	})

	t.Run("fully covered day has no gaps", func(t *testing.T) {
		slots := []Slot{slotAt("09:00", "17:00")}
		assert.Empty(t, Gaps(slots, dayStart, dayEnd))
	})

	t.Run("inverted working hours", func(t *testing.T) {
		assert.Nil(t, Gaps(nil, dayEnd, dayStart))
	})
}

func TestCandidateSlots(t *testing.T) {
	t.Run("steps by shortest duration", func(t *testing.T) {
		got := CandidateSlots([]Gap{gap("09:00", "10:00")}, []int{30, 60})
		assert.ElementsMatch(t, []Gap{
			gap("09:00", "09:30"),
			gap("09:00", "10:00"),
			gap("09:30", "10:00"),
		}, got)
	})

	t.Run("durations that do not fit are skipped", func(t *testing.T) {
		got := CandidateSlots([]Gap{gap("09:00", "09:45")}, []int{30, 60})
		assert.ElementsMatch(t, []Gap{gap("09:00", "09:30")}, got)
	})

	t.Run("no valid durations", func(t *testing.T) {
		assert.Nil(t, CandidateSlots([]Gap{gap("09:00", "10:00")}, nil))
		assert.Nil(t, CandidateSlots([]Gap{gap("09:00", "10:00")}, []int{0, -30}))
	})

	t.Run("identical intervals across gaps are deduplicated", func(t *testing.T) {
		got := CandidateSlots([]Gap{
			gap("09:00", "09:30"),
			gap("09:00", "09:30"),
		}, []int{30})
		assert.Equal(t, []Gap{gap("09:00", "09:30")}, got)
	})
}

func TestReplenish_EmptyDay(t *testing.T) {
	store := newFakeStore()
	merchantID, _, _ := twoWorkerMerchant(store)
	svc := newTestService(store, nil, testNow)

	inserted, err := svc.Replenish(context.Background(), merchantID, testDate)
	require.NoError(t, err)
	// 09:00-11:00 with durations 30 and 60: four 30-minute and three
	// 60-minute intervals.
	assert.Equal(t, 7, inserted)

	slots, err := store.ListSlots(context.Background(), merchantID, testDate, SlotFilter{OnlyOpen: true})
	require.NoError(t, err)
	assert.Len(t, slots, 7)
}

func TestReplenish_SkipsCoveredRanges(t *testing.T) {
	store := newFakeStore()
	merchantID, w1, _ := twoWorkerMerchant(store)
	store.addSlot(Slot{
		MerchantID: merchantID,
		WorkerID:   &w1.ID,
		Date:       testDate,
		Start:      MustTimeOfDay("09:00"),
		End:        MustTimeOfDay("10:00"),
		IsBooked:   true,
	})
	svc := newTestService(store, nil, testNow)

	inserted, err := svc.Replenish(context.Background(), merchantID, testDate)
	require.NoError(t, err)
	// Only the 10:00-11:00 gap is open: 10:00-10:30, 10:30-11:00, 10:00-11:00.
	assert.Equal(t, 3, inserted)

	slots, err := store.ListSlots(context.Background(), merchantID, testDate, SlotFilter{OnlyOpen: true})
	require.NoError(t, err)
	for _, s := range slots {
		assert.GreaterOrEqual(t, s.Start, MustTimeOfDay("10:00"))
	}
}

func TestReplenish_Idempotent(t *testing.T) {
	store := newFakeStore()
	merchantID, _, _ := twoWorkerMerchant(store)
	svc := newTestService(store, nil, testNow)

	first, err := svc.Replenish(context.Background(), merchantID, testDate)
	require.NoError(t, err)
	require.Greater(t, first, 0)

	second, err := svc.Replenish(context.Background(), merchantID, testDate)
	require.NoError(t, err)
	assert.Zero(t, second)
}

func TestReplenish_NoDurationsConfigured(t *testing.T) {
	store := newFakeStore()
	merchantID := uuid.New()
	store.configs[merchantID] = ScheduleConfig{
		MerchantID: merchantID,
		DayStart:   MustTimeOfDay("09:00"),
		DayEnd:     MustTimeOfDay("17:00"),
	}
	svc := newTestService(store, nil, testNow)

	inserted, err := svc.Replenish(context.Background(), merchantID, testDate)
	require.NoError(t, err)
	assert.Zero(t, inserted)
}

func TestReplenish_UnknownMerchant(t *testing.T) {
	svc := newTestService(newFakeStore(), nil, testNow)

	_, err := svc.Replenish(context.Background(), uuid.New(), testDate)
	assert.ErrorIs(t, err, ErrMerchantNotFound)
}
