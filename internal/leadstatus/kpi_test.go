package leadstatus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/solar-crm/internal/model"
)

func TestConversionRate(t *testing.T) {
	assert.Equal(t, 0.0, ConversionRate(0, 0))
	assert.Equal(t, 0.0, ConversionRate(3, 0))
	assert.Equal(t, 33.3, ConversionRate(1, 3))
	assert.Equal(t, 66.7, ConversionRate(2, 3))
	assert.Equal(t, 100.0, ConversionRate(4, 4))
}

func TestNewKPIs_EmptyTenant(t *testing.T) {
	k := NewKPIs(0, 0, 0, 0, 0)
	assert.Equal(t, KPIs{}, k)
}

func TestWeekBounds(t *testing.T) {
	now := ist(2024, 3, 13, 12, 0) // Wednesday
	start, end := WeekBounds(now)

	assert.Equal(t, time.UTC, start.Location())
	assert.True(t, start.Equal(ist(2024, 3, 11, 0, 0)))
	assert.True(t, end.Equal(time.Date(2024, 3, 17, 23, 59, 59, int(999*time.Millisecond), IST)))
	assert.Equal(t, time.Monday, start.In(IST).Weekday())
}

func TestWeekBounds_SundayAndMondayEdges(t *testing.T) {
	sundayNight := ist(2024, 3, 10, 23, 0)
	start, _ := WeekBounds(sundayNight)
	assert.True(t, start.Equal(ist(2024, 3, 4, 0, 0)))

	// Sunday 20:00 UTC is already Monday in IST.
	mondayIST := time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)
	start, _ = WeekBounds(mondayIST)
	assert.True(t, start.Equal(ist(2024, 3, 11, 0, 0)))
}

func TestAggregate_WeekBoundary(t *testing.T) {
	now := ist(2024, 3, 13, 12, 0)
	monday := ist(2024, 3, 11, 0, 0)
	sunday := time.Date(2024, 3, 10, 23, 59, 59, int(999*time.Millisecond), IST)

	leads := []model.Lead{
		{ID: 1, LeadStatus: model.LeadStatusNew, CreatedAt: monday},
		{ID: 2, LeadStatus: model.LeadStatusWon, CreatedAt: sunday},
		{ID: 3, LeadStatus: model.LeadStatusInProcess, CreatedAt: ist(2024, 3, 13, 0, 0)},
	}
	k := Aggregate(leads, now)
	assert.Equal(t, int64(3), k.Total)
	assert.Equal(t, int64(2), k.ThisWeek)
	assert.Equal(t, int64(1), k.Today)
	assert.Equal(t, int64(1), k.Open)
	assert.Equal(t, int64(1), k.Won)
	assert.Equal(t, 33.3, k.ConversionRate)
}

func TestDayBounds(t *testing.T) {
	start, end := DayBounds(time.Date(2024, 3, 14, 19, 0, 0, 0, time.UTC)) // 00:30 IST on the 15th
	assert.True(t, start.Equal(time.Date(2024, 3, 14, 18, 30, 0, 0, time.UTC)))
	assert.True(t, end.Equal(time.Date(2024, 3, 15, 18, 29, 59, int(999*time.Millisecond), time.UTC)))
}

func TestLastMonths(t *testing.T) {
	months := LastMonths(ist(2024, 2, 10, 0, 0), 6)
	require.Len(t, months, 6)
	labels := make([]string, 0, len(months))
	for _, m := range months {
		labels = append(labels, m.Label)
	}
	assert.Equal(t, []string{"2023-09", "2023-10", "2023-11", "2023-12", "2024-01", "2024-02"}, labels)
	assert.True(t, months[5].Start.Equal(ist(2024, 2, 1, 0, 0)))
	assert.True(t, months[5].End.Equal(ist(2024, 3, 1, 0, 0)))
	assert.Nil(t, LastMonths(time.Now(), 0))
}
