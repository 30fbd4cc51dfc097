package service

import (
	"testing"
	"time"

	"travel-sales-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestGenerateScheduleThreeInstallmentsAtFivePercent(t *testing.T) {
	start := time.Date(2026, time.August, 29, 0, 0, 0, 0, time.UTC)

	rows, err := GenerateSchedule(d("1000"), 3, d("5"), start, 15)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.True(t, rows[0].Capital.Equal(d("317.21")), "capital 1: %s", rows[0].Capital)
	assert.True(t, rows[0].Interest.Equal(d("50.00")), "interest 1: %s", rows[0].Interest)
	assert.True(t, rows[0].Total.Equal(d("367.21")), "total 1: %s", rows[0].Total)

	assert.True(t, rows[1].Capital.Equal(d("333.07")), "capital 2: %s", rows[1].Capital)
	assert.True(t, rows[1].Interest.Equal(d("34.14")), "interest 2: %s", rows[1].Interest)
	assert.True(t, rows[1].Total.Equal(d("367.21")), "total 2: %s", rows[1].Total)

	assert.True(t, rows[2].Capital.Equal(d("349.72")), "capital 3: %s", rows[2].Capital)
	assert.True(t, rows[2].Interest.Equal(d("17.49")), "interest 3: %s", rows[2].Interest)
	assert.True(t, rows[2].Total.Equal(d("367.21")), "total 3: %s", rows[2].Total)
}

func TestGenerateScheduleCapitalSumsToPrincipal(t *testing.T) {
	start := time.Now()

	cases := []struct {
		principal string
		count     int
		rate      string
	}{
		{"1000", 3, "5"},
		{"2500.50", 6, "3.5"},
		{"999.99", 12, "2"},
		{"100", 2, "0"},
		{"7777.77", 24, "1.25"},
	}

	for _, tc := range cases {
		rows, err := GenerateSchedule(d(tc.principal), tc.count, d(tc.rate), start, 15)
		require.NoError(t, err)
		require.Len(t, rows, tc.count)

		sum := decimal.Zero
		for _, row := range rows {
			sum = sum.Add(row.Capital)
			assert.True(t, row.Total.Equal(row.Capital.Add(row.Interest)),
				"%s/%d/%s row %d: total %s != capital %s + interest %s",
				tc.principal, tc.count, tc.rate, row.Seq, row.Total, row.Capital, row.Interest)
		}
		assert.True(t, sum.Equal(d(tc.principal)),
			"%s/%d/%s: capital sum %s", tc.principal, tc.count, tc.rate, sum)
	}
}

func TestGenerateScheduleZeroRate(t *testing.T) {
	rows, err := GenerateSchedule(d("1000"), 3, d("0"), time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.True(t, rows[0].Capital.Equal(d("333.33")))
	assert.True(t, rows[1].Capital.Equal(d("333.33")))
	assert.True(t, rows[2].Capital.Equal(d("333.34")))

	for _, row := range rows {
		assert.True(t, row.Interest.IsZero(), "row %d interest %s", row.Seq, row.Interest)
		assert.True(t, row.Total.Equal(row.Capital))
		assert.Equal(t, models.InstallmentStatusPending, row.Status)
	}
}

func TestGenerateScheduleDueDates(t *testing.T) {
	start := time.Date(2026, time.November, 3, 9, 30, 0, 0, time.UTC)

	rows, err := GenerateSchedule(d("600"), 4, d("2"), start, 15)
	require.NoError(t, err)

	expected := []time.Time{
		time.Date(2026, time.December, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2027, time.January, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2027, time.February, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2027, time.March, 15, 0, 0, 0, 0, time.UTC),
	}
	for i, row := range rows {
		assert.Equal(t, expected[i], row.DueDate, "installment %d", row.Seq)
	}
}

func TestGenerateScheduleDueDayIsSafeInFebruary(t *testing.T) {
	start := time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC)

	rows, err := GenerateSchedule(d("300"), 3, d("1"), start, 28)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2027, time.February, 28, 0, 0, 0, 0, time.UTC), rows[1].DueDate)
}

func TestGenerateScheduleRejectsBadInput(t *testing.T) {
	start := time.Now()

	_, err := GenerateSchedule(d("1000"), 0, d("5"), start, 15)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = GenerateSchedule(d("0"), 3, d("5"), start, 15)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = GenerateSchedule(d("-100"), 3, d("5"), start, 15)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = GenerateSchedule(d("1000"), 3, d("-1"), start, 15)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = GenerateSchedule(d("1000"), 3, d("5"), start, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = GenerateSchedule(d("1000"), 3, d("5"), start, 29)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGenerateScheduleSequencesAreOrdered(t *testing.T) {
	rows, err := GenerateSchedule(d("5000"), 10, d("4"), time.Now(), 5)
	require.NoError(t, err)

	for i, row := range rows {
		assert.Equal(t, i+1, row.Seq)
		if i > 0 {
			assert.True(t, row.DueDate.After(rows[i-1].DueDate))
		}
	}
}
