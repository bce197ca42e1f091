package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	assert.Zero(t, Mean(nil))
	assert.InDelta(t, 80.0, Mean([]float64{70, 80, 90}), 1e-9)
}

func TestMedian(t *testing.T) {
	assert.Zero(t, Median(nil))
	assert.InDelta(t, 80.0, Median([]float64{90, 70, 80}), 1e-9)
	assert.InDelta(t, 75.0, Median([]float64{90, 70, 80, 60}), 1e-9)
}

func TestMode(t *testing.T) {
	assert.Equal(t, "No mode", Mode([]float64{1, 2, 3}))
	assert.Equal(t, "70.00", Mode([]float64{70, 70, 80}))
	assert.Equal(t, "70.00, 80.00", Mode([]float64{70, 70, 80, 80, 90}))
}

func TestRangeAndSpread(t *testing.T) {
	assert.Zero(t, Range(nil))
	assert.InDelta(t, 30.0, Range([]float64{60, 75, 90}), 1e-9)

	assert.Zero(t, Variance([]float64{42}))
	assert.InDelta(t, 100.0, Variance([]float64{70, 80, 90, 60, 80, 100}), 1e-0)
	assert.InDelta(t, 10.0, StdDev([]float64{70, 80, 90, 60, 80, 100}), 1e-0)
}

func TestLetterGrade(t *testing.T) {
	cases := []struct {
		grade float64
		want  string
	}{
		{98, "A+"}, {95, "A"}, {91, "A-"}, {88, "B+"}, {85, "B"},
		{81, "B-"}, {78, "C+"}, {75, "C"}, {71, "C-"}, {68, "D+"},
		{63, "D"}, {40, "F"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, LetterGrade(tc.grade), "grade %.0f", tc.grade)
	}
}

func TestPercentageToGPA(t *testing.T) {
	assert.InDelta(t, 4.0, PercentageToGPA(95), 1e-9)
	assert.InDelta(t, 3.0, PercentageToGPA(84), 1e-9)
	assert.InDelta(t, 1.0, PercentageToGPA(61), 1e-9)
	assert.Zero(t, PercentageToGPA(30))
}

func TestDistribution(t *testing.T) {
	buckets := Distribution([]float64{95, 85, 84, 72, 65, 30})
	assert.Equal(t, 1, buckets[0].Count)
	assert.Equal(t, 2, buckets[1].Count)
	assert.Equal(t, 1, buckets[2].Count)
	assert.Equal(t, 1, buckets[3].Count)
	assert.Equal(t, 1, buckets[4].Count)
}
