// Package stats holds the grade arithmetic shared by the exporters and the
// dashboard views.
package stats

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Mean returns the arithmetic mean, 0 for an empty input.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Median returns the middle value of the sorted input, 0 for an empty input.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// Mode returns a formatted list of the most frequent values, or "No mode"
// when every value is unique.
func Mode(values []float64) string {
	frequency := make(map[float64]int)
	for _, v := range values {
		frequency[v]++
	}
	maxFreq := 0
	for _, n := range frequency {
		if n > maxFreq {
			maxFreq = n
		}
	}
	if maxFreq <= 1 {
		return "No mode"
	}
	var modes []float64
	for v, n := range frequency {
		if n == maxFreq {
			modes = append(modes, v)
		}
	}
	sort.Float64s(modes)
	parts := make([]string, len(modes))
	for i, m := range modes {
		parts[i] = fmt.Sprintf("%.2f", m)
	}
	return strings.Join(parts, ", ")
}

// Range returns max-min, 0 for an empty input.
func Range(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return max - min
}

// Variance returns the sample variance, 0 for fewer than two values.
func Variance(values []float64) float64 {
	if len(values) <= 1 {
		return 0
	}
	mean := Mean(values)
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(values)-1)
}

// StdDev returns the sample standard deviation.
func StdDev(values []float64) float64 {
	return math.Sqrt(Variance(values))
}

// LetterGrade maps a percentage score to its letter grade.
func LetterGrade(grade float64) string {
	switch {
	case grade >= 97:
		return "A+"
	case grade >= 93:
		return "A"
	case grade >= 90:
		return "A-"
	case grade >= 87:
		return "B+"
	case grade >= 83:
		return "B"
	case grade >= 80:
		return "B-"
	case grade >= 77:
		return "C+"
	case grade >= 73:
		return "C"
	case grade >= 70:
		return "C-"
	case grade >= 67:
		return "D+"
	case grade >= 60:
		return "D"
	default:
		return "F"
	}
}

// PercentageToGPA converts a percentage score to a 4.0-scale GPA.
func PercentageToGPA(percentage float64) float64 {
	switch {
	case percentage >= 93:
		return 4.0
	case percentage >= 90:
		return 3.7
	case percentage >= 87:
		return 3.3
	case percentage >= 83:
		return 3.0
	case percentage >= 80:
		return 2.7
	case percentage >= 77:
		return 2.3
	case percentage >= 73:
		return 2.0
	case percentage >= 70:
		return 1.7
	case percentage >= 67:
		return 1.3
	case percentage >= 60:
		return 1.0
	default:
		return 0.0
	}
}

// DistributionBucket is one row of a grade distribution.
type DistributionBucket struct {
	Label string
	Count int
}

// Distribution buckets averages into the standard letter bands, preserving
// band order for display.
func Distribution(averages []float64) []DistributionBucket {
	buckets := []DistributionBucket{
		{Label: "A (90-100%)"},
		{Label: "B (80-89%)"},
		{Label: "C (70-79%)"},
		{Label: "D (60-69%)"},
		{Label: "F (<60%)"},
	}
	for _, avg := range averages {
		switch {
		case avg >= 90:
			buckets[0].Count++
		case avg >= 80:
			buckets[1].Count++
		case avg >= 70:
			buckets[2].Count++
		case avg >= 60:
			buckets[3].Count++
		default:
			buckets[4].Count++
		}
	}
	return buckets
}
