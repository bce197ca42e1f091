// Package report implements batch report generation: a cache-backed stats
// source, the per-student worker, the parallel batch coordinator, and the
// console progress monitor.
package report

import (
	"context"
	"fmt"

	"github.com/gradeforge/gradeforge/internal/cache"
	"github.com/gradeforge/gradeforge/internal/store"
)

// GradeReader is the slice of the store the stats source reads through.
type GradeReader interface {
	AverageFor(ctx context.Context, studentID string) (float64, error)
	GradesFor(ctx context.Context, studentID string) ([]store.Grade, error)
}

// StatsSource yields per-student aggregates for the report worker.
type StatsSource interface {
	AverageFor(ctx context.Context, studentID string) (float64, error)
	GradesFor(ctx context.Context, studentID string) ([]store.Grade, error)
}

// CachedSource answers stats queries from the access cache, falling back to
// the store on a miss. Keys are namespaced per aggregate so an average and a
// grade list for the same student age independently.
type CachedSource struct {
	cache  *cache.Cache
	reader GradeReader
}

// NewCachedSource wraps reader with c.
func NewCachedSource(c *cache.Cache, reader GradeReader) *CachedSource {
	return &CachedSource{cache: c, reader: reader}
}

func avgKey(studentID string) string    { return "avg_" + studentID }
func gradesKey(studentID string) string { return "grades_" + studentID }

// AverageFor returns the student's mean score, cached. A zero average means
// no grades are recorded and is never cached.
func (s *CachedSource) AverageFor(ctx context.Context, studentID string) (float64, error) {
	v, err := s.cache.Get(avgKey(studentID), func() (any, error) {
		return s.reader.AverageFor(ctx, studentID)
	})
	if err != nil {
		return 0, err
	}
	avg, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("unexpected cached value %T for average of '%s'", v, studentID)
	}
	return avg, nil
}

// GradesFor returns the student's grades, cached. An empty list is never
// cached.
func (s *CachedSource) GradesFor(ctx context.Context, studentID string) ([]store.Grade, error) {
	v, err := s.cache.Get(gradesKey(studentID), func() (any, error) {
		return s.reader.GradesFor(ctx, studentID)
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	grades, ok := v.([]store.Grade)
	if !ok {
		return nil, fmt.Errorf("unexpected cached value %T for grades of '%s'", v, studentID)
	}
	return grades, nil
}

// TopReader is the store slice the cache warmer reads from.
type TopReader interface {
	TopStudents(ctx context.Context, limit int) ([]store.Student, error)
	AverageFor(ctx context.Context, studentID string) (float64, error)
}

// Warmer builds the cache warm function: it re-primes the averages of the
// most frequently reported students up to the refresh quota.
func Warmer(reader TopReader) cache.WarmFunc {
	return func(ctx context.Context, quota int) ([]cache.KV, error) {
		students, err := reader.TopStudents(ctx, quota)
		if err != nil {
			return nil, fmt.Errorf("load warm candidates: %w", err)
		}
		var hot []cache.KV
		for _, st := range students {
			avg, err := reader.AverageFor(ctx, st.ID)
			if err != nil {
				return nil, fmt.Errorf("load warm average for '%s': %w", st.ID, err)
			}
			if avg == 0 {
				continue
			}
			hot = append(hot, cache.KV{Key: avgKey(st.ID), Value: avg})
		}
		return hot, nil
	}
}
