// Package export renders one student report into the three on-disk formats:
// a human-readable CSV, a JSON document, and a Parquet file for downstream
// analytics tooling.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/gradeforge/gradeforge/internal/stats"
	"github.com/gradeforge/gradeforge/internal/store"
)

// Report bundles everything the exporters need for one student.
type Report struct {
	Student store.Student
	Grades  []store.Grade
	Average float64
}

// Scores returns the raw score values in recording order.
func (r Report) Scores() []float64 {
	scores := make([]float64, len(r.Grades))
	for i, g := range r.Grades {
		scores[i] = g.Score
	}
	return scores
}

// Passing reports whether the average clears the student's threshold.
func (r Report) Passing() bool {
	return r.Average >= r.Student.PassingGrade
}

// Exporter writes report files under a base directory, one subdirectory per
// format.
type Exporter struct {
	CSVDir     string
	JSONDir    string
	ParquetDir string
}

// New builds an Exporter rooted at reportsDir.
func New(reportsDir string) *Exporter {
	return &Exporter{
		CSVDir:     filepath.Join(reportsDir, "csv"),
		JSONDir:    filepath.Join(reportsDir, "json"),
		ParquetDir: filepath.Join(reportsDir, "parquet"),
	}
}

// EnsureDirs creates the per-format output directories.
func (e *Exporter) EnsureDirs() error {
	for _, dir := range []string{e.CSVDir, e.JSONDir, e.ParquetDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory %s: %w", dir, err)
		}
	}
	return nil
}

// ExportAll writes the CSV, JSON, and Parquet renditions of the report and
// returns the paths written.
func (e *Exporter) ExportAll(r Report) ([]string, error) {
	csvPath, err := e.ExportCSV(r)
	if err != nil {
		return nil, err
	}
	jsonPath, err := e.ExportJSON(r)
	if err != nil {
		return nil, err
	}
	parquetPath, err := e.ExportParquet(r)
	if err != nil {
		return nil, err
	}
	return []string{csvPath, jsonPath, parquetPath}, nil
}

// ExportCSV writes <id>_report.csv: student details, one row per grade, then
// a statistics trailer.
func (e *Exporter) ExportCSV(r Report) (string, error) {
	path := filepath.Join(e.CSVDir, fmt.Sprintf("%s_report.csv", r.Student.ID))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create csv report %s: %w", path, err)
	}
	defer f.Close()

	scores := r.Scores()
	fmt.Fprintf(f, "Student Report\n")
	fmt.Fprintf(f, "ID,%s\n", r.Student.ID)
	fmt.Fprintf(f, "Name,%s\n", r.Student.Name)
	fmt.Fprintf(f, "Type,%s\n", r.Student.Type)
	fmt.Fprintf(f, "Status,%s\n", r.Student.Status)
	fmt.Fprintf(f, "\nSubject Code,Subject Name,Score,Letter,Recorded At\n")
	for _, g := range r.Grades {
		fmt.Fprintf(f, "%s,%s,%.2f,%s,%s\n",
			g.SubjectCode, g.SubjectName, g.Score,
			stats.LetterGrade(g.Score), g.RecordedAt.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(f, "\nStatistics\n")
	fmt.Fprintf(f, "Average,%.2f\n", r.Average)
	fmt.Fprintf(f, "Median,%.2f\n", stats.Median(scores))
	fmt.Fprintf(f, "Mode,%s\n", stats.Mode(scores))
	fmt.Fprintf(f, "Std Dev,%.2f\n", stats.StdDev(scores))
	fmt.Fprintf(f, "Range,%.2f\n", stats.Range(scores))
	fmt.Fprintf(f, "Letter Grade,%s\n", stats.LetterGrade(r.Average))
	fmt.Fprintf(f, "GPA,%.1f\n", stats.PercentageToGPA(r.Average))
	fmt.Fprintf(f, "Passing,%t\n", r.Passing())

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close csv report %s: %w", path, err)
	}
	return path, nil
}

type jsonGrade struct {
	SubjectCode string  `json:"subjectCode"`
	SubjectName string  `json:"subjectName,omitempty"`
	SubjectType string  `json:"subjectType,omitempty"`
	Score       float64 `json:"score"`
	Letter      string  `json:"letter"`
	RecordedAt  string  `json:"recordedAt"`
}

type jsonReport struct {
	ReportID    string      `json:"reportId"`
	GeneratedAt string      `json:"generatedAt"`
	StudentID   string      `json:"studentId"`
	Name        string      `json:"name"`
	StudentType string      `json:"studentType"`
	Average     float64     `json:"average"`
	GPA         float64     `json:"gpa"`
	LetterGrade string      `json:"letterGrade"`
	Passing     bool        `json:"passing"`
	Grades      []jsonGrade `json:"grades"`
}

// ExportJSON writes <id>_report.json with a unique report id and generation
// timestamp.
func (e *Exporter) ExportJSON(r Report) (string, error) {
	path := filepath.Join(e.JSONDir, fmt.Sprintf("%s_report.json", r.Student.ID))

	doc := jsonReport{
		ReportID:    uuid.NewString(),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		StudentID:   r.Student.ID,
		Name:        r.Student.Name,
		StudentType: r.Student.Type,
		Average:     r.Average,
		GPA:         stats.PercentageToGPA(r.Average),
		LetterGrade: stats.LetterGrade(r.Average),
		Passing:     r.Passing(),
		Grades:      make([]jsonGrade, 0, len(r.Grades)),
	}
	for _, g := range r.Grades {
		doc.Grades = append(doc.Grades, jsonGrade{
			SubjectCode: g.SubjectCode,
			SubjectName: g.SubjectName,
			SubjectType: g.SubjectType,
			Score:       g.Score,
			Letter:      stats.LetterGrade(g.Score),
			RecordedAt:  g.RecordedAt.UTC().Format(time.RFC3339),
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal json report for '%s': %w", r.Student.ID, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write json report %s: %w", path, err)
	}
	return path, nil
}

// parquetMeta is the column schema for the per-grade report rows.
var parquetMeta = []string{
	"name=student_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL",
	"name=subject_code, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL",
	"name=subject_name, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL",
	"name=score, type=DOUBLE, repetitiontype=OPTIONAL",
	"name=average, type=DOUBLE, repetitiontype=OPTIONAL",
	"name=passing, type=BOOLEAN, repetitiontype=OPTIONAL",
	"name=recorded_at_ms, type=INT64, repetitiontype=OPTIONAL",
}

// ExportParquet writes <id>_report.parquet with one row per grade, carrying
// the report-level average and passing flag on every row.
func (e *Exporter) ExportParquet(r Report) (string, error) {
	path := filepath.Join(e.ParquetDir, fmt.Sprintf("%s_report.parquet", r.Student.ID))

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return "", fmt.Errorf("create parquet file %s: %w", path, err)
	}
	pw, err := writer.NewCSVWriter(parquetMeta, fw, 4)
	if err != nil {
		fw.Close()
		return "", fmt.Errorf("create parquet writer %s: %w", path, err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	avg := strconv.FormatFloat(r.Average, 'f', -1, 64)
	passing := strconv.FormatBool(r.Passing())
	for _, g := range r.Grades {
		score := strconv.FormatFloat(g.Score, 'f', -1, 64)
		recordedMS := strconv.FormatInt(g.RecordedAt.UTC().UnixMilli(), 10)
		row := []*string{
			ptr(g.StudentID),
			ptr(g.SubjectCode),
			optional(g.SubjectName),
			ptr(score),
			ptr(avg),
			ptr(passing),
			ptr(recordedMS),
		}
		if err := pw.WriteString(row); err != nil {
			pw.WriteStop()
			fw.Close()
			return "", fmt.Errorf("write parquet row for '%s' subject '%s': %w", g.StudentID, g.SubjectCode, err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return "", fmt.Errorf("stop parquet writer %s: %w", path, err)
	}
	if err := fw.Close(); err != nil {
		return "", fmt.Errorf("close parquet file %s: %w", path, err)
	}
	return path, nil
}

func ptr(s string) *string { return &s }

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
