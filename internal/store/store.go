package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/marcboeker/go-duckdb" // Driver
)

// Student is one enrolled student. PassingGrade is the threshold the report
// layer compares the average against (regular 50.0, honors 60.0).
type Student struct {
	ID             string
	Name           string
	Age            int
	Email          string
	Phone          string
	EnrollmentDate string
	Status         string
	Type           string
	PassingGrade   float64
}

// Grade is one recorded score for a student in a subject.
type Grade struct {
	ID          string
	StudentID   string
	SubjectCode string
	SubjectName string
	SubjectType string
	Score       float64
	RecordedAt  time.Time
}

// Student types.
const (
	TypeRegular = "regular"
	TypeHonors  = "honors"
)

// Passing thresholds per student type.
const (
	PassingGradeRegular = 50.0
	PassingGradeHonors  = 60.0
)

const schemaSequenceSQL = `CREATE SEQUENCE IF NOT EXISTS report_event_log_id_seq;`

const schemaTableSQL = `
CREATE TABLE IF NOT EXISTS students (
    student_id      VARCHAR PRIMARY KEY,
    name            VARCHAR NOT NULL,
    age             INTEGER,
    email           VARCHAR,
    phone           VARCHAR,
    enrollment_date VARCHAR,
    status          VARCHAR,
    student_type    VARCHAR NOT NULL,
    passing_grade   DOUBLE NOT NULL
);
CREATE TABLE IF NOT EXISTS grades (
    grade_id     VARCHAR PRIMARY KEY,
    student_id   VARCHAR NOT NULL,
    subject_code VARCHAR NOT NULL,
    subject_name VARCHAR,
    subject_type VARCHAR,
    score        DOUBLE NOT NULL,
    recorded_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_grades_student ON grades (student_id);
CREATE TABLE IF NOT EXISTS report_event_log (
    log_id          BIGINT PRIMARY KEY DEFAULT nextval('report_event_log_id_seq'),
    student_id      VARCHAR NOT NULL,
    event           VARCHAR NOT NULL,
    event_timestamp TIMESTAMP NOT NULL,
    message         VARCHAR,
    duration_ms     BIGINT
);
CREATE INDEX IF NOT EXISTS idx_report_event_log_student ON report_event_log (student_id, event);
`

// Store wraps the DuckDB connection backing students, grades, and the report
// event log.
type Store struct {
	db *sql.DB
}

// Open connects to the DuckDB database at path (":memory:" for in-memory)
// and ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb database (%s): %w", path, err)
	}
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping duckdb database (%s): %w", path, err)
	}
	s := &Store{db: db}
	if err := s.initializeSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// initializeSchema creates the sequence first, then tables and indices.
func (s *Store) initializeSchema() error {
	if _, err := s.db.Exec(schemaSequenceSQL); err != nil {
		return fmt.Errorf("failed to execute sequence setup: %w", err)
	}
	if _, err := s.db.Exec(schemaTableSQL); err != nil {
		return fmt.Errorf("failed to execute table/index setup: %w", err)
	}
	return nil
}

// SaveStudent inserts or replaces a student row.
func (s *Store) SaveStudent(ctx context.Context, st Student) error {
	query := `
        INSERT OR REPLACE INTO students
            (student_id, name, age, email, phone, enrollment_date, status, student_type, passing_grade)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
    `
	_, err := s.db.ExecContext(ctx, query,
		st.ID, st.Name, st.Age,
		sql.NullString{String: st.Email, Valid: st.Email != ""},
		sql.NullString{String: st.Phone, Valid: st.Phone != ""},
		sql.NullString{String: st.EnrollmentDate, Valid: st.EnrollmentDate != ""},
		sql.NullString{String: st.Status, Valid: st.Status != ""},
		st.Type, st.PassingGrade,
	)
	if err != nil {
		return fmt.Errorf("failed to save student '%s': %w", st.ID, err)
	}
	return nil
}

// SaveGrade inserts or replaces a grade row.
func (s *Store) SaveGrade(ctx context.Context, g Grade) error {
	query := `
        INSERT OR REPLACE INTO grades
            (grade_id, student_id, subject_code, subject_name, subject_type, score, recorded_at)
        VALUES (?, ?, ?, ?, ?, ?, ?);
    `
	recordedAt := g.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, query,
		g.ID, g.StudentID, g.SubjectCode,
		sql.NullString{String: g.SubjectName, Valid: g.SubjectName != ""},
		sql.NullString{String: g.SubjectType, Valid: g.SubjectType != ""},
		g.Score, recordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save grade '%s' for student '%s': %w", g.ID, g.StudentID, err)
	}
	return nil
}

// FindAll returns every student ordered by id.
func (s *Store) FindAll(ctx context.Context) ([]Student, error) {
	query := `
        SELECT student_id, name, age, email, phone, enrollment_date, status, student_type, passing_grade
        FROM students
        ORDER BY student_id;
    `
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query students: %w", err)
	}
	defer rows.Close()

	var students []Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating student rows: %w", err)
	}
	return students, nil
}

// FindByID returns the student with the given id, or found=false.
func (s *Store) FindByID(ctx context.Context, id string) (Student, bool, error) {
	query := `
        SELECT student_id, name, age, email, phone, enrollment_date, status, student_type, passing_grade
        FROM students
        WHERE student_id = ?;
    `
	row := s.db.QueryRowContext(ctx, query, id)
	st, err := scanStudent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Student{}, false, nil
		}
		return Student{}, false, err
	}
	return st, true, nil
}

// GradesFor returns all grades for a student in recording order.
func (s *Store) GradesFor(ctx context.Context, studentID string) ([]Grade, error) {
	query := `
        SELECT grade_id, student_id, subject_code, subject_name, subject_type, score, recorded_at
        FROM grades
        WHERE student_id = ?
        ORDER BY recorded_at, grade_id;
    `
	rows, err := s.db.QueryContext(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query grades for '%s': %w", studentID, err)
	}
	defer rows.Close()

	var grades []Grade
	for rows.Next() {
		var g Grade
		var subjectName, subjectType sql.NullString
		if err := rows.Scan(&g.ID, &g.StudentID, &g.SubjectCode, &subjectName, &subjectType, &g.Score, &g.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed scanning grade row: %w", err)
		}
		g.SubjectName = subjectName.String
		g.SubjectType = subjectType.String
		grades = append(grades, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating grade rows: %w", err)
	}
	return grades, nil
}

// AverageFor returns the mean score across a student's grades, 0 if none.
func (s *Store) AverageFor(ctx context.Context, studentID string) (float64, error) {
	query := `SELECT COALESCE(AVG(score), 0) FROM grades WHERE student_id = ?;`
	var avg float64
	if err := s.db.QueryRowContext(ctx, query, studentID).Scan(&avg); err != nil {
		return 0, fmt.Errorf("failed to query average for '%s': %w", studentID, err)
	}
	return avg, nil
}

// SubjectCount returns the number of grades recorded for a student.
func (s *Store) SubjectCount(ctx context.Context, studentID string) (int, error) {
	query := `SELECT COUNT(*) FROM grades WHERE student_id = ?;`
	var n int
	if err := s.db.QueryRowContext(ctx, query, studentID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count grades for '%s': %w", studentID, err)
	}
	return n, nil
}

// TopStudents returns up to limit students ordered by how often they appear
// in the report event log, most reported first. Students with no report
// history come last in id order, so a fresh database still yields a
// deterministic warm set.
func (s *Store) TopStudents(ctx context.Context, limit int) ([]Student, error) {
	query := `
        SELECT s.student_id, s.name, s.age, s.email, s.phone, s.enrollment_date, s.status, s.student_type, s.passing_grade
        FROM students s
        LEFT JOIN (
            SELECT student_id, COUNT(*) AS reports
            FROM report_event_log
            GROUP BY student_id
        ) r ON s.student_id = r.student_id
        ORDER BY COALESCE(r.reports, 0) DESC, s.student_id
        LIMIT ?;
    `
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top students: %w", err)
	}
	defer rows.Close()

	var students []Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating top student rows: %w", err)
	}
	return students, nil
}

// CountStudents returns the number of student rows.
func (s *Store) CountStudents(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM students;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count students: %w", err)
	}
	return n, nil
}

// CountGrades returns the number of grade rows.
func (s *Store) CountGrades(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM grades;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count grades: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudent(row rowScanner) (Student, error) {
	var st Student
	var age sql.NullInt64
	var email, phone, enrollment, status sql.NullString
	err := row.Scan(&st.ID, &st.Name, &age, &email, &phone, &enrollment, &status, &st.Type, &st.PassingGrade)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Student{}, err
		}
		return Student{}, fmt.Errorf("failed scanning student row: %w", err)
	}
	st.Age = int(age.Int64)
	st.Email = email.String
	st.Phone = phone.String
	st.EnrollmentDate = enrollment.String
	st.Status = status.String
	return st, nil
}
