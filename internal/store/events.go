package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"
)

// Constants for report event types
const (
	EventReportStart = "report_start"
	EventReportEnd   = "report_end"
	EventError       = "error"
)

// LogReportEvent inserts a new event record into the report log.
func (s *Store) LogReportEvent(ctx context.Context, studentID, event, message string, duration *time.Duration) error {
	query := `
        INSERT INTO report_event_log (student_id, event, event_timestamp, message, duration_ms)
        VALUES (?, ?, ?, ?, ?);
    `
	var durationMs sql.NullInt64
	if duration != nil {
		durationMs = sql.NullInt64{Int64: duration.Milliseconds(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query,
		studentID,
		event,
		time.Now().UTC(),
		sql.NullString{String: message, Valid: message != ""},
		durationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to log event '%s' for '%s': %w", event, studentID, err)
	}
	return nil
}

// DisplayReportHistory queries the report event log and writes a formatted
// listing to w, newest first.
func (s *Store) DisplayReportHistory(ctx context.Context, w io.Writer, studentFilter, eventFilter string, limit int) error {
	query := `
        SELECT student_id, event, event_timestamp, message, duration_ms
        FROM report_event_log
    `
	conditions := []string{}
	args := []any{}
	argCounter := 1

	if studentFilter != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", argCounter))
		args = append(args, studentFilter)
		argCounter++
	}
	if eventFilter != "" {
		conditions = append(conditions, fmt.Sprintf("event = $%d", argCounter))
		args = append(args, eventFilter)
		argCounter++
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY event_timestamp DESC, log_id DESC LIMIT $%d", argCounter)
	args = append(args, limit)

	fmt.Fprintf(w, "--- Report Event History (Limit %d) ---\n", limit)
	fmt.Fprintf(w, "%-12s | %-15s | %-25s | %-10s | %s\n", "Student", "Event", "Timestamp (UTC)", "DurationMS", "Message")
	fmt.Fprintln(w, strings.Repeat("-", 100))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query report event log: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var studentID, event string
		var timestamp time.Time
		var message sql.NullString
		var durationMs sql.NullInt64
		if err := rows.Scan(&studentID, &event, &timestamp, &message, &durationMs); err != nil {
			return fmt.Errorf("failed to scan event log row: %w", err)
		}
		durationStr := ""
		if durationMs.Valid {
			durationStr = fmt.Sprintf("%d", durationMs.Int64)
		}
		fmt.Fprintf(w, "%-12s | %-15s | %-25s | %-10s | %s\n",
			studentID, event, timestamp.Format(time.RFC3339), durationStr, message.String)
		count++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating event log rows: %w", err)
	}
	fmt.Fprintf(w, "Displayed %d records.\n", count)
	return nil
}
