package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/voicecal/voicecal/store"
)

func (d *DB) AppendLogEntry(ctx context.Context, create *store.LogEntry) (*store.LogEntry, error) {
	eventID := ""
	eventJSON := "{}"
	if create.Event != nil {
		eventID = create.Event.ID
		raw, err := json.Marshal(create.Event)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal event: %w", err)
		}
		eventJSON = string(raw)
	}

	fields := []string{"user_id", "ts", "kind", "event_id", "event", "active"}
	placeholderValues := []any{
		create.UserID, create.Ts.UnixNano(), string(create.Kind), eventID, eventJSON, 1,
	}

	stmt := `INSERT INTO op_log (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(placeholderValues)) + `)
		RETURNING id`

	entry := *create
	entry.Active = true
	if err := d.db.QueryRowContext(ctx, stmt, placeholderValues...).Scan(&entry.ID); err != nil {
		return nil, fmt.Errorf("failed to append log entry: %w", err)
	}
	return &entry, nil
}

func (d *DB) ListLogEntries(ctx context.Context, find *store.FindLogEntry) ([]*store.LogEntry, error) {
	where, args := []string{"1 = 1"}, []any{}

	where, args = append(where, "op_log.user_id = "+placeholder(len(args)+1)), append(args, find.UserID)
	if find.ActiveOnly {
		where = append(where, "op_log.active = 1")
	}

	orderBy := "ORDER BY op_log.id ASC"
	if find.NewestFirst {
		orderBy = "ORDER BY op_log.id DESC"
	}

	query := `
		SELECT id, user_id, ts, kind, event, active
		FROM op_log
		WHERE ` + strings.Join(where, " AND ") + ` ` + orderBy

	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query log entries: %w", err)
	}
	defer rows.Close()

	list := make([]*store.LogEntry, 0)
	for rows.Next() {
		entry, err := scanLogEntry(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate log entries: %w", err)
	}
	return list, nil
}

func (d *DB) CountLogEntries(ctx context.Context, userID string, activeOnly bool) (int, error) {
	where, args := []string{"user_id = " + placeholder(1)}, []any{userID}
	if activeOnly {
		where = append(where, "active = 1")
	}

	query := `SELECT COUNT(*) FROM op_log WHERE ` + strings.Join(where, " AND ")

	var count int
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count log entries: %w", err)
	}
	return count, nil
}

func (d *DB) DeactivateLastN(ctx context.Context, userID string, n int) ([]*store.LogEntry, error) {
	stmt := fmt.Sprintf(`
		UPDATE op_log SET active = 0
		WHERE id IN (
			SELECT id FROM op_log
			WHERE user_id = %s AND active = 1
			ORDER BY id DESC LIMIT %d
		)
		RETURNING id, user_id, ts, kind, event, active`, placeholder(1), n)

	rows, err := d.db.QueryContext(ctx, stmt, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate log entries: %w", err)
	}
	defer rows.Close()

	removed := make([]*store.LogEntry, 0, n)
	for rows.Next() {
		entry, err := scanLogEntry(rows)
		if err != nil {
			return nil, err
		}
		removed = append(removed, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deactivated entries: %w", err)
	}

	// RETURNING order is unspecified; callers expect newest-first.
	sort.Slice(removed, func(i, j int) bool { return removed[i].ID > removed[j].ID })
	return removed, nil
}

func (d *DB) DeactivateByEventID(ctx context.Context, userID string, eventID string) (*store.LogEntry, error) {
	stmt := fmt.Sprintf(`
		UPDATE op_log SET active = 0
		WHERE id IN (
			SELECT id FROM op_log
			WHERE user_id = %s AND event_id = %s AND kind = 'create' AND active = 1
			ORDER BY id DESC LIMIT 1
		)
		RETURNING id, user_id, ts, kind, event, active`, placeholder(1), placeholder(2))

	rows, err := d.db.QueryContext(ctx, stmt, userID, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate log entry: %w", err)
	}
	defer rows.Close()

	var entry *store.LogEntry
	if rows.Next() {
		entry, err = scanLogEntry(rows)
		if err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deactivated entry: %w", err)
	}
	return entry, nil
}

func (d *DB) ReplayTo(ctx context.Context, userID string, ts time.Time) error {
	stmt := `UPDATE op_log SET active = (ts <= ` + placeholder(1) + `) WHERE user_id = ` + placeholder(2)
	if _, err := d.db.ExecContext(ctx, stmt, ts.UnixNano(), userID); err != nil {
		return fmt.Errorf("failed to replay log: %w", err)
	}
	return nil
}

func (d *DB) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM op_log ORDER BY user_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := make([]string, 0)
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLogEntry(row rowScanner) (*store.LogEntry, error) {
	var entry store.LogEntry
	var tsNano int64
	var kind, eventJSON string
	var active int

	if err := row.Scan(&entry.ID, &entry.UserID, &tsNano, &kind, &eventJSON, &active); err != nil {
		return nil, fmt.Errorf("failed to scan log entry: %w", err)
	}

	entry.Ts = time.Unix(0, tsNano).UTC()
	entry.Kind = store.LogKind(kind)
	entry.Active = active != 0
	if eventJSON != "" && eventJSON != "{}" {
		var event store.Event
		if err := json.Unmarshal([]byte(eventJSON), &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event: %w", err)
		}
		entry.Event = &event
	}
	return &entry, nil
}
