package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/gauravmishra2744/Awaaj/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection serializes writers, so UpdateIssue transactions never
	// interleave and concurrent requests never see "database is locked".
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// boolToInt converts a bool to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const issueColumns = `id, title, description, phone, email, media_url, notify_by_email, location,
	category, category_confidence, category_scores,
	priority_score, priority_level, priority_factors, priority_reasoning,
	sla_deadline, sla_status, status, assigned_at, resolved_at, closed_at,
	citizen_count, embedding, update_history, created_at, updated_at`

// issueArgs returns the values for issueColumns, in order.
func issueArgs(issue *models.Issue) ([]any, error) {
	location, err := jsonColumn(issue.Location, issue.Location == nil)
	if err != nil {
		return nil, err
	}
	scores, err := jsonColumn(issue.CategoryScores, len(issue.CategoryScores) == 0)
	if err != nil {
		return nil, err
	}
	factors, err := jsonColumn(issue.PriorityFactors, issue.PriorityFactors == nil)
	if err != nil {
		return nil, err
	}
	embedding, err := jsonColumn(issue.Embedding, issue.Embedding == nil)
	if err != nil {
		return nil, err
	}
	updates, err := jsonColumn(issue.UpdateHistory, len(issue.UpdateHistory) == 0)
	if err != nil {
		return nil, err
	}

	return []any{
		issue.ID, issue.Title, issue.Description, issue.Phone, issue.Email, issue.MediaURL,
		boolToInt(issue.NotifyByEmail), location,
		issue.Category, issue.CategoryConfidence, scores,
		nullInt(issue.PriorityScore), string(issue.PriorityLevel), factors, issue.PriorityReasoning,
		toNullTime(issue.SLADeadline), string(issue.SLAStatus), string(issue.Status),
		toNullTime(issue.AssignedAt), toNullTime(issue.ResolvedAt), toNullTime(issue.ClosedAt),
		issue.CitizenCount, embedding, updates, issue.CreatedAt, issue.UpdatedAt,
	}, nil
}

func jsonColumn(v any, empty bool) (sql.NullString, error) {
	if empty {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode column: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeColumn(col sql.NullString, v any) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(col.String), v); err != nil {
		return fmt.Errorf("decode column: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIssue(row rowScanner) (*models.Issue, error) {
	issue := &models.Issue{}
	var (
		priorityLevel, slaStatus, status string
		notify                           int
		location, scores, factors        sql.NullString
		embedding, updates               sql.NullString
		priorityScore                    sql.NullInt64
		slaDeadline, assignedAt          sql.NullTime
		resolvedAt, closedAt             sql.NullTime
	)

	err := row.Scan(&issue.ID, &issue.Title, &issue.Description, &issue.Phone, &issue.Email, &issue.MediaURL,
		&notify, &location,
		&issue.Category, &issue.CategoryConfidence, &scores,
		&priorityScore, &priorityLevel, &factors, &issue.PriorityReasoning,
		&slaDeadline, &slaStatus, &status, &assignedAt, &resolvedAt, &closedAt,
		&issue.CitizenCount, &embedding, &updates, &issue.CreatedAt, &issue.UpdatedAt)
	if err != nil {
		return nil, err
	}

	issue.NotifyByEmail = notify != 0
	issue.PriorityLevel = models.PriorityLevel(priorityLevel)
	issue.SLAStatus = models.SLAStatus(slaStatus)
	issue.Status = models.IssueStatus(status)
	if priorityScore.Valid {
		score := int(priorityScore.Int64)
		issue.PriorityScore = &score
	}
	issue.SLADeadline = nullTime(slaDeadline)
	issue.AssignedAt = nullTime(assignedAt)
	issue.ResolvedAt = nullTime(resolvedAt)
	issue.ClosedAt = nullTime(closedAt)

	for _, c := range []struct {
		col sql.NullString
		v   any
	}{
		{location, &issue.Location},
		{scores, &issue.CategoryScores},
		{factors, &issue.PriorityFactors},
		{embedding, &issue.Embedding},
		{updates, &issue.UpdateHistory},
	} {
		if err := decodeColumn(c.col, c.v); err != nil {
			return nil, err
		}
	}
	return issue, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func (s *SQLiteStore) CreateIssue(ctx context.Context, issue *models.Issue) error {
	if issue.ID == "" {
		issue.ID = newULID()
	}
	now := time.Now().UTC()
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = now
	}
	if issue.UpdatedAt.IsZero() {
		issue.UpdatedAt = issue.CreatedAt
	}

	args, err := issueArgs(issue)
	if err != nil {
		return fmt.Errorf("create issue: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO issues (`+issueColumns+`) VALUES (`+placeholders+`)`, args...); err != nil {
			return fmt.Errorf("create issue: %w", err)
		}
		if err := insertHistory(ctx, tx, issue.ID, 0, issue.StatusHistory); err != nil {
			return err
		}
		voters := dedupe(issue.UpvotedBy)
		if err := insertVoters(ctx, tx, issue.ID, voters, issue.CreatedAt); err != nil {
			return err
		}
		issue.UpvotedBy = voters
		issue.Upvotes = len(voters)
		return nil
	})
}

func (s *SQLiteStore) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	return getIssue(ctx, s.db, id)
}

func getIssue(ctx context.Context, q querier, id string) (*models.Issue, error) {
	issue, err := scanIssue(q.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("issue %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get issue: %w", err)
	}
	if err := loadChildren(ctx, q, issue); err != nil {
		return nil, err
	}
	return issue, nil
}

// loadChildren fills status history and voters. It must run after any row
// cursor on q is closed; the pool has a single connection.
func loadChildren(ctx context.Context, q querier, issue *models.Issue) error {
	rows, err := q.QueryContext(ctx,
		`SELECT status, changed_at, changed_by, comment FROM issue_status_history WHERE issue_id = ? ORDER BY seq`, issue.ID)
	if err != nil {
		return fmt.Errorf("load status history: %w", err)
	}
	issue.StatusHistory = []models.StatusEntry{}
	for rows.Next() {
		var e models.StatusEntry
		var status string
		if err := rows.Scan(&status, &e.ChangedAt, &e.ChangedBy, &e.Comment); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan status history: %w", err)
		}
		e.Status = models.IssueStatus(status)
		issue.StatusHistory = append(issue.StatusHistory, e)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("load status history: %w", err)
	}
	_ = rows.Close()

	rows, err = q.QueryContext(ctx, `SELECT voter_id FROM issue_upvotes WHERE issue_id = ? ORDER BY rowid`, issue.ID)
	if err != nil {
		return fmt.Errorf("load upvotes: %w", err)
	}
	defer func() { _ = rows.Close() }()
	issue.UpvotedBy = []string{}
	for rows.Next() {
		var voter string
		if err := rows.Scan(&voter); err != nil {
			return fmt.Errorf("scan upvote: %w", err)
		}
		issue.UpvotedBy = append(issue.UpvotedBy, voter)
	}
	issue.Upvotes = len(issue.UpvotedBy)
	return rows.Err()
}

func (s *SQLiteStore) ListIssues(ctx context.Context, filter IssueListFilter) ([]*models.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues`
	var conditions []string
	var args []any

	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.PriorityLevel != "" {
		conditions = append(conditions, "priority_level = ?")
		args = append(args, string(filter.PriorityLevel))
	}
	if filter.Email != "" {
		conditions = append(conditions, "email = ? COLLATE NOCASE")
		args = append(args, filter.Email)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}

	issues := []*models.Issue{}
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("list issues: %w", err)
	}
	_ = rows.Close()

	for _, issue := range issues {
		if err := loadChildren(ctx, s.db, issue); err != nil {
			return nil, err
		}
	}
	return issues, nil
}

func (s *SQLiteStore) UpdateIssue(ctx context.Context, id string, fn UpdateFunc) (*models.Issue, error) {
	var updated *models.Issue
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getIssue(ctx, tx, id)
		if err != nil {
			return err
		}
		before := current.Clone()
		if err := fn(current); err != nil {
			return err
		}
		current.ID = before.ID
		current.CreatedAt = before.CreatedAt

		if err := checkAppendOnly(before.StatusHistory, current.StatusHistory); err != nil {
			return err
		}
		for _, v := range before.UpvotedBy {
			if !slices.Contains(current.UpvotedBy, v) {
				return fmt.Errorf("update issue %s: upvoter %q cannot be removed", id, v)
			}
		}

		args, err := issueArgs(current)
		if err != nil {
			return fmt.Errorf("update issue: %w", err)
		}
		cols := strings.Split(issueColumns, ",")
		sets := make([]string, 0, len(cols)-1)
		for _, c := range cols[1:] {
			sets = append(sets, strings.TrimSpace(c)+" = ?")
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE issues SET `+strings.Join(sets, ", ")+` WHERE id = ?`,
			append(args[1:], id)...); err != nil {
			return fmt.Errorf("update issue: %w", err)
		}

		if err := insertHistory(ctx, tx, id, len(before.StatusHistory), current.StatusHistory[len(before.StatusHistory):]); err != nil {
			return err
		}
		var added []string
		for _, v := range dedupe(current.UpvotedBy) {
			if !slices.Contains(before.UpvotedBy, v) {
				added = append(added, v)
			}
		}
		if err := insertVoters(ctx, tx, id, added, current.UpdatedAt); err != nil {
			return err
		}

		updated, err = getIssue(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// checkAppendOnly rejects any change to existing history entries.
func checkAppendOnly(before, after []models.StatusEntry) error {
	if len(after) < len(before) {
		return fmt.Errorf("status history is append-only: %d entries became %d", len(before), len(after))
	}
	for i := range before {
		a, b := before[i], after[i]
		if a.Status != b.Status || !a.ChangedAt.Equal(b.ChangedAt) || a.ChangedBy != b.ChangedBy || a.Comment != b.Comment {
			return fmt.Errorf("status history is append-only: entry %d was modified", i)
		}
	}
	return nil
}

func insertHistory(ctx context.Context, tx *sql.Tx, issueID string, startSeq int, entries []models.StatusEntry) error {
	for i, e := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO issue_status_history (issue_id, seq, status, changed_at, changed_by, comment) VALUES (?, ?, ?, ?, ?, ?)`,
			issueID, startSeq+i, string(e.Status), e.ChangedAt, e.ChangedBy, e.Comment); err != nil {
			return fmt.Errorf("append status history: %w", err)
		}
	}
	return nil
}

func insertVoters(ctx context.Context, tx *sql.Tx, issueID string, voters []string, at time.Time) error {
	for _, v := range voters {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO issue_upvotes (issue_id, voter_id, voted_at) VALUES (?, ?, ?)`,
			issueID, v, at); err != nil {
			return fmt.Errorf("record upvote: %w", err)
		}
	}
	return nil
}

func dedupe(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it != "" && !slices.Contains(out, it) {
			out = append(out, it)
		}
	}
	return out
}

func (s *SQLiteStore) DeleteIssue(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM issues WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("issue %s: %w", id, ErrNotFound)
	}
	return nil
}

// withTx runs fn in a transaction, committing on nil and rolling back otherwise.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
