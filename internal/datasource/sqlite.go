package datasource

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/beadsync/pkg/debug"
	"github.com/vanderheijden86/beadsync/pkg/loader"
	"github.com/vanderheijden86/beadsync/pkg/model"
)

// SQLiteReader reads issues from a beads SQLite database.
type SQLiteReader struct {
	db   *sql.DB
	path string
}

// NewSQLiteReader opens the database read-only.
func NewSQLiteReader(source DataSource) (*SQLiteReader, error) {
	if source.Type != SourceTypeSQLite {
		return nil, fmt.Errorf("source is not SQLite: %s", source.Type)
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", source.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	return &SQLiteReader{db: db, path: source.Path}, nil
}

// Close closes the database connection.
func (r *SQLiteReader) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const fullIssueQuery = `
	SELECT
		id, title, description, status, priority, issue_type,
		assignee, created_by, created_at, updated_at, closed_at, labels
	FROM issues
	WHERE (tombstone IS NULL OR tombstone = 0)
	ORDER BY id`

const simpleIssueQuery = `
	SELECT id, title, description, status, priority, issue_type, created_at, updated_at
	FROM issues
	WHERE (tombstone IS NULL OR tombstone = 0)
	ORDER BY id`

// LoadIssues reads every non-tombstoned issue with its dependencies and
// comments. Timestamps are kept as the strings stored in the database.
func (r *SQLiteReader) LoadIssues() ([]model.Issue, error) {
	rows, err := r.db.Query(fullIssueQuery)
	if err != nil {
		debug.Log("datasource: full query failed on %s, using simple schema: %v", r.path, err)
		return r.loadIssuesSimple()
	}
	defer rows.Close()

	var issues []model.Issue
	for rows.Next() {
		var (
			issue                                     model.Issue
			description, issueType, assignee, creator sql.NullString
			createdAt, updatedAt, closedAt, labels    sql.NullString
		)
		err := rows.Scan(
			&issue.ID, &issue.Title, &description, &issue.Status, &issue.Priority, &issueType,
			&assignee, &creator, &createdAt, &updatedAt, &closedAt, &labels,
		)
		if err != nil {
			debug.Log("datasource: skipping row: %v", err)
			continue
		}

		issue.Description = description.String
		issue.IssueType = model.IssueType(issueType.String)
		issue.Assignee = assignee.String
		issue.Creator = creator.String
		issue.CreatedAt = createdAt.String
		issue.UpdatedAt = updatedAt.String
		if closedAt.Valid && closedAt.String != "" {
			s := closedAt.String
			issue.ClosedAt = &s
		}
		issue.Labels = parseJSONStringArray(labels.String)
		issue.Status = loader.NormalizeStatus(issue.Status)
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating issues: %w", err)
	}
	rows.Close()

	for i := range issues {
		issues[i].Dependencies = r.loadDependencies(issues[i].ID)
		issues[i].Comments = r.loadComments(issues[i].ID)
	}
	return issues, nil
}

func (r *SQLiteReader) loadIssuesSimple() ([]model.Issue, error) {
	rows, err := r.db.Query(simpleIssueQuery)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var issues []model.Issue
	for rows.Next() {
		var issue model.Issue
		var description, issueType, createdAt, updatedAt sql.NullString
		if err := rows.Scan(&issue.ID, &issue.Title, &description, &issue.Status, &issue.Priority, &issueType, &createdAt, &updatedAt); err != nil {
			continue
		}
		issue.Description = description.String
		issue.IssueType = model.IssueType(issueType.String)
		issue.CreatedAt = createdAt.String
		issue.UpdatedAt = updatedAt.String
		issue.Status = loader.NormalizeStatus(issue.Status)
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating issues: %w", err)
	}
	return issues, nil
}

// loadDependencies is best effort; a missing table yields nil.
func (r *SQLiteReader) loadDependencies(issueID string) []string {
	rows, err := r.db.Query(`SELECT depends_on_id FROM dependencies WHERE issue_id = ? ORDER BY depends_on_id`, issueID)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var deps []string
	for rows.Next() {
		var dep string
		if err := rows.Scan(&dep); err == nil {
			deps = append(deps, dep)
		}
	}
	return deps
}

// loadComments is best effort; a missing table yields nil.
func (r *SQLiteReader) loadComments(issueID string) []model.Comment {
	rows, err := r.db.Query(`SELECT author, text, created_at FROM comments WHERE issue_id = ? ORDER BY created_at`, issueID)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var comments []model.Comment
	for rows.Next() {
		var c model.Comment
		var createdAt sql.NullString
		if err := rows.Scan(&c.Author, &c.Body, &createdAt); err != nil {
			continue
		}
		c.CreatedAt = createdAt.String
		comments = append(comments, c)
	}
	return comments
}

// CountIssues returns the number of non-tombstoned issues.
func (r *SQLiteReader) CountIssues() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM issues WHERE (tombstone IS NULL OR tombstone = 0)").Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// parseJSONStringArray decodes a JSON array of strings, falling back to a
// comma split for hand-written values.
func parseJSONStringArray(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" || s == "[]" {
		return nil
	}
	var result []string
	if err := json.Unmarshal([]byte(s), &result); err == nil {
		return result
	}
	result = nil
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	for _, item := range strings.Split(s, ",") {
		item = strings.Trim(strings.TrimSpace(item), `"`)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
