// Package mysql provides the MySQL-compatible backend for fragment storage.
//
// It works against stock MySQL as well as MySQL-protocol databases. The
// schema mirrors the other relational backends.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	_ "github.com/go-sql-driver/mysql"

	"github.com/jarvis-labs/neuromem-go/pkg/storage"
)

// Client implements storage.FragmentStore using MySQL as the backend.
type Client struct {
	db        *sql.DB
	tableName string
	node      *snowflake.Node
}

// Config contains configuration for creating a MySQL FragmentStore.
type Config struct {
	// Host is the database server hostname.
	Host string

	// Port is the database server port. Defaults to 3306.
	Port int

	// User is the database user.
	User string

	// Password is the database password.
	Password string

	// DBName is the database name.
	DBName string

	// TableName is the name of the table to use. Defaults to "fragments".
	TableName string

	// MaxOpenConns bounds the connection pool. Defaults to 16.
	MaxOpenConns int

	// NodeID identifies this process for snowflake ID generation.
	NodeID int64
}

// NewClient creates a new MySQL fragment store, verifies the connection,
// and creates the fragments table if absent.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.Port == 0 {
		cfg.Port = 3306
	}
	if cfg.TableName == "" {
		cfg.TableName = "fragments"
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 16
	}

	// parseTime makes DATETIME columns scan into time.Time.
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewMySQLClient: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns / 2)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewMySQLClient: %w", err)
	}

	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return nil, fmt.Errorf("NewMySQLClient: %w", err)
	}

	client := &Client{db: db, tableName: cfg.TableName, node: node}
	if err := client.initTables(context.Background()); err != nil {
		return nil, err
	}
	return client, nil
}

func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			content TEXT NOT NULL,
			memory_type VARCHAR(32) NOT NULL,
			valence DOUBLE NOT NULL DEFAULT 0,
			arousal DOUBLE NOT NULL DEFAULT 0,
			detected_emotion VARCHAR(32) NOT NULL DEFAULT 'neutral',
			emotion_confidence DOUBLE NOT NULL DEFAULT 0,
			importance DOUBLE NOT NULL DEFAULT 0,
			consolidation_level VARCHAR(32) NOT NULL DEFAULT 'volatile',
			created_at DATETIME(6) NOT NULL,
			last_accessed_at DATETIME(6) NOT NULL,
			access_count BIGINT UNSIGNED NOT NULL DEFAULT 0,
			INDEX idx_user_level (user_id, consolidation_level)
		)
	`, c.tableName)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}
	return nil
}

// Insert persists a fragment and returns its assigned snowflake ID.
func (c *Client) Insert(ctx context.Context, f *storage.Fragment) (int64, error) {
	id := c.node.Generate().Int64()

	now := time.Now().UTC()
	createdAt := f.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	lastAccessed := f.LastAccessedAt
	if lastAccessed.Before(createdAt) {
		lastAccessed = createdAt
	}

	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, user_id, content, memory_type, valence, arousal, detected_emotion,
		 emotion_confidence, importance, consolidation_level, created_at,
		 last_accessed_at, access_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.tableName)

	_, err := c.db.ExecContext(ctx, query,
		id, f.UserID, f.Content, string(f.MemoryType),
		f.Emotion.Valence, f.Emotion.Arousal, f.Emotion.DetectedEmotion,
		f.Emotion.Confidence, f.ImportanceScore, string(f.ConsolidationLevel),
		createdAt, lastAccessed, f.AccessCount,
	)
	if err != nil {
		return 0, fmt.Errorf("Insert: %w", err)
	}

	f.ID = id
	f.CreatedAt = createdAt
	f.LastAccessedAt = lastAccessed
	return id, nil
}

// Get retrieves a fragment by ID, scoped to its owner.
func (c *Client) Get(ctx context.Context, userID string, id int64) (*storage.Fragment, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ? AND user_id = ?`,
		fragmentColumns, c.tableName)

	f, err := scanFragment(c.db.QueryRowContext(ctx, query, id, userID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("Get: fragment %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return f, nil
}

// GetVolatile returns the user's volatile and consolidating fragments.
func (c *Client) GetVolatile(ctx context.Context, userID string) ([]*storage.Fragment, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE user_id = ? AND consolidation_level IN (?, ?)
		ORDER BY created_at ASC
	`, fragmentColumns, c.tableName)

	rows, err := c.db.QueryContext(ctx, query, userID,
		string(storage.LevelVolatile), string(storage.LevelConsolidating))
	if err != nil {
		return nil, fmt.Errorf("GetVolatile: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanFragments(rows)
}

// GetRecent returns fragments created after since, newest first.
func (c *Client) GetRecent(ctx context.Context, userID string, since time.Time, limit int) ([]*storage.Fragment, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE user_id = ? AND created_at > ?
		ORDER BY created_at DESC
		LIMIT ?
	`, fragmentColumns, c.tableName)

	rows, err := c.db.QueryContext(ctx, query, userID, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("GetRecent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanFragments(rows)
}

// UpdateConsolidationLevel moves a fragment to level; forward-only unless
// force (access-triggered revival) is set.
func (c *Client) UpdateConsolidationLevel(ctx context.Context, id int64, level storage.ConsolidationLevel, force bool) error {
	if !level.Valid() {
		return fmt.Errorf("UpdateConsolidationLevel: unknown level %q", level)
	}

	var query string
	args := []interface{}{string(level), id}
	if force {
		query = fmt.Sprintf(`UPDATE %s SET consolidation_level = ? WHERE id = ?`, c.tableName)
	} else {
		allowed := allowedLevels(level)
		query = fmt.Sprintf(`
			UPDATE %s SET consolidation_level = ?
			WHERE id = ? AND consolidation_level IN (%s)
		`, c.tableName, placeholders(len(allowed)))
		for _, l := range allowed {
			args = append(args, string(l))
		}
	}

	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("UpdateConsolidationLevel: %w", err)
	}
	return nil
}

// UpdateImportance persists a recomputed importance score.
func (c *Client) UpdateImportance(ctx context.Context, id int64, score float64) error {
	query := fmt.Sprintf(`UPDATE %s SET importance = ? WHERE id = ?`, c.tableName)
	if _, err := c.db.ExecContext(ctx, query, score, id); err != nil {
		return fmt.Errorf("UpdateImportance: %w", err)
	}
	return nil
}

// Delete removes a fragment. Deleting an absent ID succeeds.
func (c *Client) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, c.tableName)
	if _, err := c.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	return nil
}

// SearchByKeyword returns fragments whose content matches text, ordered by
// importance then recency of access.
func (c *Client) SearchByKeyword(ctx context.Context, userID, text string, limit int) ([]*storage.Fragment, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE user_id = ? AND content LIKE CONCAT('%%', ?, '%%')
		ORDER BY importance DESC, last_accessed_at DESC
		LIMIT ?
	`, fragmentColumns, c.tableName)

	rows, err := c.db.QueryContext(ctx, query, userID, text, limit)
	if err != nil {
		return nil, fmt.Errorf("SearchByKeyword: %w", err)
	}
	defer func() { _ = rows.Close() }()

	frags, err := scanFragments(rows)
	if err != nil {
		return nil, err
	}
	for _, f := range frags {
		f.Relevance = 1.0
	}
	return frags, nil
}

// TouchAccess bumps access bookkeeping with a single in-database increment.
func (c *Client) TouchAccess(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET access_count = access_count + 1, last_accessed_at = ?
		WHERE id IN (%s)
	`, c.tableName, placeholders(len(ids)))

	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, time.Now().UTC())
	for _, id := range ids {
		args = append(args, id)
	}

	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("TouchAccess: %w", err)
	}
	return nil
}

// ListUsers returns the distinct owners present in the store.
func (c *Client) ListUsers(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`SELECT DISTINCT user_id FROM %s`, c.tableName)

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ListUsers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("ListUsers: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Close closes the database connection.
func (c *Client) Close() error {
	return c.db.Close()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func allowedLevels(level storage.ConsolidationLevel) []storage.ConsolidationLevel {
	all := []storage.ConsolidationLevel{
		storage.LevelVolatile,
		storage.LevelConsolidating,
		storage.LevelConsolidated,
		storage.LevelArchived,
	}
	out := make([]storage.ConsolidationLevel, 0, len(all))
	for _, l := range all {
		if l.Rank() <= level.Rank() {
			out = append(out, l)
		}
	}
	return out
}
