// Package postgres provides the PostgreSQL backend for fragment storage.
//
// PostgreSQL is the recommended backend for multi-user production
// deployments. The schema mirrors the SQLite backend; keyword search uses
// ILIKE for case-insensitive matching.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	_ "github.com/lib/pq"

	"github.com/jarvis-labs/neuromem-go/pkg/storage"
)

// Client implements storage.FragmentStore using PostgreSQL as the backend.
type Client struct {
	db        *sql.DB
	tableName string
	node      *snowflake.Node
}

// Config contains configuration for creating a PostgreSQL FragmentStore.
type Config struct {
	// Host is the database server hostname.
	Host string

	// Port is the database server port. Defaults to 5432.
	Port int

	// User is the database user.
	User string

	// Password is the database password.
	Password string

	// DBName is the database name.
	DBName string

	// SSLMode is the lib/pq sslmode value. Defaults to "disable".
	SSLMode string

	// TableName is the name of the table to use. Defaults to "fragments".
	TableName string

	// MaxOpenConns bounds the connection pool. Defaults to 16.
	MaxOpenConns int

	// NodeID identifies this process for snowflake ID generation.
	NodeID int64
}

// NewClient creates a new PostgreSQL fragment store, verifies the
// connection, and creates the fragments table if absent.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.TableName == "" {
		cfg.TableName = "fragments"
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 16
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns / 2)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
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
			user_id TEXT NOT NULL,
			content TEXT NOT NULL,
			memory_type TEXT NOT NULL,
			valence DOUBLE PRECISION NOT NULL DEFAULT 0,
			arousal DOUBLE PRECISION NOT NULL DEFAULT 0,
			detected_emotion TEXT NOT NULL DEFAULT 'neutral',
			emotion_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			importance DOUBLE PRECISION NOT NULL DEFAULT 0,
			consolidation_level TEXT NOT NULL DEFAULT 'volatile',
			created_at TIMESTAMPTZ NOT NULL,
			last_accessed_at TIMESTAMPTZ NOT NULL,
			access_count BIGINT NOT NULL DEFAULT 0
		)
	`, c.tableName)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_user_level ON %s(user_id, consolidation_level)
	`, c.tableName, c.tableName)
	if _, err := c.db.ExecContext(ctx, indexQuery); err != nil {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
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
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 AND user_id = $2`,
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
		WHERE user_id = $1 AND consolidation_level IN ($2, $3)
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
		WHERE user_id = $1 AND created_at > $2
		ORDER BY created_at DESC
		LIMIT $3
	`, fragmentColumns, c.tableName)

	rows, err := c.db.QueryContext(ctx, query, userID, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("GetRecent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanFragments(rows)
}

// UpdateConsolidationLevel moves a fragment to level; forward-only unless
// force (access-triggered revival) is set. Affecting zero rows is not an
// error so checkpointed batches stay idempotent.
func (c *Client) UpdateConsolidationLevel(ctx context.Context, id int64, level storage.ConsolidationLevel, force bool) error {
	if !level.Valid() {
		return fmt.Errorf("UpdateConsolidationLevel: unknown level %q", level)
	}

	var query string
	args := []interface{}{string(level), id}
	if force {
		query = fmt.Sprintf(`UPDATE %s SET consolidation_level = $1 WHERE id = $2`, c.tableName)
	} else {
		allowed := allowedLevels(level)
		marks := make([]string, len(allowed))
		for i, l := range allowed {
			marks[i] = fmt.Sprintf("$%d", i+3)
			args = append(args, string(l))
		}
		query = fmt.Sprintf(`
			UPDATE %s SET consolidation_level = $1
			WHERE id = $2 AND consolidation_level IN (%s)
		`, c.tableName, strings.Join(marks, ", "))
	}

	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("UpdateConsolidationLevel: %w", err)
	}
	return nil
}

// UpdateImportance persists a recomputed importance score.
func (c *Client) UpdateImportance(ctx context.Context, id int64, score float64) error {
	query := fmt.Sprintf(`UPDATE %s SET importance = $1 WHERE id = $2`, c.tableName)
	if _, err := c.db.ExecContext(ctx, query, score, id); err != nil {
		return fmt.Errorf("UpdateImportance: %w", err)
	}
	return nil
}

// Delete removes a fragment. Deleting an absent ID succeeds.
func (c *Client) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, c.tableName)
	if _, err := c.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	return nil
}

// SearchByKeyword returns fragments whose content matches text
// case-insensitively, ordered by importance then recency of access.
func (c *Client) SearchByKeyword(ctx context.Context, userID, text string, limit int) ([]*storage.Fragment, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE user_id = $1 AND content ILIKE '%%' || $2 || '%%'
		ORDER BY importance DESC, last_accessed_at DESC
		LIMIT $3
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

	marks := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, time.Now().UTC())
	for i, id := range ids {
		marks[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET access_count = access_count + 1, last_accessed_at = $1
		WHERE id IN (%s)
	`, c.tableName, strings.Join(marks, ", "))

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
