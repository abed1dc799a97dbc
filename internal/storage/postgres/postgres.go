// Package postgres stores the engine's event journal in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// EventRow represents an event stored in Postgres.
type EventRow struct {
	EventID     int64                  `json:"event_id"`
	Timestamp   time.Time              `json:"ts"`
	Level       string                 `json:"level"`
	Event       string                 `json:"event"`
	Message     *string                `json:"msg,omitempty"`
	Fields      map[string]interface{} `json:"fields,omitempty"`
	EngineID    string                 `json:"engine_id"`
	OperationID *string                `json:"operation_id,omitempty"`
}

// Client manages the Postgres connection for event storage.
type Client struct {
	db       *sql.DB
	engineID string
}

// Open connects to Postgres and applies pending migrations.
func Open(ctx context.Context, dsn, engineID string) (*Client, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Client{db: db, engineID: engineID}, nil
}

// Migrate applies the embedded migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// DSN adds a password to a connection string. Both URL and key=value forms
// are accepted. An empty password returns dsn unchanged.
func DSN(dsn, password string) string {
	if password == "" {
		return dsn
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil || u.User == nil {
			return dsn
		}
		u.User = url.UserPassword(u.User.Username(), password)
		return u.String()
	}
	if strings.Contains(dsn, "password=") {
		return dsn
	}
	return strings.TrimSpace(dsn + " password=" + quoteValue(password))
}

func quoteValue(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// Append inserts an event. It satisfies events.Store.
func (c *Client) Append(ts time.Time, level, event, msg string, fields map[string]interface{}) error {
	var fieldsJSON []byte
	var err error
	if fields != nil {
		fieldsJSON, err = json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("failed to marshal fields: %w", err)
		}
	}

	var msgPtr *string
	if msg != "" {
		msgPtr = &msg
	}

	var opPtr *string
	if id, ok := fields["operation_id"].(string); ok && id != "" {
		opPtr = &id
	}

	query := `
		INSERT INTO scene_events (ts, level, event, msg, fields, engine_id, operation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = c.db.Exec(query, ts, level, event, msgPtr, fieldsJSON, c.engineID, opPtr)
	return err
}

// Query returns the last N events of this engine, newest first.
func (c *Client) Query(limit int) ([]EventRow, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 10000 {
		limit = 10000
	}

	query := `
		SELECT event_id, ts, level, event, msg, fields, engine_id, operation_id
		FROM scene_events
		WHERE engine_id = $1
		ORDER BY ts DESC, event_id DESC
		LIMIT $2
	`
	rows, err := c.db.Query(query, c.engineID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		var fieldsJSON []byte
		var msg, opID sql.NullString

		if err := rows.Scan(&e.EventID, &e.Timestamp, &e.Level, &e.Event, &msg, &fieldsJSON, &e.EngineID, &opID); err != nil {
			return nil, err
		}

		if msg.Valid {
			e.Message = &msg.String
		}
		if opID.Valid {
			e.OperationID = &opID.String
		}
		if len(fieldsJSON) > 0 {
			if err := json.Unmarshal(fieldsJSON, &e.Fields); err != nil {
				return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
			}
		}

		events = append(events, e)
	}

	return events, rows.Err()
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
