// Package store is the local SQLite cache: live messages retained per
// channel beyond the active in-memory timeline, plus client preferences
// such as the persisted session credential.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/clutchchat/clutch/internal/models"
)

// Cache handles client-side persistence.
type Cache struct {
	db *sql.DB
}

// Open opens or creates the cache database at path.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path+"?_fk=on")
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	c := &Cache{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache: %w", err)
	}
	return c, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS cached_messages (
			channel_id  TEXT NOT NULL,
			message_id  TEXT NOT NULL,
			user_id     TEXT NOT NULL,
			content     TEXT NOT NULL,
			attachments TEXT NOT NULL DEFAULT '[]',
			created_at  DATETIME NOT NULL,
			PRIMARY KEY (channel_id, message_id)
		);

		CREATE INDEX IF NOT EXISTS idx_cached_messages_channel
			ON cached_messages(channel_id, created_at);

		CREATE TABLE IF NOT EXISTS preferences (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Put caches a message. Re-putting the same message is a no-op overwrite.
func (c *Cache) Put(msg models.Message) error {
	attachments, err := json.Marshal(msg.Attachments)
	if err != nil {
		return fmt.Errorf("marshal attachments: %w", err)
	}
	_, err = c.db.Exec(`
		INSERT OR REPLACE INTO cached_messages
			(channel_id, message_id, user_id, content, attachments, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ChannelID, msg.ID, msg.UserID, msg.Content, string(attachments), msg.CreatedAt)
	return err
}

// Recent returns up to limit cached messages for a channel in chronological
// order (oldest first).
func (c *Cache) Recent(channelID string, limit int) ([]models.Message, error) {
	rows, err := c.db.Query(`
		SELECT channel_id, message_id, user_id, content, attachments, created_at
		FROM cached_messages
		WHERE channel_id = ?
		ORDER BY created_at DESC LIMIT ?
	`, channelID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		var attachments string
		if err := rows.Scan(&m.ChannelID, &m.ID, &m.UserID, &m.Content, &attachments, &m.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(attachments), &m.Attachments); err != nil {
			return nil, fmt.Errorf("unmarshal attachments: %w", err)
		}
		messages = append(messages, m)
	}
	// Reverse to get chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, rows.Err()
}

// Clear removes cached messages for a channel.
func (c *Cache) Clear(channelID string) error {
	_, err := c.db.Exec(`DELETE FROM cached_messages WHERE channel_id = ?`, channelID)
	return err
}

// GetPreference retrieves a preference value; missing keys return "".
func (c *Cache) GetPreference(key string) (string, error) {
	var value string
	err := c.db.QueryRow(`SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetPreference sets a preference value.
func (c *Cache) SetPreference(key, value string) error {
	_, err := c.db.Exec(`
		INSERT INTO preferences (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
