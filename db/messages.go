package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/andrejsstepanovs/docqa/models"
	"github.com/google/uuid"
)

// AppendMessage adds a conversation entry. Missing id and timestamp are
// filled in.
func AppendMessage(db *sql.DB, msg models.Message) (models.Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec("INSERT INTO messages (id, role, content, created_at) VALUES (?, ?, ?, ?)",
		msg.ID, string(msg.Role), msg.Content, msg.CreatedAt)
	if err != nil {
		return msg, fmt.Errorf("failed to insert message: %w", err)
	}
	return msg, nil
}

// ListMessages returns the conversation in insertion order.
func ListMessages(db *sql.DB) ([]models.Message, error) {
	rows, err := db.Query("SELECT id, role, content, created_at FROM messages ORDER BY seq ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		var role string
		if err := rows.Scan(&m.ID, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		m.Role = models.Role(role)
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during message row iteration: %w", err)
	}

	return messages, nil
}

func ClearMessages(db *sql.DB) error {
	if _, err := db.Exec("DELETE FROM messages"); err != nil {
		return fmt.Errorf("failed to delete from messages: %w", err)
	}
	return nil
}
