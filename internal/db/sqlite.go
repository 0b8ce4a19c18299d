package db

import (
	"database/sql"
	"fmt"

	"github.com/colloquy-ai/colloquy/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    stripe_customer_id TEXT NOT NULL DEFAULT '',
    subscription TEXT NOT NULL DEFAULT 'none',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS conversations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL DEFAULT 0,
    title TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id INTEGER,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS usage_records (
    id TEXT PRIMARY KEY,
    user_id INTEGER NOT NULL,
    model TEXT NOT NULL,
    prompt_tokens INTEGER NOT NULL DEFAULT 0,
    tokens_used INTEGER NOT NULL,
    cost REAL NOT NULL,
    prompt_sample TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS user_totals (
    user_id INTEGER PRIMARY KEY,
    total_tokens INTEGER NOT NULL DEFAULT 0,
    total_cost REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);
CREATE INDEX IF NOT EXISTS idx_usage_records_user ON usage_records(user_id);`

type Database struct {
	db *sql.DB
}

func New(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

func (db *Database) Close() error {
	return db.db.Close()
}

func (db *Database) SaveMessage(msg *models.Message) error {
	if !models.ValidRole(msg.Role) {
		return fmt.Errorf("invalid message role %q", msg.Role)
	}

	query := `
        INSERT INTO messages (conversation_id, role, content, created_at)
        VALUES (?, ?, ?, CURRENT_TIMESTAMP)
        RETURNING id, created_at`

	return db.db.QueryRow(query, msg.ConvID, msg.Role, msg.Content).Scan(&msg.ID, &msg.CreatedAt)
}

func (db *Database) CreateConversation(userID int64, title string) (*models.Conversation, error) {
	query := `
        INSERT INTO conversations (user_id, title, created_at)
        VALUES (?, ?, CURRENT_TIMESTAMP)
        RETURNING id, created_at`

	conv := &models.Conversation{UserID: userID, Title: title}
	err := db.db.QueryRow(query, userID, title).Scan(&conv.ID, &conv.CreatedAt)
	return conv, err
}

func (db *Database) GetConversation(id int64) (*models.Conversation, error) {
	query := `
        SELECT id, user_id, title, created_at
        FROM conversations
        WHERE id = ?`

	conv := &models.Conversation{}
	err := db.db.QueryRow(query, id).Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("conversation %d not found", id)
	}
	return conv, err
}

func (db *Database) GetConversationHistory(conversationID int64, limit int) ([]models.Message, error) {
	query := `
        SELECT id, conversation_id, role, content, created_at
        FROM messages
        WHERE conversation_id = ?
        ORDER BY id DESC
        LIMIT ?`

	rows, err := db.db.Query(query, conversationID, limit)
	if err != nil {
		return []models.Message{}, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		err := rows.Scan(&msg.ID, &msg.ConvID, &msg.Role, &msg.Content, &msg.CreatedAt)
		if err != nil {
			return []models.Message{}, err
		}
		messages = append(messages, msg)
	}

	// Rows come back newest-first; flip to append order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (db *Database) GetConversations(userID int64) ([]models.Conversation, error) {
	query := `
        SELECT id, user_id, title, created_at
        FROM conversations
        WHERE user_id = ?
        ORDER BY created_at DESC`

	rows, err := db.db.Query(query, userID)
	if err != nil {
		return []models.Conversation{}, err
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0)
	for rows.Next() {
		var conv models.Conversation
		err := rows.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt)
		if err != nil {
			return []models.Conversation{}, err
		}
		conversations = append(conversations, conv)
	}
	return conversations, nil
}

func (db *Database) DeleteConversation(id int64) error {
	tx, err := db.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM messages WHERE conversation_id = ?", id); err != nil {
		return err
	}

	if _, err := tx.Exec("DELETE FROM conversations WHERE id = ?", id); err != nil {
		return err
	}

	return tx.Commit()
}

func (db *Database) UpdateConversationTitle(id int64, title string) error {
	_, err := db.db.Exec("UPDATE conversations SET title = ? WHERE id = ?", title, id)
	return err
}
