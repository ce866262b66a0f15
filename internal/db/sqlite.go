// Package db is the durable conversation store: an append-only log of
// user/assistant turns per user, queryable by substring or full-text match.
package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pharmassist/pharmassist/internal/models"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    user_message TEXT NOT NULL,
    assistant_response TEXT NOT NULL,
    timestamp TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_conversations_user_id ON conversations(user_id);
CREATE INDEX IF NOT EXISTS idx_conversations_timestamp ON conversations(timestamp);

CREATE VIRTUAL TABLE IF NOT EXISTS conversations_fts USING fts4(
    user_id,
    user_message,
    assistant_response,
    tokenize=porter
);

CREATE TRIGGER IF NOT EXISTS conversations_ai AFTER INSERT ON conversations BEGIN
    INSERT INTO conversations_fts(docid, user_id, user_message, assistant_response)
    VALUES (new.id, new.user_id, new.user_message, new.assistant_response);
END;

CREATE TRIGGER IF NOT EXISTS conversations_ad AFTER DELETE ON conversations BEGIN
    DELETE FROM conversations_fts WHERE docid = old.id;
END;`

// timeLayout is the fixed-width ISO-8601 UTC format stored in the timestamp
// column. Fixed width keeps lexicographic order chronological.
const timeLayout = "2006-01-02T15:04:05.000Z"

const previewLen = 200

type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

func New(dbPath string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open conversations db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init conversations schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Append records one immutable turn with a server-assigned timestamp.
func (s *Store) Append(userID, userMessage, assistantResponse string) error {
	ts := time.Now().UTC().Format(timeLayout)
	_, err := s.db.Exec(`
        INSERT INTO conversations (user_id, user_message, assistant_response, timestamp)
        VALUES (?, ?, ?, ?)`,
		userID, userMessage, assistantResponse, ts)
	if err != nil {
		return fmt.Errorf("append turn for %q: %w", userID, err)
	}
	return nil
}

// Recent returns up to limit turns for the user whose message or response
// matches the query: full-text match first, case-insensitive substring as
// the fallback. Lookup failures yield an empty slice, never an error.
func (s *Store) Recent(userID, query string, limit int) []models.Turn {
	if turns := s.recentFTS(userID, query, limit); len(turns) > 0 {
		return turns
	}
	return s.recentLike(userID, query, limit)
}

func (s *Store) recentFTS(userID, query string, limit int) []models.Turn {
	if query == "" {
		return nil
	}
	rows, err := s.db.Query(`
        SELECT c.id, c.user_id, c.user_message, c.assistant_response, c.timestamp
        FROM conversations c
        JOIN conversations_fts fts ON c.id = fts.docid
        WHERE c.user_id = ? AND conversations_fts MATCH ?
        ORDER BY c.timestamp DESC, c.id DESC
        LIMIT ?`,
		userID, query, limit)
	if err != nil {
		s.logger.Debug("FTS search unavailable, falling back to substring search",
			zap.Error(err))
		return nil
	}
	defer rows.Close()
	return s.scanTurns(rows)
}

func (s *Store) recentLike(userID, query string, limit int) []models.Turn {
	like := "%" + query + "%"
	rows, err := s.db.Query(`
        SELECT id, user_id, user_message, assistant_response, timestamp
        FROM conversations
        WHERE user_id = ? AND (user_message LIKE ? OR assistant_response LIKE ?)
        ORDER BY timestamp DESC, id DESC
        LIMIT ?`,
		userID, like, like, limit)
	if err != nil {
		s.logger.Warn("conversation search failed", zap.String("userId", userID), zap.Error(err))
		return nil
	}
	defer rows.Close()
	return s.scanTurns(rows)
}

func (s *Store) scanTurns(rows *sql.Rows) []models.Turn {
	turns := make([]models.Turn, 0)
	for rows.Next() {
		var t models.Turn
		var ts string
		if err := rows.Scan(&t.ID, &t.UserID, &t.UserMessage, &t.AssistantResponse, &ts); err != nil {
			s.logger.Warn("turn scan failed", zap.Error(err))
			continue
		}
		t.Timestamp, _ = time.Parse(timeLayout, ts)
		turns = append(turns, t)
	}
	return turns
}

// All returns every turn for the user, newest first, with responses
// truncated to a 200-character preview for list display.
func (s *Store) All(userID string) []models.ConversationListItem {
	rows, err := s.db.Query(`
        SELECT id, user_message, assistant_response, timestamp
        FROM conversations
        WHERE user_id = ?
        ORDER BY timestamp DESC, id DESC`,
		userID)
	if err != nil {
		s.logger.Warn("history lookup failed", zap.String("userId", userID), zap.Error(err))
		return []models.ConversationListItem{}
	}
	defer rows.Close()

	items := make([]models.ConversationListItem, 0)
	for rows.Next() {
		var item models.ConversationListItem
		var response string
		if err := rows.Scan(&item.ID, &item.UserMessage, &response, &item.Timestamp); err != nil {
			s.logger.Warn("history scan failed", zap.Error(err))
			continue
		}
		if len(response) > previewLen {
			response = response[:previewLen]
		}
		item.AssistantPreview = response
		items = append(items, item)
	}
	return items
}

// Count reports the number of stored turns for a user. Debug aid.
func (s *Store) Count(userID string) int {
	var n int
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM conversations WHERE user_id = ?`, userID).Scan(&n); err != nil {
		s.logger.Warn("conversation count failed", zap.String("userId", userID), zap.Error(err))
		return 0
	}
	return n
}
