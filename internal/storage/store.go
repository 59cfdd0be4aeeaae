package storage

import (
	"context"
	"time"
)

// Отправители сообщений в журнале.
const (
	SenderHuman = "Human"
	SenderAI    = "AI"
)

// ChatMessage одно сообщение журнала. После записи не изменяется.
type ChatMessage struct {
	ID        uint      `json:"id"`
	SessionID string    `json:"session_id"`
	Sender    string    `json:"sender"`    // SenderHuman или SenderAI
	Content   string    `json:"content"`   // текст сообщения
	Timestamp time.Time `json:"timestamp"` // время записи
}

// SessionName запись реестра имён сессий.
type SessionName struct {
	SessionID string    `json:"session_id"`
	ChatName  string    `json:"chat_name"`
	CreatedAt time.Time `json:"created_at"`
}

// Store долговременное хранилище журнала сообщений и имён сессий.
// Вызовы синхронные, без повторов и без координации между собой.
type Store interface {
	// AppendMessage дописывает сообщение в журнал сессии.
	AppendMessage(ctx context.Context, sessionID, sender, content string, timestamp time.Time) error

	// ListMessages возвращает сообщения сессии в хронологическом порядке.
	// Для неизвестной сессии возвращает пустой срез без ошибки.
	ListMessages(ctx context.Context, sessionID string) ([]ChatMessage, error)

	// DeleteSessionMessages удаляет все сообщения сессии. Идемпотентен.
	DeleteSessionMessages(ctx context.Context, sessionID string) error

	// UpsertSessionName создаёт запись имени сессии или обновляет имя существующей.
	// Время создания существующей записи сохраняется.
	UpsertSessionName(ctx context.Context, sessionID, name string) error

	// ListSessionNames возвращает все известные сессии, новые первыми.
	ListSessionNames(ctx context.Context) ([]SessionName, error)

	// DeleteSession удаляет сообщения и запись имени сессии.
	DeleteSession(ctx context.Context, sessionID string) error

	Close() error
}
