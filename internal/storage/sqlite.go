package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type chatMessageRecord struct {
	ID        uint      `gorm:"primaryKey"`
	SessionID string    `gorm:"index;not null"`
	Sender    string    `gorm:"not null"`
	Content   string    `gorm:"type:text"`
	Timestamp time.Time `gorm:"index"`
}

func (chatMessageRecord) TableName() string { return "chat_messages" }

type chatSessionRecord struct {
	SessionID string `gorm:"primaryKey"`
	ChatName  string
	CreatedAt time.Time
}

func (chatSessionRecord) TableName() string { return "chat_sessions" }

// SQLiteStore реализация Store поверх gorm и SQLite.
type SQLiteStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSQLiteStore открывает (или создаёт) базу по пути path и применяет миграции.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	// SQLite допускает одного писателя, держим одно соединение.
	sqlDB.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if err := db.Exec(pragma).Error; err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	if err := s.db.AutoMigrate(&chatMessageRecord{}, &chatSessionRecord{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	// Старые базы могли содержать сессии без времени создания.
	err := s.db.Model(&chatSessionRecord{}).
		Where("created_at IS NULL").
		Update("created_at", s.now().UTC()).Error
	if err != nil {
		return fmt.Errorf("backfill created_at: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, sessionID, sender, content string, timestamp time.Time) error {
	rec := chatMessageRecord{
		SessionID: sessionID,
		Sender:    sender,
		Content:   content,
		Timestamp: timestamp.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListMessages(ctx context.Context, sessionID string) ([]ChatMessage, error) {
	var recs []chatMessageRecord
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp ASC").
		Order("id ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}

	out := make([]ChatMessage, 0, len(recs))
	for _, r := range recs {
		out = append(out, ChatMessage{
			ID:        r.ID,
			SessionID: r.SessionID,
			Sender:    r.Sender,
			Content:   r.Content,
			Timestamp: r.Timestamp,
		})
	}
	return out, nil
}

func (s *SQLiteStore) DeleteSessionMessages(ctx context.Context, sessionID string) error {
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&chatMessageRecord{}).Error
	if err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpsertSessionName(ctx context.Context, sessionID, name string) error {
	rec := chatSessionRecord{
		SessionID: sessionID,
		ChatName:  name,
		CreatedAt: s.now().UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"chat_name"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("upsert session name: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListSessionNames(ctx context.Context) ([]SessionName, error) {
	var recs []chatSessionRecord
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("select sessions: %w", err)
	}

	out := make([]SessionName, 0, len(recs))
	for _, r := range recs {
		out = append(out, SessionName{
			SessionID: r.SessionID,
			ChatName:  r.ChatName,
			CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&chatMessageRecord{}).Error; err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		if err := tx.Where("session_id = ?", sessionID).Delete(&chatSessionRecord{}).Error; err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
