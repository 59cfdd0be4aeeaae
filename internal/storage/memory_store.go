package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore простое in-memory хранилище, потокобезопасное.
// Данные теряются при перезапуске процесса.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   uint
	messages map[string][]ChatMessage
	sessions map[string]SessionName
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[string][]ChatMessage),
		sessions: make(map[string]SessionName),
		now:      time.Now,
	}
}

func (s *MemoryStore) AppendMessage(ctx context.Context, sessionID, sender, content string, timestamp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.messages[sessionID] = append(s.messages[sessionID], ChatMessage{
		ID:        s.nextID,
		SessionID: sessionID,
		Sender:    sender,
		Content:   content,
		Timestamp: timestamp.UTC(),
	})
	return nil
}

func (s *MemoryStore) ListMessages(ctx context.Context, sessionID string) ([]ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := make([]ChatMessage, len(s.messages[sessionID]))
	copy(msgs, s.messages[sessionID])
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
	return msgs, nil
}

func (s *MemoryStore) DeleteSessionMessages(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, sessionID)
	return nil
}

func (s *MemoryStore) UpsertSessionName(ctx context.Context, sessionID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[sessionID]
	if !ok {
		rec = SessionName{SessionID: sessionID, CreatedAt: s.now().UTC()}
	}
	rec.ChatName = name
	s.sessions[sessionID] = rec
	return nil
}

func (s *MemoryStore) ListSessionNames(ctx context.Context) ([]SessionName, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]SessionName, 0, len(s.sessions))
	for _, rec := range s.sessions {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, sessionID)
	delete(s.sessions, sessionID)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
