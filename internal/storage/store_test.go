package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

// storeFactory создаёт хранилище с управляемыми часами для имён сессий.
type storeFactory func(t *testing.T, now func() time.Time) Store

func newSQLiteForTest(t *testing.T, now func() time.Time) Store {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	s.now = now
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newMemoryForTest(t *testing.T, now func() time.Time) Store {
	t.Helper()
	s := NewMemoryStore()
	s.now = now
	return s
}

var factories = map[string]storeFactory{
	"sqlite": newSQLiteForTest,
	"memory": newMemoryForTest,
}

func TestStore_AppendAndListRoundTrip(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			store := factory(t, time.Now)
			ctx := context.Background()
			base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

			const n = 7
			for i := 0; i < n; i++ {
				sender := SenderHuman
				if i%2 == 1 {
					sender = SenderAI
				}
				ts := base.Add(time.Duration(i) * time.Second)
				if err := store.AppendMessage(ctx, "s1", sender, fmt.Sprintf("m%d", i), ts); err != nil {
					t.Fatalf("AppendMessage failed: %v", err)
				}
			}
			if err := store.AppendMessage(ctx, "s2", SenderHuman, "other", base); err != nil {
				t.Fatalf("AppendMessage failed: %v", err)
			}

			msgs, err := store.ListMessages(ctx, "s1")
			if err != nil {
				t.Fatalf("ListMessages failed: %v", err)
			}
			if len(msgs) != n {
				t.Fatalf("expected %d messages, got %d", n, len(msgs))
			}
			for i, msg := range msgs {
				if msg.Content != fmt.Sprintf("m%d", i) {
					t.Fatalf("message %d out of order: %q", i, msg.Content)
				}
				if msg.SessionID != "s1" {
					t.Fatalf("unexpected session id: %s", msg.SessionID)
				}
				if !msg.Timestamp.Equal(base.Add(time.Duration(i) * time.Second)) {
					t.Fatalf("unexpected timestamp for %d: %v", i, msg.Timestamp)
				}
			}
			if msgs[0].Sender != SenderHuman || msgs[1].Sender != SenderAI {
				t.Fatalf("unexpected senders: %s, %s", msgs[0].Sender, msgs[1].Sender)
			}
		})
	}
}

func TestStore_SameTimestampKeepsInsertionOrder(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			store := factory(t, time.Now)
			ctx := context.Background()
			ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

			for _, content := range []string{"first", "second", "third"} {
				if err := store.AppendMessage(ctx, "s1", SenderHuman, content, ts); err != nil {
					t.Fatalf("AppendMessage failed: %v", err)
				}
			}
			msgs, err := store.ListMessages(ctx, "s1")
			if err != nil {
				t.Fatalf("ListMessages failed: %v", err)
			}
			if len(msgs) != 3 || msgs[0].Content != "first" || msgs[2].Content != "third" {
				t.Fatalf("unexpected order: %+v", msgs)
			}
		})
	}
}

func TestStore_ListUnknownSessionIsEmpty(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			store := factory(t, time.Now)
			msgs, err := store.ListMessages(context.Background(), "missing")
			if err != nil {
				t.Fatalf("ListMessages failed: %v", err)
			}
			if len(msgs) != 0 {
				t.Fatalf("expected no messages, got %d", len(msgs))
			}
		})
	}
}

func TestStore_DeleteSessionMessagesIsIdempotent(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			store := factory(t, time.Now)
			ctx := context.Background()

			if err := store.DeleteSessionMessages(ctx, "empty"); err != nil {
				t.Fatalf("DeleteSessionMessages on empty session failed: %v", err)
			}

			if err := store.AppendMessage(ctx, "s1", SenderHuman, "hello", time.Now()); err != nil {
				t.Fatalf("AppendMessage failed: %v", err)
			}
			if err := store.UpsertSessionName(ctx, "s1", "hello"); err != nil {
				t.Fatalf("UpsertSessionName failed: %v", err)
			}
			for i := 0; i < 2; i++ {
				if err := store.DeleteSessionMessages(ctx, "s1"); err != nil {
					t.Fatalf("DeleteSessionMessages failed: %v", err)
				}
			}

			msgs, err := store.ListMessages(ctx, "s1")
			if err != nil {
				t.Fatalf("ListMessages failed: %v", err)
			}
			if len(msgs) != 0 {
				t.Fatalf("expected zero messages, got %d", len(msgs))
			}

			// Имя сессии переживает очистку истории.
			names, err := store.ListSessionNames(ctx)
			if err != nil {
				t.Fatalf("ListSessionNames failed: %v", err)
			}
			if len(names) != 1 {
				t.Fatalf("expected session name to survive, got %d", len(names))
			}
		})
	}
}

func TestStore_UpsertSessionNameKeepsCreatedAt(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
			clock := func() time.Time { return now }
			store := factory(t, clock)
			ctx := context.Background()

			if err := store.UpsertSessionName(ctx, "s1", "first name"); err != nil {
				t.Fatalf("UpsertSessionName failed: %v", err)
			}
			now = now.Add(time.Hour)
			if err := store.UpsertSessionName(ctx, "s1", "second name"); err != nil {
				t.Fatalf("UpsertSessionName failed: %v", err)
			}

			names, err := store.ListSessionNames(ctx)
			if err != nil {
				t.Fatalf("ListSessionNames failed: %v", err)
			}
			if len(names) != 1 {
				t.Fatalf("expected 1 session, got %d", len(names))
			}
			if names[0].ChatName != "second name" {
				t.Fatalf("expected name to be updated, got %q", names[0].ChatName)
			}
			want := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
			if !names[0].CreatedAt.Equal(want) {
				t.Fatalf("expected created_at %v, got %v", want, names[0].CreatedAt)
			}
		})
	}
}

func TestStore_ListSessionNamesNewestFirst(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
			store := factory(t, func() time.Time { return now })
			ctx := context.Background()

			for _, id := range []string{"old", "middle", "new"} {
				if err := store.UpsertSessionName(ctx, id, "chat "+id); err != nil {
					t.Fatalf("UpsertSessionName failed: %v", err)
				}
				now = now.Add(time.Minute)
			}

			names, err := store.ListSessionNames(ctx)
			if err != nil {
				t.Fatalf("ListSessionNames failed: %v", err)
			}
			if len(names) != 3 {
				t.Fatalf("expected 3 sessions, got %d", len(names))
			}
			if names[0].SessionID != "new" || names[1].SessionID != "middle" || names[2].SessionID != "old" {
				t.Fatalf("unexpected order: %+v", names)
			}
		})
	}
}

func TestStore_DeleteSessionRemovesMessagesAndName(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			store := factory(t, time.Now)
			ctx := context.Background()

			if err := store.AppendMessage(ctx, "s1", SenderHuman, "hello", time.Now()); err != nil {
				t.Fatalf("AppendMessage failed: %v", err)
			}
			if err := store.UpsertSessionName(ctx, "s1", "hello"); err != nil {
				t.Fatalf("UpsertSessionName failed: %v", err)
			}
			if err := store.UpsertSessionName(ctx, "s2", "keep me"); err != nil {
				t.Fatalf("UpsertSessionName failed: %v", err)
			}

			if err := store.DeleteSession(ctx, "s1"); err != nil {
				t.Fatalf("DeleteSession failed: %v", err)
			}

			msgs, err := store.ListMessages(ctx, "s1")
			if err != nil {
				t.Fatalf("ListMessages failed: %v", err)
			}
			if len(msgs) != 0 {
				t.Fatalf("expected messages to be deleted, got %d", len(msgs))
			}
			names, err := store.ListSessionNames(ctx)
			if err != nil {
				t.Fatalf("ListSessionNames failed: %v", err)
			}
			if len(names) != 1 || names[0].SessionID != "s2" {
				t.Fatalf("expected only s2 to remain, got %+v", names)
			}
		})
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")
	ctx := context.Background()

	first, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	if err := first.AppendMessage(ctx, "s1", SenderHuman, "persist me", time.Now()); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })

	msgs, err := reopened.ListMessages(ctx, "s1")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "persist me" {
		t.Fatalf("expected persisted message, got %+v", msgs)
	}
}

func TestSQLiteStore_ConnectionPragmas(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	var journalMode string
	if err := s.db.Raw("PRAGMA journal_mode").Scan(&journalMode).Error; err != nil {
		t.Fatalf("read journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Fatalf("expected wal journal mode, got %q", journalMode)
	}

	var busyTimeout int
	if err := s.db.Raw("PRAGMA busy_timeout").Scan(&busyTimeout).Error; err != nil {
		t.Fatalf("read busy_timeout: %v", err)
	}
	if busyTimeout != 5000 {
		t.Fatalf("expected busy_timeout 5000, got %d", busyTimeout)
	}
}
