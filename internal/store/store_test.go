// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "chat.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

type roleContent struct {
	Role    Role
	Content string
}

func pairs(msgs []Message) []roleContent {
	out := make([]roleContent, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, roleContent{m.Role, m.Content})
	}
	return out
}

func TestOpenAppliesMigrations(t *testing.T) {
	st := newTestStore(t)

	version, err := st.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
}

func TestOpenFailsWhenParentIsFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	_, err := Open(filepath.Join(blocker, "chat.db"))
	require.Error(t, err)
	assert.True(t, IsStorageError(err), "expected StorageError, got %T: %v", err, err)
}

func TestCreateChatFirstIDIsOne(t *testing.T) {
	st := newTestStore(t)

	id, err := st.CreateChat(context.Background(), "Demo")
	require.NoError(t, err)
	assert.Equal(t, ChatID(1), id)

	chat, err := st.GetChat(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Demo", chat.Title)
	assert.False(t, chat.CreatedAt.IsZero())
}

func TestCreateChatRejectsEmptyTitle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for _, title := range []string{"", "   ", "\t\n"} {
		_, err := st.CreateChat(ctx, title)
		assert.ErrorIs(t, err, ErrValidation, "title %q", title)
	}

	chats, err := st.ListChats(ctx)
	require.NoError(t, err)
	assert.Empty(t, chats)
}

func TestCreateChatNormalizesTitle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// "e" followed by a combining acute accent normalizes to U+00E9.
	id, err := st.CreateChat(ctx, "  cafe\u0301  ")
	require.NoError(t, err)

	chat, err := st.GetChat(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "caf\u00e9", chat.Title)
}

func TestListChatsNewestFirst(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for _, title := range []string{"first", "second", "third"} {
		_, err := st.CreateChat(ctx, title)
		require.NoError(t, err)
	}

	chats, err := st.ListChats(ctx)
	require.NoError(t, err)

	var titles []string
	for _, c := range chats {
		titles = append(titles, c.Title)
	}
	if diff := cmp.Diff([]string{"third", "second", "first"}, titles); diff != "" {
		t.Errorf("ListChats order mismatch (-want +got):\n%s", diff)
	}
}

func TestGetChatNotFound(t *testing.T) {
	st := newTestStore(t)

	_, err := st.GetChat(context.Background(), 42)
	assert.ErrorIs(t, err, ErrChatNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendMessageUnknownChat(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.AppendMessage(ctx, 99, RoleUser, "hello", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChatNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, IsStorageError(err))

	msgs, err := st.ListMessages(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestAppendMessageRejectsUnknownRole(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	chatID, err := st.CreateChat(ctx, "roles")
	require.NoError(t, err)

	_, err = st.AppendMessage(ctx, chatID, Role("system"), "nope", nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestListMessagesOrderAndAttachments(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	chatID, err := st.CreateChat(ctx, "Demo")
	require.NoError(t, err)

	png := []byte{0x89, 'P', 'N', 'G', 1, 2, 3}
	userID, err := st.AppendMessage(ctx, chatID, RoleUser, "ping", png)
	require.NoError(t, err)
	agentID, err := st.AppendMessage(ctx, chatID, RoleAgent, "pong", nil)
	require.NoError(t, err)

	msgs, err := st.ListMessages(ctx, chatID)
	require.NoError(t, err)

	want := []roleContent{{RoleUser, "ping"}, {RoleAgent, "pong"}}
	if diff := cmp.Diff(want, pairs(msgs)); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, msgs[0].HasAttachment)
	assert.False(t, msgs[1].HasAttachment)

	blob, err := st.Attachment(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, png, blob)

	blob, err = st.Attachment(ctx, agentID)
	require.NoError(t, err)
	assert.Nil(t, blob)

	_, err = st.Attachment(ctx, 1000)
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestMessagesAreScopedToChat(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	a, err := st.CreateChat(ctx, "a")
	require.NoError(t, err)
	b, err := st.CreateChat(ctx, "b")
	require.NoError(t, err)

	_, err = st.AppendMessage(ctx, a, RoleUser, "for a", nil)
	require.NoError(t, err)
	_, err = st.AppendMessage(ctx, b, RoleUser, "for b", nil)
	require.NoError(t, err)

	msgs, err := st.ListMessages(ctx, a)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "for a", msgs[0].Content)
}

func TestTimestampsNeverGoBackwards(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(time.Minute), base.Add(-time.Hour), base.Add(2 * time.Minute)}
	var mu sync.Mutex
	i := 0
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := times[i%len(times)]
		i++
		return t
	}

	st := newTestStore(t, WithClock(func() time.Time { return base }))
	ctx := context.Background()
	chatID, err := st.CreateChat(ctx, "clock")
	require.NoError(t, err)
	st.now = clock

	for n := 0; n < len(times); n++ {
		_, err := st.AppendMessage(ctx, chatID, RoleUser, fmt.Sprintf("m%d", n), nil)
		require.NoError(t, err)
	}

	msgs, err := st.ListMessages(ctx, chatID)
	require.NoError(t, err)
	for n := 1; n < len(msgs); n++ {
		assert.Greater(t, msgs[n].ID, msgs[n-1].ID)
		assert.False(t, msgs[n].Timestamp.Before(msgs[n-1].Timestamp),
			"message %d timestamp %v before %v", n, msgs[n].Timestamp, msgs[n-1].Timestamp)
	}
}

func TestIDsStrictlyIncreaseAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")
	ctx := context.Background()

	st, err := Open(path)
	require.NoError(t, err)

	var lastChat ChatID
	var lastMsg MessageID
	for i := 0; i < 20; i++ {
		chatID, err := st.CreateChat(ctx, fmt.Sprintf("chat %d", i))
		require.NoError(t, err)
		require.Greater(t, chatID, lastChat)
		lastChat = chatID

		for j := 0; j < 5; j++ {
			msgID, err := st.AppendMessage(ctx, chatID, RoleUser, "x", nil)
			require.NoError(t, err)
			require.Greater(t, msgID, lastMsg)
			lastMsg = msgID
		}
	}
	require.NoError(t, st.Close())

	st, err = Open(path)
	require.NoError(t, err)
	defer st.Close()

	chatID, err := st.CreateChat(ctx, "after reopen")
	require.NoError(t, err)
	assert.Greater(t, chatID, lastChat)

	msgID, err := st.AppendMessage(ctx, chatID, RoleAgent, "still here", nil)
	require.NoError(t, err)
	assert.Greater(t, msgID, lastMsg)

	chats, err := st.ListChats(ctx)
	require.NoError(t, err)
	assert.Len(t, chats, 21)
}

func TestConcurrentAppendsAreAtomic(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	chatID, err := st.CreateChat(ctx, "busy")
	require.NoError(t, err)

	const writers, perWriter = 8, 25
	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for n := 0; n < perWriter; n++ {
				content := fmt.Sprintf("w%d-%03d", w, n)
				if _, err := st.AppendMessage(ctx, chatID, RoleUser, content, nil); err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("append failed: %v", err)
	}

	msgs, err := st.ListMessages(ctx, chatID)
	require.NoError(t, err)
	require.Len(t, msgs, writers*perWriter)

	// Each writer's messages appear in the order that writer issued them.
	lastSeen := make(map[string]string)
	for _, m := range msgs {
		writer := m.Content[:2]
		if prev, ok := lastSeen[writer]; ok && prev >= m.Content {
			t.Errorf("writer %s out of order: %s after %s", writer, m.Content, prev)
		}
		lastSeen[writer] = m.Content
	}
}

func TestServersKeepDuplicatesInOrder(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for _, addr := range []string{"ws://tool1", " ws://tool2 ", "ws://tool1"} {
		_, err := st.RegisterServer(ctx, addr)
		require.NoError(t, err)
	}

	_, err := st.RegisterServer(ctx, "  ")
	assert.ErrorIs(t, err, ErrValidation)

	servers, err := st.ListServers(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"ws://tool1", "ws://tool2", "ws://tool1"}, servers); diff != "" {
		t.Errorf("servers mismatch (-want +got):\n%s", diff)
	}
}

func TestEnsureDefaultChat(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.EnsureDefaultChat(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, ChatID(1), id)

	chat, err := st.GetChat(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, DefaultChatTitle, chat.Title)

	again, err := st.EnsureDefaultChat(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, id, again)

	newer, err := st.CreateChat(ctx, "newer")
	require.NoError(t, err)
	latest, err := st.EnsureDefaultChat(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, newer, latest)

	chats, err := st.ListChats(ctx)
	require.NoError(t, err)
	assert.Len(t, chats, 2)
}

func TestClosedStoreReturnsStorageError(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	require.NoError(t, st.Close())

	_, err = st.CreateChat(context.Background(), "late")
	require.Error(t, err)
	assert.True(t, IsStorageError(err))

	var se *StorageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "create chat", se.Op)
}
