package conversation

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 存储层只交付副本：未Save的修改对其他读取方不可见
func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10)
	require.NoError(t, store.Save(ctx, NewSession("s1", 10)))

	first, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	first.AddMessage("user", "hello", IntentGreeting)
	first.NoticeShown = true

	second, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, second.History)
	assert.False(t, second.NoticeShown)

	require.NoError(t, store.Save(ctx, first))
	third, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, third.History, 1)
	assert.True(t, third.NoticeShown)
}

func TestMemoryStoreAllReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10)
	s := NewSession("s1", 10)
	s.AddMessage("user", "hello", IntentGreeting)
	require.NoError(t, store.Save(ctx, s))

	all, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	all[0].History[0].Content = "mutated"

	reread, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "hello", reread.History[0].Content)
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := NewMemoryStore(10)
	session, err := store.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, session)
}

// 不同会话的并发请求与清理扫描、统计互不竞争：
// 每个请求处理自己的会话副本，扫描和统计只看存储快照
func TestConcurrentSessionsAndStats(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	var wg sync.WaitGroup
	for _, id := range []string{"sA", "sB"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				unlock := m.LockSession(id)
				_, err := m.Process(ctx, "what is vitiligo", id)
				unlock()
				assert.NoError(t, err)
			}
		}(id)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 25; i++ {
			_, err := m.SessionStats(ctx)
			assert.NoError(t, err)
		}
	}()

	wg.Wait()

	stats, err := m.SessionStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ActiveSessions)
	assert.Equal(t, 20, stats.TotalMessages)
}
