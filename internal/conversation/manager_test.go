package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	return NewManager(NewMemoryStore(10), 30, 10)
}

func TestGetOrCreateSession(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	created, err := m.GetOrCreateSession(ctx, "")
	require.NoError(t, err)
	assert.Len(t, created.ID, 12)

	// 同一id返回同一会话
	again, err := m.GetOrCreateSession(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)

	named, err := m.GetOrCreateSession(ctx, "session-x")
	require.NoError(t, err)
	assert.Equal(t, "session-x", named.ID)
}

// 过期会话在下次访问时被清掉并重建
func TestSessionExpirySweep(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10)
	m := NewManager(store, 30, 10)

	session, err := m.GetOrCreateSession(ctx, "stale")
	require.NoError(t, err)
	session.AddMessage("user", "hello", IntentGreeting)
	session.LastActivity = time.Now().Add(-31 * time.Minute)
	require.NoError(t, store.Save(ctx, session))

	fresh, err := m.GetOrCreateSession(ctx, "stale")
	require.NoError(t, err)
	assert.Empty(t, fresh.History, "过期会话必须重建为空会话")

	sessions, err := store.All(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestSessionHistoryCap(t *testing.T) {
	s := NewSession("s", 10)
	for i := 0; i < 15; i++ {
		s.AddMessage("user", "msg", IntentQuestion)
	}
	assert.Len(t, s.History, 10)
}

func TestProcessQuickResponses(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	outcome, err := m.Process(ctx, "Hi", "s1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeGreeting, outcome.Kind)
	assert.Equal(t, IntentGreeting, outcome.Intent)
	assert.Equal(t, 0.99, outcome.Confidence)
	assert.Contains(t, greetingResponses, outcome.QuickResponse)

	outcome, err = m.Process(ctx, "bye", "s1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFarewell, outcome.Kind)
	assert.Contains(t, farewellResponses, outcome.QuickResponse)
}

// 低置信度的问候式消息不走快速回复
func TestProcessLowConfidenceGoesToRag(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	outcome, err := m.Process(ctx, "hello, can you tell me what vitiligo actually is", "s1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRagAnswer, outcome.Kind)
	assert.Empty(t, outcome.QuickResponse)
}

func TestProcessRecordsHistory(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	outcome, err := m.Process(ctx, "what is vitiligo", "s1")
	require.NoError(t, err)
	require.Len(t, outcome.Session.History, 1)
	assert.Equal(t, "user", outcome.Session.History[0].Role)
	assert.Equal(t, "what is vitiligo", outcome.Session.History[0].Content)

	require.NoError(t, m.AppendAssistantMessage(ctx, outcome.Session, "It is a skin condition."))
	assert.Len(t, outcome.Session.History, 2)
	assert.Equal(t, "assistant", outcome.Session.History[1].Role)
}

func TestIsTrialQuery(t *testing.T) {
	m := newTestManager()

	assert.True(t, m.IsTrialQuery("how do I sign up at NSC"))
	assert.True(t, m.IsTrialQuery("is the ruxolitinib cream free?"))
	assert.False(t, m.IsTrialQuery("what is vitiligo"))
}

func TestIsVitiligoQuery(t *testing.T) {
	m := newTestManager()

	assert.True(t, m.IsVitiligoQuery("what is vitiligo"))
	assert.True(t, m.IsVitiligoQuery("I have white patches on skin"))
	assert.True(t, m.IsVitiligoQuery("skin turning white on my hands"))
	assert.False(t, m.IsVitiligoQuery("how do I reset my password"))
}

func TestIsFollowUp(t *testing.T) {
	m := newTestManager()
	s := NewSession("s", 10)

	assert.True(t, m.IsFollowUp("what about that?", s))
	assert.True(t, m.IsFollowUp("tell me more", s))
	assert.False(t, m.IsFollowUp("symptoms of depigmentation", s))
}

// 补充信息每会话只展示一次，且由调用方确认附加后才置位
func TestShouldShowNoticeOneShot(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	session, err := m.GetOrCreateSession(ctx, "s1")
	require.NoError(t, err)

	question := "what is vitiligo"
	assert.True(t, m.ShouldShowNotice(question, session))

	// 未回写标记前重复判定仍为真（生成失败时不消耗机会）
	assert.True(t, m.ShouldShowNotice(question, session))

	require.NoError(t, m.MarkNoticeShown(ctx, session))
	assert.False(t, m.ShouldShowNotice(question, session))
	assert.False(t, m.ShouldShowNotice("tell me about white patches", session))

	// 标记已持久化
	reloaded, err := m.GetOrCreateSession(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, reloaded.NoticeShown)
}

// 试验相关与主题无关的查询都不出链接
func TestShouldShowNoticeScope(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	session, err := m.GetOrCreateSession(ctx, "s1")
	require.NoError(t, err)

	assert.False(t, m.ShouldShowNotice("how do I join the trial at NSC", session))
	assert.False(t, m.ShouldShowNotice("what is the weather today", session))
	assert.True(t, m.ShouldShowNotice("do white spots spread", session))
}

func TestSessionStats(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	_, err := m.Process(ctx, "what is vitiligo", "s1")
	require.NoError(t, err)
	_, err = m.Process(ctx, "what causes it", "s1")
	require.NoError(t, err)
	_, err = m.Process(ctx, "hello", "s2")
	require.NoError(t, err)

	stats, err := m.SessionStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ActiveSessions)
	assert.Equal(t, 3, stats.TotalMessages)
	assert.Len(t, stats.Sessions, 2)
}

func TestLockSessionSerializes(t *testing.T) {
	m := newTestManager()

	unlock := m.LockSession("s1")
	acquired := make(chan struct{})
	go func() {
		u := m.LockSession("s1")
		u()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first still held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired after unlock")
	}
}
