package conversation

import (
	"context"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aihub/ragbot-go/internal/engine"
	"github.com/aihub/ragbot-go/internal/logger"
)

var greetingResponses = []string{
	"Hello! I'm here to help answer your medical questions. What would you like to know?",
	"Hi there! How can I assist you with your health-related queries today?",
	"Greetings! I'm ready to help with any medical information you need. What's on your mind?",
	"Hello! Feel free to ask me anything about health and medical topics.",
}

var farewellResponses = []string{
	"Goodbye! Take care and stay healthy!",
	"Thank you for chatting. Have a great day!",
	"Bye! Feel free to come back if you have more questions.",
	"Take care! Wishing you good health!",
}

const helpResponse = "I can help you with medical information! You can ask me about:\n" +
	"• Disease definitions and explanations\n" +
	"• Symptoms and signs\n" +
	"• Treatment options\n" +
	"• Causes and risk factors\n" +
	"What would you like to know?"

// 临床试验/免费咨询相关查询不展示社区链接，走另一套支持渠道
var trialKeywords = []string{
	"nsc", "national skin centre", "trial", "free", "cream",
	"ruxolitinib", "jak", "sign up", "consultation", "subsidised",
	"eligible", "referral", "polyclinic", "chas",
}

var vitiligoKeywords = []string{
	"vitiligo", "white spot", "white spots", "white patch", "white patches",
	"pigment", "melanocyte", "melanin", "skin condition", "depigmentation",
	"leucoderma", "loss of color", "skin discoloration", "pale patches",
	"autoimmune skin", "skin pigment loss",
}

// 没有直接提到关键词时的症状描述改写
var vitiligoPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(white|pale)\s+(spots?|patches?)\s+on\s+(skin|body)`),
	regexp.MustCompile(`\bloss\s+of\s+(color|pigment)`),
	regexp.MustCompile(`\bskin\s+(turning|becoming)\s+white`),
	regexp.MustCompile(`\b(patches?)\s+of\s+(white|pale)\s+skin`),
}

var followUpIndicators = []string{
	"more", "else", "also", "and", "what about",
	"tell me more", "continue", "go on", "that",
}

var referentialPronouns = []string{"it", "this", "that", "they"}

// OutcomeKind 消息处理分支
type OutcomeKind int

const (
	OutcomeGreeting OutcomeKind = iota
	OutcomeFarewell
	OutcomeHelpRequest
	OutcomeRagAnswer
)

// Outcome 消息处理结果。快速回复分支直接带上回复文本，
// OutcomeRagAnswer分支由调用方走检索生成流水线。
type Outcome struct {
	Kind          OutcomeKind
	Session       *Session
	Intent        Intent
	Confidence    float64
	Style         engine.ResponseStyle
	QuickResponse string
	IsFollowUp    bool
}

// Manager 会话管理器：意图路由、历史维护、一次性补充信息门控
type Manager struct {
	classifier *IntentClassifier
	store      SessionStore
	timeout    time.Duration
	maxHistory int

	// 同一会话的并发请求串行化，防止历史乱序与一次性标记竞态
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewManager 创建会话管理器
func NewManager(store SessionStore, timeoutMinutes, maxHistory int) *Manager {
	if timeoutMinutes <= 0 {
		timeoutMinutes = 30
	}
	return &Manager{
		classifier: NewIntentClassifier(),
		store:      store,
		timeout:    time.Duration(timeoutMinutes) * time.Minute,
		maxHistory: maxHistory,
		locks:      make(map[string]*sync.Mutex),
	}
}

// Classifier 暴露意图分类器
func (m *Manager) Classifier() *IntentClassifier {
	return m.classifier
}

// LockSession 取得指定会话的互斥锁，返回解锁函数
func (m *Manager) LockSession(id string) func() {
	m.locksMu.Lock()
	lock, ok := m.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[id] = lock
	}
	m.locksMu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// GetOrCreateSession 取或建会话。id为空时生成新id；
// 查找前惰性清理过期会话（不用后台定时器）。
func (m *Manager) GetOrCreateSession(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		id = uuid.NewString()[:12]
	}

	m.sweepExpired(ctx)

	session, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session != nil && !session.Expired(m.timeout) {
		return session, nil
	}

	session = NewSession(id, m.maxHistory)
	if err := m.store.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (m *Manager) sweepExpired(ctx context.Context) {
	sessions, err := m.store.All(ctx)
	if err != nil {
		logger.Warn("session sweep failed", zap.Error(err))
		return
	}
	for _, s := range sessions {
		if s.Expired(m.timeout) {
			if err := m.store.Delete(ctx, s.ID); err != nil {
				logger.Warn("session delete failed", zap.String("session", s.ID), zap.Error(err))
				continue
			}
			m.locksMu.Lock()
			delete(m.locks, s.ID)
			m.locksMu.Unlock()
		}
	}
}

// IsTrialQuery 是否是临床试验/免费咨询相关查询
func (m *Manager) IsTrialQuery(message string) bool {
	messageLower := strings.ToLower(message)
	for _, kw := range trialKeywords {
		if strings.Contains(messageLower, kw) {
			return true
		}
	}
	return false
}

// IsVitiligoQuery 是否是白癜风相关查询（关键词或症状改写）
func (m *Manager) IsVitiligoQuery(message string) bool {
	messageLower := strings.ToLower(message)
	for _, kw := range vitiligoKeywords {
		if strings.Contains(messageLower, kw) {
			return true
		}
	}
	for _, p := range vitiligoPatterns {
		if p.MatchString(messageLower) {
			return true
		}
	}
	return false
}

// IsFollowUp 是否是对上文的追问
func (m *Manager) IsFollowUp(message string, session *Session) bool {
	messageLower := strings.ToLower(message)

	if len(strings.Fields(message)) < 6 {
		for _, pronoun := range referentialPronouns {
			if strings.Contains(messageLower, pronoun) {
				return true
			}
		}
	}

	for _, indicator := range followUpIndicators {
		if strings.Contains(messageLower, indicator) {
			return true
		}
	}
	return false
}

// ShouldShowNotice 判断是否应附加社区支持链接。
// 每会话只展示一次；试验相关查询不展示；仅主题相关查询展示。
// 返回true被消费后由调用方通过MarkNoticeShown回写标记——
// 这里不自行置位，因为展示与否取决于生成是否成功。
func (m *Manager) ShouldShowNotice(message string, session *Session) bool {
	if session.NoticeShown {
		return false
	}
	if m.IsTrialQuery(message) {
		return false
	}
	return m.IsVitiligoQuery(message)
}

// MarkNoticeShown 补充信息确已附加后回写一次性标记
func (m *Manager) MarkNoticeShown(ctx context.Context, session *Session) error {
	session.NoticeShown = true
	return m.store.Save(ctx, session)
}

// AppendAssistantMessage 记录助手回复并持久化会话
func (m *Manager) AppendAssistantMessage(ctx context.Context, session *Session, content string) error {
	session.AddMessage("assistant", content, "")
	return m.store.Save(ctx, session)
}

// Process 处理一条用户消息：分类意图、更新历史、
// 决定走快速回复还是检索生成
func (m *Manager) Process(ctx context.Context, message, sessionID string) (*Outcome, error) {
	session, err := m.GetOrCreateSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	intent, confidence := m.classifier.Classify(message)
	style := m.classifier.ResponseStyle(message)
	isFollowUp := m.IsFollowUp(message, session)

	session.AddMessage("user", message, intent)
	if err := m.store.Save(ctx, session); err != nil {
		return nil, err
	}

	outcome := &Outcome{
		Kind:       OutcomeRagAnswer,
		Session:    session,
		Intent:     intent,
		Confidence: confidence,
		Style:      style,
		IsFollowUp: isFollowUp,
	}

	if confidence > 0.7 {
		switch intent {
		case IntentGreeting:
			outcome.Kind = OutcomeGreeting
			outcome.QuickResponse = greetingResponses[rand.Intn(len(greetingResponses))]
		case IntentFarewell:
			outcome.Kind = OutcomeFarewell
			outcome.QuickResponse = farewellResponses[rand.Intn(len(farewellResponses))]
		case IntentHelp:
			outcome.Kind = OutcomeHelpRequest
			outcome.QuickResponse = helpResponse
		}
	}

	return outcome, nil
}

// Stats 活跃会话统计
type Stats struct {
	ActiveSessions int            `json:"active_sessions"`
	TotalMessages  int            `json:"total_messages"`
	Sessions       []SessionBrief `json:"sessions"`
}

// SessionBrief 单会话概要
type SessionBrief struct {
	ID           string    `json:"id"`
	Messages     int       `json:"messages"`
	LastActivity time.Time `json:"last_activity"`
}

// SessionStats 汇总当前活跃会话
func (m *Manager) SessionStats(ctx context.Context) (*Stats, error) {
	sessions, err := m.store.All(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{ActiveSessions: len(sessions)}
	for _, s := range sessions {
		stats.TotalMessages += len(s.History)
		stats.Sessions = append(stats.Sessions, SessionBrief{
			ID:           s.ID,
			Messages:     len(s.History),
			LastActivity: s.LastActivity,
		})
	}
	return stats, nil
}
