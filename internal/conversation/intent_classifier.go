package conversation

import (
	"regexp"
	"strings"

	"github.com/aihub/ragbot-go/internal/engine"
)

// Intent 用户消息意图
type Intent string

const (
	IntentGreeting   Intent = "greeting"
	IntentFarewell   Intent = "farewell"
	IntentHelp       Intent = "help_request"
	IntentDetail     Intent = "detail_request"
	IntentBrief      Intent = "brief_request"
	IntentYesNo      Intent = "yes_no_question"
	IntentDefinition Intent = "definition_question"
	IntentSymptom    Intent = "symptom_question"
	IntentTreatment  Intent = "treatment_question"
	IntentCause      Intent = "cause_question"
	IntentQuestion   Intent = "question"
)

// intentPattern 单个意图的正则模式表。
// 得分 = 命中模式数 / 模式总数，便于逐条单测与扩展。
type intentPattern struct {
	intent   Intent
	patterns []*regexp.Regexp
}

var intentTable = []intentPattern{
	{IntentGreeting, compileAll(
		`(?i)\b(hi|hello|hey|greetings?|good\s*(morning|afternoon|evening|day))\b`,
		`(?i)\b(what'?s\s*up|howdy|sup)\b`,
		`(?i)^(hi|hello|hey)[\s!?]*$`,
	)},
	{IntentFarewell, compileAll(
		`(?i)\b(bye|goodbye|see\s*you|farewell|take\s*care|good\s*night)\b`,
		`(?i)\b(thanks?|thank\s*you|appreciate|cheers)\b`,
		`(?i)^(bye|goodbye|thanks?)[\s!?]*$`,
	)},
	{IntentHelp, compileAll(
		`(?i)\b(help|assist|support|guide|how\s*to)\b`,
		`(?i)\b(can\s*you|could\s*you|would\s*you)\s*(help|assist|explain)\b`,
		`(?i)\bwhat\s*can\s*you\s*do\b`,
	)},
	{IntentDetail, compileAll(
		`(?i)\b(tell\s*me\s*more|more\s*details?|elaborate|explain\s*further)\b`,
		`(?i)\b(what\s*about|how\s*about|and)\b.*\?$`,
		`(?i)\b(continue|go\s*on|keep\s*going)\b`,
	)},
	{IntentBrief, compileAll(
		`(?i)\b(brief|summary|summarize|short|quick)\b`,
		`(?i)\b(in\s*short|briefly|tldr|tl;?dr)\b`,
		`(?i)\bjust\s*tell\s*me\b`,
	)},
	{IntentYesNo, compileAll(
		`(?i)^(is|are|was|were|did|does|do|can|could|should|would|will)\b`,
		`\?$`,
	)},
	{IntentDefinition, compileAll(
		`(?i)\bwhat\s*(is|are)\b`,
		`(?i)\bdefine\b`,
		`(?i)\bmean(s|ing)?\b`,
	)},
	{IntentSymptom, compileAll(
		`(?i)\b(symptom|sign|indicator|manifestation)s?\b`,
		`(?i)\bhow\s*(do|does|can)\s*i\s*know\b`,
		`(?i)\blook\s*like\b`,
	)},
	{IntentTreatment, compileAll(
		`(?i)\b(treat|cure|remedy|medicine|therapy|management)\b`,
		`(?i)\bhow\s*to\s*(treat|cure|manage)\b`,
		`(?i)\bwhat\s*helps?\b`,
	)},
	{IntentCause, compileAll(
		`(?i)\b(cause|reason|why|trigger|factor)s?\b`,
		`(?i)\bwhat\s*causes?\b`,
		`(?i)\bwhy\s*does?\b`,
	)},
}

func compileAll(exprs ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		compiled[i] = regexp.MustCompile(e)
	}
	return compiled
}

// 常见问候词，含高频拼写错误
var greetingWords = []string{
	"hi", "hy", "hello", "hey", "helo", "hola", "hai", "hii", "hiii",
	"greetings", "good morning", "good afternoon", "good evening",
	"morning", "afternoon", "evening", "howdy", "sup", "what's up",
}

var farewellWords = []string{"bye", "goodbye", "thanks", "thank you"}

var detailedHints = []string{"detail", "elaborate", "explain fully", "tell me everything", "comprehensive"}

var briefHints = []string{"brief", "summary", "short", "quick", "tldr"}

// IntentClassifier 基于模式表的意图分类器
type IntentClassifier struct{}

// NewIntentClassifier 创建意图分类器
func NewIntentClassifier() *IntentClassifier {
	return &IntentClassifier{}
}

// Classify 返回意图与置信度（0~1）。
// 问候/告别的短消息特判优先于模式表打分。
func (c *IntentClassifier) Classify(message string) (Intent, float64) {
	message = strings.TrimSpace(message)
	messageLower := strings.ToLower(message)

	// 精确匹配问候词
	for _, w := range greetingWords {
		if messageLower == w {
			return IntentGreeting, 0.99
		}
	}

	// 短消息里出现问候/告别词
	if len(strings.Fields(message)) <= 3 {
		for _, w := range greetingWords {
			if strings.Contains(messageLower, w) {
				return IntentGreeting, 0.95
			}
		}
		for _, w := range farewellWords {
			if strings.Contains(messageLower, w) {
				return IntentFarewell, 0.95
			}
		}
	}

	bestIntent := Intent("")
	bestScore := 0.0
	for _, entry := range intentTable {
		matched := 0
		for _, p := range entry.patterns {
			if p.MatchString(message) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		score := float64(matched) / float64(len(entry.patterns))
		if score > bestScore {
			bestScore = score
			bestIntent = entry.intent
		}
	}

	if bestIntent != "" {
		return bestIntent, bestScore
	}

	// 无任何命中时默认当问题处理
	return IntentQuestion, 0.5
}

// ResponseStyle 推断回复详细程度。产品策略是偏向简短：
// 除非用户明确要详细，否则倾向brief。
func (c *IntentClassifier) ResponseStyle(message string) engine.ResponseStyle {
	intent, _ := c.Classify(message)
	messageLower := strings.ToLower(message)

	for _, w := range detailedHints {
		if strings.Contains(messageLower, w) {
			return engine.StyleDetailed
		}
	}
	for _, w := range briefHints {
		if strings.Contains(messageLower, w) {
			return engine.StyleBrief
		}
	}

	switch intent {
	case IntentDetail:
		return engine.StyleDetailed
	case IntentDefinition, IntentYesNo, IntentSymptom, IntentTreatment, IntentCause:
		return engine.StyleBrief
	}

	wordCount := len(strings.Fields(message))
	if wordCount < 8 {
		return engine.StyleBrief
	}
	if wordCount > 20 {
		return engine.StyleModerate
	}
	return engine.StyleBrief
}
