package engine

import (
	"regexp"
	"strings"
)

// Channel 响应投递通道，决定总长度上限
type Channel string

const (
	ChannelWeb       Channel = "web"
	ChannelMessaging Channel = "messaging"
)

// TotalCeiling 通道的绝对总长度上限
func (c Channel) TotalCeiling() int {
	if c == ChannelMessaging {
		return 4000
	}
	return 2000
}

// minSentenceLen 句子最小长度，防止把缩写点误判成句尾
const minSentenceLen = 10

// 模型输出里的免责声明式开场白
var disclaimerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(?:based on|according to|as per) (?:the\s+)?(?:context|documents?|information|provided information|available information)[:,]?\s*`),
	regexp.MustCompile(`(?i)^from (?:the\s+)?context i have[:,]?\s*`),
	regexp.MustCompile(`(?i)^according to my (?:knowledge|understanding)[:,]?\s*`),
}

var sentenceStartRe = regexp.MustCompile(`([.!?]\s+)([^.!?]{0,200})`)

// FinalizeResult 终稿处理结果
type FinalizeResult struct {
	Text string
	// Truncated 为真表示按句子边界截断过
	Truncated bool
	// OversizedSentence 为真表示唯一能保留的首句本身超出预算
	OversizedSentence bool
	// NoticeAttached 为真表示补充信息已附加，调用方应标记会话
	NoticeAttached bool
}

// Finisher 生成文本的终稿处理：去免责声明、按句截断、
// 补终止标点、按需附加补充信息。任何输入都不报错。
type Finisher struct {
	noticeText string
}

// NewFinisher 创建终稿处理器
func NewFinisher(noticeText string) *Finisher {
	return &Finisher{noticeText: noticeText}
}

// CharBudget 各风格的字符预算；试验资料回复用更大的专属预算
func CharBudget(style ResponseStyle, isTrial bool) int {
	if isTrial {
		return 4000
	}
	switch style {
	case StyleBrief:
		return 1000
	case StyleDetailed:
		return 2500
	default:
		return 1500
	}
}

// MaxTokens 各风格的生成token上限
func MaxTokens(style ResponseStyle, isTrial bool) int {
	if isTrial {
		return 1200
	}
	switch style {
	case StyleBrief:
		return 300
	case StyleDetailed:
		return 800
	default:
		return 500
	}
}

// Finalize 执行完整的终稿流程。noticeDue指示本次是否应附加
// 补充信息（一次性门控由会话层判定，标记回写由调用方负责）。
func (f *Finisher) Finalize(raw string, style ResponseStyle, isTrial bool,
	channel Channel, noticeDue bool) FinalizeResult {

	text := SanitizeDisclaimer(strings.TrimSpace(raw), false)

	budget := CharBudget(style, isTrial)
	result := truncateToSentences(text, budget)
	result.Text = ensureTerminalPunctuation(result.Text)

	if noticeDue && f.noticeText != "" {
		notice := "\n\n" + f.noticeText
		ceiling := channel.TotalCeiling()

		if len(result.Text)+len(notice) > ceiling {
			// 为补充信息腾出空间：按缩小后的预算重新截断
			reduced := ceiling - len(notice)
			if reduced > 0 {
				shrunk := truncateToSentences(result.Text, reduced)
				shrunk.Text = ensureTerminalPunctuation(shrunk.Text)
				result.Text = shrunk.Text
				result.Truncated = result.Truncated || shrunk.Truncated
				result.OversizedSentence = shrunk.OversizedSentence
			}
		}
		result.Text += notice
		result.NoticeAttached = true
	}

	return result
}

// SanitizeDisclaimer 去掉"based on the context"之类的元话语。
// onlyLeading为真时只处理文本开头，流式首包用。
func SanitizeDisclaimer(text string, onlyLeading bool) string {
	if text == "" {
		return text
	}

	cleaned := removeDisclaimerAtStart(text)
	if onlyLeading {
		return cleaned
	}

	// 句子开头也可能重新冒出来
	return sentenceStartRe.ReplaceAllStringFunc(cleaned, func(m string) string {
		sub := sentenceStartRe.FindStringSubmatch(m)
		return sub[1] + removeDisclaimerAtStart(sub[2])
	})
}

func removeDisclaimerAtStart(s string) string {
	trimmed := strings.TrimLeft(s, " \t\n")
	prefix := s[:len(s)-len(trimmed)]
	for _, pat := range disclaimerPatterns {
		if loc := pat.FindStringIndex(trimmed); loc != nil {
			trimmed = strings.TrimLeft(trimmed[loc[1]:], " \t\n")
		}
	}
	return prefix + trimmed
}

// splitSentences 按句尾标点切句，短于最小长度的片段并入下一句
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			s := strings.TrimSpace(current.String())
			if len(s) > minSentenceLen {
				sentences = append(sentences, s)
				current.Reset()
			}
		}
	}
	return sentences
}

// truncateToSentences 超预算时贪心累积完整句子；
// 一句都装不下时保留首句（即便超预算也不切半句）。
func truncateToSentences(text string, budget int) FinalizeResult {
	if len(text) <= budget {
		return FinalizeResult{Text: text}
	}

	sentences := splitSentences(text)
	var sb strings.Builder
	for _, s := range sentences {
		if sb.Len()+len(s) > budget {
			break
		}
		sb.WriteString(s)
		sb.WriteString(" ")
	}

	out := strings.TrimSpace(sb.String())
	if out == "" && len(sentences) > 0 {
		return FinalizeResult{Text: sentences[0], Truncated: true, OversizedSentence: true}
	}
	return FinalizeResult{Text: out, Truncated: true}
}

// ensureTerminalPunctuation 保证结尾是句尾标点：
// 结尾不完整时回退到最后一个句尾标点，把残句整段丢掉；
// 全文没有完整句子时去掉尾部逗号分号后补句号。
func ensureTerminalPunctuation(text string) string {
	if text == "" {
		return text
	}
	last := text[len(text)-1]
	if last == '.' || last == '!' || last == '?' {
		return text
	}

	if cut := strings.LastIndexAny(text, ".!?"); cut > 0 {
		return text[:cut+1]
	}

	return strings.TrimRight(text, ",; \t\n") + "."
}
