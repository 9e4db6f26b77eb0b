package engine

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/aihub/ragbot-go/internal/logger"
)

// ResponseStyle 回复详细程度
type ResponseStyle string

const (
	StyleBrief    ResponseStyle = "brief"
	StyleModerate ResponseStyle = "moderate"
	StyleDetailed ResponseStyle = "detailed"
)

// faq请求关键词，命中则不过滤FAQ分块
var faqKeywords = []string{"faq", "frequently asked", "common question"}

// BuiltPrompt 构造结果
type BuiltPrompt struct {
	Text    string
	Style   ResponseStyle
	IsTrial bool
}

// PromptBuilder 从检索分块构造生成提示词
type PromptBuilder struct{}

// NewPromptBuilder 创建提示词构造器
func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// IsTrialContent 判断分块集合是否包含临床试验资料：
// 同一分块内同时出现三个标记词
func IsTrialContent(chunks []string) bool {
	for _, chunk := range chunks {
		if strings.Contains(chunk, "JAK") && strings.Contains(chunk, "NSC") &&
			strings.Contains(strings.ToLower(chunk), "trial") {
			return true
		}
	}
	return false
}

// looksLikeFAQ 判断分块是否以FAQ形态为主
func looksLikeFAQ(chunk string) bool {
	if strings.HasPrefix(chunk, "Q:") || strings.HasPrefix(chunk, "FAQs") {
		return true
	}
	head := chunk
	if len(head) > 50 {
		head = head[:50]
	}
	if strings.Contains(head, "FAQs") {
		return true
	}
	return strings.Count(chunk, "Q:") > 1 && strings.Count(chunk, "A:") > 1
}

// Build 构造提示词。试验资料强制detailed并过滤FAQ分块
// （除非用户明确问FAQ）；过滤后为空则回退到原始分块。
func (b *PromptBuilder) Build(query string, chunks []string, style ResponseStyle) BuiltPrompt {
	isTrial := IsTrialContent(chunks)

	if isTrial {
		style = StyleDetailed
		logger.Info("trial content detected, forcing detailed style")

		queryLower := strings.ToLower(query)
		wantsFAQ := false
		for _, kw := range faqKeywords {
			if strings.Contains(queryLower, kw) {
				wantsFAQ = true
				break
			}
		}

		if !wantsFAQ {
			filtered := make([]string, 0, len(chunks))
			for _, chunk := range chunks {
				if !looksLikeFAQ(chunk) {
					filtered = append(filtered, chunk)
				}
			}
			if len(filtered) > 0 {
				chunks = filtered
				logger.Info("filtered out FAQ chunks", zap.Int("remaining", len(chunks)))
			}
		}
	}

	// 按风格截断上下文
	switch style {
	case StyleBrief:
		if len(chunks) > 1 {
			chunks = chunks[:1]
		}
	case StyleModerate:
		if len(chunks) > 2 {
			chunks = chunks[:2]
		}
	}
	// detailed使用全部分块

	var sb strings.Builder
	for i, chunk := range chunks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(fmt.Sprintf("Info %d:\n%s", i+1, chunk))
	}
	context := sb.String()

	var prompt string
	if isTrial {
		prompt = fmt.Sprintf(trialPromptTemplate, context, query)
	} else {
		prompt = fmt.Sprintf(generalPromptTemplate, styleInstruction(style), context, query)
	}

	return BuiltPrompt{Text: prompt, Style: style, IsTrial: isTrial}
}

func styleInstruction(style ResponseStyle) string {
	switch style {
	case StyleBrief:
		return "Answer in 2-3 complete sentences. Maximum 80 words. Always end with proper punctuation."
	case StyleDetailed:
		return "Provide a comprehensive answer with complete explanations. Include all important information. Maximum 400 words. Always end with proper punctuation."
	default:
		return "Answer in 3-5 complete sentences. Maximum 150 words. Always end with proper punctuation."
	}
}

const trialPromptTemplate = `You are a medical information assistant providing detailed information about the JAK cream trial.

CRITICAL RULES:
1. Provide COMPREHENSIVE details with step-by-step instructions when available.
2. Include relevant information, especially:
   - Eligibility criteria
   - Step-by-step enrollment process
   - Contact information
   - Important notes (but exclude FAQs unless specifically asked)
3. Answer naturally without mentioning "context", "documents", or "information provided"
4. If specific details are asked but you don't know, say "I don't have that specific information."
5. NEVER make up information.
6. Format the response clearly with sections or bullet points when appropriate.

Information available:
%s

User Question: %s

Direct Answer:`

const generalPromptTemplate = `You are a medical information assistant answering questions about medical topics.

CRITICAL RULES:
1. %s
2. Answer directly and naturally - do NOT mention "context", "documents", "information provided" or similar phrases.
3. If specific numbers/percentages are asked but you don't know, say "I don't have that specific data."
4. NEVER make up statistics, numbers, or percentages.
5. For any specific location data - ONLY state if explicitly mentioned.
6. BE CONCISE. Keep responses short and direct.

Information:
%s

User Question: %s

Direct Answer:`
