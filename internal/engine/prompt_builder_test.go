package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trialChunk = "The JAK cream trial at NSC is a clinical trial offering subsidised ruxolitinib treatment."
const faqChunk = "Q: Who is eligible?\nA: Adults with stable vitiligo.\nQ: Is it free?\nA: The consultation is subsidised."

func TestIsTrialContent(t *testing.T) {
	assert.True(t, IsTrialContent([]string{trialChunk}))
	// 三个标记必须同在一个分块内
	assert.False(t, IsTrialContent([]string{"JAK inhibitors", "NSC offers a trial"}))
	assert.False(t, IsTrialContent([]string{"JAK and NSC mentioned, no t-word"}))
	assert.False(t, IsTrialContent(nil))
}

// 试验资料强制detailed并剔除FAQ分块
func TestBuildTrialFiltersFAQ(t *testing.T) {
	b := NewPromptBuilder()
	built := b.Build("how do I sign up for the cream trial", []string{trialChunk, faqChunk}, StyleBrief)

	assert.True(t, built.IsTrial)
	assert.Equal(t, StyleDetailed, built.Style)
	assert.Contains(t, built.Text, trialChunk)
	assert.NotContains(t, built.Text, "Q: Who is eligible?")
}

// 用户明确问FAQ时保留FAQ分块
func TestBuildTrialKeepsFAQWhenAsked(t *testing.T) {
	b := NewPromptBuilder()
	built := b.Build("show me the faq for the trial", []string{trialChunk, faqChunk}, StyleBrief)

	assert.True(t, built.IsTrial)
	assert.Contains(t, built.Text, "Q: Who is eligible?")
}

// 过滤后为空则回退到原始分块，提示词不能没有上下文
func TestBuildTrialFilterFallback(t *testing.T) {
	faqTrial := "FAQs about the JAK cream trial at NSC.\nQ: a\nA: b\nQ: c\nA: d"
	b := NewPromptBuilder()
	built := b.Build("tell me about the trial", []string{faqTrial}, StyleBrief)

	assert.True(t, built.IsTrial)
	assert.Contains(t, built.Text, faqTrial)
}

func TestBuildStyleTruncation(t *testing.T) {
	chunks := []string{"chunk one", "chunk two", "chunk three"}
	b := NewPromptBuilder()

	brief := b.Build("q", chunks, StyleBrief)
	assert.Contains(t, brief.Text, "Info 1:")
	assert.NotContains(t, brief.Text, "Info 2:")

	moderate := b.Build("q", chunks, StyleModerate)
	assert.Contains(t, moderate.Text, "Info 2:")
	assert.NotContains(t, moderate.Text, "Info 3:")

	detailed := b.Build("q", chunks, StyleDetailed)
	assert.Contains(t, detailed.Text, "Info 3:")
}

func TestBuildGeneralPromptShape(t *testing.T) {
	b := NewPromptBuilder()
	built := b.Build("what causes vitiligo?", []string{"Vitiligo is an autoimmune condition."}, StyleModerate)

	require.False(t, built.IsTrial)
	assert.Equal(t, StyleModerate, built.Style)
	assert.Contains(t, built.Text, "User Question: what causes vitiligo?")
	assert.Contains(t, built.Text, "Info 1:\nVitiligo is an autoimmune condition.")
	assert.True(t, strings.HasSuffix(built.Text, "Direct Answer:"))
	assert.Contains(t, built.Text, "3-5 complete sentences")
}

func TestLooksLikeFAQ(t *testing.T) {
	assert.True(t, looksLikeFAQ("Q: Is it safe?\nA: Yes."))
	assert.True(t, looksLikeFAQ("FAQs for the programme"))
	assert.True(t, looksLikeFAQ(faqChunk))
	assert.False(t, looksLikeFAQ("General description with a single Q: marker"))
}
