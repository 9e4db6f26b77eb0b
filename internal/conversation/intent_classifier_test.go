package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aihub/ragbot-go/internal/engine"
)

func TestClassifyExactGreeting(t *testing.T) {
	c := NewIntentClassifier()

	for _, msg := range []string{"Hi", "hello", "HEY", "  hi  ", "good morning", "hy", "hii"} {
		intent, confidence := c.Classify(msg)
		assert.Equal(t, IntentGreeting, intent, msg)
		assert.Equal(t, 0.99, confidence, msg)
	}
}

// 短消息里带问候/告别词走0.95特判
func TestClassifyShortMessage(t *testing.T) {
	c := NewIntentClassifier()

	intent, confidence := c.Classify("hello there friend")
	assert.Equal(t, IntentGreeting, intent)
	assert.Equal(t, 0.95, confidence)

	intent, confidence = c.Classify("ok thanks bye")
	assert.Equal(t, IntentFarewell, intent)
	assert.Equal(t, 0.95, confidence)

	// 超过3个词不再走特判
	intent, _ = c.Classify("thanks for the detailed explanation about treatments")
	assert.NotEqual(t, IntentGreeting, intent)
}

func TestClassifyPatternTable(t *testing.T) {
	c := NewIntentClassifier()

	cases := []struct {
		message string
		want    Intent
	}{
		{"what is vitiligo and what does it mean for me", IntentDefinition},
		{"how do i know if i have symptoms of vitiligo", IntentSymptom},
		{"how to treat and cure vitiligo with therapy", IntentTreatment},
		{"tell me more details and elaborate on the previous answer please continue", IntentDetail},
		{"give me a brief summary in short please, tldr if possible", IntentBrief},
	}
	for _, tc := range cases {
		intent, confidence := c.Classify(tc.message)
		assert.Equal(t, tc.want, intent, tc.message)
		assert.Greater(t, confidence, 0.0, tc.message)
	}
}

func TestClassifyDefaultQuestion(t *testing.T) {
	c := NewIntentClassifier()

	intent, confidence := c.Classify("ruxolitinib cream availability singapore pharmacies")
	assert.Equal(t, IntentQuestion, intent)
	assert.Equal(t, 0.5, confidence)
}

// 风格判定偏向brief，只有明确要求才给detailed
func TestResponseStyle(t *testing.T) {
	c := NewIntentClassifier()

	cases := []struct {
		message string
		want    engine.ResponseStyle
	}{
		{"explain fully how the enrollment works", engine.StyleDetailed},
		{"give me all the comprehensive information", engine.StyleDetailed},
		{"quick answer please: is it contagious", engine.StyleBrief},
		{"what is vitiligo", engine.StyleBrief},
		{"is vitiligo contagious?", engine.StyleBrief},
		{"treatment options", engine.StyleBrief},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, c.ResponseStyle(tc.message), tc.message)
	}
}

func TestResponseStyleWordCountFallback(t *testing.T) {
	c := NewIntentClassifier()

	// 超过20个无明显意图的词走moderate
	long := "my grandmother recently noticed several unusual looking lighter areas appearing " +
		"across her arms legs plus face over these past few months now"
	assert.Equal(t, engine.StyleModerate, c.ResponseStyle(long))
}
