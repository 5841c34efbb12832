package question

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBank(t *testing.T) {
	bank, err := DefaultBank()
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(bank.Standalone()), ExamQuestionCount)
	assert.GreaterOrEqual(t, len(bank.Groups()), ScenarioGroupCount)
	assert.Equal(t, len(bank.Standalone())+len(bank.Groups())*ScenarioGroupSize, bank.Len())

	for _, g := range bank.Groups() {
		require.Len(t, g, ScenarioGroupSize)
		for _, q := range g {
			assert.Equal(t, g[0].ScenarioID, q.ScenarioID)
			assert.NotEmpty(t, q.Scenario)
		}
	}
	for _, q := range bank.Standalone() {
		assert.False(t, q.IsScenario())
	}
}

func TestDefaultTopicsResolve(t *testing.T) {
	bank, err := DefaultBank()
	require.NoError(t, err)
	topics, err := DefaultTopics(bank)
	require.NoError(t, err)

	require.NotEmpty(t, topics.All())
	for _, exam := range topics.All() {
		assert.Equal(t, DefaultTopicQuestionCount, exam.QuestionCount, exam.Slug)
		assert.GreaterOrEqual(t, len(bank.ByTopics(exam.Topics...)), exam.QuestionCount, exam.Slug)
	}
}

func TestLoadBankRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "empty",
			yaml: `questions: []`,
		},
		{
			name: "three options",
			yaml: `
questions:
  - {id: q1, topic: t, prompt: p, options: [a, b, c], answer: A}
`,
		},
		{
			name: "bad answer letter",
			yaml: `
questions:
  - {id: q1, topic: t, prompt: p, options: [a, b, c, d], answer: E}
`,
		},
		{
			name: "duplicate id",
			yaml: `
questions:
  - {id: q1, topic: t, prompt: p, options: [a, b, c, d], answer: A}
  - {id: q1, topic: t, prompt: p, options: [a, b, c, d], answer: B}
`,
		},
		{
			name: "short scenario",
			yaml: `
scenarios:
  - id: s1
    narrative: n
    questions:
      - {id: s1-1, topic: t, prompt: p, options: [a, b, c, d], answer: A}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBank([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadBankNormalizesAnswer(t *testing.T) {
	bank, err := LoadBank([]byte(`
questions:
  - {id: q1, topic: t, prompt: "  p  ", options: [a, b, c, d], answer: c}
`))
	require.NoError(t, err)
	q := bank.Standalone()[0]
	assert.Equal(t, "C", q.Answer)
	assert.Equal(t, "p", q.Prompt)
}

func TestLoadTopicsRejectsUnknownTopic(t *testing.T) {
	bank, err := DefaultBank()
	require.NoError(t, err)

	_, err = LoadTopics([]byte(`
topic_exams:
  - slug: x
    title: X
    topics: [astrology]
`), bank)
	assert.Error(t, err)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Exam ")
	require.NoError(t, err)
	assert.Equal(t, ModeExam, m)

	_, err = ParseMode("speedrun")
	assert.ErrorIs(t, err, ErrUnknownMode)
}
