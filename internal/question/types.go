package question

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects how a quiz session is composed.
type Mode string

// Supported session modes.
const (
	ModeExam     Mode = "exam"
	ModeScenario Mode = "scenario"
	ModePractice Mode = "practice"
	ModeTopic    Mode = "topic"
)

// Session composition rules.
const (
	ExamQuestionCount         = 50
	ScenarioGroupSize         = 5
	ScenarioGroupCount        = 10
	PracticeMaxCount          = 10
	PracticeScenarioGroups    = 2
	PracticeQuestionsPerGroup = 2
	DefaultTopicQuestionCount = 16
	PracticeRetryLimit        = 5
	passMarkNumerator         = 8
	passMarkDenominator       = 10
)

// Letters labels the four answer options in display order.
var Letters = [4]string{"A", "B", "C", "D"}

var (
	ErrUnknownMode  = errors.New("unknown quiz mode")
	ErrUnknownTopic = errors.New("unknown topic exam")
)

// Question is an immutable catalog entry. Answer holds the letter of the correct option.
type Question struct {
	ID         string    `json:"id"`
	Topic      string    `json:"topic"`
	Prompt     string    `json:"question"`
	Options    [4]string `json:"options"`
	Answer     string    `json:"answer"`
	Scenario   string    `json:"scenario,omitempty"`
	ScenarioID string    `json:"scenarioId,omitempty"`
}

// IsScenario reports whether the question belongs to a scenario group.
func (q Question) IsScenario() bool {
	return q.ScenarioID != ""
}

// ParseMode validates a raw mode value.
func ParseMode(raw string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case ModeExam, ModeScenario, ModePractice, ModeTopic:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, raw)
	}
}

// LetterIndex returns the option index for a letter, or -1.
func LetterIndex(letter string) int {
	for i, l := range Letters {
		if strings.EqualFold(l, letter) {
			return i
		}
	}
	return -1
}
