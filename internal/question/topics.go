package question

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed bank/topics.yaml
var defaultTopics []byte

// TopicExam configures a topic-scoped session.
type TopicExam struct {
	Slug          string   `json:"slug" yaml:"slug"`
	Title         string   `json:"title" yaml:"title"`
	Description   string   `json:"description,omitempty" yaml:"description"`
	Topics        []string `json:"topics" yaml:"topics"`
	QuestionCount int      `json:"questionCount" yaml:"question_count"`
}

// TopicCatalog resolves topic exam slugs.
type TopicCatalog struct {
	exams  []TopicExam
	bySlug map[string]TopicExam
}

// DefaultTopics loads the embedded topic configuration and checks it against the bank.
func DefaultTopics(bank *Bank) (*TopicCatalog, error) {
	return LoadTopics(defaultTopics, bank)
}

// LoadTopics parses topic exam configuration. Every referenced topic must exist in bank.
func LoadTopics(data []byte, bank *Bank) (*TopicCatalog, error) {
	var file struct {
		TopicExams []TopicExam `yaml:"topic_exams"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode topic config: %w", err)
	}

	c := &TopicCatalog{bySlug: make(map[string]TopicExam, len(file.TopicExams))}
	for _, exam := range file.TopicExams {
		if exam.Slug == "" {
			return nil, fmt.Errorf("topic exam without slug")
		}
		if _, dup := c.bySlug[exam.Slug]; dup {
			return nil, fmt.Errorf("duplicate topic exam %q", exam.Slug)
		}
		if len(exam.Topics) == 0 {
			return nil, fmt.Errorf("topic exam %q lists no topics", exam.Slug)
		}
		for _, t := range exam.Topics {
			if bank != nil && !bank.HasTopic(t) {
				return nil, fmt.Errorf("topic exam %q references unknown topic %q", exam.Slug, t)
			}
		}
		if exam.QuestionCount <= 0 {
			exam.QuestionCount = DefaultTopicQuestionCount
		}
		c.exams = append(c.exams, exam)
		c.bySlug[exam.Slug] = exam
	}
	return c, nil
}

// Lookup returns the topic exam for slug.
func (c *TopicCatalog) Lookup(slug string) (TopicExam, bool) {
	exam, ok := c.bySlug[slug]
	return exam, ok
}

// All returns topic exams in configuration order.
func (c *TopicCatalog) All() []TopicExam {
	out := make([]TopicExam, len(c.exams))
	copy(out, c.exams)
	return out
}
