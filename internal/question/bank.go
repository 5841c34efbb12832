package question

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed bank/questions.yaml
var defaultQuestions []byte

type bankFile struct {
	Questions []rawQuestion `yaml:"questions"`
	Scenarios []rawScenario `yaml:"scenarios"`
}

type rawQuestion struct {
	ID      string   `yaml:"id"`
	Topic   string   `yaml:"topic"`
	Prompt  string   `yaml:"prompt"`
	Options []string `yaml:"options"`
	Answer  string   `yaml:"answer"`
}

type rawScenario struct {
	ID        string        `yaml:"id"`
	Narrative string        `yaml:"narrative"`
	Questions []rawQuestion `yaml:"questions"`
}

// Bank is the read-only question catalog. It is safe for concurrent use.
type Bank struct {
	all        []Question
	standalone []Question
	groups     [][]Question
	byTopic    map[string][]Question
}

// DefaultBank loads the embedded catalog.
func DefaultBank() (*Bank, error) {
	return LoadBank(defaultQuestions)
}

// LoadBank parses and validates a YAML catalog.
func LoadBank(data []byte) (*Bank, error) {
	var file bankFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode question bank: %w", err)
	}

	b := &Bank{byTopic: make(map[string][]Question)}
	seen := make(map[string]struct{})

	add := func(raw rawQuestion, scenario rawScenario) (Question, error) {
		q, err := raw.toQuestion()
		if err != nil {
			return Question{}, err
		}
		if _, dup := seen[q.ID]; dup {
			return Question{}, fmt.Errorf("duplicate question id %q", q.ID)
		}
		seen[q.ID] = struct{}{}
		q.ScenarioID = scenario.ID
		q.Scenario = strings.TrimSpace(scenario.Narrative)
		b.all = append(b.all, q)
		b.byTopic[q.Topic] = append(b.byTopic[q.Topic], q)
		return q, nil
	}

	for _, raw := range file.Questions {
		q, err := add(raw, rawScenario{})
		if err != nil {
			return nil, err
		}
		b.standalone = append(b.standalone, q)
	}

	groupIDs := make(map[string]struct{})
	for _, sc := range file.Scenarios {
		if sc.ID == "" {
			return nil, fmt.Errorf("scenario without id")
		}
		if _, dup := groupIDs[sc.ID]; dup {
			return nil, fmt.Errorf("duplicate scenario id %q", sc.ID)
		}
		groupIDs[sc.ID] = struct{}{}
		if len(sc.Questions) != ScenarioGroupSize {
			return nil, fmt.Errorf("scenario %q has %d questions, want %d", sc.ID, len(sc.Questions), ScenarioGroupSize)
		}
		group := make([]Question, 0, ScenarioGroupSize)
		for _, raw := range sc.Questions {
			q, err := add(raw, sc)
			if err != nil {
				return nil, err
			}
			group = append(group, q)
		}
		b.groups = append(b.groups, group)
	}

	if len(b.all) == 0 {
		return nil, fmt.Errorf("question bank is empty")
	}
	return b, nil
}

func (r rawQuestion) toQuestion() (Question, error) {
	if r.ID == "" {
		return Question{}, fmt.Errorf("question without id")
	}
	if r.Topic == "" || strings.TrimSpace(r.Prompt) == "" {
		return Question{}, fmt.Errorf("question %q: topic and prompt are required", r.ID)
	}
	if len(r.Options) != len(Letters) {
		return Question{}, fmt.Errorf("question %q has %d options, want %d", r.ID, len(r.Options), len(Letters))
	}
	idx := LetterIndex(r.Answer)
	if idx < 0 {
		return Question{}, fmt.Errorf("question %q: answer %q is not one of A-D", r.ID, r.Answer)
	}

	q := Question{
		ID:     r.ID,
		Topic:  r.Topic,
		Prompt: strings.TrimSpace(r.Prompt),
		Answer: Letters[idx],
	}
	copy(q.Options[:], r.Options)
	return q, nil
}

// Len returns the number of questions in the catalog.
func (b *Bank) Len() int { return len(b.all) }

// Standalone returns the questions that belong to no scenario group.
func (b *Bank) Standalone() []Question { return b.standalone }

// Groups returns scenario groups in catalog order.
func (b *Bank) Groups() [][]Question { return b.groups }

// HasTopic reports whether any question carries the topic label.
func (b *Bank) HasTopic(topic string) bool {
	_, ok := b.byTopic[topic]
	return ok
}

// ByTopics returns every question tagged with one of the topics, scenario questions included.
func (b *Bank) ByTopics(topics ...string) []Question {
	var out []Question
	for _, t := range topics {
		out = append(out, b.byTopic[t]...)
	}
	return out
}
