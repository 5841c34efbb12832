package question

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

// Request describes the session a client asked for.
type Request struct {
	Mode  Mode
	Count int
	Topic string
}

// Selector composes quiz sessions from the bank. Every returned question has its
// options independently permuted and its answer letter relabelled to match.
type Selector struct {
	bank   *Bank
	topics *TopicCatalog

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector builds a selector. A nil rng is replaced by a time-seeded PCG source.
func NewSelector(bank *Bank, topics *TopicCatalog, rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
	}
	if topics == nil {
		topics = &TopicCatalog{bySlug: map[string]TopicExam{}}
	}
	return &Selector{bank: bank, topics: topics, rng: rng}
}

// Select returns the questions for one session. Short pools yield as many
// questions as exist rather than an error.
func (s *Selector) Select(req Request) ([]Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var picked []Question
	switch req.Mode {
	case ModeExam:
		picked = s.sample(s.bank.Standalone(), ExamQuestionCount)
	case ModeScenario:
		picked = s.scenarioSet()
	case ModePractice:
		picked = s.practiceSet(req.Count)
	case ModeTopic:
		exam, ok := s.topics.Lookup(req.Topic)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTopic, req.Topic)
		}
		picked = s.sample(s.bank.ByTopics(exam.Topics...), exam.QuestionCount)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, req.Mode)
	}

	for i := range picked {
		picked[i] = s.shuffleOptions(picked[i])
	}
	return picked, nil
}

// sample draws up to n distinct questions from pool in random order.
func (s *Selector) sample(pool []Question, n int) []Question {
	if n > len(pool) {
		n = len(pool)
	}
	if n <= 0 {
		return []Question{}
	}
	out := make([]Question, n)
	for i, idx := range s.rng.Perm(len(pool))[:n] {
		out[i] = pool[idx]
	}
	return out
}

// scenarioSet picks whole groups; group order is random, in-group order is kept.
func (s *Selector) scenarioSet() []Question {
	groups := s.bank.Groups()
	n := min(ScenarioGroupCount, len(groups))
	out := make([]Question, 0, n*ScenarioGroupSize)
	for _, idx := range s.rng.Perm(len(groups))[:n] {
		out = append(out, groups[idx]...)
	}
	return out
}

// practiceSet blends the leading questions of two scenario groups with standalone
// questions, then shuffles so scenario questions are not always first.
func (s *Selector) practiceSet(count int) []Question {
	if count <= 0 || count > PracticeMaxCount {
		count = PracticeMaxCount
	}

	groups := s.bank.Groups()
	out := make([]Question, 0, count)
	for _, idx := range s.rng.Perm(len(groups))[:min(PracticeScenarioGroups, len(groups))] {
		group := groups[idx]
		for _, q := range group[:min(PracticeQuestionsPerGroup, len(group))] {
			if len(out) == count {
				break
			}
			out = append(out, q)
		}
	}

	out = append(out, s.sample(s.bank.Standalone(), count-len(out))...)
	s.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func (s *Selector) shuffleOptions(q Question) Question {
	correct := LetterIndex(q.Answer)
	out := q
	for i, from := range s.rng.Perm(len(q.Options)) {
		out.Options[i] = q.Options[from]
		if from == correct {
			out.Answer = Letters[i]
		}
	}
	return out
}
