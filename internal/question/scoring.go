package question

// TopicTally counts answered questions for one topic.
type TopicTally struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// Result is the graded outcome of a session.
type Result struct {
	Score    int                   `json:"score"`
	Total    int                   `json:"total"`
	PassMark int                   `json:"passMark"`
	Passed   bool                  `json:"passed"`
	Topics   map[string]TopicTally `json:"topics"`
}

// PassMark is 80% of total rounded up.
func PassMark(total int) int {
	if total <= 0 {
		return 0
	}
	return (total*passMarkNumerator + passMarkDenominator - 1) / passMarkDenominator
}

// Passed reports whether score reaches the pass mark for total.
func Passed(score, total int) bool {
	return total > 0 && score >= PassMark(total)
}

// Grade scores answers, keyed by question id, against the session's questions.
// Only answered questions count towards the per-topic tally.
func Grade(questions []Question, answers map[string]string) Result {
	res := Result{
		Total:  len(questions),
		Topics: make(map[string]TopicTally),
	}
	for _, q := range questions {
		selected, ok := answers[q.ID]
		if !ok || selected == "" {
			continue
		}
		tally := res.Topics[q.Topic]
		tally.Total++
		if LetterIndex(selected) >= 0 && LetterIndex(selected) == LetterIndex(q.Answer) {
			tally.Correct++
			res.Score++
		}
		res.Topics[q.Topic] = tally
	}
	res.PassMark = PassMark(res.Total)
	res.Passed = Passed(res.Score, res.Total)
	return res
}
