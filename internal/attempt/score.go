package attempt

import "github.com/quizdeck/quizdeck/internal/catalog"

// CountCorrect counts answered questions whose selected option is marked
// correct. Both the online engine and the offline buffer score through this
// function so a reconciled offline run can never disagree with an online
// run over the same answers.
func CountCorrect(questions []catalog.Question, optionsByQuestion map[string][]catalog.Option, answers map[string]string) int {
	correct := 0
	for _, q := range questions {
		sel, ok := answers[q.ID]
		if !ok {
			continue
		}
		for _, opt := range optionsByQuestion[q.ID] {
			if opt.ID == sel && opt.IsCorrect {
				correct++
				break
			}
		}
	}
	return correct
}

// Score is the percentage formula: round(correct*100/total). An empty quiz
// scores zero rather than dividing by zero.
func Score(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return (correct*100 + total/2) / total
}
