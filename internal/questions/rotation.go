package questions

import (
	"errors"

	"github.com/JGenereux/ai-interviewer/internal/models"
)

// ErrPoolEmpty means no question exists for the requested difficulty.
var ErrPoolEmpty = errors.New("question pool is empty")

// Pick chooses uniformly among pool questions not in recent. When every question was
// seen recently it falls back to the whole pool and reports repeated=true.
// intn must behave like rand.Intn.
func Pick(pool []models.Question, recent []string, intn func(int) int) (q models.Question, repeated bool, err error) {
	if len(pool) == 0 {
		return models.Question{}, false, ErrPoolEmpty
	}
	seen := make(map[string]struct{}, len(recent))
	for _, id := range recent {
		seen[id] = struct{}{}
	}
	candidates := make([]models.Question, 0, len(pool))
	for _, p := range pool {
		if _, ok := seen[p.ID]; !ok {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		candidates, repeated = pool, true
	}
	return candidates[intn(len(candidates))], repeated, nil
}

// PushRecent moves id to the front of recent, dropping older duplicates, and keeps at
// most MaxRecentQuestions entries.
func PushRecent(recent []string, id string) []string {
	out := make([]string, 0, models.MaxRecentQuestions)
	out = append(out, id)
	for _, existing := range recent {
		if len(out) == models.MaxRecentQuestions {
			break
		}
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
