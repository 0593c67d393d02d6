package domain

import (
	"math"
	"strings"
	"time"
)

const (
	baseScore = 50
	minScore  = 0
	maxScore  = 100
	day       = 24 * time.Hour
)

// ScoreInput holds the task attributes the priority score is computed from.
// Nil pointers mean the attribute is absent.
type ScoreInput struct {
	Priority       Priority
	DueDate        *time.Time
	EstimatedHours *float64
	Title          string
	Description    string
}

// urgentKeywords returns the words that mark a task as urgent. Returned as a
// fresh array so callers cannot mutate shared state.
func urgentKeywords() [5]string {
	return [5]string{"urgent", "asap", "important", "critical", "blocker"}
}

// PriorityWeight is the multiplier applied for a given priority.
// Unknown priorities weigh the same as medium.
func PriorityWeight(p Priority) float64 {
	switch p {
	case PriorityLow:
		return 0.5
	case PriorityMedium:
		return 1
	case PriorityHigh:
		return 1.5
	case PriorityCritical:
		return 2
	default:
		return 1
	}
}

// DueDateBonus returns the urgency bonus for a task due in daysUntilDue days.
func DueDateBonus(daysUntilDue float64) float64 {
	switch {
	case daysUntilDue <= 0:
		return 30
	case daysUntilDue <= 1:
		return 25
	case daysUntilDue <= 3:
		return 15
	case daysUntilDue <= 7:
		return 5
	default:
		return 0
	}
}

// Score computes the urgency rank of a task in [0,100] as of now.
//
// The due date bonus is added to the base before the priority weight is
// applied; the effort and keyword adjustments come after and are not scaled.
func Score(in ScoreInput, now time.Time) int {
	score := float64(baseScore)

	if in.DueDate != nil && !in.DueDate.IsZero() {
		days := math.Ceil(float64(in.DueDate.Sub(now)) / float64(day))
		score += DueDateBonus(days)
	}

	score *= PriorityWeight(in.Priority)

	if h := in.EstimatedHours; h != nil && !math.IsNaN(*h) && *h >= 0 {
		switch {
		case *h <= 1:
			score += 10
		case *h >= 8:
			score -= 5
		}
	}

	title := strings.ToLower(in.Title)
	description := strings.ToLower(in.Description)
	for _, kw := range urgentKeywords() {
		if strings.Contains(title, kw) {
			score += 5
		}
		if strings.Contains(description, kw) {
			score += 5
		}
	}

	rounded := int(math.Floor(score + 0.5))
	return max(minScore, min(maxScore, rounded))
}

// PriorityScorer computes scores against an injectable clock.
type PriorityScorer struct {
	Now func() time.Time
}

// NewPriorityScorer returns a scorer using the wall clock.
func NewPriorityScorer() PriorityScorer {
	return PriorityScorer{Now: time.Now}
}

func (s PriorityScorer) Score(in ScoreInput) int {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return Score(in, now())
}
