package models

import "strings"

// Mode selects which interview phases run and which feedback blocks apply.
type Mode string

const (
	ModeFull       Mode = "full"
	ModeBehavioral Mode = "behavioral"
	ModeTechnical  Mode = "technical"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeFull, ModeBehavioral, ModeTechnical:
		return true
	}
	return false
}

// IncludesTechnical reports whether the technical phase (and feedback block) is part of the mode.
func (m Mode) IncludesTechnical() bool { return m == ModeFull || m == ModeTechnical }

// IncludesBehavioral reports whether the behavioral phase (and feedback block) is part of the mode.
func (m Mode) IncludesBehavioral() bool { return m == ModeFull || m == ModeBehavioral }

func ParseMode(s string) (Mode, bool) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	return m, m.Valid()
}

type InterviewStatus string

const (
	StatusActive    InterviewStatus = "active"
	StatusCompleted InterviewStatus = "completed"
	StatusAbandoned InterviewStatus = "abandoned"
)

// Terminal reports whether no further transition is allowed out of the status.
func (s InterviewStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

type SubscriptionTier string

const (
	TierFree    SubscriptionTier = "free"
	TierStarter SubscriptionTier = "starter"
	TierPro     SubscriptionTier = "pro"
)

type HireRecommendation string

const (
	StrongHire   HireRecommendation = "strong_hire"
	Hire         HireRecommendation = "hire"
	LeanHire     HireRecommendation = "lean_hire"
	NoHire       HireRecommendation = "no_hire"
	StrongNoHire HireRecommendation = "strong_no_hire"
)

func HireRecommendationsList() []string {
	return []string{string(StrongHire), string(Hire), string(LeanHire), string(NoHire), string(StrongNoHire)}
}

func (h HireRecommendation) Valid() bool {
	for _, v := range HireRecommendationsList() {
		if string(h) == v {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func PrioritiesList() []string {
	return []string{string(PriorityHigh), string(PriorityMedium), string(PriorityLow)}
}

// MaxRecentQuestions bounds the per-user recent-question window.
const MaxRecentQuestions = 10

// contains all supported programming languages (in lowercase)
var SupportedLanguages = map[string]bool{
	"python":     true,
	"java":       true,
	"cpp":        true,
	"javascript": true,
	"typescript": true,
	"go":         true,
}

func SupportedLanguagesList() []string {
	return []string{"python", "java", "cpp", "javascript", "typescript", "go"}
}
