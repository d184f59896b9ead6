package agents

import (
	"errors"
	"strings"

	"github.com/JGenereux/ai-interviewer/internal/models"
)

// SessionConfig is fixed when a session is built. Agents read it; nothing writes it afterwards.
type SessionConfig struct {
	InterviewID         string
	UserID              string
	CandidateName       string
	ResumeText          string
	Mode                models.Mode
	PreselectedLanguage string
	Difficulty          models.Difficulty
}

func (c SessionConfig) Validate() error {
	var problems []string
	if c.InterviewID == "" {
		problems = append(problems, "interview id is required")
	}
	if c.UserID == "" {
		problems = append(problems, "user id is required")
	}
	if !c.Mode.Valid() {
		problems = append(problems, "mode must be one of: full, behavioral, technical")
	}
	if c.PreselectedLanguage != "" && !models.SupportedLanguages[strings.ToLower(c.PreselectedLanguage)] {
		problems = append(problems, "unsupported language "+c.PreselectedLanguage)
	}
	if len(problems) > 0 {
		return errors.New("invalid session config: " + strings.Join(problems, "; "))
	}
	return nil
}

// Phases returns the spoke phases mode runs, in order.
func Phases(mode models.Mode) []Role {
	switch mode {
	case models.ModeFull:
		return []Role{RoleBehavioral, RoleTechnical}
	case models.ModeBehavioral:
		return []Role{RoleBehavioral}
	case models.ModeTechnical:
		return []Role{RoleTechnical}
	}
	return nil
}
