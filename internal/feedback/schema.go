package feedback

import (
	"github.com/JGenereux/ai-interviewer/internal/llm"
	"github.com/JGenereux/ai-interviewer/internal/models"
)

func score(desc string) *llm.Schema { return llm.IntRange(desc, 1, 10) }

func stringList(desc string) *llm.Schema { return llm.ArrayOf(desc, llm.String("")) }

func technicalSchema() *llm.Schema {
	return llm.Object("Evaluation of the coding portion", map[string]*llm.Schema{
		"problemSolving":     score("How the candidate broke down and approached the problem"),
		"codeQuality":        score("Readability, naming and structure of the final code"),
		"correctness":        score("Whether the solution works, judged by the submissions"),
		"efficiency":         score("Time and space efficiency of the solution"),
		"complexityAnalysis": llm.String("Time and space complexity of the final code"),
		"testingApproach":    llm.String("How the candidate tested or reasoned about edge cases"),
		"strengths":          stringList("Technical strengths"),
		"improvements":       stringList("Technical areas to improve"),
	})
}

func behavioralSchema() *llm.Schema {
	return llm.Object("Evaluation of the behavioral portion", map[string]*llm.Schema{
		"communication":   score("Clarity and structure of answers"),
		"leadership":      score("Ownership and influence shown in examples"),
		"teamwork":        score("Collaboration shown in examples"),
		"adaptability":    score("Handling of change and setbacks"),
		"starMethodUsage": llm.String("How well answers followed situation, task, action, result"),
		"resumeAlignment": llm.String("How well answers matched the resume"),
		"highlights":      stringList("Strongest moments"),
		"improvements":    stringList("Behavioral areas to improve"),
	})
}

// SchemaFor returns the response schema for mode. Each mode gets its own required-field
// shape: the technical and behavioral blocks appear only when the mode runs that phase.
func SchemaFor(mode models.Mode) *llm.Schema {
	props := map[string]*llm.Schema{
		"mode":               llm.Enum("Interview mode", string(mode)),
		"overallScore":       score("Overall score"),
		"overallSummary":     llm.String("Two or three sentence summary"),
		"hireRecommendation": llm.Enum("Hiring recommendation", models.HireRecommendationsList()...),
		"keyStrengths":       stringList("Most important strengths"),
		"keyWeaknesses":      stringList("Most important weaknesses"),
		"recommendations": llm.ArrayOf("Concrete recommendations", llm.Object("", map[string]*llm.Schema{
			"area":       llm.String("Skill area"),
			"suggestion": llm.String("What to practise"),
			"priority":   llm.Enum("Priority", models.PrioritiesList()...),
		})),
		"readyForRole":       llm.Bool("Whether the candidate is ready for the role"),
		"suggestedNextSteps": stringList("Next steps for preparation"),
		"additionalComments": llm.String("Anything else worth noting"),
	}
	if mode.IncludesTechnical() {
		props["technical"] = technicalSchema()
	}
	if mode.IncludesBehavioral() {
		props["behavioral"] = behavioralSchema()
	}
	return llm.Object("Mock interview evaluation", props)
}
