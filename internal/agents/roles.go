package agents

// Role names one conversational agent in the interview.
type Role string

const (
	RoleCoordinator Role = "coordinator"
	RoleBehavioral  Role = "behavioral"
	RoleTechnical   Role = "technical"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCoordinator, RoleBehavioral, RoleTechnical:
		return true
	}
	return false
}

// CanHandoff reports whether from may pass control to to. The graph is a star with the
// coordinator at the hub: spokes only ever return to the coordinator.
func CanHandoff(from, to Role) bool {
	if !from.Valid() || !to.Valid() || from == to {
		return false
	}
	return from == RoleCoordinator || to == RoleCoordinator
}

// Handoffs lists the roles r may hand off to.
func Handoffs(r Role) []Role {
	switch r {
	case RoleCoordinator:
		return []Role{RoleBehavioral, RoleTechnical}
	case RoleBehavioral, RoleTechnical:
		return []Role{RoleCoordinator}
	}
	return nil
}

// Tool names.
const (
	ToolGetQuestion        = "get_question"
	ToolGetUserCode        = "get_user_code"
	ToolGetWhiteboardImage = "get_whiteboard_image"
	ToolProvideHint        = "provide_hint"
	ToolEndInterview       = "end_interview"
	ToolGetFeedback        = "get_feedback"
)

// toolOwners fixes which agent may call each tool.
var toolOwners = map[string]Role{
	ToolGetQuestion:        RoleTechnical,
	ToolGetUserCode:        RoleTechnical,
	ToolGetWhiteboardImage: RoleTechnical,
	ToolProvideHint:        RoleTechnical,
	ToolEndInterview:       RoleCoordinator,
	ToolGetFeedback:        RoleCoordinator,
}

// OwnerOf returns the role allowed to call tool.
func OwnerOf(tool string) (Role, bool) {
	r, ok := toolOwners[tool]
	return r, ok
}
