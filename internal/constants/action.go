package constants

type Action string

const (
	ActionAccept          Action = "accept"
	ActionPause           Action = "pause"
	ActionResume          Action = "resume"
	ActionCompleteRequest Action = "complete_request"
	ActionClaim           Action = "claim"
)

func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionAccept, ActionPause, ActionResume, ActionCompleteRequest, ActionClaim:
		return a, true
	}
	return "", false
}
