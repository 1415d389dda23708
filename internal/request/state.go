package request

import (
	"fmt"
	"regexp"
)

// State is the lifecycle state of a submit request in the build service.
type State string

const (
	StateAccepted   State = "accepted"
	StateReview     State = "review"
	StateDeclined   State = "declined"
	StateNew        State = "new"
	StateRevoked    State = "revoked"
	StateSuperseded State = "superseded"
)

// AllStates lists every state a submit request can be in.
var AllStates = []State{
	StateAccepted, StateReview, StateDeclined,
	StateNew, StateRevoked, StateSuperseded,
}

func (s State) String() string { return string(s) }

// osc prints partially approved reviews as "review(approved)"; the request
// is still in review, so the parenthesized part is dropped.
var stateSuffixRe = regexp.MustCompile(`^(\S+)\(\S+\)$`)

// ParseState converts a raw state token from osc output into a State. Any
// token outside the known set is a parse error.
func ParseState(token string) (State, error) {
	if m := stateSuffixRe.FindStringSubmatch(token); m != nil {
		token = m[1]
	}
	switch s := State(token); s {
	case StateAccepted, StateReview, StateDeclined, StateNew, StateRevoked, StateSuperseded:
		return s, nil
	}
	return "", fmt.Errorf("unknown request state %q", token)
}
