package request

import (
	"context"
	"fmt"
	"strings"

	"github.com/osctools/obsup/internal/command"
)

// DefaultStates is the set of states queried when the caller picks none.
var DefaultStates = []State{StateNew, StateReview, StateDeclined}

// Fetch retrieves the submit requests for project/package through the given
// osc invocation (e.g. "osc -A https://api.opensuse.org"), filtered to the
// given states. An empty state list means DefaultStates.
func Fetch(ctx context.Context, runner *command.Runner, oscCmd, project, pkg string, states []State) ([]*SubmitRequest, error) {
	if len(states) == 0 {
		states = DefaultStates
	}
	tokens := make([]string, len(states))
	for i, s := range states {
		tokens[i] = string(s)
	}

	cmd := fmt.Sprintf("%s request list -s %s -t submit %s/%s",
		oscCmd, strings.Join(tokens, ","), project, pkg)
	res, err := runner.Run(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return ParseList(res.Stdout)
}
