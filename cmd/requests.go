package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/osctools/obsup/internal/command"
	"github.com/osctools/obsup/internal/output"
	"github.com/osctools/obsup/internal/request"
)

var requestsStates string

var requestsCmd = &cobra.Command{
	Use:     "requests <project> <package>",
	Aliases: []string{"sr"},
	Short:   "List submit requests for a package",
	Long: `List the submit requests for <project>/<package>. By default only
new, review and declined requests are shown; use --states to change the
filter or pass "all".`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return requestsRun(cmd, args[0], args[1])
	},
}

func init() {
	requestsCmd.Flags().StringVar(&requestsStates, "states", "", "Comma-separated request states to list, or \"all\"")
	rootCmd.AddCommand(requestsCmd)
}

func requestsRun(cmd *cobra.Command, project, pkg string) error {
	spec := requestsStates
	if spec == "" {
		spec = viper.GetString("request.states")
	}
	states, err := parseStates(spec)
	if err != nil {
		return err
	}

	runner := &command.Runner{Log: ui}
	reqs, err := request.Fetch(cmd.Context(), runner, oscCommand(), project, pkg, states)
	if err != nil {
		return err
	}
	if len(reqs) == 0 {
		ui.Info("no submit requests for %s/%s", project, pkg)
		return nil
	}

	table := ui.Table([]string{"ID", "State", "Source", "Destination", "Description"})
	for _, r := range reqs {
		source := fmt.Sprintf("%s/%s@%s", r.SourceProject, r.SourcePackage, r.SourceRevision)
		_ = table.Append([]string{
			strconv.Itoa(r.ID),
			output.StateColor(string(r.State)),
			source,
			r.DestinationProject,
			r.Description,
		})
	}
	return table.Render()
}

// parseStates converts a comma-separated state list into States. The
// literal "all" expands to every known state.
func parseStates(spec string) ([]request.State, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}
	if spec == "all" {
		return request.AllStates, nil
	}

	var states []request.State
	for _, token := range strings.Split(spec, ",") {
		state, err := request.ParseState(strings.TrimSpace(token))
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, nil
}
