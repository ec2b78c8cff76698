package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/triplesync/internal/harness"
)

// ScenarioSummary is the JSON output of the scenario command.
type ScenarioSummary struct {
	Passed  int               `json:"passed"`
	Failed  int               `json:"failed"`
	Results []ScenarioOutcome `json:"results"`
}

// ScenarioOutcome is the result of one scenario file.
type ScenarioOutcome struct {
	File   string   `json:"file"`
	Name   string   `json:"name,omitempty"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scenario <file.yaml>...",
		Short: "Run multi-replica convergence scenarios",
		Long: `Run convergence scenarios: replicas with manual clocks share an
in-process relay, play the scenario's steps and are checked against its
assertions.

Exit codes:
  0 - all scenarios passed
  1 - one or more scenarios failed
  2 - a scenario file could not be loaded`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summary := ScenarioSummary{Results: []ScenarioOutcome{}}
			var text strings.Builder

			for _, path := range args {
				scenario, err := harness.LoadScenario(path)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to load "+path, err)
				}
				result, err := harness.Run(cmd.Context(), scenario)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to run "+scenario.Name, err)
				}

				outcome := ScenarioOutcome{File: path, Name: scenario.Name, Pass: result.Pass}
				if result.Pass {
					summary.Passed++
					fmt.Fprintf(&text, "PASS  %s\n", scenario.Name)
				} else {
					summary.Failed++
					outcome.Errors = result.Errors
					fmt.Fprintf(&text, "FAIL  %s\n", scenario.Name)
					for _, e := range result.Errors {
						fmt.Fprintf(&text, "      %s\n", e)
					}
				}
				summary.Results = append(summary.Results, outcome)
			}
			fmt.Fprintf(&text, "\n%d passed, %d failed\n", summary.Passed, summary.Failed)

			if err := opts.formatter(cmd).Result(summary, text.String()); err != nil {
				return err
			}
			if summary.Failed > 0 {
				return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", summary.Failed))
			}
			return nil
		},
	}
}
