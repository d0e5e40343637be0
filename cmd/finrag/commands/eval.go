// ABOUTME: CLI command to run the retrieval and answer quality evaluation
// ABOUTME: Plays a scenario suite against a fresh in-memory index and scores each answer
package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/harper/finrag/internal/eval"
)

var (
	evalSuite    string
	evalScenario string
	evalOutput   string
)

// NewEvalCmd creates eval command
func NewEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate answer quality on a scenario suite",
		Long: `Index a suite's documents into a fresh in-memory index, ask each
scenario's questions and score the answers for faithfulness, context
recall and source hit rate. The persisted index is never touched.

Without --suite the built-in financial suite is used.

Examples:
  finrag eval
  finrag eval --scenario follow_up
  finrag eval --suite suites/custom.yaml --output report.json`,
		RunE: runEval,
	}

	cmd.Flags().StringVar(&evalSuite, "suite", "", "YAML suite file (default: built-in suite)")
	cmd.Flags().StringVar(&evalScenario, "scenario", "", "Run a single scenario by id")
	cmd.Flags().StringVarP(&evalOutput, "output", "o", "", "Write the JSON report to this file")

	return cmd
}

func runEval(cmd *cobra.Command, args []string) error {
	suite, err := loadSuite()
	if err != nil {
		return err
	}
	if evalScenario != "" {
		sc, ok := suite.Scenario(evalScenario)
		if !ok {
			return fmt.Errorf("scenario %q not found in suite %s", evalScenario, suite.Name)
		}
		suite.Scenarios = []eval.Scenario{sc}
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer closeApp(a)

	var progress io.Writer
	if !quiet && !wantJSON() {
		progress = cmd.OutOrStdout()
	}
	report, err := eval.NewRunner(a.Service, a.Logger, progress).Run(ctx, suite)
	if err != nil {
		return err
	}

	if wantJSON() {
		if err := printJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "\nSuite %s: %d/%d passed, hit rate %.2f\n",
			report.Suite, report.Passed, report.Total, report.HitRate)
	}

	if evalOutput != "" {
		if err := eval.Export(report, evalOutput); err != nil {
			return err
		}
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", evalOutput)
		}
	}

	if report.Failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", report.Failed, report.Total)
	}
	return nil
}

func loadSuite() (*eval.Suite, error) {
	if evalSuite == "" {
		return eval.DefaultSuite()
	}
	return eval.LoadSuite(evalSuite)
}
