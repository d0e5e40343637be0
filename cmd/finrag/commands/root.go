// ABOUTME: Root command for the finrag CLI with global flags
// ABOUTME: Registers every subcommand and validates the output format
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	verbose      bool
	quiet        bool
	outputFormat string
	configPath   string
)

const banner = `
███████╗██╗███╗   ██╗██████╗  █████╗  ██████╗
██╔════╝██║████╗  ██║██╔══██╗██╔══██╗██╔════╝
█████╗  ██║██╔██╗ ██║██████╔╝███████║██║  ███╗
██╔══╝  ██║██║╚██╗██║██╔══██╗██╔══██║██║   ██║
██║     ██║██║ ╚████║██║  ██║██║  ██║╚██████╔╝
╚═╝     ╚═╝╚═╝  ╚═══╝╚═╝  ╚═╝╚═╝  ╚═╝ ╚═════╝
`

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "finrag",
		Short: "Ask questions about your financial documents",
		Long: banner + `
Question answering over financial reports.

finrag indexes PDF, DOCX and plain text documents, retrieves the passages
relevant to a question with hybrid semantic and keyword search, and
answers with citations to the sources it used.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch outputFormat {
			case "auto", "table", "json":
				return nil
			default:
				return fmt.Errorf("invalid --format %q: must be auto, table or json", outputFormat)
			}
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only print results and errors")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "auto", "Output format: auto, table or json")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default $FINRAG_CONFIG)")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(
		NewAskCmd(),
		NewIngestCmd(),
		NewListCmd(),
		NewDeleteCmd(),
		NewHealthCmd(),
		NewWatchCmd(),
		NewEvalCmd(),
		NewMCPCmd(),
		NewVersionCmd(),
	)

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}
