// ABOUTME: CLI command to ask questions about the indexed documents
// ABOUTME: Supports one-shot questions and an interactive conversation loop
package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harper/finrag/internal/models"
	"github.com/harper/finrag/internal/rag"
)

var (
	askConversation string
	askTopK         int
	askTemperature  float64
	askSemantic     bool
	askInteractive  bool
)

// NewAskCmd creates ask command
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about your documents",
		Long: `Answer a question from the indexed documents.

The answer cites the document chunks it was generated from. With
--interactive, questions are read line by line and share one
conversation; type /history to show it, /clear to start over and
/quit to leave.

Examples:
  finrag ask "What was Q3 revenue?"
  finrag ask --top-k 8 --semantic "Summarize the risk factors"
  finrag ask --interactive`,
		RunE: runAsk,
	}

	cmd.Flags().StringVarP(&askConversation, "conversation", "c", "", "Continue an existing conversation id")
	cmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "Number of chunks to retrieve (default from config)")
	cmd.Flags().Float64Var(&askTemperature, "temperature", 0, "Sampling temperature 0-2 (default from config)")
	cmd.Flags().BoolVar(&askSemantic, "semantic", false, "Use semantic search only")
	cmd.Flags().BoolVarP(&askInteractive, "interactive", "i", false, "Start an interactive session")

	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	if !askInteractive && len(args) == 0 {
		return fmt.Errorf("a question is required (or use --interactive)")
	}
	if cmd.Flags().Changed("top-k") {
		if err := validatePositiveInt(askTopK, "top-k"); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer closeApp(a)

	req := models.QueryRequest{
		ConversationID: askConversation,
		TopK:           askTopK,
	}
	if cmd.Flags().Changed("temperature") {
		t := askTemperature
		req.Temperature = &t
	}
	if askSemantic {
		hybrid := false
		req.UseHybridSearch = &hybrid
	}

	if askInteractive {
		return askLoop(ctx, a.Service, req, cmd.InOrStdin(), cmd.OutOrStdout())
	}

	req.Query = strings.Join(args, " ")
	resp, err := a.Service.Query(ctx, req)
	if err != nil {
		return err
	}
	return printAnswer(cmd.OutOrStdout(), resp)
}

// askLoop answers one question per input line, carrying the conversation forward
func askLoop(ctx context.Context, svc *rag.Service, req models.QueryRequest, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		if !quiet {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/history":
			printHistory(out, svc.ConversationHistory(req.ConversationID))
			continue
		case "/clear":
			if req.ConversationID != "" {
				svc.ClearConversation(req.ConversationID)
				req.ConversationID = ""
			}
			fmt.Fprintln(out, "Conversation cleared")
			continue
		}

		turn := req
		turn.Query = line
		resp, err := svc.Query(ctx, turn)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		req.ConversationID = resp.ConversationID
		if err := printAnswer(out, resp); err != nil {
			return err
		}
	}
}

func printAnswer(w io.Writer, resp *models.QueryResponse) error {
	if wantJSON() {
		return printJSON(w, resp)
	}

	fmt.Fprintf(w, "%s\n", resp.Answer)
	if len(resp.Sources) > 0 {
		fmt.Fprintf(w, "\nSources:\n")
		for i, src := range resp.Sources {
			fmt.Fprintf(w, "  [%d] %s (chunk %d, relevance %.3f)\n", i+1, src.Source, src.ChunkIndex, src.RelevanceScore)
		}
	}
	if !quiet {
		cached := ""
		if resp.Cached {
			cached = ", cached"
		}
		fmt.Fprintf(w, "\n%s | %d tokens | %.2fs%s | conversation %s\n",
			resp.SearchStrategy, resp.TokensUsed, resp.ProcessingTime, cached, resp.ConversationID)
	}
	return nil
}

func printHistory(w io.Writer, messages []models.Message) {
	if len(messages) == 0 {
		fmt.Fprintln(w, "No conversation history")
		return
	}
	for _, m := range messages {
		fmt.Fprintf(w, "%s (%s): %s\n", m.Role.Label(), formatTime(m.Timestamp), truncate(m.Content, 200))
	}
}
