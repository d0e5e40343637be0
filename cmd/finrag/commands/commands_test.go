// ABOUTME: End-to-end tests for the engine-backed commands
// ABOUTME: Runs the CLI against a temp data dir with fake embedding and chat clients

package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harper/finrag/internal/app"
	"github.com/harper/finrag/internal/eval"
	"github.com/harper/finrag/internal/llm/llmtest"
	"github.com/harper/finrag/internal/logging"
	"github.com/harper/finrag/internal/models"
	"github.com/harper/finrag/internal/rag"
)

const q3Report = "Acme Corp third quarter 2024 results: revenue was $4.2 billion, up 12% year over year.\n\n" +
	"Operating margin expanded to 18% as cost of revenue declined across every segment."

// useFakeEngine points the CLI at an empty data dir and fake model clients
func useFakeEngine(t *testing.T) *llmtest.Completer {
	t.Helper()
	t.Setenv("FINRAG_CONFIG", "")
	t.Setenv("FINRAG_DATA_DIR", t.TempDir())
	t.Setenv("VECTOR_DIMENSION", "16")
	t.Setenv("FINRAG_CACHE_BACKEND", "memory")
	t.Setenv("FINRAG_QUERY_EXPANSION", "false")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	completer := &llmtest.Completer{Answer: "Revenue was $4.2 billion.", Tokens: 9}
	embedder := llmtest.NewHashEmbedder(16)

	original := appOptions
	appOptions = func() app.Options {
		return app.Options{Embedder: embedder, Completer: completer, Logger: logging.Discard()}
	}
	t.Cleanup(func() { appOptions = original })
	return completer
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeContext(t, context.Background(), "", args...)
}

func executeContext(t *testing.T, ctx context.Context, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var output bytes.Buffer
	cmd.SetOut(&output)
	cmd.SetErr(&output)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return output.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestIngestListDelete(t *testing.T) {
	useFakeEngine(t)
	path := writeFile(t, t.TempDir(), "q3.txt", q3Report)

	out, err := execute(t, "ingest", path)
	if err != nil {
		t.Fatalf("ingest error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "q3.txt") || !strings.Contains(out, "doc_") {
		t.Errorf("ingest output should name the source and document id, got:\n%s", out)
	}

	out, err = execute(t, "--format", "json", "list")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	var docs []models.SourceSummary
	if err := json.Unmarshal([]byte(out), &docs); err != nil {
		t.Fatalf("list output is not JSON: %v\n%s", err, out)
	}
	if len(docs) != 1 || docs[0].Source != "q3.txt" || docs[0].ChunkCount == 0 {
		t.Fatalf("unexpected documents: %+v", docs)
	}

	out, err = execute(t, "delete", "q3.txt")
	if err != nil {
		t.Fatalf("delete error = %v", err)
	}
	if !strings.Contains(out, "Deleted q3.txt") {
		t.Errorf("unexpected delete output: %s", out)
	}

	if _, err := execute(t, "delete", "q3.txt"); err == nil {
		t.Error("deleting a missing document should fail")
	}

	out, err = execute(t, "list")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if !strings.Contains(out, "No documents indexed") {
		t.Errorf("expected empty listing, got:\n%s", out)
	}
}

func TestIngest_Directory(t *testing.T) {
	useFakeEngine(t)
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", q3Report)
	writeFile(t, dir, "b.txt", "Globex net income was $910 million for fiscal 2023, compared with $780 million a year earlier.")
	writeFile(t, dir, "ignored.md", "# Notes")

	out, err := execute(t, "--format", "json", "ingest", dir)
	if err != nil {
		t.Fatalf("ingest error = %v\n%s", err, out)
	}
	var results []rag.UploadResult
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("ingest output is not JSON: %v\n%s", err, out)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 ingested files, got %d", len(results))
	}
}

func TestIngest_Errors(t *testing.T) {
	useFakeEngine(t)
	dir := t.TempDir()

	if _, err := execute(t, "ingest"); err == nil {
		t.Error("ingest without paths should fail")
	}
	if _, err := execute(t, "ingest", filepath.Join(dir, "missing.pdf")); err == nil {
		t.Error("ingest of a missing file should fail")
	}
	empty := writeFile(t, dir, "empty.txt", "   ")
	if _, err := execute(t, "ingest", empty); err == nil {
		t.Error("ingest of a file without text should fail")
	}
}

func TestAsk(t *testing.T) {
	completer := useFakeEngine(t)
	path := writeFile(t, t.TempDir(), "q3.txt", q3Report)
	if out, err := execute(t, "ingest", path); err != nil {
		t.Fatalf("ingest error = %v\n%s", err, out)
	}

	out, err := execute(t, "ask", "--temperature", "0.2", "What", "was", "revenue?")
	if err != nil {
		t.Fatalf("ask error = %v\n%s", err, out)
	}
	for _, want := range []string{"Revenue was $4.2 billion.", "Sources:", "q3.txt", "hybrid"} {
		if !strings.Contains(out, want) {
			t.Errorf("ask output should contain %q, got:\n%s", want, out)
		}
	}

	calls := completer.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 completion, got %d", len(calls))
	}
	if calls[0].User != "What was revenue?" || calls[0].Temperature != 0.2 {
		t.Errorf("unexpected completion call: %+v", calls[0])
	}
}

func TestAsk_JSONSemantic(t *testing.T) {
	useFakeEngine(t)

	out, err := execute(t, "--format", "json", "ask", "--semantic", "What was revenue?")
	if err != nil {
		t.Fatalf("ask error = %v\n%s", err, out)
	}
	var resp models.QueryResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("ask output is not JSON: %v\n%s", err, out)
	}
	if resp.SearchStrategy != rag.StrategySemantic {
		t.Errorf("SearchStrategy = %q, want %q", resp.SearchStrategy, rag.StrategySemantic)
	}
	if !strings.HasPrefix(resp.ConversationID, "conv_") {
		t.Errorf("unexpected conversation id %q", resp.ConversationID)
	}
}

func TestAsk_Validation(t *testing.T) {
	useFakeEngine(t)

	if _, err := execute(t, "ask"); err == nil {
		t.Error("ask without a question should fail")
	}
	if _, err := execute(t, "ask", "--top-k", "0", "question"); err == nil {
		t.Error("non-positive --top-k should fail")
	}
	if _, err := execute(t, "ask", "--top-k", "50", "question"); err == nil {
		t.Error("--top-k above the maximum should fail")
	}
	if _, err := execute(t, "ask", "--temperature", "3", "question"); err == nil {
		t.Error("temperature above the maximum should fail")
	}
}

func TestAsk_Interactive(t *testing.T) {
	completer := useFakeEngine(t)

	stdin := "What was revenue?\n/history\nAnd margin?\n/clear\n/history\n/quit\nnever asked\n"
	out, err := executeContext(t, context.Background(), stdin, "ask", "--interactive")
	if err != nil {
		t.Fatalf("ask error = %v\n%s", err, out)
	}

	calls := completer.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 completions, got %d", len(calls))
	}
	if !strings.Contains(calls[1].System, "What was revenue?") {
		t.Error("second turn should see the first exchange in its prompt")
	}
	for _, want := range []string{"User", "Conversation cleared", "No conversation history"} {
		if !strings.Contains(out, want) {
			t.Errorf("interactive output should contain %q, got:\n%s", want, out)
		}
	}
}

func TestHealth(t *testing.T) {
	useFakeEngine(t)

	out, err := execute(t, "--format", "json", "health")
	if err != nil {
		t.Fatalf("health error = %v\n%s", err, out)
	}
	var h models.Health
	if err := json.Unmarshal([]byte(out), &h); err != nil {
		t.Fatalf("health output is not JSON: %v\n%s", err, out)
	}
	if h.Status != rag.StatusHealthy {
		t.Errorf("Status = %q, want %q", h.Status, rag.StatusHealthy)
	}
}

func TestWatch(t *testing.T) {
	useFakeEngine(t)
	dir := t.TempDir()
	writeFile(t, dir, "q3.txt", q3Report)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, err := executeContext(t, ctx, "", "watch", "--debounce", "50ms", dir)
	if err != nil {
		t.Fatalf("watch error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "Indexed 1 new documents") {
		t.Errorf("unexpected watch output:\n%s", out)
	}

	out, err = execute(t, "list")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if !strings.Contains(out, "q3.txt") {
		t.Errorf("watched file should be persisted, got:\n%s", out)
	}
}

func TestWatch_NotADirectory(t *testing.T) {
	useFakeEngine(t)
	path := writeFile(t, t.TempDir(), "q3.txt", q3Report)

	if _, err := execute(t, "watch", path); err == nil {
		t.Error("watching a file should fail")
	}
}

func TestEval_SingleScenario(t *testing.T) {
	useFakeEngine(t)
	output := filepath.Join(t.TempDir(), "report.json")

	out, _ := execute(t, "eval", "--scenario", "revenue_lookup", "--output", output)
	if !strings.Contains(out, "revenue_lookup") {
		t.Errorf("eval output should name the scenario, got:\n%s", out)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	var report eval.Report
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("report is not JSON: %v", err)
	}
	if report.Total != 1 || report.Suite != "financial-basics" {
		t.Errorf("unexpected report: total=%d suite=%q", report.Total, report.Suite)
	}

	// eval never touches the persisted index
	listOut, err := execute(t, "list")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if !strings.Contains(listOut, "No documents indexed") {
		t.Errorf("eval should use an in-memory index, got:\n%s", listOut)
	}
}

func TestEval_UnknownScenario(t *testing.T) {
	useFakeEngine(t)

	if _, err := execute(t, "eval", "--scenario", "nope"); err == nil {
		t.Error("unknown scenario should fail")
	}
}

func TestMCPCmd_Flags(t *testing.T) {
	cmd := NewMCPCmd()
	if cmd.Flags().Lookup("sample-dir") == nil {
		t.Error("--sample-dir flag not found")
	}
	if cmd.Example == "" {
		t.Error("mcp command should document client configuration")
	}
}
