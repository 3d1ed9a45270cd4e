package llmpipes_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	llmpipes "github.com/temirov/llm-pipes/cmd/llm-pipes"
)

const (
	testAPIKeyVariable = "LLM_PIPES_TEST_API_KEY"
	configTemplate     = `common:
  api:
    endpoint: %s
    api_key_env: LLM_PIPES_TEST_API_KEY
  logging:
    level: error
    format: json
  defaults:
    timeout_seconds: 5
    retries: 0
    concurrency: 2
models:
  - name: mock
    model_id: mock-1
    default: true
indexes:
  - name: notes
    provider: memory
    documents: %s
    dimensions: 64
recipes:
  - name: ask
    enabled: true
    type: prompt
  - name: answer
    enabled: true
    type: answer
    index: notes
    top_n: 1
  - name: brief
    enabled: true
    type: brief
    index: notes
    top_n: 2
  - name: legacy
    enabled: false
    type: prompt
`
	corpus = `{"id":"tea","text":"Green tea is steeped at eighty degrees"}
{"id":"coffee","text":"Espresso is brewed under pressure"}
`
	briefReply = `{"title":"Tea","summary":"Steep green tea gently.","key_points":["eighty degrees"]}`
)

type fakeOpenAI struct {
	mu      sync.Mutex
	prompts []string
}

func (f *fakeOpenAI) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var payload struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
			ResponseFormat json.RawMessage `json:"response_format"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		prompt := payload.Messages[len(payload.Messages)-1].Content
		f.mu.Lock()
		f.prompts = append(f.prompts, prompt)
		f.mu.Unlock()

		if strings.Contains(prompt, "fail") {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"bad prompt"}}`))
			return
		}
		reply := "Mock response: " + prompt
		if len(payload.ResponseFormat) > 0 {
			reply = briefReply
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message":       map[string]any{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
		})
	})
}

func (f *fakeOpenAI) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

func setup(t *testing.T) (configPath string, server *fakeOpenAI) {
	t.Helper()
	server = &fakeOpenAI{}
	httpServer := httptest.NewServer(server.handler(t))
	t.Cleanup(httpServer.Close)
	t.Setenv(testAPIKeyVariable, "test-key")

	dir := t.TempDir()
	corpusDir := filepath.Join(dir, "corpus")
	if err := os.MkdirAll(corpusDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(corpusDir, "notes.jsonl"), []byte(corpus), 0o644); err != nil {
		t.Fatalf("write corpus: %v", err)
	}
	configPath = filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(configTemplate, httpServer.URL, corpusDir)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath, server
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	command := llmpipes.NewRootCommand()
	command.SetIn(strings.NewReader(stdin))
	command.SetOut(&stdout)
	command.SetErr(&stderr)
	command.SetArgs(args)
	err := command.Execute()
	return stdout.String(), stderr.String(), err
}

func TestList_DefaultFiltersDisabled(t *testing.T) {
	configPath, _ := setup(t)

	out, _, err := execute(t, "", "list", "--config", configPath)
	if err != nil {
		t.Fatalf("execute list: %v", err)
	}
	if !strings.Contains(out, "ask\t(enabled, type=prompt, model=-, index=-)") {
		t.Fatalf("expected ask in listing; got:\n%s", out)
	}
	if !strings.Contains(out, "answer\t(enabled, type=answer, model=-, index=notes)") {
		t.Fatalf("expected answer in listing; got:\n%s", out)
	}
	if strings.Contains(out, "legacy") {
		t.Fatalf("did not expect disabled recipe without --all; got:\n%s", out)
	}
}

func TestList_AllShowsDisabled(t *testing.T) {
	configPath, _ := setup(t)

	out, _, err := execute(t, "", "list", "--all", "--config", configPath)
	if err != nil {
		t.Fatalf("execute list --all: %v", err)
	}
	if !strings.Contains(out, "legacy\t(disabled") {
		t.Fatalf("expected disabled recipe with --all; got:\n%s", out)
	}
}

func TestList_ConfigFromEnvironment(t *testing.T) {
	configPath, _ := setup(t)
	t.Setenv("LLM_PIPES_CONFIG", configPath)

	out, _, err := execute(t, "", "list")
	if err != nil {
		t.Fatalf("execute list: %v", err)
	}
	if !strings.Contains(out, "brief\t(enabled") {
		t.Fatalf("expected configuration from LLM_PIPES_CONFIG; got:\n%s", out)
	}
}

func TestRun_PromptRecipeKeepsInputOrder(t *testing.T) {
	configPath, _ := setup(t)

	out, _, err := execute(t, "", "run", "ask", "one", "two", "three", "--config", configPath)
	if err != nil {
		t.Fatalf("execute run: %v", err)
	}
	expected := "Mock response: one\n\nMock response: two\n\nMock response: three\n"
	if out != expected {
		t.Fatalf("unexpected output:\n%q\nwant\n%q", out, expected)
	}
}

func TestRun_ReadsInputsFromStdin(t *testing.T) {
	configPath, server := setup(t)

	out, _, err := execute(t, "first\n\n  second  \n", "run", "ask", "--config", configPath, "--concurrency", "1")
	if err != nil {
		t.Fatalf("execute run: %v", err)
	}
	if out != "Mock response: first\n\nMock response: second\n" {
		t.Fatalf("unexpected output: %q", out)
	}
	if len(server.seen()) != 2 {
		t.Fatalf("expected 2 prompts, got %v", server.seen())
	}
}

func TestRun_AnswerRecipeRetrievesContext(t *testing.T) {
	configPath, server := setup(t)

	_, _, err := execute(t, "", "run", "answer", "how hot should green tea be", "--config", configPath)
	if err != nil {
		t.Fatalf("execute run: %v", err)
	}
	prompts := server.seen()
	if len(prompts) != 1 {
		t.Fatalf("expected one prompt, got %d", len(prompts))
	}
	if !strings.Contains(prompts[0], "[1] Green tea is steeped at eighty degrees") {
		t.Fatalf("prompt lacks the retrieved passage:\n%s", prompts[0])
	}
	if strings.Contains(prompts[0], "Espresso") {
		t.Fatalf("top_n 1 should retrieve a single passage:\n%s", prompts[0])
	}
}

func TestRun_BriefRecipe(t *testing.T) {
	configPath, _ := setup(t)

	out, _, err := execute(t, "", "run", "brief", "green tea", "--config", configPath)
	if err != nil {
		t.Fatalf("execute run: %v", err)
	}
	if out != "# Tea\n\nSteep green tea gently.\n\n- eighty degrees\n" {
		t.Fatalf("unexpected brief:\n%s", out)
	}
}

func TestRun_FailuresAreReportedPerInput(t *testing.T) {
	configPath, _ := setup(t)

	out, errOut, err := execute(t, "", "run", "ask", "fine", "please fail", "--config", configPath)
	if err == nil || err.Error() != "1 of 2 inputs failed" {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Mock response: fine\n" {
		t.Fatalf("successful input should still print; got %q", out)
	}
	if !strings.Contains(errOut, `input 2 ("please fail")`) || !strings.Contains(errOut, "status=400") {
		t.Fatalf("unexpected stderr: %s", errOut)
	}
}

func TestRun_Errors(t *testing.T) {
	configPath, _ := setup(t)

	if _, _, err := execute(t, "", "run", "legacy", "x", "--config", configPath); err == nil || !strings.Contains(err.Error(), `unknown or disabled recipe "legacy"`) {
		t.Fatalf("expected disabled recipe error, got %v", err)
	}
	if _, _, err := execute(t, "", "run", "ask", "x", "--model", "huge", "--config", configPath); err == nil || !strings.Contains(err.Error(), `model "huge" not found`) {
		t.Fatalf("expected unknown model error, got %v", err)
	}

	t.Setenv(testAPIKeyVariable, "")
	if _, _, err := execute(t, "", "run", "ask", "x", "--config", configPath); err == nil || !strings.Contains(err.Error(), "missing API key") {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestSearch(t *testing.T) {
	configPath, server := setup(t)

	out, _, err := execute(t, "", "search", "notes", "espresso pressure", "--ids", "--top", "1", "--config", configPath)
	if err != nil {
		t.Fatalf("execute search: %v", err)
	}
	fields := strings.Split(strings.TrimSpace(out), "\t")
	if len(fields) != 2 || fields[1] != "coffee" {
		t.Fatalf("unexpected ids output: %q", out)
	}

	out, _, err = execute(t, "", "search", "notes", "green tea", "--config", configPath)
	if err != nil {
		t.Fatalf("execute search: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], "\ttea\t{") {
		t.Fatalf("unexpected search output:\n%s", out)
	}
	if len(server.seen()) != 0 {
		t.Fatalf("search with the hash embedder must not call the completion API")
	}

	if _, _, err := execute(t, "", "search", "missing", "q", "--config", configPath); err == nil || !strings.Contains(err.Error(), `unknown index "missing"`) {
		t.Fatalf("expected unknown index error, got %v", err)
	}
}

func TestChat(t *testing.T) {
	configPath, _ := setup(t)

	out, _, err := execute(t, "hello\nEXIT\n", "chat", "--config", configPath)
	if err != nil {
		t.Fatalf("execute chat: %v", err)
	}
	if !strings.HasPrefix(out, "Welcome to the chatbot! Type 'exit' to quit.\n") {
		t.Fatalf("missing welcome line:\n%s", out)
	}
	if !strings.Contains(out, "Mock response: hello") || !strings.HasSuffix(out, "Goodbye!\n") {
		t.Fatalf("unexpected chat transcript:\n%s", out)
	}
}
