package fsops_test

import (
	"testing"

	"github.com/temirov/llm-pipes/internal/fsops"
)

func TestInventory_InMemory(t *testing.T) {
	mem := fsops.NewMem()
	ops := fsops.NewOps(mem)

	seed := map[string]string{
		"/corpus/a.json":           `[{"id":"a","text":"alpha"}]`,
		"/corpus/nested/b.JSONL":   `{"id":"b","text":"beta"}`,
		"/corpus/notes.txt":        "ignored by extension",
		"/corpus/.cache/c.json":    `[{"id":"c","text":"hidden"}]`,
		"/elsewhere/outside.jsonl": `{"id":"x","text":"outside"}`,
	}
	for name, body := range seed {
		if err := mem.WriteFile(name, []byte(body)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	files, err := ops.Inventory("/corpus", ".json", ".jsonl")
	if err != nil {
		t.Fatalf("inventory: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d: %+v", len(files), files)
	}
	if files[0].Path != "/corpus/a.json" || files[1].Path != "/corpus/nested/b.JSONL" {
		t.Fatalf("unexpected order: %+v", files)
	}
	if files[1].Extension != ".jsonl" {
		t.Fatalf("extension should be lower-cased, got %q", files[1].Extension)
	}

	all, err := ops.Inventory("/corpus")
	if err != nil {
		t.Fatalf("inventory all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 files without a filter, got %d", len(all))
	}

	if !ops.FileExists("/corpus/notes.txt") {
		t.Fatalf("notes.txt should exist")
	}
	if ops.FileExists("/corpus/missing.json") {
		t.Fatalf("missing.json should not exist")
	}
}

func TestInventory_SingleFileRoot(t *testing.T) {
	mem := fsops.NewMem()
	if err := mem.WriteFile("/docs.jsonl", []byte(`{"id":"1","text":"one"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	files, err := fsops.NewOps(mem).Inventory("/docs.jsonl", ".jsonl")
	if err != nil {
		t.Fatalf("inventory: %v", err)
	}
	if len(files) != 1 || files[0].Path != "/docs.jsonl" {
		t.Fatalf("unexpected files: %+v", files)
	}
}

func TestInventory_MissingRoot(t *testing.T) {
	if _, err := fsops.NewOps(fsops.NewMem()).Inventory("/nope"); err == nil {
		t.Fatalf("expected an error for a missing root")
	}
}
