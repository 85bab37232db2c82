package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCatalogDefaults(t *testing.T) {
	catalog, err := NewQuestionCatalog("")
	if err != nil {
		t.Fatalf("catalog init failed: %v", err)
	}
	defer catalog.Close()

	questions := catalog.All()
	if len(questions) != 4 {
		t.Fatalf("expected 4 seeded questions, got %d", len(questions))
	}

	q, ok := catalog.Get("mpesa_competition")
	if !ok {
		t.Fatal("seeded question missing")
	}
	if q.Title == "" || q.Question == "" || len(q.SearchTerms) == 0 {
		t.Fatalf("incomplete seeded question: %+v", q)
	}

	if _, ok := catalog.Get("unknown"); ok {
		t.Fatal("lookup of unknown id succeeded")
	}
}

func TestCatalogFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "questions.yaml")

	content := `questions:
  - id: custom_one
    title: Custom Question
    question: What is happening with custom topic?
    focus: testing
    search_terms:
      - custom topic
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	catalog, err := NewQuestionCatalog(path)
	if err != nil {
		t.Fatalf("catalog init failed: %v", err)
	}
	defer catalog.Close()

	if len(catalog.All()) != 1 {
		t.Fatalf("expected 1 question from file, got %d", len(catalog.All()))
	}
	if _, ok := catalog.Get("custom_one"); !ok {
		t.Fatal("file question not loaded")
	}
	if _, ok := catalog.Get("gen_z_nigeria"); ok {
		t.Fatal("defaults should be replaced when a file is configured")
	}
}

func TestCatalogHotReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "questions.yaml")

	writeQuestions := func(id string) {
		content := "questions:\n  - id: " + id + "\n    title: T\n    question: Q?\n"
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	writeQuestions("before")
	catalog, err := NewQuestionCatalog(path)
	if err != nil {
		t.Fatalf("catalog init failed: %v", err)
	}
	defer catalog.Close()

	writeQuestions("after")

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := catalog.Get("after"); ok {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("catalog did not reload after file change")
}

func TestCatalogRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "questions.yaml")
	if err := os.WriteFile(path, []byte("questions: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewQuestionCatalog(path); err == nil {
		t.Fatal("empty questions file accepted")
	}

	if _, err := NewQuestionCatalog(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("missing questions file accepted")
	}
}
