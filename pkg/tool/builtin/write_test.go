package builtin

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestWrite_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	args, _ := json.Marshal(writeArgs{Path: path, Content: "hello"})
	result, err := handleWrite(context.Background(), string(args))
	if err != nil {
		t.Fatal(err)
	}

	var outcome writeOutcome
	if err := json.Unmarshal([]byte(result.Output), &outcome); err != nil {
		t.Fatal(err)
	}
	if outcome.WrittenBytes != 5 {
		t.Errorf("expected 5 written bytes, got %d", outcome.WrittenBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Errorf("unexpected file content: %q", data)
	}
}

func TestWrite_Overwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	args, _ := json.Marshal(writeArgs{Path: path, Content: "new"})
	if _, err := handleWrite(context.Background(), string(args)); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "new" {
		t.Errorf("unexpected file content: %q", data)
	}
}

func TestWrite_MissingParentDir(t *testing.T) {
	args, _ := json.Marshal(writeArgs{Path: "/nonexistent/dir/out.txt", Content: "x"})
	_, err := handleWrite(context.Background(), string(args))
	if err == nil {
		t.Fatal("expected error for missing parent directory")
	}
}

func TestWrite_EmptyPathRejected(t *testing.T) {
	_, err := handleWrite(context.Background(), `{"content":"x"}`)
	if err == nil {
		t.Fatal("expected error for empty path")
	}
}
