package savefile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"scrapyard.dev/internal/ledger"
	"scrapyard.dev/internal/session"
)

func TestWriteRead(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	path := PathFor(dir, "career one", at)
	if filepath.Base(filepath.Dir(path)) != "career_one" {
		t.Fatalf("slot dir: %s", path)
	}

	node := []byte("Scrapyard.Scrapyard\n{\n\tPARTS\n\t{\n\t\tmk1pod = 2\n\t}\n\tRESOURCES\n\t{\n\t}\n}\n")
	if err := Write(path, Header{SessionID: "s1", Slot: "career one", SavedAt: at, Parts: 1}, node); err != nil {
		t.Fatalf("write: %v", err)
	}
	h, root, err := ReadNode(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if h.Version != FormatVersion || h.SessionID != "s1" || !h.SavedAt.Equal(at) {
		t.Fatalf("header=%+v", h)
	}
	l := ledger.New()
	if _, err := ledger.Decode(root, l); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if l.Parts.Get("mk1pod") != 2 {
		t.Fatalf("mk1pod=%v", l.Parts.Get("mk1pod"))
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "1"+Ext)
	if err := os.WriteFile(path, []byte("not zstd"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Read(path); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLatestAndPrune(t *testing.T) {
	dir := t.TempDir()
	base := time.Unix(1700000000, 0)
	for i := 0; i < 5; i++ {
		if err := Write(PathFor(dir, "s", base.Add(time.Duration(i)*time.Second)), Header{Slot: "s"}, nil); err != nil {
			t.Fatal(err)
		}
	}
	// Non-save files are ignored.
	_ = os.WriteFile(filepath.Join(dir, "s", "notes.txt"), []byte("x"), 0o644)

	want := PathFor(dir, "s", base.Add(4*time.Second))
	if got := Latest(dir, "s"); got != want {
		t.Fatalf("latest=%s want %s", got, want)
	}
	if Latest(dir, "missing") != "" {
		t.Fatalf("missing slot should have no latest")
	}

	n, err := Prune(filepath.Join(dir, "s"), 2)
	if err != nil || n != 3 {
		t.Fatalf("prune n=%d err=%v", n, err)
	}
	files, _ := List(filepath.Join(dir, "s"))
	if len(files) != 2 || files[1] != want {
		t.Fatalf("after prune: %v", files)
	}
}

func TestWriterRun(t *testing.T) {
	dir := t.TempDir()
	in := make(chan session.SaveEntry, 1)
	written := make(chan string, 1)
	w := &Writer{Dir: dir, KeepLast: 1, OnWritten: func(path string, _ Header) { written <- path }}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, in) }()

	in <- session.SaveEntry{SessionID: "s1", Slot: "quick", At: time.Now(), Node: []byte("A\n{\n}\n")}
	select {
	case path := <-written:
		h, body, err := Read(path)
		if err != nil || h.Slot != "quick" || string(body) != "A\n{\n}\n" {
			t.Fatalf("read back h=%+v body=%q err=%v", h, body, err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("save not written")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}
