package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tejasframework/tejas/core/pools"
	"github.com/tejasframework/tejas/core/router"
)

func TestCollectFindsOnlyTargetSoFilesInSortedOrder(t *testing.T) {
	dir := t.TempDir()

	write := func(rel string) {
		full := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(full, []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	write("b/users_target.so")
	write("a/orders_target.so")
	write("notes.txt")
	write("other.so")

	got, err := collect(dir)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	want := []string{
		filepath.Join(dir, "a/orders_target.so"),
		filepath.Join(dir, "b/users_target.so"),
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestLoadWithEmptyDirIsNoop(t *testing.T) {
	reg := router.New()
	if err := Load("", reg, pools.NewWorkerPool(2)); err != nil {
		t.Fatalf("expected no error for an empty dir, got %v", err)
	}
}

func TestLoadOneRejectsAFileThatIsNotAValidPlugin(t *testing.T) {
	dir := t.TempDir()
	bogus := filepath.Join(dir, "bogus_target.so")
	if err := os.WriteFile(bogus, []byte("not an elf plugin"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	reg := router.New()
	err := Load(dir, reg, pools.NewWorkerPool(2))
	if err == nil {
		t.Fatal("expected an error opening a non-plugin file")
	}
}
