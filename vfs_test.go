package crucible

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestVFSRoundTripScenario(t *testing.T) {
	v := NewVFS()

	if err := v.WriteFileRecursive("/a/b.txt", []byte("hi")); err != nil {
		t.Fatalf("write b.txt: %v", err)
	}
	if err := v.WriteFileRecursive("/a/c.txt", []byte("ho")); err != nil {
		t.Fatalf("write c.txt: %v", err)
	}
	if err := v.Mkdir("/d", MkdirOptions{Recursive: true}); err != nil {
		t.Fatalf("mkdir /d: %v", err)
	}

	names, err := v.Readdir("/a")
	if err != nil {
		t.Fatalf("readdir /a: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"b.txt", "c.txt"}) {
		t.Fatalf("readdir order: got %v", names)
	}

	content, err := v.ReadFileString("/a/b.txt")
	if err != nil || content != "hi" {
		t.Fatalf("read b.txt: %q err=%v", content, err)
	}

	if !v.Exists("/d") {
		t.Fatalf("expected /d to exist")
	}

	stats, err := v.Stat("/a/b.txt")
	if err != nil || !stats.IsFile {
		t.Fatalf("stat b.txt: %+v err=%v", stats, err)
	}

	snapshot := v.ToJSON()
	want := map[string]string{"/a/b.txt": "hi", "/a/c.txt": "ho"}
	if !reflect.DeepEqual(snapshot, want) {
		t.Fatalf("to_json: got %v want %v", snapshot, want)
	}

	if err := v.Rmdir("/a", MkdirOptions{Recursive: false}); err == nil {
		t.Fatalf("expected NotEmpty error")
	} else if ve, ok := err.(*VFSError); !ok || ve.Code != ErrNotEmpty {
		t.Fatalf("expected NotEmpty, got %v", err)
	}
}

func TestVFSNormalizationIdempotence(t *testing.T) {
	cases := []string{"/foo/../bar", "foo/./bar", "//a//b/", "/", ".", "/a/b/../../c"}
	for _, p := range cases {
		once := NormalizePath(p, "/cwd")
		twice := NormalizePath(once, "/cwd")
		if once != twice {
			t.Fatalf("not idempotent: %q -> %q -> %q", p, once, twice)
		}
	}
}

func TestVFSJoinEquivalence(t *testing.T) {
	a, b := "/foo/bar", "../baz"
	got := NormalizePath(b, a)
	want := NormalizePath(a+"/"+b, "/")
	if got != want {
		t.Fatalf("join mismatch: %q vs %q", got, want)
	}
}

func TestVFSJSONRoundTripProperty(t *testing.T) {
	m := map[string]string{
		"/src/index.js":   "console.log(1)",
		"/src/utils.ts":   "export const x = 1;",
		"/node_modules/lodash/index.js": "module.exports = {}",
	}

	v := NewVFS()
	if err := v.FromJSON(m); err != nil {
		t.Fatalf("from_json: %v", err)
	}
	got := v.ToJSON()
	if !reflect.DeepEqual(got, m) {
		t.Fatalf("round trip mismatch: got %v want %v", got, m)
	}
}

func TestVFSRenameAtomic(t *testing.T) {
	v := NewVFS()
	v.WriteFileRecursive("/a/one.txt", []byte("1"))
	if err := v.Rename("/a/one.txt", "/a/two.txt"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if v.Exists("/a/one.txt") {
		t.Fatalf("old path should be gone")
	}
	content, err := v.ReadFileString("/a/two.txt")
	if err != nil || content != "1" {
		t.Fatalf("renamed content: %q err=%v", content, err)
	}
}

func TestVFSUnlinkRejectsDirectory(t *testing.T) {
	v := NewVFS()
	v.Mkdir("/a", MkdirOptions{})
	if err := v.Unlink("/a"); err == nil {
		t.Fatalf("expected IsADirectory error")
	} else if ve, ok := err.(*VFSError); !ok || ve.Code != ErrIsADirectory {
		t.Fatalf("wrong error: %v", err)
	}
}

func TestVFSPersistRestore(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "fs.bolt")

	store, err := OpenBoltBlobStore(dbPath)
	if err != nil {
		t.Fatalf("open bolt store: %v", err)
	}
	defer store.Close()

	v := NewVFS().WithBlobStore(store)
	v.WriteFileRecursive("/src/app.js", []byte("export default 1;"))
	if err := v.Persist(); err != nil {
		t.Fatalf("persist: %v", err)
	}

	fresh := NewVFS().WithBlobStore(store)
	fresh.Clear()
	if err := fresh.Restore(); err != nil {
		t.Fatalf("restore: %v", err)
	}
	content, err := fresh.ReadFileString("/src/app.js")
	if err != nil || content != "export default 1;" {
		t.Fatalf("restored content: %q err=%v", content, err)
	}

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected bolt file on disk: %v", err)
	}
}
