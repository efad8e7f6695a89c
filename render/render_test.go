package render

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wudi/redline/coords"
)

func TestMemHostStructure(t *testing.T) {
	h := NewMemHost()

	var fired int
	unsub, err := h.Subscribe(func() { fired++ })
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	h.AddPage("p1", "Page 1", coords.Rect{X: 0, Y: 0, W: 600, H: 800})
	h.AddPage("p2", "Page 2", coords.Rect{X: 0, Y: 810, W: 600, H: 800})
	if fired != 2 {
		t.Errorf("expected 2 notifications, got %d", fired)
	}

	cs := h.Containers()
	if len(cs) != 2 {
		t.Fatalf("expected 2 containers, got %d", len(cs))
	}
	if cs[0].Label() != "Page 1" || cs[1].Label() != "Page 2" {
		t.Errorf("unexpected labels: %q, %q", cs[0].Label(), cs[1].Label())
	}

	h.RemovePage("p1")
	if got := h.Containers(); len(got) != 1 || got[0].ID() != "p2" {
		t.Errorf("expected only p2 to remain, got %d containers", len(got))
	}

	unsub()
	h.AddPage("p3", "Page 3", coords.Rect{W: 600, H: 800})
	if fired != 3 {
		t.Errorf("notification after unsubscribe: fired = %d", fired)
	}
}

func TestMemHostDetached(t *testing.T) {
	h := NewDetachedMemHost()
	if _, ok := h.Root(); ok {
		t.Fatal("detached host must have no root")
	}
	h.SetPresent(true)
	if _, ok := h.Root(); !ok {
		t.Fatal("root must appear after SetPresent")
	}
}

func TestDirHostContainers(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("p001.json", `{"label":"Page 1","x":0,"y":0,"w":612,"h":792}`)
	write("p002.json", `{"label":"Page 2","x":0,"y":800,"w":612,"h":792}`)
	write("broken.json", `{not json`)
	write("notes.txt", "ignored")

	h := NewDirHost(dir)
	root, ok := h.Root()
	if !ok {
		t.Fatal("expected root for existing directory")
	}

	cs := root.Containers()
	if len(cs) != 2 {
		t.Fatalf("expected 2 containers (broken one skipped), got %d", len(cs))
	}
	if cs[0].ID() != "p001" || cs[0].Label() != "Page 1" {
		t.Errorf("unexpected first container: id=%q label=%q", cs[0].ID(), cs[0].Label())
	}
	want := coords.Rect{X: 0, Y: 800, W: 612, H: 792}
	if cs[1].Bounds() != want {
		t.Errorf("bounds = %+v, want %+v", cs[1].Bounds(), want)
	}
}

func TestDirHostDispatchDefersSubscribers(t *testing.T) {
	dir := t.TempDir()
	dispatched := make(chan func(), 16)
	h := NewDirHost(dir, WithDirHostDispatch(func(fn func()) {
		dispatched <- fn
	}))
	defer h.Close()

	fired := make(chan struct{}, 16)
	unsub, err := h.Subscribe(func() { fired <- struct{}{} })
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer unsub()

	path := filepath.Join(dir, "p001.json")
	if err := os.WriteFile(path, []byte(`{"label":"Page 1","w":612,"h":792}`), 0o644); err != nil {
		t.Fatal(err)
	}

	var fn func()
	select {
	case fn = <-dispatched:
	case <-time.After(5 * time.Second):
		t.Fatal("no dispatch for descriptor creation")
	}

	// The subscriber must not run until the embedder invokes the dispatched
	// function on its own goroutine.
	select {
	case <-fired:
		t.Fatal("subscriber ran before dispatch was drained")
	default:
	}

	fn()
	select {
	case <-fired:
	default:
		t.Fatal("subscriber did not run from the dispatched function")
	}
}

func TestDirHostMissingDir(t *testing.T) {
	h := NewDirHost(filepath.Join(t.TempDir(), "missing"))
	if _, ok := h.Root(); ok {
		t.Fatal("expected no root for missing directory")
	}
}
