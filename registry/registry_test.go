package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/redline/coords"
	"github.com/wudi/redline/render"
)

func box(y float64) coords.Rect { return coords.Rect{X: 0, Y: y, W: 612, H: 792} }

func attach(t *testing.T, host render.Host, onUpdate func(Mapping)) *Registry {
	t.Helper()
	r := New(host, onUpdate, WithPollInterval(time.Millisecond))
	if err := r.Attach(context.Background()); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	return r
}

func TestAttachEmitsInitialMapping(t *testing.T) {
	h := render.NewMemHost()
	h.AddPage("a", "Page 1", box(0))
	h.AddPage("b", "Page 2", box(800))

	var got []Mapping
	r := attach(t, h, func(m Mapping) { got = append(got, m) })
	defer r.Close()

	if len(got) != 1 {
		t.Fatalf("expected 1 emission, got %d", len(got))
	}
	if diff := cmp.Diff([]int{0, 1}, got[0].Indices()); diff != "" {
		t.Errorf("indices mismatch (-want +got):\n%s", diff)
	}
}

func TestEmitOnlyOnIndexSetChange(t *testing.T) {
	h := render.NewMemHost()
	h.AddPage("a", "Page 1", box(0))

	var emissions int
	r := attach(t, h, func(Mapping) { emissions++ })
	defer r.Close()

	if emissions != 1 {
		t.Fatalf("expected initial emission, got %d", emissions)
	}

	// Reflow only: the index set is unchanged, so nothing is emitted.
	h.SetBounds("a", box(50))
	if emissions != 1 {
		t.Errorf("reflow must not emit, got %d emissions", emissions)
	}

	// Structural change: new index appears.
	h.AddPage("b", "Page 2", box(900))
	if emissions != 2 {
		t.Errorf("mount must emit, got %d emissions", emissions)
	}

	// Unmount: index disappears.
	h.RemovePage("a")
	if emissions != 3 {
		t.Errorf("unmount must emit, got %d emissions", emissions)
	}
	if diff := cmp.Diff([]int{1}, r.Mapping().Indices()); diff != "" {
		t.Errorf("mapping mismatch (-want +got):\n%s", diff)
	}
}

func TestUnparsableLabelSkipped(t *testing.T) {
	h := render.NewMemHost()
	h.AddPage("a", "Page 1", box(0))
	h.AddPage("weird", "Cover", box(800))
	h.AddPage("c", "Page 3", box(1600))

	r := attach(t, h, nil)
	defer r.Close()

	if diff := cmp.Diff([]int{0, 2}, r.Mapping().Indices()); diff != "" {
		t.Errorf("indices mismatch (-want +got):\n%s", diff)
	}
}

func TestParseLabel(t *testing.T) {
	tests := []struct {
		label string
		index int
		ok    bool
	}{
		{"Page 1", 0, true},
		{"Page 12", 11, true},
		{"Page  3", 2, true},
		{"Page 0", 0, false},
		{"Page -2", 0, false},
		{"Cover", 0, false},
		{"Page x", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		index, ok := parseLabel(tt.label)
		if ok != tt.ok || (ok && index != tt.index) {
			t.Errorf("parseLabel(%q) = (%d, %v), want (%d, %v)", tt.label, index, ok, tt.index, tt.ok)
		}
	}
}

func TestPollingExhaustion(t *testing.T) {
	h := render.NewDetachedMemHost()
	r := New(h, nil, WithPollInterval(time.Millisecond), WithPollAttempts(3))

	err := r.Attach(context.Background())
	if !errors.Is(err, ErrRendererNotFound) {
		t.Fatalf("expected ErrRendererNotFound, got %v", err)
	}
	if !r.Degraded() {
		t.Error("registry must report degraded after exhaustion")
	}
}

func TestPollingFindsLateRoot(t *testing.T) {
	h := render.NewDetachedMemHost()
	h.AddPage("a", "Page 1", box(0))

	go func() {
		time.Sleep(5 * time.Millisecond)
		h.SetPresent(true)
	}()

	r := New(h, nil, WithPollInterval(time.Millisecond), WithPollAttempts(1000))
	if err := r.Attach(context.Background()); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	defer r.Close()

	if diff := cmp.Diff([]int{0}, r.Mapping().Indices()); diff != "" {
		t.Errorf("indices mismatch (-want +got):\n%s", diff)
	}
}

func TestAttachContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := New(render.NewDetachedMemHost(), nil, WithPollInterval(time.Millisecond))
	if err := r.Attach(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCloseStopsEmissions(t *testing.T) {
	h := render.NewMemHost()
	h.AddPage("a", "Page 1", box(0))

	var emissions int
	r := attach(t, h, func(Mapping) { emissions++ })
	r.Close()

	h.AddPage("b", "Page 2", box(900))
	if emissions != 1 {
		t.Errorf("expected no emission after Close, got %d", emissions)
	}
}
