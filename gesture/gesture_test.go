package gesture

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/redline/coords"
)

func pt(x, y float64) coords.Point { return coords.Point{X: x, Y: y} }

func drive(t *testing.T, cfg Config, events ...Event) (State, []Effect) {
	t.Helper()
	s := Idle()
	var all []Effect
	for _, ev := range events {
		var fx []Effect
		s, fx = Handle(s, ev, cfg)
		all = append(all, fx...)
	}
	return s, all
}

func commits(effects []Effect) []Effect {
	var out []Effect
	for _, e := range effects {
		switch e.(type) {
		case CommitBlur, CommitLabel, BeginStroke, ExtendStroke:
			out = append(out, e)
		}
	}
	return out
}

func TestPressIgnoredWithoutDrawingTool(t *testing.T) {
	s, fx := Handle(Idle(), Press{Page: 0, Point: pt(5, 5)}, Config{Tool: ToolNone})
	if s.Phase != PhaseIdle || len(fx) != 0 {
		t.Errorf("press with tool none must be ignored, got %+v / %v", s, fx)
	}
}

func TestBlurThreshold(t *testing.T) {
	tests := []struct {
		name    string
		release coords.Point
		want    int // committed blur regions
	}{
		{"both at threshold", pt(15, 15), 0},
		{"both below", pt(12, 13), 0},
		{"dx just above", pt(16, 10), 1},
		{"dy just above", pt(10, 16), 1},
		{"negative dx above", pt(3, 10), 1},
	}
	cfg := NewConfig(ToolBlur)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, fx := drive(t, cfg,
				Press{Page: 0, Point: pt(10, 10)},
				Move{Point: tt.release},
				Release{Point: tt.release},
			)
			if s.Phase != PhaseIdle {
				t.Errorf("phase = %v, want Idle", s.Phase)
			}
			got := commits(fx)
			if len(got) != tt.want {
				t.Fatalf("commits = %d, want %d (%v)", len(got), tt.want, got)
			}
			if tt.want == 1 {
				want := CommitBlur{Page: 0, Start: pt(10, 10), End: tt.release}
				if diff := cmp.Diff(want, got[0]); diff != "" {
					t.Errorf("commit mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestZeroBlurThresholdCommitsMinimalDrag(t *testing.T) {
	// An explicit zero threshold is honored, not replaced by the default.
	cfg := Config{Tool: ToolBlur}
	_, fx := drive(t, cfg,
		Press{Page: 0, Point: pt(10, 10)},
		Move{Point: pt(11, 10)},
		Release{Point: pt(11, 10)},
	)
	got := commits(fx)
	if len(got) != 1 {
		t.Fatalf("commits = %d, want 1 (%v)", len(got), got)
	}
	want := CommitBlur{Page: 0, Start: pt(10, 10), End: pt(11, 10)}
	if diff := cmp.Diff(want, got[0]); diff != "" {
		t.Errorf("commit mismatch (-want +got):\n%s", diff)
	}
}

func TestEraseCommitsIncrementally(t *testing.T) {
	cfg := Config{Tool: ToolErase}
	_, fx := drive(t, cfg,
		Press{Page: 2, Point: pt(10, 10)},
		Move{Point: pt(20, 10)},
		Move{Point: pt(20, 20)},
		Release{Point: pt(20, 20)},
	)
	want := []Effect{
		BeginStroke{Page: 2, Start: pt(10, 10), Point: pt(20, 10)},
		ExtendStroke{Page: 2, Point: pt(20, 20)},
	}
	if diff := cmp.Diff(want, commits(fx)); diff != "" {
		t.Errorf("erase commits mismatch (-want +got):\n%s", diff)
	}
}

func TestEraseWithoutMoveCommitsNothing(t *testing.T) {
	cfg := Config{Tool: ToolErase}
	_, fx := drive(t, cfg,
		Press{Page: 0, Point: pt(10, 10)},
		Release{Point: pt(10, 10)},
	)
	if got := commits(fx); len(got) != 0 {
		t.Errorf("expected no commits, got %v", got)
	}
}

func TestMoveEmitsRedrawThenPreview(t *testing.T) {
	cfg := Config{Tool: ToolBlur}
	s, _ := Handle(Idle(), Press{Page: 1, Point: pt(0, 0)}, cfg)
	_, fx := Handle(s, Move{Point: pt(30, 40)}, cfg)

	want := []Effect{
		Redraw{Page: 1},
		Preview{Page: 1, Tool: ToolBlur, Start: pt(0, 0), Current: pt(30, 40)},
	}
	if diff := cmp.Diff(want, fx); diff != "" {
		t.Errorf("effects mismatch (-want +got):\n%s", diff)
	}
}

func TestLeaveAbortsDrag(t *testing.T) {
	cfg := Config{Tool: ToolBlur}
	s, fx := drive(t, cfg,
		Press{Page: 0, Point: pt(0, 0)},
		Move{Point: pt(50, 50)},
		Leave{},
	)
	if s.Phase != PhaseIdle {
		t.Errorf("phase = %v, want Idle", s.Phase)
	}
	if got := commits(fx); len(got) != 0 {
		t.Errorf("leave must not commit, got %v", got)
	}
	if last := fx[len(fx)-1]; last != (Redraw{Page: 0}) {
		t.Errorf("expected trailing redraw, got %v", last)
	}
}

func TestToolSwitchMidDragKeepsEraseCommits(t *testing.T) {
	cfg := Config{Tool: ToolErase}
	s, _ := Handle(Idle(), Press{Page: 0, Point: pt(10, 10)}, cfg)
	s, fx := Handle(s, Move{Point: pt(20, 10)}, cfg)
	if len(commits(fx)) != 1 {
		t.Fatalf("expected a BeginStroke, got %v", fx)
	}

	// Switching tools forces Idle; the committed stroke stays in the store.
	s, fx = Handle(s, ToolChange{Tool: ToolBlur}, Config{Tool: ToolBlur})
	if s.Phase != PhaseIdle {
		t.Errorf("phase = %v, want Idle", s.Phase)
	}
	if got := commits(fx); len(got) != 0 {
		t.Errorf("tool switch must not commit, got %v", got)
	}
}

func TestToolSwitchMidDragDiscardsBlur(t *testing.T) {
	cfg := Config{Tool: ToolBlur}
	s, _ := drive(t, cfg,
		Press{Page: 0, Point: pt(0, 0)},
		Move{Point: pt(80, 80)},
	)
	s, fx := Handle(s, ToolChange{Tool: ToolNone}, Config{Tool: ToolNone})
	if s.Phase != PhaseIdle || len(commits(fx)) != 0 {
		t.Errorf("expected silent abort, got %+v / %v", s, fx)
	}

	// A release after the forced abort is out of phase and ignored.
	s2, fx2 := Handle(s, Release{Point: pt(80, 80)}, Config{Tool: ToolNone})
	if s2 != s || len(fx2) != 0 {
		t.Errorf("release after abort must be ignored")
	}
}

func TestAddTextFlow(t *testing.T) {
	cfg := Config{Tool: ToolAddText}
	s, fx := drive(t, cfg,
		Press{Page: 3, Point: pt(40, 40)},
		Release{Point: pt(42, 44)},
	)
	if s.Phase != PhasePendingText {
		t.Fatalf("phase = %v, want PendingText", s.Phase)
	}
	foundRequest := false
	for _, e := range fx {
		if r, ok := e.(RequestText); ok {
			foundRequest = true
			if r.Page != 3 || r.At != pt(42, 44) {
				t.Errorf("RequestText = %+v", r)
			}
		}
	}
	if !foundRequest {
		t.Fatal("expected a RequestText effect")
	}

	s, fx = Handle(s, SubmitText{Text: "CONFIDENTIAL"}, cfg)
	if s.Phase != PhaseIdle {
		t.Errorf("phase = %v, want Idle", s.Phase)
	}
	want := []Effect{
		CommitLabel{Page: 3, At: pt(42, 44), Text: "CONFIDENTIAL"},
		Redraw{Page: 3},
	}
	if diff := cmp.Diff(want, fx); diff != "" {
		t.Errorf("effects mismatch (-want +got):\n%s", diff)
	}
}

func TestAddTextEmptyAndCancelled(t *testing.T) {
	cfg := Config{Tool: ToolAddText}
	for _, finish := range []Event{SubmitText{Text: ""}, CancelText{}} {
		s, _ := drive(t, cfg,
			Press{Page: 0, Point: pt(10, 10)},
			Release{Point: pt(10, 10)},
		)
		s, fx := Handle(s, finish, cfg)
		if s.Phase != PhaseIdle {
			t.Errorf("%T: phase = %v, want Idle", finish, s.Phase)
		}
		if got := commits(fx); len(got) != 0 {
			t.Errorf("%T: expected no commits, got %v", finish, got)
		}
	}
}

func TestHandleIsPure(t *testing.T) {
	cfg := Config{Tool: ToolBlur}
	state := State{Phase: PhaseDragging, Tool: ToolBlur, Page: 1, Start: pt(0, 0), Current: pt(5, 5)}
	ev := Move{Point: pt(9, 9)}

	s1, fx1 := Handle(state, ev, cfg)
	s2, fx2 := Handle(state, ev, cfg)
	if diff := cmp.Diff(s1, s2); diff != "" {
		t.Errorf("state not deterministic:\n%s", diff)
	}
	if diff := cmp.Diff(fx1, fx2); diff != "" {
		t.Errorf("effects not deterministic:\n%s", diff)
	}
}
