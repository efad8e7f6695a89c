// Package gesture interprets press/move/release pointer events against the
// active drawing tool. The machine is a pure function of (state, event,
// config): it performs no I/O and touches no store; it returns the next
// state plus an ordered list of effects for the overlay manager to apply.
// This keeps every transition deterministic and directly testable.
package gesture

import "github.com/wudi/redline/coords"

// Tool is the process-wide tool selection. Changing it takes effect
// synchronously: input routing and any in-flight gesture react immediately.
type Tool int

const (
	ToolNone Tool = iota
	ToolBlur
	ToolErase
	ToolAddText
)

func (t Tool) String() string {
	switch t {
	case ToolNone:
		return "none"
	case ToolBlur:
		return "blur"
	case ToolErase:
		return "erase"
	case ToolAddText:
		return "addText"
	default:
		return "unknown"
	}
}

// Drawing reports whether the tool draws on surfaces (and therefore routes
// pointer input to them instead of the text-selection layer).
func (t Tool) Drawing() bool {
	return t == ToolBlur || t == ToolErase || t == ToolAddText
}

// Phase is the machine's current mode.
type Phase int

const (
	// PhaseIdle: no interaction in progress.
	PhaseIdle Phase = iota
	// PhaseDragging: a press landed on a page and the pointer is down.
	PhaseDragging
	// PhasePendingText: an addText release is waiting for the asynchronous
	// text completion (SubmitText or CancelText).
	PhasePendingText
)

// State is the transient per-interaction state. The zero value is Idle.
type State struct {
	Phase Phase
	Tool  Tool
	Page  int
	Start coords.Point
	// Current is the last observed pointer position, surface-local.
	Current coords.Point
	// StrokeOpen marks that an erase stroke has been committed to the store
	// for this drag and further points extend it.
	StrokeOpen bool
}

// Idle returns the initial state.
func Idle() State { return State{} }

// Config is the immutable per-event configuration. A value is captured by
// the caller for each incoming event, so there is no global mutable tool
// state inside the machine.
type Config struct {
	Tool Tool
	// BlurThreshold is the minimum drag extent on either axis for a blur
	// commit; a drag with |dx| and |dy| both at or below it commits nothing.
	BlurThreshold float64
}

// DefaultBlurThreshold matches the committed behavior: a 6px drag on one
// axis commits, 5px does not.
const DefaultBlurThreshold = 5

// NewConfig returns the configuration for tool with the default blur
// threshold. Handle takes Config values literally, so a zero threshold set
// on the returned value commits any drag with nonzero extent.
func NewConfig(tool Tool) Config {
	return Config{Tool: tool, BlurThreshold: DefaultBlurThreshold}
}

// Event is a pointer or completion event fed to the machine.
type Event interface{ isEvent() }

// Press starts a gesture at a surface-local point on a page.
type Press struct {
	Page  int
	Point coords.Point
}

// Move updates the pointer position during a drag (surface-local, clamped
// by the caller).
type Move struct {
	Point coords.Point
}

// Release ends the drag at a surface-local point.
type Release struct {
	Point coords.Point
}

// Leave reports the pointer leaving the interactive region mid-drag.
type Leave struct{}

// ToolChange reports a synchronous tool switch.
type ToolChange struct {
	Tool Tool
}

// SubmitText completes a pending text label.
type SubmitText struct {
	Text string
}

// CancelText abandons a pending text label.
type CancelText struct{}

func (Press) isEvent()      {}
func (Move) isEvent()       {}
func (Release) isEvent()    {}
func (Leave) isEvent()      {}
func (ToolChange) isEvent() {}
func (SubmitText) isEvent() {}
func (CancelText) isEvent() {}

// Effect is an instruction for the overlay manager. Effects apply in order.
type Effect interface{ isEffect() }

// Redraw replays the page's stored annotations, clearing any preview.
type Redraw struct {
	Page int
}

// Preview draws the live gesture feedback on top of the last redraw.
type Preview struct {
	Page    int
	Tool    Tool
	Start   coords.Point
	Current coords.Point
}

// BeginStroke commits a new erase stroke holding the first two points. The
// applier remembers the resulting annotation ID for ExtendStroke.
type BeginStroke struct {
	Page         int
	Start, Point coords.Point
}

// ExtendStroke appends one point to the open erase stroke.
type ExtendStroke struct {
	Page  int
	Point coords.Point
}

// CommitBlur records a blur region spanning the drag corners.
type CommitBlur struct {
	Page       int
	Start, End coords.Point
}

// CommitLabel records a text label.
type CommitLabel struct {
	Page int
	At   coords.Point
	Text string
}

// RequestText asks the embedder for label text; the answer arrives later as
// SubmitText or CancelText.
type RequestText struct {
	Page int
	At   coords.Point
}

func (Redraw) isEffect()       {}
func (Preview) isEffect()      {}
func (BeginStroke) isEffect()  {}
func (ExtendStroke) isEffect() {}
func (CommitBlur) isEffect()   {}
func (CommitLabel) isEffect()  {}
func (RequestText) isEffect()  {}

// Handle advances the machine. Unknown or out-of-phase events leave the
// state unchanged with no effects.
func Handle(s State, ev Event, cfg Config) (State, []Effect) {
	switch ev := ev.(type) {
	case Press:
		return handlePress(s, ev, cfg)
	case Move:
		return handleMove(s, ev)
	case Release:
		return handleRelease(s, ev, cfg)
	case Leave:
		return handleLeave(s)
	case ToolChange:
		return handleToolChange(s)
	case SubmitText:
		return handleSubmitText(s, ev)
	case CancelText:
		return handleCancelText(s)
	default:
		return s, nil
	}
}

func handlePress(s State, ev Press, cfg Config) (State, []Effect) {
	if s.Phase != PhaseIdle || !cfg.Tool.Drawing() {
		return s, nil
	}
	return State{
		Phase:   PhaseDragging,
		Tool:    cfg.Tool,
		Page:    ev.Page,
		Start:   ev.Point,
		Current: ev.Point,
	}, nil
}

func handleMove(s State, ev Move) (State, []Effect) {
	if s.Phase != PhaseDragging {
		return s, nil
	}
	next := s
	next.Current = ev.Point

	var effects []Effect
	if s.Tool == ToolErase {
		// Erase commits incrementally: the stroke exists in the store from
		// the first move on, so aborting the gesture keeps painted points.
		if !s.StrokeOpen {
			next.StrokeOpen = true
			effects = append(effects, BeginStroke{Page: s.Page, Start: s.Start, Point: ev.Point})
		} else {
			effects = append(effects, ExtendStroke{Page: s.Page, Point: ev.Point})
		}
	}
	effects = append(effects,
		Redraw{Page: s.Page},
		Preview{Page: s.Page, Tool: s.Tool, Start: s.Start, Current: ev.Point},
	)
	return next, effects
}

func handleRelease(s State, ev Release, cfg Config) (State, []Effect) {
	if s.Phase != PhaseDragging {
		return s, nil
	}
	switch s.Tool {
	case ToolBlur:
		dx := ev.Point.X - s.Start.X
		dy := ev.Point.Y - s.Start.Y
		if abs(dx) > cfg.BlurThreshold || abs(dy) > cfg.BlurThreshold {
			return Idle(), []Effect{
				CommitBlur{Page: s.Page, Start: s.Start, End: ev.Point},
				Redraw{Page: s.Page},
			}
		}
		return Idle(), []Effect{Redraw{Page: s.Page}}
	case ToolErase:
		// Points were committed during the drag; nothing more to record.
		return Idle(), []Effect{Redraw{Page: s.Page}}
	case ToolAddText:
		return State{Phase: PhasePendingText, Tool: s.Tool, Page: s.Page, Start: ev.Point, Current: ev.Point},
			[]Effect{
				Redraw{Page: s.Page},
				RequestText{Page: s.Page, At: ev.Point},
			}
	default:
		return Idle(), nil
	}
}

func handleLeave(s State) (State, []Effect) {
	if s.Phase != PhaseDragging {
		return s, nil
	}
	// Abort without committing partial blur or text; committed erase points
	// stay. The redraw clears the preview.
	return Idle(), []Effect{Redraw{Page: s.Page}}
}

func handleToolChange(s State) (State, []Effect) {
	if s.Phase == PhaseIdle {
		return Idle(), nil
	}
	return Idle(), []Effect{Redraw{Page: s.Page}}
}

func handleSubmitText(s State, ev SubmitText) (State, []Effect) {
	if s.Phase != PhasePendingText {
		return s, nil
	}
	if ev.Text == "" {
		return Idle(), []Effect{Redraw{Page: s.Page}}
	}
	return Idle(), []Effect{
		CommitLabel{Page: s.Page, At: s.Start, Text: ev.Text},
		Redraw{Page: s.Page},
	}
}

func handleCancelText(s State) (State, []Effect) {
	if s.Phase != PhasePendingText {
		return s, nil
	}
	return Idle(), []Effect{Redraw{Page: s.Page}}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
