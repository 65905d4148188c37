package job

import "fmt"

// Phase is the coarse step a track job is in.
type Phase int

const (
	PhaseQueued Phase = iota
	PhaseDownloading
	PhaseEncoding
	PhaseComposing
	PhaseUploading
	PhaseVerifying
	PhaseDone
	PhaseFailed
)

var phaseNames = map[Phase]string{
	PhaseQueued:      "queued",
	PhaseDownloading: "downloading",
	PhaseEncoding:    "encoding",
	PhaseComposing:   "composing",
	PhaseUploading:   "uploading",
	PhaseVerifying:   "verifying",
	PhaseDone:        "done",
	PhaseFailed:      "failed",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// State is a phase plus, while encoding, the tier being encoded.
type State struct {
	Phase Phase
	Tier  string
	order int
}

// Encoding builds the state for encoding one tier at ladder position order.
func Encoding(tier string, order int) State {
	return State{Phase: PhaseEncoding, Tier: tier, order: order}
}

func (s State) String() string {
	if s.Phase == PhaseEncoding {
		return fmt.Sprintf("encoding(%s)", s.Tier)
	}
	return s.Phase.String()
}

// Terminal reports whether no further transition is expected.
func (s State) Terminal() bool {
	return s.Phase == PhaseDone || s.Phase == PhaseFailed
}

// CanTransition enforces forward-only movement. The only backwards move is
// Failed → Queued for a retry; Queued → Done covers the already-published skip.
func CanTransition(from, to State) bool {
	switch {
	case from.Phase == PhaseFailed:
		return to.Phase == PhaseQueued
	case from.Phase == PhaseDone:
		return false
	case to.Phase == PhaseFailed:
		return true
	case from.Phase == PhaseQueued && to.Phase == PhaseDone:
		return true
	case from.Phase == PhaseEncoding && to.Phase == PhaseEncoding:
		return to.order > from.order
	default:
		return to.Phase == from.Phase+1
	}
}
