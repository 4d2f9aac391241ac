package pipeline

// State is a step of one publishing run.
type State int

const (
	Idle State = iota
	GeneratingContent
	ResolvingImage
	Rendering
	Publishing
	RecordingHistory
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case GeneratingContent:
		return "GeneratingContent"
	case ResolvingImage:
		return "ResolvingImage"
	case Rendering:
		return "Rendering"
	case Publishing:
		return "Publishing"
	case RecordingHistory:
		return "RecordingHistory"
	case Done:
		return "Done"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the run ends in s.
func (s State) Terminal() bool { return s == Done || s == Failed }

// FailureReason names the step that failed a run.
type FailureReason string

const (
	ReasonGeneration FailureReason = "generation"
	ReasonDuplicate  FailureReason = "duplicate"
	ReasonRender     FailureReason = "render"
	ReasonPublish    FailureReason = "publish"
	ReasonCancelled  FailureReason = "cancelled"
)
