package process

type Process interface {
	Setup() Process
	Start()
	Stop()
	Wait()
}

type State int

const (
	Running State = iota
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type Variant int

const (
	RawView Variant = iota
	DetectionView
)

func (v Variant) String() string {
	if v == DetectionView {
		return "detection view"
	}
	return "raw view"
}
