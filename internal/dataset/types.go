package dataset

// Split selects which target models participate in an operation.
type Split string

const (
	SplitTrain Split = "train"
	SplitTest  Split = "test"
	SplitFull  Split = "full"
)

func (s Split) Valid() bool {
	switch s {
	case SplitTrain, SplitTest, SplitFull:
		return true
	default:
		return false
	}
}

// Prompt is one evaluation prompt from a benchmark dataset.
type Prompt struct {
	ID   string `yaml:"id"`
	Text string `yaml:"text"`
}

// TargetModel is a candidate model under evaluation. Its responses are
// recorded externally; this pipeline never generates them.
type TargetModel struct {
	Name  string `yaml:"name"`
	Split Split  `yaml:"split"`
}
