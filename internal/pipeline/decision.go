package pipeline

// Label is the binary verdict for one clip.
type Label string

const (
	Bonafide Label = "bonafide"
	Spoof    Label = "spoof"
)

// Decide labels a clip bonafide only when score is strictly greater than
// threshold. A score equal to the threshold is spoof.
func Decide(score, threshold float64) Label {
	if score > threshold {
		return Bonafide
	}
	return Spoof
}

// Prediction is the result of scoring one clip.
type Prediction struct {
	Label     Label
	Score     float64
	Threshold float64
}

func (p Prediction) IsBonafide() bool { return p.Label == Bonafide }
