// Package similarity scores fingerprint pairs and decides heuristic matches
// against a subject's enrolled references.
package similarity

import (
	"math"
	"sort"

	"voicegate/internal/voice/fingerprint"
)

const (
	// Combined score weighting. The cosine term dominates; the length term
	// penalizes utterances of wildly different duration.
	vectorWeight = 0.75
	lengthWeight = 0.25

	// DefaultThreshold applies when a profile has too few references to
	// derive an adaptive one.
	DefaultThreshold = 0.55

	// Adaptive threshold: median pairwise reference similarity minus a
	// margin, clamped to a sane band.
	thresholdMargin = 0.12
	thresholdFloor  = 0.50
	thresholdCeil   = 0.80

	// Secondary accept path: a strong vector score can carry a borderline
	// combined score. The floor keeps a loose adaptive threshold from
	// dragging the vector bar down with it.
	vectorPassFloor = 0.55
	vectorPassSlack = 0.05
)

// Cosine returns the cosine similarity of two fingerprint vectors. A zero
// vector on either side yields 0, so garbage payloads never match anything.
func Cosine(a, b fingerprint.Fingerprint) float64 {
	n := len(a.Vector)
	if len(b.Vector) < n {
		n = len(b.Vector)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a.Vector[i] * b.Vector[i]
		normA += a.Vector[i] * a.Vector[i]
		normB += b.Vector[i] * b.Vector[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// LengthRatio returns min/max of the two encoded payload lengths, 0 when
// either length is unknown.
func LengthRatio(a, b fingerprint.Fingerprint) float64 {
	if a.Length <= 0 || b.Length <= 0 {
		return 0
	}
	lo, hi := float64(a.Length), float64(b.Length)
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo / hi
}

// Combined blends the cosine and length terms into a single [0,1] score.
func Combined(a, b fingerprint.Fingerprint) float64 {
	return vectorWeight*Cosine(a, b) + lengthWeight*LengthRatio(a, b)
}

// AdaptiveThreshold derives a match threshold from how self-similar the
// enrolled references are: tight enrollments earn a higher bar, noisy ones a
// lower bar, clamped to [0.50, 0.80]. Fewer than two references fall back to
// DefaultThreshold.
func AdaptiveThreshold(refs []fingerprint.Fingerprint) float64 {
	if len(refs) < 2 {
		return DefaultThreshold
	}

	var pairwise []float64
	for i := 0; i < len(refs); i++ {
		for j := i + 1; j < len(refs); j++ {
			pairwise = append(pairwise, Combined(refs[i], refs[j]))
		}
	}

	threshold := median(pairwise) - thresholdMargin
	if threshold < thresholdFloor {
		threshold = thresholdFloor
	}
	if threshold > thresholdCeil {
		threshold = thresholdCeil
	}
	return threshold
}

// median returns the upper-middle element for even-sized inputs; the usual
// three-sample enrollment produces three pairs, so the distinction rarely
// matters.
func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return sorted[len(sorted)/2]
}

// Result is the outcome of evaluating a candidate against a reference set.
type Result struct {
	// Score is the best combined score across references.
	Score float64
	// VectorScore is the cosine score of the reference that produced Score,
	// not the best cosine overall.
	VectorScore float64
	Threshold   float64
	IsMatch     bool
}

// Evaluate scores a candidate fingerprint against every reference and applies
// the threshold. The decision keys off the single best reference by combined
// score: a match requires that reference's combined score to clear the
// adaptive threshold, or that same reference's vector score alone to clear a
// slightly relaxed bar that never drops below vectorPassFloor. A strong
// cosine against some other reference carries no weight.
func Evaluate(candidate fingerprint.Fingerprint, refs []fingerprint.Fingerprint) Result {
	r := Result{Threshold: AdaptiveThreshold(refs)}
	for _, ref := range refs {
		if c := Combined(candidate, ref); c > r.Score {
			r.Score = c
			r.VectorScore = Cosine(candidate, ref)
		}
	}

	vectorBar := r.Threshold - vectorPassSlack
	if vectorBar < vectorPassFloor {
		vectorBar = vectorPassFloor
	}
	r.IsMatch = r.Score >= r.Threshold || r.VectorScore >= vectorBar
	return r
}
