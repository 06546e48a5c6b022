// Package fingerprint reduces an audio payload to a fixed-length symbol
// frequency vector.
//
// This is not spectral analysis: the vector summarizes the distribution of
// base64 symbols in the payload's encoded form and acts as a weak proxy
// signal. The heuristic matcher built on it is explicitly a fallback tier,
// never the primary verification signal.
package fingerprint

import (
	"encoding/base64"
	"strings"
)

// Alphabet is the canonical symbol set. Padding ('=') is deliberately
// excluded: it carries length information, not content.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// Size is the fingerprint vector length.
const Size = len(Alphabet)

var alphabetIndex = buildAlphabetIndex()

func buildAlphabetIndex() [256]int {
	var idx [256]int
	for i := range idx {
		idx[i] = -1
	}
	for i := 0; i < len(Alphabet); i++ {
		idx[Alphabet[i]] = i
	}
	return idx
}

// Fingerprint is an L1-normalized symbol frequency vector plus the encoded
// payload length the vector was derived from. The length feeds the matcher's
// length-similarity term, which the normalized vector cannot carry.
type Fingerprint struct {
	Vector []float64 `json:"vector"`
	Length int       `json:"length"`
}

// IsZero reports whether no recognized symbols were observed. A zero
// fingerprint has no similarity to anything, including itself.
func (f Fingerprint) IsZero() bool {
	for _, v := range f.Vector {
		if v != 0 {
			return false
		}
	}
	return true
}

// Normalize strips a data-URI prefix and all whitespace from a base64
// payload, mirroring what browser audio recorders send.
func Normalize(encoded string) string {
	if strings.HasPrefix(encoded, "data:") {
		if i := strings.IndexByte(encoded, ','); i >= 0 {
			encoded = encoded[i+1:]
		}
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, encoded)
}

// FromEncoded fingerprints an already base64-encoded payload. Unrecognized
// symbols are skipped; a payload with no recognized symbols yields the zero
// vector. The vector is L1-normalized so fingerprints are comparable
// independent of payload length.
func FromEncoded(encoded string) Fingerprint {
	cleaned := Normalize(encoded)

	vector := make([]float64, Size)
	total := 0
	for i := 0; i < len(cleaned); i++ {
		if idx := alphabetIndex[cleaned[i]]; idx >= 0 {
			vector[idx]++
			total++
		}
	}

	if total > 0 {
		for i := range vector {
			vector[i] /= float64(total)
		}
	}

	return Fingerprint{Vector: vector, Length: len(cleaned)}
}

// FromPayload fingerprints raw audio bytes via their base64 encoding, so raw
// and pre-encoded submissions of the same audio produce the same vector.
func FromPayload(payload []byte) Fingerprint {
	if len(payload) == 0 {
		return Fingerprint{Vector: make([]float64, Size)}
	}
	return FromEncoded(base64.StdEncoding.EncodeToString(payload))
}
