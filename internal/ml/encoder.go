package ml

import (
	"errors"
	"fmt"
	"sort"
)

// Encoder errors.
var (
	ErrEmptyVocabulary = errors.New("cannot fit encoder on empty corpus")
	ErrUnknownCategory = errors.New("unknown category")
	ErrCodeOutOfRange  = errors.New("code out of range")
)

// LabelEncoder maps a fixed vocabulary of category strings to dense integer
// codes 0..k-1. Codes follow the sorted order of the distinct values, so the
// mapping depends only on the set of values seen, never on their order.
type LabelEncoder struct {
	classes []string
	index   map[string]int
}

// FitLabelEncoder builds an encoder from the observed category values.
func FitLabelEncoder(values []string) (*LabelEncoder, error) {
	if len(values) == 0 {
		return nil, ErrEmptyVocabulary
	}

	seen := make(map[string]struct{}, len(values))
	classes := make([]string, 0)
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		classes = append(classes, v)
	}
	sort.Strings(classes)

	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	return &LabelEncoder{classes: classes, index: index}, nil
}

// Encode returns the code for value, or ErrUnknownCategory.
func (e *LabelEncoder) Encode(value string) (int, error) {
	code, ok := e.index[value]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, value)
	}
	return code, nil
}

// Decode is the inverse of Encode.
func (e *LabelEncoder) Decode(code int) (string, error) {
	if code < 0 || code >= len(e.classes) {
		return "", fmt.Errorf("%w: %d (have %d classes)", ErrCodeOutOfRange, code, len(e.classes))
	}
	return e.classes[code], nil
}

// Transform encodes every value, failing on the first unknown one.
func (e *LabelEncoder) Transform(values []string) ([]float64, error) {
	out := make([]float64, len(values))
	for i, v := range values {
		code, err := e.Encode(v)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = float64(code)
	}
	return out, nil
}

// Classes returns the vocabulary in code order.
func (e *LabelEncoder) Classes() []string {
	out := make([]string, len(e.classes))
	copy(out, e.classes)
	return out
}

// Len is the vocabulary size.
func (e *LabelEncoder) Len() int {
	return len(e.classes)
}
