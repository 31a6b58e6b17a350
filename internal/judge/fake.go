package judge

import (
	"context"
	"strings"
	"sync"

	"github.com/mmstr/mmstr/internal/store"
)

// Fake is a deterministic Judge for tests. Zero value accepts everything
// with a perfect score; set the fields to script other verdicts.
type Fake struct {
	mu sync.Mutex

	// GradeFunc, when set, overrides the scripted judgment entirely.
	GradeFunc func(req GradeRequest) (*Judgment, error)

	Judgment  Judgment
	GradeErr  error
	Ruling    Ruling
	RulingErr error

	GradeCalls     []GradeRequest
	ArbitrateCalls []Dispute
}

// NewAcceptingFake returns a Fake that passes every interpretation with a
// score high enough to auto-accept.
func NewAcceptingFake() *Fake {
	return &Fake{Judgment: Judgment{
		SimilarityScore:     95,
		Passes:              true,
		AutoAcceptSuggested: true,
		Reasoning:           "interpretation restates the original",
	}}
}

// NewRejectingFake returns a Fake that fails every interpretation.
func NewRejectingFake() *Fake {
	return &Fake{Judgment: Judgment{
		SimilarityScore: 35,
		Passes:          false,
		Reasoning:       "interpretation omits key claims",
	}}
}

func (f *Fake) Grade(ctx context.Context, req GradeRequest) (*Judgment, error) {
	f.mu.Lock()
	f.GradeCalls = append(f.GradeCalls, req)
	f.mu.Unlock()
	if f.GradeFunc != nil {
		return f.GradeFunc(req)
	}
	if f.GradeErr != nil {
		return nil, f.GradeErr
	}
	j := f.Judgment
	return &j, nil
}

func (f *Fake) Breakdown(ctx context.Context, text string) ([]Point, error) {
	// One point per sentence-ish fragment keeps tests readable.
	parts := strings.FieldsFunc(text, func(r rune) bool { return r == '.' || r == '!' || r == '?' })
	points := make([]Point, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		points = append(points, Point{Text: p, Order: len(points)})
	}
	return points, nil
}

func (f *Fake) Arbitrate(ctx context.Context, d Dispute) (*Ruling, error) {
	f.mu.Lock()
	f.ArbitrateCalls = append(f.ArbitrateCalls, d)
	f.mu.Unlock()
	if f.RulingErr != nil {
		return nil, f.RulingErr
	}
	if f.Ruling.Result == "" {
		return &Ruling{Result: store.ArbitrationAccept, Explanation: "no scripted ruling"}, nil
	}
	r := f.Ruling
	return &r, nil
}
