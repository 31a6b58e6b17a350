package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestInMemoryInterpretationOrdering(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if _, err := s.CreateInterpretation(ctx, "msg1", 7, "attempt text", i); err != nil {
			t.Fatalf("create attempt %d: %v", i, err)
		}
	}
	// Another user's attempts must not leak in.
	if _, err := s.CreateInterpretation(ctx, "msg1", 8, "other user", 1); err != nil {
		t.Fatalf("create other user: %v", err)
	}

	list, err := s.ListInterpretations(ctx, "msg1", 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
	got := []int{list[0].AttemptNumber, list[1].AttemptNumber, list[2].AttemptNumber}
	if diff := cmp.Diff([]int{3, 2, 1}, got); diff != "" {
		t.Fatalf("attempt order mismatch (-want +got):\n%s", diff)
	}
}

func TestInMemoryArbitrationInsertIfAbsent(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	arb := &Arbitration{
		MessageID:        "msg1",
		InterpretationID: "int1",
		GradingID:        "grad1",
		Result:           ArbitrationAccept,
		RulingStatus:     "completed",
		Explanation:      "ruling text",
	}
	first, err := s.CreateArbitration(ctx, arb)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	if first.ID == "" || first.CreatedAt.IsZero() {
		t.Fatalf("create did not assign id/timestamp: %+v", first)
	}

	if _, err := s.CreateArbitration(ctx, arb); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("second create err = %v, want ErrAlreadyExists", err)
	}

	got, err := s.GetArbitrationByInterpretation(ctx, "int1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != first.ID {
		t.Fatalf("lookup returned %+v, want id %s", got, first.ID)
	}
}

func TestInMemoryGradingResponseUniquePerGrading(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	if _, err := s.CreateGradingResponse(ctx, "grad1", "dispute text"); err != nil {
		t.Fatalf("first response: %v", err)
	}
	if _, err := s.CreateGradingResponse(ctx, "grad1", "second dispute"); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("duplicate response err = %v, want ErrAlreadyExists", err)
	}
}

func TestInMemoryGradingUpdate(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	g, err := s.CreateGrading(ctx, &Grading{
		InterpretationID: "int1",
		Status:           GradingPending,
		SimilarityScore:  72,
	})
	if err != nil {
		t.Fatal(err)
	}

	status := GradingRejected
	notes := "missed the second claim"
	updated, err := s.UpdateGrading(ctx, g.ID, GradingUpdate{Status: &status, Notes: &notes})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != GradingRejected || updated.Notes != notes {
		t.Fatalf("update not applied: %+v", updated)
	}
	if updated.SimilarityScore != 72 {
		t.Fatalf("untouched field changed: %+v", updated)
	}

	if _, err := s.UpdateGrading(ctx, "missing", GradingUpdate{Status: &status}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing err = %v, want ErrNotFound", err)
	}
}

func TestInMemoryParticipantGuards(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	if err := s.AddParticipant(ctx, "convo1", 1); err != nil {
		t.Fatal(err)
	}
	if err := s.AddParticipant(ctx, "convo1", 1); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("duplicate join err = %v, want ErrAlreadyExists", err)
	}
	n, err := s.CountParticipants(ctx, "convo1")
	if err != nil || n != 1 {
		t.Fatalf("count = %d err = %v, want 1", n, err)
	}
}

func TestInMemoryBreakdownSubjects(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	mb, err := s.CreateBreakdown(ctx, MessageSubject("msg1"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreatePoint(ctx, mb.ID, "second point", 1); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreatePoint(ctx, mb.ID, "first point", 0); err != nil {
		t.Fatal(err)
	}

	points, err := s.ListPointsByBreakdown(ctx, mb.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 2 || points[0].Order != 0 || points[1].Order != 1 {
		t.Fatalf("points not ordered: %+v", points)
	}

	// Interpretation subject with the same ID is a distinct breakdown.
	if found, _ := s.GetBreakdownBySubject(ctx, InterpretationSubject("msg1")); found != nil {
		t.Fatalf("subject kinds must not collide: %+v", found)
	}
	if found, _ := s.GetBreakdownBySubject(ctx, MessageSubject("msg1")); found == nil || found.ID != mb.ID {
		t.Fatalf("message breakdown lookup failed: %+v", found)
	}
}

func TestInMemoryMissingLookupsReturnNil(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	if m, err := s.GetMessageByID(ctx, "nope"); err != nil || m != nil {
		t.Fatalf("GetMessageByID = %v, %v", m, err)
	}
	if g, err := s.GetGradingByInterpretation(ctx, "nope"); err != nil || g != nil {
		t.Fatalf("GetGradingByInterpretation = %v, %v", g, err)
	}
	if a, err := s.GetArbitrationByInterpretation(ctx, "nope"); err != nil || a != nil {
		t.Fatalf("GetArbitrationByInterpretation = %v, %v", a, err)
	}
}
