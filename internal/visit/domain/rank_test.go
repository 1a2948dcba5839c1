package domain

import (
	"testing"
	"time"

	"github.com/rssabbirdev/smart-clinic/internal/shared/types"
)

func waitingVisit(priority Priority, emergency bool, createdAt time.Time) *Visit {
	return &Visit{
		ID:            types.NewID(),
		StudentID:     "S-" + string(types.NewID())[:8],
		Name:          "Test Patient",
		Symptoms:      []string{"headache"},
		QueueStatus:   StatusWaiting,
		Priority:      priority,
		EmergencyFlag: emergency,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
}

// TestRankOrder tests the dispatch ordering rules
func TestRankOrder(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	flagged := waitingVisit(PriorityLow, true, base.Add(30*time.Minute))
	emergency := waitingVisit(PriorityEmergency, false, base.Add(20*time.Minute))
	high := waitingVisit(PriorityHigh, false, base.Add(10*time.Minute))
	mediumOld := waitingVisit(PriorityMedium, false, base)
	mediumNew := waitingVisit(PriorityMedium, false, base.Add(5*time.Minute))
	low := waitingVisit(PriorityLow, false, base)

	ranked := Rank([]*Visit{low, mediumNew, high, emergency, mediumOld, flagged})

	want := []*Visit{flagged, emergency, high, mediumOld, mediumNew, low}
	for i, v := range want {
		if ranked[i].ID != v.ID {
			t.Errorf("Position %d: expected priority=%s flag=%v, got priority=%s flag=%v",
				i+1, v.Priority, v.EmergencyFlag, ranked[i].Priority, ranked[i].EmergencyFlag)
		}
	}
}

// TestRankDeterministic tests that ranking is independent of input order
func TestRankDeterministic(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	// Same tier, same timestamp: only the ID breaks the tie.
	a := waitingVisit(PriorityMedium, false, base)
	b := waitingVisit(PriorityMedium, false, base)
	c := waitingVisit(PriorityMedium, false, base)

	first := Rank([]*Visit{a, b, c})
	second := Rank([]*Visit{c, a, b})

	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("Expected identical order regardless of input order, diverged at %d", i)
		}
	}
}

// TestRankDoesNotMutateInput tests that Rank works on a copy
func TestRankDoesNotMutateInput(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	low := waitingVisit(PriorityLow, false, base)
	emergency := waitingVisit(PriorityEmergency, false, base)
	input := []*Visit{low, emergency}

	Rank(input)

	if input[0].ID != low.ID || input[1].ID != emergency.ID {
		t.Error("Expected input slice to be left untouched")
	}
}

// TestPosition tests 1-based queue positions
func TestPosition(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	emergency := waitingVisit(PriorityEmergency, false, base.Add(10*time.Minute))
	high := waitingVisit(PriorityHigh, false, base.Add(5*time.Minute))
	low := waitingVisit(PriorityLow, false, base)

	waiting := []*Visit{low, high, emergency}

	tests := []struct {
		name    string
		visitID types.ID
		want    int
	}{
		{"Emergency first", emergency.ID, 1},
		{"High second", high.ID, 2},
		{"Low last despite earliest arrival", low.ID, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos, err := Position(waiting, tt.visitID)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if pos != tt.want {
				t.Errorf("Expected position %d, got %d", tt.want, pos)
			}
		})
	}
}

// TestPositionNotFound tests the missing-visit case
func TestPositionNotFound(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	waiting := []*Visit{waitingVisit(PriorityLow, false, base)}

	if _, err := Position(waiting, types.NewID()); err == nil {
		t.Error("Expected error for a visit not in the waiting set")
	}

	if _, err := Position(nil, types.NewID()); err == nil {
		t.Error("Expected error for an empty waiting set")
	}
}
