package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewCatalogOrdersByPosition(t *testing.T) {
	a := Stage{ID: uuid.New(), Title: "third", Type: StageTypeFollowUp, Position: 2}
	b := Stage{ID: uuid.New(), Title: "first", Type: StageTypeOpen, Position: 0}
	c := Stage{ID: uuid.New(), Title: "second", Type: StageTypeQualification, Position: 1}

	catalog := NewCatalog([]Stage{a, b, c})
	stages := catalog.Stages()

	want := []string{"first", "second", "third"}
	for i, title := range want {
		if stages[i].Title != title {
			t.Errorf("stages[%d].Title = %q, want %q", i, stages[i].Title, title)
		}
	}
}

func TestCatalogNext(t *testing.T) {
	first := Stage{ID: uuid.New(), Type: StageTypeOpen, Position: 0}
	second := Stage{ID: uuid.New(), Type: StageTypeFollowUp, Position: 1}
	last := Stage{ID: uuid.New(), Type: StageTypeWon, Position: 2}
	catalog := NewCatalog([]Stage{first, second, last})

	next, ok := catalog.Next(first.ID)
	if !ok || next.ID != second.ID {
		t.Errorf("Next(first) = %v, %v; want second stage", next.ID, ok)
	}

	if _, ok := catalog.Next(last.ID); ok {
		t.Error("Next(last) reported a successor, want none")
	}

	if _, ok := catalog.Next(uuid.New()); ok {
		t.Error("Next(unknown) reported a successor, want none")
	}
}

func TestStageTypeKnown(t *testing.T) {
	for _, typ := range []StageType{StageTypeOpen, StageTypeQualification, StageTypeFollowUp, StageTypeScheduling, StageTypeWon, StageTypeLost} {
		if !typ.Known() {
			t.Errorf("%q not recognized as a known stage type", typ)
		}
	}
	if StageType("banana").Known() {
		t.Error("unexpected stage type recognized")
	}
}

func TestBandGroupStages(t *testing.T) {
	open := Stage{ID: uuid.New(), Type: StageTypeOpen, Position: 0}
	qual := Stage{ID: uuid.New(), Type: StageTypeQualification, Position: 1}
	follow := Stage{ID: uuid.New(), Type: StageTypeFollowUp, Position: 2}
	won := Stage{ID: uuid.New(), Type: StageTypeWon, Position: 3}
	catalog := NewCatalog([]Stage{open, qual, follow, won})

	group := catalog.BandGroupStages(qual)
	if len(group) != 2 {
		t.Fatalf("open group has %d members, want 2", len(group))
	}
	if group[0].ID != open.ID || group[1].ID != qual.ID {
		t.Error("open group members out of catalog order")
	}

	if got := catalog.BandGroupStages(won); got != nil {
		t.Errorf("terminal stage band group = %v, want nil", got)
	}
}
