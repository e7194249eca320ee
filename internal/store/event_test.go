package store

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func newTestSession(t *testing.T, s *Store, id string) {
	t.Helper()

	if err := s.Sessions().Create(&Session{ID: id}); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
}

func TestEventRepository_Create(t *testing.T) {
	s := newTestStore(t)
	newTestSession(t, s, "session-1")

	e := &CentroidEvent{SessionID: "session-1", Frame: 7, Kind: EventMove, X: 100, Y: 120, Distance: 9, Angle: -45}
	if err := s.Events().Create(e); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if e.ID == 0 {
		t.Error("ID should be set after create")
	}

	events, err := s.Events().ListBySession("session-1", 0)
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}

	want := []CentroidEvent{*e}
	if diff := cmp.Diff(want, events, cmpopts.IgnoreFields(CentroidEvent{}, "CreatedAt")); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestEventRepository_RejectsUnknownSessionAndKind(t *testing.T) {
	s := newTestStore(t)
	newTestSession(t, s, "session-1")

	if err := s.Events().Create(&CentroidEvent{SessionID: "missing", Kind: EventAppear}); err == nil {
		t.Error("event for unknown session should violate the foreign key")
	}
	if err := s.Events().Create(&CentroidEvent{SessionID: "session-1", Kind: "jump"}); err == nil {
		t.Error("unknown event kind should violate the check constraint")
	}
}

func TestEventRepository_CreateBatchAndList(t *testing.T) {
	s := newTestStore(t)
	newTestSession(t, s, "session-1")
	newTestSession(t, s, "session-2")

	batch := []*CentroidEvent{
		{SessionID: "session-1", Frame: 1, Kind: EventAppear, X: 10, Y: 10},
		{SessionID: "session-1", Frame: 2, Kind: EventMove, X: 20, Y: 10, Distance: 10},
		{SessionID: "session-1", Frame: 40, Kind: EventLost},
		{SessionID: "session-2", Frame: 1, Kind: EventAppear},
	}
	if err := s.Events().CreateBatch(batch); err != nil {
		t.Fatalf("CreateBatch() error = %v", err)
	}

	n, err := s.Events().CountBySession("session-1")
	if err != nil || n != 3 {
		t.Errorf("CountBySession() = %d, %v, want 3", n, err)
	}

	all, err := s.Events().ListBySession("session-1", 0)
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	var frames []int
	for _, e := range all {
		frames = append(frames, e.Frame)
	}
	if diff := cmp.Diff([]int{1, 2, 40}, frames); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}

	recent, err := s.Events().ListBySession("session-1", 2)
	if err != nil {
		t.Fatalf("ListBySession(limit) error = %v", err)
	}
	if len(recent) != 2 || recent[0].Frame != 2 || recent[1].Frame != 40 {
		t.Errorf("ListBySession(limit 2) = %+v, want frames 2 and 40", recent)
	}
}

func TestEventRepository_CreateBatchIsAtomic(t *testing.T) {
	s := newTestStore(t)
	newTestSession(t, s, "session-1")

	batch := []*CentroidEvent{
		{SessionID: "session-1", Frame: 1, Kind: EventAppear},
		{SessionID: "session-1", Frame: 2, Kind: "bogus"},
	}
	if err := s.Events().CreateBatch(batch); err == nil {
		t.Fatal("CreateBatch() with an invalid event should fail")
	}

	n, err := s.Events().CountBySession("session-1")
	if err != nil || n != 0 {
		t.Errorf("CountBySession() = %d, %v, want 0 after rollback", n, err)
	}
}
