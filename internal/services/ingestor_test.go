package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/competency-engine/internal/repos"
	"github.com/yungbote/competency-engine/internal/types"
)

type ingestorFixture struct {
	*criteriaFixture
	ing     *ingestorService
	status  StatusService
	signals *stubSignals
}

func newIngestorFixture(t *testing.T) *ingestorFixture {
	t.Helper()
	cf := newCriteriaFixture(t)
	log := newTestLogger(t)

	signals := &stubSignals{signals: map[string]*types.LearnerSignal{}}
	evaluator := NewGroupEvaluator(log, NewRuleResolver(log, nil), NewRuleEvaluator(log), signals, true)
	status := NewStatusService(cf.db, log, repos.NewStatusRecordRepo(cf.db, log))

	svc := NewIngestorService(
		cf.db,
		log,
		repos.NewCompletionEventRepo(cf.db, log),
		repos.NewObjectTagRepo(cf.db, log),
		repos.NewCriterionRepo(cf.db, log),
		cf.svc,
		evaluator,
		status,
		1,
		time.Second,
	)
	return &ingestorFixture{
		criteriaFixture: cf,
		ing:             svc.(*ingestorService),
		status:          status,
		signals:         signals,
	}
}

func (f *ingestorFixture) enqueue(t *testing.T, learnerID uuid.UUID, objectID string) *types.CompletionEvent {
	t.Helper()
	ev := &types.CompletionEvent{
		LearnerID: learnerID,
		ObjectID:  objectID,
		EventType: types.EventTypeGraded,
	}
	if err := f.ing.Enqueue(context.Background(), ev); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return f.reload(t, ev.ID)
}

func (f *ingestorFixture) reload(t *testing.T, id uuid.UUID) *types.CompletionEvent {
	t.Helper()
	var ev types.CompletionEvent
	if err := f.db.First(&ev, "id = ?", id).Error; err != nil {
		t.Fatalf("reload event: %v", err)
	}
	return &ev
}

func TestEnqueueValidation(t *testing.T) {
	f := newIngestorFixture(t)

	err := f.ing.Enqueue(context.Background(), &types.CompletionEvent{ObjectID: "unit-1", EventType: types.EventTypeGraded})
	if err == nil {
		t.Fatal("want error for missing learner id")
	}
	err = f.ing.Enqueue(context.Background(), &types.CompletionEvent{LearnerID: uuid.New(), ObjectID: "unit-1", EventType: "enrolled"})
	if err == nil {
		t.Fatal("want error for unknown event type")
	}
}

func TestEnqueueIsIdempotent(t *testing.T) {
	f := newIngestorFixture(t)
	learnerID := uuid.New()
	eventID := uuid.New()

	for i := 0; i < 2; i++ {
		ev := &types.CompletionEvent{
			ID:        eventID,
			LearnerID: learnerID,
			ObjectID:  "unit-1",
			EventType: types.EventTypeGraded,
		}
		if err := f.ing.Enqueue(context.Background(), ev); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	var count int64
	if err := f.db.Model(&types.CompletionEvent{}).Where("id = ?", eventID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("replayed event must not duplicate: got %d rows", count)
	}
	ev := f.reload(t, eventID)
	if ev.Status != types.EventStatusQueued {
		t.Fatalf("status: want=%q got=%q", types.EventStatusQueued, ev.Status)
	}
	if ev.OccurredAt.IsZero() {
		t.Fatal("OccurredAt should default to enqueue time")
	}
}

func TestProcessEventCommitsStatus(t *testing.T) {
	f := newIngestorFixture(t)
	rootID := f.seedGroup(t, nil, nil, 0)
	f.seedCriterion(t, rootID, "unit-1", 0)
	f.signals.signals["unit-1"] = gradeSignal(95)

	learnerID := uuid.New()
	ev := f.enqueue(t, learnerID, "unit-1")
	f.ing.processEvent(context.Background(), f.ing.log, ev)

	ev = f.reload(t, ev.ID)
	if ev.Status != types.EventStatusCommitted {
		t.Fatalf("event status: want=%q got=%q (error=%q)", types.EventStatusCommitted, ev.Status, ev.Error)
	}

	rec, err := f.status.GetCompetencyStatus(context.Background(), learnerID, f.tagID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if rec == nil || rec.Verdict != types.VerdictDemonstrated {
		t.Fatalf("competency status: want demonstrated, got %+v", rec)
	}
}

func TestProcessEventReplayIsIdempotent(t *testing.T) {
	f := newIngestorFixture(t)
	rootID := f.seedGroup(t, nil, nil, 0)
	f.seedCriterion(t, rootID, "unit-1", 0)
	f.signals.signals["unit-1"] = gradeSignal(95)

	learnerID := uuid.New()
	ev := f.enqueue(t, learnerID, "unit-1")
	f.ing.processEvent(context.Background(), f.ing.log, ev)
	f.ing.processEvent(context.Background(), f.ing.log, ev)

	all, err := f.status.ListForLearner(context.Background(), learnerID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// One criterion, one group (pass-through root), one competency.
	if len(all) != 3 {
		t.Fatalf("replay must not duplicate status rows: got %d", len(all))
	}
}

func TestProcessEventWithoutMatchingCriteriaIsNoOp(t *testing.T) {
	f := newIngestorFixture(t)

	learnerID := uuid.New()
	ev := f.enqueue(t, learnerID, "unmapped-object")
	f.ing.processEvent(context.Background(), f.ing.log, ev)

	ev = f.reload(t, ev.ID)
	if ev.Status != types.EventStatusCommitted {
		t.Fatalf("unmapped event should commit as no-op, got %q", ev.Status)
	}
	all, err := f.status.ListForLearner(context.Background(), learnerID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("no status rows expected, got %d", len(all))
	}
}

func TestProcessEventSupersededByNewerEvent(t *testing.T) {
	f := newIngestorFixture(t)
	rootID := f.seedGroup(t, nil, nil, 0)
	f.seedCriterion(t, rootID, "unit-1", 0)
	f.signals.signals["unit-1"] = gradeSignal(95)

	learnerID := uuid.New()
	ev := f.enqueue(t, learnerID, "unit-1")

	newer := &types.CompletionEvent{
		ID:         uuid.New(),
		LearnerID:  learnerID,
		ObjectID:   "unit-1",
		EventType:  types.EventTypeGraded,
		OccurredAt: time.Now(),
		Status:     types.EventStatusQueued,
		CreatedAt:  ev.CreatedAt.Add(5 * time.Second),
		UpdatedAt:  ev.CreatedAt.Add(5 * time.Second),
	}
	if err := f.db.Create(newer).Error; err != nil {
		t.Fatalf("seed newer event: %v", err)
	}

	f.ing.processEvent(context.Background(), f.ing.log, ev)

	ev = f.reload(t, ev.ID)
	if ev.Status != types.EventStatusCommitted {
		t.Fatalf("superseded event still commits, got %q", ev.Status)
	}
	all, err := f.status.ListForLearner(context.Background(), learnerID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("superseded evaluation must not write status, got %d rows", len(all))
	}
}

func TestProcessEventIncompleteSetupFails(t *testing.T) {
	f := newIngestorFixture(t)
	// Two children and no logic operator: a configuration error.
	rootID := f.seedGroup(t, nil, nil, 0)
	f.seedCriterion(t, rootID, "unit-1", 0)
	f.seedCriterion(t, rootID, "unit-2", 1)
	f.signals.signals["unit-1"] = gradeSignal(95)

	learnerID := uuid.New()
	ev := f.enqueue(t, learnerID, "unit-1")
	f.ing.processEvent(context.Background(), f.ing.log, ev)

	ev = f.reload(t, ev.ID)
	if ev.Status != types.EventStatusFailed {
		t.Fatalf("event should fail when its only competency is misconfigured, got %q", ev.Status)
	}
	if ev.Error == "" {
		t.Fatal("failure reason should be recorded on the event")
	}
	all, err := f.status.ListForLearner(context.Background(), learnerID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("misconfigured competency must not write status, got %d rows", len(all))
	}
}

func TestMapEventDistinctCompetencies(t *testing.T) {
	f := newIngestorFixture(t)
	rootID := f.seedGroup(t, nil, strPtr(types.LogicOperatorAnd), 0)
	// Two criteria in the same competency referencing the same object: the
	// event maps to one competency, not two.
	f.seedCriterion(t, rootID, "unit-1", 0)
	f.seedCriterion(t, rootID, "unit-1", 1)

	tagIDs, err := f.ing.mapEvent(context.Background(), &types.CompletionEvent{
		LearnerID: uuid.New(),
		ObjectID:  "unit-1",
	})
	if err != nil {
		t.Fatalf("mapEvent: %v", err)
	}
	if len(tagIDs) != 1 || tagIDs[0] != f.tagID {
		t.Fatalf("want exactly [%s], got %v", f.tagID, tagIDs)
	}
}
