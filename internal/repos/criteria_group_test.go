package repos

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/competency-engine/internal/types"
)

func TestGetByCompetencyTagCourseScope(t *testing.T) {
	db := openTestDB(t)
	repo := NewCriteriaGroupRepo(db, newTestLogger(t))
	tagID := uuid.New()

	courseA := "course-v1:TestX+A"
	courseB := "course-v1:TestX+B"
	global := &types.CriteriaGroup{ID: uuid.New(), CompetencyTagID: tagID, Name: "global", Ordering: 0}
	scopedA := &types.CriteriaGroup{ID: uuid.New(), CompetencyTagID: tagID, CourseID: &courseA, Name: "for A", Ordering: 1}
	scopedB := &types.CriteriaGroup{ID: uuid.New(), CompetencyTagID: tagID, CourseID: &courseB, Name: "for B", Ordering: 2}
	for _, g := range []*types.CriteriaGroup{global, scopedA, scopedB} {
		if err := db.Create(g).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	got, err := repo.GetByCompetencyTag(context.Background(), nil, tagID, &courseA)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("course A scope: want global + scoped A, got %d groups", len(got))
	}
	for _, g := range got {
		if g.ID == scopedB.ID {
			t.Fatal("course B group leaked into course A scope")
		}
	}

	// Without a course filter every group of the tag is returned.
	got, err = repo.GetByCompetencyTag(context.Background(), nil, tagID, nil)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("unscoped: want 3 groups, got %d", len(got))
	}

	// Ordered by (ordering, id).
	if got[0].ID != global.ID {
		t.Fatalf("ordering: want %s first, got %s", global.ID, got[0].ID)
	}
}

func TestGetByCompetencyTagIgnoresSoftDeleted(t *testing.T) {
	db := openTestDB(t)
	repo := NewCriteriaGroupRepo(db, newTestLogger(t))
	tagID := uuid.New()

	g := &types.CriteriaGroup{ID: uuid.New(), CompetencyTagID: tagID, Name: "gone"}
	if err := db.Create(g).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := db.Delete(g).Error; err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	got, err := repo.GetByCompetencyTag(context.Background(), nil, tagID, nil)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("soft-deleted groups must be invisible, got %d", len(got))
	}
}
