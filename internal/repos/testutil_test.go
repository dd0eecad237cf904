package repos

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/competency-engine/internal/logger"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

// Tables are created with explicit sqlite DDL; the models carry postgres
// column defaults that sqlite cannot parse through AutoMigrate.
var repoTestDDL = []string{
	`CREATE TABLE criteria_group (
		id TEXT PRIMARY KEY,
		parent_id TEXT,
		competency_tag_id TEXT NOT NULL,
		course_id TEXT,
		name TEXT NOT NULL,
		ordering INTEGER NOT NULL DEFAULT 0,
		logic_operator TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		deleted_at DATETIME
	)`,
	`CREATE TABLE completion_event (
		id TEXT PRIMARY KEY,
		learner_id TEXT NOT NULL,
		object_id TEXT NOT NULL,
		course_id TEXT,
		event_type TEXT NOT NULL,
		occurred_at DATETIME NOT NULL,
		status TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		last_error_at DATETIME,
		locked_at DATETIME,
		heartbeat_at DATETIME,
		metadata TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, ddl := range repoTestDDL {
		if err := db.Exec(ddl).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}
