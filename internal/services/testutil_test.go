package services

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

// The production store is postgres; tests run against in-memory sqlite, so
// tables are created with explicit DDL instead of AutoMigrate (the postgres
// column defaults do not parse on sqlite).
var testDDL = []string{
	`CREATE TABLE taxonomy (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		taxonomy_type TEXT NOT NULL DEFAULT 'tag',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		deleted_at DATETIME
	)`,
	`CREATE TABLE tag (
		id TEXT PRIMARY KEY,
		taxonomy_id TEXT NOT NULL,
		value TEXT NOT NULL,
		external_id TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		deleted_at DATETIME
	)`,
	`CREATE TABLE object_tag (
		id TEXT PRIMARY KEY,
		tag_id TEXT NOT NULL,
		object_id TEXT NOT NULL,
		course_id TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		deleted_at DATETIME
	)`,
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
	`CREATE TABLE criterion (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL,
		object_tag_id TEXT NOT NULL,
		competency_tag_id TEXT NOT NULL,
		ordering INTEGER NOT NULL DEFAULT 0,
		rule_profile_id TEXT,
		rule_type_override TEXT,
		rule_payload_override TEXT,
		retake_rule TEXT NOT NULL DEFAULT 'MostRecent',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		deleted_at DATETIME
	)`,
	`CREATE TABLE rule_profile (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		rule_type TEXT NOT NULL,
		rule_payload TEXT NOT NULL,
		scope TEXT NOT NULL,
		taxonomy_id TEXT,
		course_id TEXT,
		org_id TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		deleted_at DATETIME
	)`,
	`CREATE TABLE status_record (
		id TEXT PRIMARY KEY,
		learner_id TEXT NOT NULL,
		node_kind TEXT NOT NULL,
		node_id TEXT NOT NULL,
		verdict TEXT NOT NULL,
		last_computed_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (learner_id, node_kind, node_id)
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
	for _, ddl := range testDDL {
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
