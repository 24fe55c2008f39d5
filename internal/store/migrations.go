package store

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/rodriguezjasonlloyd/seven-gen-task/internal/models"
)

// Migrate creates the tasks table and its secondary indexes.
func Migrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	if err := db.AutoMigrate(&models.TaskRecord{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Indexes for filtering and sorting
	indexes := []struct {
		name   string
		column string
	}{
		{"idx_tasks_status", "status"},
		{"idx_tasks_priority", "priority"},
		{"idx_tasks_due_date", "due_date"},
		{"idx_tasks_created_at", "created_at"},
	}

	migrator := db.Migrator()
	for _, idx := range indexes {
		if migrator.HasIndex(&models.TaskRecord{}, idx.name) {
			continue
		}
		sql := fmt.Sprintf("CREATE INDEX %s ON tasks (%s)", idx.name, idx.column)
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}

	log.Println("Database migrations completed")
	return nil
}
