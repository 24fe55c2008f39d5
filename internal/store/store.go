package store

import (
	"fmt"
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rodriguezjasonlloyd/seven-gen-task/internal/config"
	"github.com/rodriguezjasonlloyd/seven-gen-task/internal/models"
)

// Connector is the narrow contract the task manager persists through:
// execute a parameterized statement, read rows, commit, roll back. Any
// relational backend satisfying it is acceptable.
type Connector interface {
	Execute(statement string, args ...interface{}) error
	Query(statement string, args ...interface{}) ([]models.TaskRecord, error)
	Commit() error
	Rollback() error
}

// Connect opens the database selected by the configuration.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.DBDriver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			cfg.DBHost,
			cfg.DBPort,
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBName,
		)
		dialector = postgres.Open(dsn)
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBHost,
			cfg.DBPort,
			cfg.DBName,
		)
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Database connection established")
	return db, nil
}

// GormConnector implements Connector on a GORM session. Statements issued
// through Execute accumulate in a single open transaction until Commit or
// Rollback, matching an autocommit-off client connection. Queries run inside
// the open transaction when one exists.
type GormConnector struct {
	db *gorm.DB
	tx *gorm.DB
}

// NewConnector wraps an open database handle.
func NewConnector(db *gorm.DB) *GormConnector {
	return &GormConnector{db: db}
}

func (c *GormConnector) session() *gorm.DB {
	if c.tx != nil {
		return c.tx
	}
	return c.db
}

// Execute runs a write statement, opening a transaction first if none is open.
func (c *GormConnector) Execute(statement string, args ...interface{}) error {
	if c.tx == nil {
		tx := c.db.Begin()
		if tx.Error != nil {
			return tx.Error
		}
		c.tx = tx
	}
	return c.tx.Exec(statement, args...).Error
}

// Query runs a read statement and scans the resulting rows.
func (c *GormConnector) Query(statement string, args ...interface{}) ([]models.TaskRecord, error) {
	var records []models.TaskRecord
	if err := c.session().Raw(statement, args...).Scan(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Commit commits the open transaction. A no-op when none is open.
func (c *GormConnector) Commit() error {
	if c.tx == nil {
		return nil
	}
	err := c.tx.Commit().Error
	c.tx = nil
	return err
}

// Rollback discards the open transaction. A no-op when none is open.
func (c *GormConnector) Rollback() error {
	if c.tx == nil {
		return nil
	}
	err := c.tx.Rollback().Error
	c.tx = nil
	return err
}
