package main

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/rodriguezjasonlloyd/seven-gen-task/internal/config"
	"github.com/rodriguezjasonlloyd/seven-gen-task/internal/handlers"
	"github.com/rodriguezjasonlloyd/seven-gen-task/internal/manager"
	"github.com/rodriguezjasonlloyd/seven-gen-task/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	// Connect to database
	db, err := store.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := store.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize the task manager. A failed initial load is a warning, not a
	// fatal error: the service starts with an empty cache.
	mgr := manager.NewTaskManager(store.NewConnector(db))
	if err := mgr.Load(); err != nil {
		log.Printf("Warning: failed to load tasks from database: %v", err)
	}

	// Initialize Gin router
	r := gin.Default()

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "Task manager is running",
		})
	})

	// API routes
	handlers.RegisterRoutes(r, handlers.NewTaskHandler(mgr))

	// Start server
	log.Printf("Server starting on :%s", cfg.ServerPort)
	if err := r.Run(":" + cfg.ServerPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
