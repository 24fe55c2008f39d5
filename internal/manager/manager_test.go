package manager

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rodriguezjasonlloyd/seven-gen-task/internal/models"
	"github.com/rodriguezjasonlloyd/seven-gen-task/internal/store"
)

var errStoreDown = errors.New("store unavailable")

// failingConnector wraps a real connector and injects failures on demand.
type failingConnector struct {
	store.Connector
	failExecute bool
	failCommit  bool
	failQuery   bool
}

func (f *failingConnector) Execute(statement string, args ...interface{}) error {
	if f.failExecute {
		return errStoreDown
	}
	return f.Connector.Execute(statement, args...)
}

func (f *failingConnector) Query(statement string, args ...interface{}) ([]models.TaskRecord, error) {
	if f.failQuery {
		return nil, errStoreDown
	}
	return f.Connector.Query(statement, args...)
}

func (f *failingConnector) Commit() error {
	if f.failCommit {
		return errStoreDown
	}
	return f.Connector.Commit()
}

type TaskManagerTestSuite struct {
	suite.Suite
	db      *gorm.DB
	conn    *failingConnector
	manager *TaskManager
}

// SetupTest runs before each test
func (suite *TaskManagerTestSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	suite.Require().NoError(err)
	suite.db = db

	// An in-memory sqlite database exists per connection; keep the pool at one.
	sqlDB, err := db.DB()
	suite.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)

	suite.Require().NoError(store.Migrate(db))

	suite.conn = &failingConnector{Connector: store.NewConnector(db)}
	suite.manager = NewTaskManager(suite.conn)
	suite.Require().NoError(suite.manager.Load())
}

// TearDownTest runs after each test
func (suite *TaskManagerTestSuite) TearDownTest() {
	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.Close()
}

// Helpers

func (suite *TaskManagerTestSuite) createTask(title string, priority models.Priority, dueDate *time.Time) *models.Task {
	task, err := suite.manager.CreateTask(CreateTaskInput{
		Title:    title,
		Priority: priority,
		DueDate:  dueDate,
	})
	suite.Require().NoError(err)
	return task
}

// seedRecord inserts a row directly into the store, bypassing the manager.
func (suite *TaskManagerTestSuite) seedRecord(id, title string) {
	now := time.Now()
	record := models.TaskRecord{
		ID:        id,
		Title:     title,
		Priority:  string(models.PriorityMedium),
		Status:    string(models.StatusPending),
		CreatedAt: now,
		UpdatedAt: now,
	}
	suite.Require().NoError(suite.db.Create(&record).Error)
}

func (suite *TaskManagerTestSuite) storedRecord(id string) (models.TaskRecord, bool) {
	var record models.TaskRecord
	err := suite.db.First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.TaskRecord{}, false
	}
	suite.Require().NoError(err)
	return record, true
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func strPtr(s string) *string {
	return &s
}

// Tests

func (suite *TaskManagerTestSuite) TestCreateAndGetRoundTrip() {
	dueDate := time.Now().Add(48 * time.Hour).Truncate(time.Second)
	created, err := suite.manager.CreateTask(CreateTaskInput{
		Title:       "Pay rent",
		Description: strPtr("transfer before the 1st"),
		DueDate:     &dueDate,
		Priority:    models.PriorityHigh,
	})
	suite.Require().NoError(err)

	got, err := suite.manager.GetTask(created.ID)
	suite.Require().NoError(err)
	suite.Equal("Pay rent", got.Title)
	suite.Equal("transfer before the 1st", *got.Description)
	suite.True(got.DueDate.Equal(dueDate))
	suite.Equal(models.PriorityHigh, got.Priority)
	suite.Equal(models.StatusPending, got.Status)

	record, found := suite.storedRecord(created.ID)
	suite.Require().True(found)
	suite.Equal("Pay rent", record.Title)
	suite.Equal("HIGH", record.Priority)
	suite.Equal("PENDING", record.Status)
}

func (suite *TaskManagerTestSuite) TestCreateValidationFailureDoesNotTouchStore() {
	_, err := suite.manager.CreateTask(CreateTaskInput{
		Title:    "   ",
		Priority: models.PriorityLow,
	})

	var validationErr *models.ValidationError
	suite.Require().ErrorAs(err, &validationErr)
	suite.Equal(0, suite.manager.Count())

	var count int64
	suite.db.Model(&models.TaskRecord{}).Count(&count)
	suite.EqualValues(0, count)
}

func (suite *TaskManagerTestSuite) TestCreatePersistenceFailureLeavesCacheUnchanged() {
	suite.conn.failExecute = true

	_, err := suite.manager.CreateTask(CreateTaskInput{
		Title:    "doomed",
		Priority: models.PriorityLow,
	})

	var persistErr *PersistenceError
	suite.Require().ErrorAs(err, &persistErr)
	suite.Equal(0, suite.manager.Count())
}

func (suite *TaskManagerTestSuite) TestCreateCommitFailureRollsBack() {
	suite.conn.failCommit = true

	_, err := suite.manager.CreateTask(CreateTaskInput{
		Title:    "doomed",
		Priority: models.PriorityLow,
	})

	var persistErr *PersistenceError
	suite.Require().ErrorAs(err, &persistErr)
	suite.Equal(0, suite.manager.Count())

	var count int64
	suite.db.Model(&models.TaskRecord{}).Count(&count)
	suite.EqualValues(0, count)
}

func (suite *TaskManagerTestSuite) TestGetTaskFallsBackToStoreOnColdCache() {
	created := suite.createTask("warm", models.PriorityMedium, nil)

	cold := NewTaskManager(store.NewConnector(suite.db))
	got, err := cold.GetTask(created.ID)
	suite.Require().NoError(err)
	suite.Equal("warm", got.Title)
	suite.Equal(1, cold.Count())
}

func (suite *TaskManagerTestSuite) TestGetTaskNotFound() {
	_, err := suite.manager.GetTask(uuid.NewString())

	var notFoundErr *TaskNotFoundError
	suite.Require().ErrorAs(err, &notFoundErr)
	suite.False(notFoundErr.Ambiguous())
}

func (suite *TaskManagerTestSuite) TestLoadPopulatesCache() {
	suite.seedRecord("aaaa1111-0000-0000-0000-000000000001", "first")
	suite.seedRecord("bbbb2222-0000-0000-0000-000000000002", "second")

	fresh := NewTaskManager(store.NewConnector(suite.db))
	suite.Require().NoError(fresh.Load())
	suite.Equal(2, fresh.Count())
}

func (suite *TaskManagerTestSuite) TestLoadFailureStartsCold() {
	conn := &failingConnector{Connector: store.NewConnector(suite.db), failQuery: true}
	fresh := NewTaskManager(conn)

	suite.Require().Error(fresh.Load())
	suite.Equal(0, fresh.Count())

	// The manager stays usable once the store recovers.
	conn.failQuery = false
	_, err := fresh.CreateTask(CreateTaskInput{Title: "recovered", Priority: models.PriorityLow})
	suite.NoError(err)
}

func (suite *TaskManagerTestSuite) TestGetTaskByPartialID() {
	suite.seedRecord("aaaa1111-0000-0000-0000-000000000001", "first")
	suite.seedRecord("aaaa2222-0000-0000-0000-000000000002", "second")
	suite.seedRecord("bbbb3333-0000-0000-0000-000000000003", "third")
	suite.Require().NoError(suite.manager.Load())

	task, err := suite.manager.GetTaskByPartialID("bbbb")
	suite.Require().NoError(err)
	suite.Equal("third", task.Title)

	task, err = suite.manager.GetTaskByPartialID("aaaa1")
	suite.Require().NoError(err)
	suite.Equal("first", task.Title)

	_, err = suite.manager.GetTaskByPartialID("cccc")
	var notFoundErr *TaskNotFoundError
	suite.Require().ErrorAs(err, &notFoundErr)
	suite.False(notFoundErr.Ambiguous())

	_, err = suite.manager.GetTaskByPartialID("aaaa")
	suite.Require().ErrorAs(err, &notFoundErr)
	suite.True(notFoundErr.Ambiguous())
	suite.Equal([]string{"aaaa1111", "aaaa2222"}, notFoundErr.Candidates)
}

func (suite *TaskManagerTestSuite) TestPartialIDLookupNeverTouchesStore() {
	suite.seedRecord("aaaa1111-0000-0000-0000-000000000001", "cold row")

	// Not loaded into the cache, so the prefix must not resolve.
	_, err := suite.manager.GetTaskByPartialID("aaaa")
	var notFoundErr *TaskNotFoundError
	suite.Require().ErrorAs(err, &notFoundErr)
}

func (suite *TaskManagerTestSuite) TestListTasksSortByDueDate() {
	now := time.Now()
	suite.createTask("later", models.PriorityLow, timePtr(now.Add(72*time.Hour)))
	suite.createTask("none", models.PriorityLow, nil)
	suite.createTask("sooner", models.PriorityLow, timePtr(now.Add(24*time.Hour)))

	asc := suite.manager.ListTasks(SortDueDateAsc)
	suite.Equal([]string{"sooner", "later", "none"}, titles(asc))

	desc := suite.manager.ListTasks(SortDueDateDesc)
	suite.Equal([]string{"later", "sooner", "none"}, titles(desc))
}

func (suite *TaskManagerTestSuite) TestListTasksSortByPriority() {
	suite.createTask("low", models.PriorityLow, nil)
	suite.createTask("high", models.PriorityHigh, nil)
	suite.createTask("medium", models.PriorityMedium, nil)

	high := suite.manager.ListTasks(SortPriorityHigh)
	suite.Equal([]string{"high", "medium", "low"}, titles(high))

	// A LOW task must never precede a HIGH task under priority_high.
	for i, task := range high {
		if task.Priority == models.PriorityLow {
			for _, later := range high[i:] {
				suite.NotEqual(models.PriorityHigh, later.Priority)
			}
		}
	}

	low := suite.manager.ListTasks(SortPriorityLow)
	suite.Equal([]string{"low", "medium", "high"}, titles(low))
}

func (suite *TaskManagerTestSuite) TestListTasksSortByCreated() {
	first := suite.createTask("first", models.PriorityLow, nil)
	second := suite.createTask("second", models.PriorityLow, nil)

	// Creation timestamps must differ for the ordering to be observable.
	suite.Require().NoError(suite.db.Model(&models.TaskRecord{}).
		Where("id = ?", second.ID).
		Update("created_at", first.CreatedAt.Add(time.Second)).Error)
	fresh := NewTaskManager(store.NewConnector(suite.db))
	suite.Require().NoError(fresh.Load())

	asc := fresh.ListTasks(SortCreatedAsc)
	suite.Equal([]string{"first", "second"}, titles(asc))

	desc := fresh.ListTasks(SortCreatedDesc)
	suite.Equal([]string{"second", "first"}, titles(desc))
}

func (suite *TaskManagerTestSuite) TestListTasksSortByStatus() {
	pending := suite.createTask("stay pending", models.PriorityLow, nil)
	completed := suite.createTask("finish me", models.PriorityLow, nil)
	_, err := suite.manager.MarkTaskComplete(completed.ID)
	suite.Require().NoError(err)

	sorted := suite.manager.ListTasks(SortStatus)
	suite.Require().Len(sorted, 2)
	suite.Equal(completed.ID, sorted[0].ID)
	suite.Equal(pending.ID, sorted[1].ID)
}

func (suite *TaskManagerTestSuite) TestParseSortKey() {
	for _, value := range []string{"", "due_date_asc", "due_date_desc", "priority_high", "priority_low", "created_asc", "created_desc", "status"} {
		_, err := ParseSortKey(value)
		suite.NoError(err, value)
	}

	_, err := ParseSortKey("alphabetical")
	suite.Error(err)
}

func (suite *TaskManagerTestSuite) TestFilterTasks() {
	now := time.Now()
	suite.createTask("high pending", models.PriorityHigh, timePtr(now.Add(24*time.Hour)))
	suite.createTask("low pending", models.PriorityLow, nil)
	completed, err := suite.manager.MarkTaskComplete(
		suite.createTask("high completed", models.PriorityHigh, timePtr(now.Add(48*time.Hour))).ID)
	suite.Require().NoError(err)

	// Empty criteria returns everything.
	suite.Len(suite.manager.FilterTasks(TaskFilter{}), 3)

	status := models.StatusCompleted
	priority := models.PriorityHigh
	both := suite.manager.FilterTasks(TaskFilter{Status: &status, Priority: &priority})
	suite.Require().Len(both, 1)
	suite.Equal(completed.ID, both[0].ID)

	onlyHigh := suite.manager.FilterTasks(TaskFilter{Priority: &priority})
	suite.Len(onlyHigh, 2)
}

func (suite *TaskManagerTestSuite) TestFilterTasksByDueDate() {
	now := time.Now()
	suite.createTask("tomorrow", models.PriorityLow, timePtr(now.Add(24*time.Hour)))
	suite.createTask("next week", models.PriorityLow, timePtr(now.Add(7*24*time.Hour)))
	suite.createTask("undated", models.PriorityLow, nil)

	cutoff := now.Add(48 * time.Hour)
	before := suite.manager.FilterTasks(TaskFilter{DueBefore: &cutoff})
	suite.Equal([]string{"tomorrow"}, titles(before))

	after := suite.manager.FilterTasks(TaskFilter{DueAfter: &cutoff})
	suite.Equal([]string{"next week"}, titles(after))

	onDate := now.Add(24 * time.Hour)
	on := suite.manager.FilterTasks(TaskFilter{DueOn: &onDate})
	suite.Equal([]string{"tomorrow"}, titles(on))
}

func (suite *TaskManagerTestSuite) TestUpdateTaskPersistsChangedColumns() {
	dueDate := time.Now().Add(24 * time.Hour)
	task, err := suite.manager.CreateTask(CreateTaskInput{
		Title:       "before",
		Description: strPtr("old description"),
		DueDate:     &dueDate,
		Priority:    models.PriorityLow,
	})
	suite.Require().NoError(err)
	previousUpdatedAt := task.UpdatedAt

	time.Sleep(time.Millisecond)
	updated, err := suite.manager.UpdateTask(task.ID, models.TaskUpdate{
		Title:        strPtr("after"),
		Description:  strPtr(""),
		ClearDueDate: true,
	})
	suite.Require().NoError(err)

	suite.Equal("after", updated.Title)
	suite.Nil(updated.Description)
	suite.Nil(updated.DueDate)
	suite.Equal(models.PriorityLow, updated.Priority)
	suite.True(updated.UpdatedAt.After(previousUpdatedAt))

	record, found := suite.storedRecord(task.ID)
	suite.Require().True(found)
	suite.Equal("after", record.Title)
	suite.Nil(record.Description)
	suite.Nil(record.DueDate)
	suite.Equal("LOW", record.Priority)
}

func (suite *TaskManagerTestSuite) TestUpdateTaskEmptyUpdateIsNoop() {
	task := suite.createTask("untouched", models.PriorityLow, nil)
	previousUpdatedAt := task.UpdatedAt

	updated, err := suite.manager.UpdateTask(task.ID, models.TaskUpdate{})
	suite.Require().NoError(err)
	suite.True(updated.UpdatedAt.Equal(previousUpdatedAt))
}

func (suite *TaskManagerTestSuite) TestUpdateTaskValidationFailureLeavesCacheUnchanged() {
	task := suite.createTask("keep me", models.PriorityLow, nil)

	_, err := suite.manager.UpdateTask(task.ID, models.TaskUpdate{Title: strPtr("   ")})
	var validationErr *models.ValidationError
	suite.Require().ErrorAs(err, &validationErr)

	got, err := suite.manager.GetTask(task.ID)
	suite.Require().NoError(err)
	suite.Equal("keep me", got.Title)

	record, found := suite.storedRecord(task.ID)
	suite.Require().True(found)
	suite.Equal("keep me", record.Title)
}

func (suite *TaskManagerTestSuite) TestUpdateTaskPersistenceFailureLeavesCacheUnchanged() {
	task := suite.createTask("keep me", models.PriorityLow, nil)
	suite.conn.failExecute = true

	_, err := suite.manager.UpdateTask(task.ID, models.TaskUpdate{Title: strPtr("lost")})
	var persistErr *PersistenceError
	suite.Require().ErrorAs(err, &persistErr)

	got, err := suite.manager.GetTask(task.ID)
	suite.Require().NoError(err)
	suite.Equal("keep me", got.Title)

	record, found := suite.storedRecord(task.ID)
	suite.Require().True(found)
	suite.Equal("keep me", record.Title)
}

func (suite *TaskManagerTestSuite) TestUpdateTaskNotFound() {
	_, err := suite.manager.UpdateTask(uuid.NewString(), models.TaskUpdate{Title: strPtr("x")})

	var notFoundErr *TaskNotFoundError
	suite.Require().ErrorAs(err, &notFoundErr)
}

func (suite *TaskManagerTestSuite) TestMarkTaskComplete() {
	dueDate := time.Now().Add(48 * time.Hour)
	task := suite.createTask("Pay rent", models.PriorityHigh, &dueDate)
	previousUpdatedAt := task.UpdatedAt

	time.Sleep(time.Millisecond)
	completed, err := suite.manager.MarkTaskComplete(task.ID)
	suite.Require().NoError(err)
	suite.Equal(models.StatusCompleted, completed.Status)
	suite.True(completed.UpdatedAt.After(previousUpdatedAt))

	got, err := suite.manager.GetTask(task.ID)
	suite.Require().NoError(err)
	suite.Equal(models.StatusCompleted, got.Status)

	record, found := suite.storedRecord(task.ID)
	suite.Require().True(found)
	suite.Equal("COMPLETED", record.Status)

	// Completing twice is fine.
	_, err = suite.manager.MarkTaskComplete(task.ID)
	suite.NoError(err)
}

func (suite *TaskManagerTestSuite) TestDeleteTask() {
	task := suite.createTask("short lived", models.PriorityLow, nil)

	suite.Require().NoError(suite.manager.DeleteTask(task.ID))
	suite.Equal(0, suite.manager.Count())

	_, found := suite.storedRecord(task.ID)
	suite.False(found)

	_, err := suite.manager.GetTask(task.ID)
	var notFoundErr *TaskNotFoundError
	suite.Require().ErrorAs(err, &notFoundErr)
}

func (suite *TaskManagerTestSuite) TestDeleteTaskNotFoundLeavesCacheSizeUnchanged() {
	suite.createTask("survivor", models.PriorityLow, nil)

	err := suite.manager.DeleteTask(uuid.NewString())
	var notFoundErr *TaskNotFoundError
	suite.Require().ErrorAs(err, &notFoundErr)
	suite.Equal(1, suite.manager.Count())
}

func (suite *TaskManagerTestSuite) TestDeleteTaskPersistenceFailureRetainsCacheEntry() {
	task := suite.createTask("survivor", models.PriorityLow, nil)
	suite.conn.failExecute = true

	err := suite.manager.DeleteTask(task.ID)
	var persistErr *PersistenceError
	suite.Require().ErrorAs(err, &persistErr)
	suite.Equal(1, suite.manager.Count())

	_, found := suite.storedRecord(task.ID)
	suite.True(found)
}

func (suite *TaskManagerTestSuite) TestStatistics() {
	now := time.Now()

	suite.createTask("overdue pending", models.PriorityHigh, timePtr(now.Add(-24*time.Hour)))
	suite.createTask("due soon pending", models.PriorityMedium, timePtr(now.Add(72*time.Hour)))
	suite.createTask("far future", models.PriorityLow, timePtr(now.Add(30*24*time.Hour)))
	suite.createTask("undated", models.PriorityLow, nil)

	completedOverdue := suite.createTask("completed overdue", models.PriorityHigh, timePtr(now.Add(-24*time.Hour)))
	_, err := suite.manager.MarkTaskComplete(completedOverdue.ID)
	suite.Require().NoError(err)

	stats := suite.manager.Statistics()

	suite.Equal(5, stats.Total)
	suite.Equal(4, stats.ByStatus[models.StatusPending])
	suite.Equal(0, stats.ByStatus[models.StatusInProgress])
	suite.Equal(1, stats.ByStatus[models.StatusCompleted])
	suite.Equal(2, stats.ByPriority[models.PriorityHigh])
	suite.Equal(1, stats.ByPriority[models.PriorityMedium])
	suite.Equal(2, stats.ByPriority[models.PriorityLow])

	// A task due yesterday is overdue, never due soon; a completed task due
	// yesterday is in neither bucket.
	suite.Equal(1, stats.Overdue)
	suite.Equal(1, stats.DueSoon)

	sum := 0
	for _, count := range stats.ByStatus {
		sum += count
	}
	suite.Equal(stats.Total, sum)
	suite.LessOrEqual(stats.Overdue+stats.DueSoon, stats.Total)
}

func titles(tasks []*models.Task) []string {
	result := make([]string, len(tasks))
	for i, task := range tasks {
		result[i] = task.Title
	}
	return result
}

func TestTaskManagerTestSuite(t *testing.T) {
	suite.Run(t, new(TaskManagerTestSuite))
}
