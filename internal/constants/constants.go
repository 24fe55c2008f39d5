package constants

// Task field limits
const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 500
)

// Pagination limits
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// DueSoonWindowDays is how far ahead a pending task's due date may lie to
// still count as "due soon" in the statistics.
const DueSoonWindowDays = 7
