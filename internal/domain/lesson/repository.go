package lesson

import "context"

// Repository defines the persistence contract for lessons, modules,
// completion records and quizzes. Implemented by the postgres package.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// Catalog (read-only for the core)
	// ─────────────────────────────────────────────────────────────────────────

	// GetLesson returns a lesson by id. Returns ErrLessonNotFound if absent.
	GetLesson(ctx context.Context, id int64) (*Lesson, error)

	// ListByModule returns the module's lessons ordered by order index.
	ListByModule(ctx context.Context, moduleID int64) ([]Lesson, error)

	// ListModules returns all learning modules ordered by id.
	ListModules(ctx context.Context) ([]Module, error)

	// ModuleExists checks that a learning module exists.
	ModuleExists(ctx context.Context, moduleID int64) (bool, error)

	// GetQuiz returns a quiz by id together with its questions.
	// Returns ErrQuizNotFound if absent.
	GetQuiz(ctx context.Context, id int64) (*Quiz, error)

	// GetQuizByLesson returns the quiz attached to a lesson together with
	// its questions. Returns ErrQuizNotFound when the lesson has no quiz.
	GetQuizByLesson(ctx context.Context, lessonID int64) (*Quiz, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Completion records
	// ─────────────────────────────────────────────────────────────────────────

	// CreateCompletion inserts a completion record unless one already exists
	// for the (username, lesson) pair. Returns created=false on conflict;
	// the conflict is the idempotency gate, never an error.
	CreateCompletion(ctx context.Context, c Completion) (created bool, err error)

	// DeleteCompletion removes a completion record. Used only to compensate
	// a failed XP award after the record was inserted.
	DeleteCompletion(ctx context.Context, username string, lessonID int64) error

	// HasCompletion checks whether the user completed the lesson.
	HasCompletion(ctx context.Context, username string, lessonID int64) (bool, error)

	// CompletedLessonIDs returns the ids of the module's lessons the user
	// has completed.
	CompletedLessonIDs(ctx context.Context, username string, moduleID int64) (map[int64]bool, error)
}
