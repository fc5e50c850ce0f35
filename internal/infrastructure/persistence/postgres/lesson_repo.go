package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/lesson"
)

// ══════════════════════════════════════════════════════════════════════════════
// LESSON REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LessonRepository implements lesson.Repository for PostgreSQL.
type LessonRepository struct {
	conn *Connection
}

// NewLessonRepository creates a new LessonRepository.
func NewLessonRepository(conn *Connection) *LessonRepository {
	return &LessonRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// Catalog
// ─────────────────────────────────────────────────────────────────────────────

// GetLesson returns a lesson by id.
func (r *LessonRepository) GetLesson(ctx context.Context, id int64) (*lesson.Lesson, error) {
	query := `
		SELECT id, module_id, title, description, content, order_index, xp_reward, published
		FROM lessons
		WHERE id = $1
	`

	var l lesson.Lesson
	err := r.conn.QueryRow(ctx, query, id).Scan(
		&l.ID,
		&l.ModuleID,
		&l.Title,
		&l.Description,
		&l.Content,
		&l.OrderIndex,
		&l.XPReward,
		&l.Published,
	)
	if IsNoRows(err) {
		return nil, lesson.ErrLessonNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lesson: %w", err)
	}

	return &l, nil
}

// ListByModule returns the module's lessons ordered by order index.
func (r *LessonRepository) ListByModule(ctx context.Context, moduleID int64) ([]lesson.Lesson, error) {
	query := `
		SELECT id, module_id, title, description, content, order_index, xp_reward, published
		FROM lessons
		WHERE module_id = $1
		ORDER BY order_index ASC
	`

	rows, err := r.conn.Query(ctx, query, moduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lessons: %w", err)
	}
	defer rows.Close()

	var lessons []lesson.Lesson
	for rows.Next() {
		var l lesson.Lesson
		err := rows.Scan(
			&l.ID,
			&l.ModuleID,
			&l.Title,
			&l.Description,
			&l.Content,
			&l.OrderIndex,
			&l.XPReward,
			&l.Published,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lesson: %w", err)
		}
		lessons = append(lessons, l)
	}

	return lessons, rows.Err()
}

// ListModules returns all learning modules ordered by id.
func (r *LessonRepository) ListModules(ctx context.Context) ([]lesson.Module, error) {
	query := `
		SELECT id, title, description
		FROM learning_modules
		ORDER BY id ASC
	`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}
	defer rows.Close()

	var modules []lesson.Module
	for rows.Next() {
		var m lesson.Module
		if err := rows.Scan(&m.ID, &m.Title, &m.Description); err != nil {
			return nil, fmt.Errorf("failed to scan module: %w", err)
		}
		modules = append(modules, m)
	}

	return modules, rows.Err()
}

// ModuleExists checks that a learning module exists.
func (r *LessonRepository) ModuleExists(ctx context.Context, moduleID int64) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM learning_modules WHERE id = $1)",
		moduleID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check module existence: %w", err)
	}
	return exists, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Quizzes
// ─────────────────────────────────────────────────────────────────────────────

// GetQuiz returns a quiz by id with its questions.
func (r *LessonRepository) GetQuiz(ctx context.Context, id int64) (*lesson.Quiz, error) {
	return r.getQuiz(ctx, "SELECT id, lesson_id, title FROM quizzes WHERE id = $1", id)
}

// GetQuizByLesson returns the quiz attached to a lesson with its questions.
func (r *LessonRepository) GetQuizByLesson(ctx context.Context, lessonID int64) (*lesson.Quiz, error) {
	return r.getQuiz(ctx, "SELECT id, lesson_id, title FROM quizzes WHERE lesson_id = $1", lessonID)
}

func (r *LessonRepository) getQuiz(ctx context.Context, query string, arg int64) (*lesson.Quiz, error) {
	var q lesson.Quiz
	err := r.conn.QueryRow(ctx, query, arg).Scan(&q.ID, &q.LessonID, &q.Title)
	if IsNoRows(err) {
		return nil, lesson.ErrQuizNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	questions, err := r.listQuestions(ctx, q.ID)
	if err != nil {
		return nil, err
	}
	q.Questions = questions

	return &q, nil
}

// listQuestions loads the quiz's questions.
func (r *LessonRepository) listQuestions(ctx context.Context, quizID int64) ([]lesson.QuizQuestion, error) {
	query := `
		SELECT id, quiz_id, question, options, correct_option
		FROM quiz_questions
		WHERE quiz_id = $1
		ORDER BY id ASC
	`

	rows, err := r.conn.Query(ctx, query, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to list quiz questions: %w", err)
	}
	defer rows.Close()

	return r.scanQuestions(rows)
}

// scanQuestions scans quiz questions from rows.
func (r *LessonRepository) scanQuestions(rows pgx.Rows) ([]lesson.QuizQuestion, error) {
	var questions []lesson.QuizQuestion

	for rows.Next() {
		var q lesson.QuizQuestion
		var optionsJSON []byte

		err := rows.Scan(&q.ID, &q.QuizID, &q.Question, &optionsJSON, &q.CorrectOption)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quiz question: %w", err)
		}

		if len(optionsJSON) > 0 {
			if err := json.Unmarshal(optionsJSON, &q.Options); err != nil {
				return nil, fmt.Errorf("failed to decode question options: %w", err)
			}
		}

		questions = append(questions, q)
	}

	return questions, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Completion records
// ─────────────────────────────────────────────────────────────────────────────

// CreateCompletion inserts a completion record. ON CONFLICT DO NOTHING makes
// the insert the idempotency gate: a concurrent or repeated completion sees
// zero affected rows and is reported as created=false, never as an error.
func (r *LessonRepository) CreateCompletion(ctx context.Context, c lesson.Completion) (bool, error) {
	query := `
		INSERT INTO lesson_completions (username, lesson_id, completed, completed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username, lesson_id) DO NOTHING
	`

	result, err := r.conn.Exec(ctx, query,
		c.Username,
		c.LessonID,
		c.Completed,
		c.CompletedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create completion: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// DeleteCompletion removes a completion record.
func (r *LessonRepository) DeleteCompletion(ctx context.Context, username string, lessonID int64) error {
	_, err := r.conn.Exec(ctx,
		"DELETE FROM lesson_completions WHERE username = $1 AND lesson_id = $2",
		username, lessonID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete completion: %w", err)
	}
	return nil
}

// HasCompletion checks whether the user completed the lesson.
func (r *LessonRepository) HasCompletion(ctx context.Context, username string, lessonID int64) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM lesson_completions WHERE username = $1 AND lesson_id = $2)",
		username, lessonID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check completion: %w", err)
	}
	return exists, nil
}

// CompletedLessonIDs returns the ids of the module's lessons the user completed.
func (r *LessonRepository) CompletedLessonIDs(ctx context.Context, username string, moduleID int64) (map[int64]bool, error) {
	query := `
		SELECT lc.lesson_id
		FROM lesson_completions lc
		JOIN lessons l ON l.id = lc.lesson_id
		WHERE lc.username = $1 AND l.module_id = $2
	`

	rows, err := r.conn.Query(ctx, query, username, moduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query completed lessons: %w", err)
	}
	defer rows.Close()

	completed := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan completed lesson id: %w", err)
		}
		completed[id] = true
	}

	return completed, rows.Err()
}
