package query

import (
	"context"
	"sort"
	"time"

	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/badge"
	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/leaderboard"
	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/lesson"
	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/user"
)

// ─────────────────────────────────────────────────────────────────────────────
// Стабы портов для тестов запросов. Запросы ничего не пишут, поэтому
// стабы проще фейков командного слоя: без блокировок и конфликтов.
// ─────────────────────────────────────────────────────────────────────────────

type stubUserRepo struct {
	users map[string]*user.User
}

func newStubUserRepo(users ...*user.User) *stubUserRepo {
	r := &stubUserRepo{users: make(map[string]*user.User)}
	for _, u := range users {
		r.users[u.Username.String()] = u
	}
	return r
}

func (r *stubUserRepo) Create(ctx context.Context, u *user.User) error {
	r.users[u.Username.String()] = u
	return nil
}

func (r *stubUserRepo) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	u, ok := r.users[username]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return u.Clone(), nil
}

func (r *stubUserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, ok := r.users[username]
	return ok, nil
}

func (r *stubUserRepo) SaveProgress(ctx context.Context, u *user.User, expectedXP user.XP) error {
	r.users[u.Username.String()] = u.Clone()
	return nil
}

func (r *stubUserRepo) ResetStaleStreaks(ctx context.Context, activeBefore time.Time) (int64, error) {
	return 0, nil
}

func (r *stubUserRepo) List(ctx context.Context, offset, limit int) ([]*user.User, error) {
	names := make([]string, 0, len(r.users))
	for name := range r.users {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []*user.User
	for i := offset; i < len(names) && len(out) < limit; i++ {
		out = append(out, r.users[names[i]].Clone())
	}
	return out, nil
}

func (r *stubUserRepo) Count(ctx context.Context) (int, error) {
	return len(r.users), nil
}

// ─────────────────────────────────────────────────────────────────────────────

type stubBadgeRepo struct {
	byUser map[string][]badge.Badge
}

func newStubBadgeRepo() *stubBadgeRepo {
	return &stubBadgeRepo{byUser: make(map[string][]badge.Badge)}
}

func (r *stubBadgeRepo) Ensure(ctx context.Context, b badge.Badge) error { return nil }

func (r *stubBadgeRepo) Grant(ctx context.Context, username, code string) (bool, error) {
	return false, nil
}

func (r *stubBadgeRepo) CodesForUser(ctx context.Context, username string) (map[string]bool, error) {
	codes := make(map[string]bool)
	for _, b := range r.byUser[username] {
		codes[b.Code] = true
	}
	return codes, nil
}

func (r *stubBadgeRepo) ListForUser(ctx context.Context, username string) ([]badge.Badge, error) {
	return r.byUser[username], nil
}

// ─────────────────────────────────────────────────────────────────────────────

// stubRankIndex хранит записи уже в порядке убывания XP.
type stubRankIndex struct {
	entries []leaderboard.Entry

	topNCalls []int
}

func (s *stubRankIndex) Upsert(ctx context.Context, username string, xp int64) error { return nil }

func (s *stubRankIndex) TopN(ctx context.Context, n int) ([]leaderboard.Entry, error) {
	s.topNCalls = append(s.topNCalls, n)
	out := make([]leaderboard.Entry, 0, n)
	for i, e := range s.entries {
		if i >= n {
			break
		}
		e.Rank = int64(i + 1)
		out = append(out, e)
	}
	return out, nil
}

func (s *stubRankIndex) RankOf(ctx context.Context, username string) (int64, error) {
	for i, e := range s.entries {
		if e.Username == username {
			return int64(i + 1), nil
		}
	}
	return 0, leaderboard.ErrNotRanked
}

func (s *stubRankIndex) ScoreOf(ctx context.Context, username string) (int64, error) {
	for _, e := range s.entries {
		if e.Username == username {
			return e.XP, nil
		}
	}
	return 0, leaderboard.ErrNotRanked
}

func (s *stubRankIndex) Remove(ctx context.Context, username string) error { return nil }

// ─────────────────────────────────────────────────────────────────────────────

type stubLessonRepo struct {
	modules     []lesson.Module
	lessons     map[int64][]lesson.Lesson
	completions map[string]map[int64]bool
}

func newStubLessonRepo() *stubLessonRepo {
	return &stubLessonRepo{
		lessons:     make(map[int64][]lesson.Lesson),
		completions: make(map[string]map[int64]bool),
	}
}

func (r *stubLessonRepo) GetLesson(ctx context.Context, id int64) (*lesson.Lesson, error) {
	for _, ls := range r.lessons {
		for _, l := range ls {
			if l.ID == id {
				return &l, nil
			}
		}
	}
	return nil, lesson.ErrLessonNotFound
}

func (r *stubLessonRepo) ListByModule(ctx context.Context, moduleID int64) ([]lesson.Lesson, error) {
	return r.lessons[moduleID], nil
}

func (r *stubLessonRepo) ListModules(ctx context.Context) ([]lesson.Module, error) {
	return r.modules, nil
}

func (r *stubLessonRepo) ModuleExists(ctx context.Context, moduleID int64) (bool, error) {
	_, ok := r.lessons[moduleID]
	return ok, nil
}

func (r *stubLessonRepo) GetQuiz(ctx context.Context, id int64) (*lesson.Quiz, error) {
	return nil, lesson.ErrQuizNotFound
}

func (r *stubLessonRepo) GetQuizByLesson(ctx context.Context, lessonID int64) (*lesson.Quiz, error) {
	return nil, lesson.ErrQuizNotFound
}

func (r *stubLessonRepo) CreateCompletion(ctx context.Context, c lesson.Completion) (bool, error) {
	if r.completions[c.Username] == nil {
		r.completions[c.Username] = make(map[int64]bool)
	}
	if r.completions[c.Username][c.LessonID] {
		return false, nil
	}
	r.completions[c.Username][c.LessonID] = true
	return true, nil
}

func (r *stubLessonRepo) DeleteCompletion(ctx context.Context, username string, lessonID int64) error {
	delete(r.completions[username], lessonID)
	return nil
}

func (r *stubLessonRepo) HasCompletion(ctx context.Context, username string, lessonID int64) (bool, error) {
	return r.completions[username][lessonID], nil
}

func (r *stubLessonRepo) CompletedLessonIDs(ctx context.Context, username string, moduleID int64) (map[int64]bool, error) {
	done := make(map[int64]bool)
	for _, l := range r.lessons[moduleID] {
		if r.completions[username][l.ID] {
			done[l.ID] = true
		}
	}
	return done, nil
}
