package command

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/badge"
	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/challenge"
	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/leaderboard"
	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/lesson"
	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/shared"
	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY FAKES
// Shared test doubles for the command handlers. They mimic the persistence
// contracts closely enough to exercise the optimistic write cycle and the
// idempotency gates without a real database.
// ══════════════════════════════════════════════════════════════════════════════

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*user.User

	// conflictsLeft makes SaveProgress fail with ErrConcurrentUpdate that
	// many times, bumping the stored XP to simulate a concurrent award.
	conflictsLeft int
	conflictBump  user.XP

	saveCalls int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*user.User)}
}

func (r *fakeUserRepo) put(u *user.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.Username.String()] = u.Clone()
}

func (r *fakeUserRepo) get(username string) *user.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[username]; ok {
		return u.Clone()
	}
	return nil
}

func (r *fakeUserRepo) Create(ctx context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[u.Username.String()]; exists {
		return user.ErrUserAlreadyExists
	}
	r.users[u.Username.String()] = u.Clone()
	return nil
}

func (r *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[username]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return u.Clone(), nil
}

func (r *fakeUserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.users[username]
	return ok, nil
}

func (r *fakeUserRepo) SaveProgress(ctx context.Context, u *user.User, expectedXP user.XP) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.saveCalls++

	stored, ok := r.users[u.Username.String()]
	if !ok {
		return user.ErrUserNotFound
	}

	if r.conflictsLeft > 0 {
		r.conflictsLeft--
		stored.XP += r.conflictBump
		stored.Level = user.CalculateLevel(stored.XP)
		return user.ErrConcurrentUpdate
	}

	if stored.XP != expectedXP {
		return user.ErrConcurrentUpdate
	}

	r.users[u.Username.String()] = u.Clone()
	return nil
}

func (r *fakeUserRepo) ResetStaleStreaks(ctx context.Context, activeBefore time.Time) (int64, error) {
	return 0, nil
}

func (r *fakeUserRepo) List(ctx context.Context, offset, limit int) ([]*user.User, error) {
	return nil, nil
}

func (r *fakeUserRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users), nil
}

// ─────────────────────────────────────────────────────────────────────────────

type fakeBadgeRepo struct {
	mu     sync.Mutex
	badges map[string]badge.Badge
	grants map[string]map[string]bool

	// grantErr makes Grant fail, simulating a storage outage.
	grantErr error
}

func newFakeBadgeRepo() *fakeBadgeRepo {
	return &fakeBadgeRepo{
		badges: make(map[string]badge.Badge),
		grants: make(map[string]map[string]bool),
	}
}

func (r *fakeBadgeRepo) Ensure(ctx context.Context, b badge.Badge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.badges[b.Code]; !ok {
		r.badges[b.Code] = b
	}
	return nil
}

func (r *fakeBadgeRepo) Grant(ctx context.Context, username, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.grantErr != nil {
		return false, r.grantErr
	}
	if r.grants[username] == nil {
		r.grants[username] = make(map[string]bool)
	}
	if r.grants[username][code] {
		return false, nil
	}
	r.grants[username][code] = true
	return true, nil
}

func (r *fakeBadgeRepo) CodesForUser(ctx context.Context, username string) (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	held := make(map[string]bool, len(r.grants[username]))
	for code := range r.grants[username] {
		held[code] = true
	}
	return held, nil
}

func (r *fakeBadgeRepo) ListForUser(ctx context.Context, username string) ([]badge.Badge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []badge.Badge
	for code := range r.grants[username] {
		out = append(out, r.badges[code])
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────

var errRankIndexDown = errors.New("rank index unavailable")

type fakeRankIndex struct {
	mu     sync.Mutex
	scores map[string]int64

	// failUpserts makes Upsert fail that many times.
	failUpserts int
	upsertCalls int
}

func newFakeRankIndex() *fakeRankIndex {
	return &fakeRankIndex{scores: make(map[string]int64)}
}

func (f *fakeRankIndex) Upsert(ctx context.Context, username string, xp int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCalls++
	if f.failUpserts > 0 {
		f.failUpserts--
		return errRankIndexDown
	}
	f.scores[username] = xp
	return nil
}

// TopN mirrors the sorted-set ordering of the real index: XP descending,
// ties in reverse-lexicographic username order.
func (f *fakeRankIndex) TopN(ctx context.Context, n int) ([]leaderboard.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries := make([]leaderboard.Entry, 0, len(f.scores))
	for username, xp := range f.scores {
		entries = append(entries, leaderboard.Entry{Username: username, XP: xp})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].XP != entries[j].XP {
			return entries[i].XP > entries[j].XP
		}
		return entries[i].Username > entries[j].Username
	})
	if n < len(entries) {
		entries = entries[:n]
	}
	for i := range entries {
		entries[i].Rank = int64(i + 1)
	}
	return entries, nil
}

func (f *fakeRankIndex) RankOf(ctx context.Context, username string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.scores[username]; !ok {
		return 0, leaderboard.ErrNotRanked
	}
	return 1, nil
}

func (f *fakeRankIndex) ScoreOf(ctx context.Context, username string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	score, ok := f.scores[username]
	if !ok {
		return 0, leaderboard.ErrNotRanked
	}
	return score, nil
}

func (f *fakeRankIndex) Remove(ctx context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.scores, username)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────

type fakeEventBus struct {
	mu     sync.Mutex
	events []shared.Event
}

func (b *fakeEventBus) Publish(event shared.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *fakeEventBus) published() []shared.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]shared.Event, len(b.events))
	copy(out, b.events)
	return out
}

func (b *fakeEventBus) hasEventType(t shared.EventType) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.events {
		if e.EventType() == t {
			return true
		}
	}
	return false
}

// ─────────────────────────────────────────────────────────────────────────────

type fakeLessonRepo struct {
	mu          sync.Mutex
	lessons     map[int64]lesson.Lesson
	quizzes     map[int64]lesson.Quiz
	completions map[string]map[int64]bool

	deleteCalls int
}

func newFakeLessonRepo() *fakeLessonRepo {
	return &fakeLessonRepo{
		lessons:     make(map[int64]lesson.Lesson),
		quizzes:     make(map[int64]lesson.Quiz),
		completions: make(map[string]map[int64]bool),
	}
}

func (r *fakeLessonRepo) GetLesson(ctx context.Context, id int64) (*lesson.Lesson, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lessons[id]
	if !ok {
		return nil, lesson.ErrLessonNotFound
	}
	return &l, nil
}

func (r *fakeLessonRepo) ListByModule(ctx context.Context, moduleID int64) ([]lesson.Lesson, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []lesson.Lesson
	for _, l := range r.lessons {
		if l.ModuleID == moduleID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *fakeLessonRepo) ListModules(ctx context.Context) ([]lesson.Module, error) {
	return nil, nil
}

func (r *fakeLessonRepo) ModuleExists(ctx context.Context, moduleID int64) (bool, error) {
	return true, nil
}

func (r *fakeLessonRepo) GetQuiz(ctx context.Context, id int64) (*lesson.Quiz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quizzes[id]
	if !ok {
		return nil, lesson.ErrQuizNotFound
	}
	return &q, nil
}

func (r *fakeLessonRepo) GetQuizByLesson(ctx context.Context, lessonID int64) (*lesson.Quiz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.quizzes {
		if q.LessonID == lessonID {
			quiz := q
			return &quiz, nil
		}
	}
	return nil, lesson.ErrQuizNotFound
}

func (r *fakeLessonRepo) CreateCompletion(ctx context.Context, c lesson.Completion) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.completions[c.Username] == nil {
		r.completions[c.Username] = make(map[int64]bool)
	}
	if r.completions[c.Username][c.LessonID] {
		return false, nil
	}
	r.completions[c.Username][c.LessonID] = true
	return true, nil
}

func (r *fakeLessonRepo) DeleteCompletion(ctx context.Context, username string, lessonID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteCalls++
	delete(r.completions[username], lessonID)
	return nil
}

func (r *fakeLessonRepo) HasCompletion(ctx context.Context, username string, lessonID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completions[username][lessonID], nil
}

func (r *fakeLessonRepo) CompletedLessonIDs(ctx context.Context, username string, moduleID int64) (map[int64]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int64]bool)
	for id := range r.completions[username] {
		if l, ok := r.lessons[id]; ok && l.ModuleID == moduleID {
			out[id] = true
		}
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────

type fakeChallengeRepo struct {
	mu          sync.Mutex
	challenges  map[int64]challenge.Challenge
	submissions map[string]map[int64]bool

	deleteCalls int
}

func newFakeChallengeRepo() *fakeChallengeRepo {
	return &fakeChallengeRepo{
		challenges:  make(map[int64]challenge.Challenge),
		submissions: make(map[string]map[int64]bool),
	}
}

func (r *fakeChallengeRepo) GetChallenge(ctx context.Context, id int64) (*challenge.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.challenges[id]
	if !ok {
		return nil, challenge.ErrChallengeNotFound
	}
	return &c, nil
}

func (r *fakeChallengeRepo) ListChallenges(ctx context.Context) ([]challenge.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []challenge.Challenge
	for _, c := range r.challenges {
		out = append(out, c)
	}
	return out, nil
}

func (r *fakeChallengeRepo) CreateSubmission(ctx context.Context, s challenge.Submission) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.submissions[s.Username] == nil {
		r.submissions[s.Username] = make(map[int64]bool)
	}
	if r.submissions[s.Username][s.ChallengeID] {
		return false, nil
	}
	r.submissions[s.Username][s.ChallengeID] = true
	return true, nil
}

func (r *fakeChallengeRepo) DeleteSubmission(ctx context.Context, username string, challengeID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteCalls++
	delete(r.submissions[username], challengeID)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────

type fakeTokenIssuer struct {
	issueErr error
}

func (f *fakeTokenIssuer) Issue(username, role string) (string, error) {
	if f.issueErr != nil {
		return "", f.issueErr
	}
	return "token-" + username, nil
}
