package jobs

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/leaderboard"
	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/user"
)

type memoryUserRepo struct {
	mu    sync.Mutex
	users map[string]*user.User

	resetCount int64
	resetErr   error
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[string]*user.User)}
}

func (r *memoryUserRepo) add(t *testing.T, username string, xp int64) {
	t.Helper()
	u, err := user.NewUser(user.NewUserParams{
		ID:           "id-" + username,
		Username:     username,
		PasswordHash: "$2a$10$hash",
	})
	require.NoError(t, err)
	u.XP = user.XP(xp)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[username] = u
}

func (r *memoryUserRepo) Create(ctx context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.Username.String()] = u
	return nil
}

func (r *memoryUserRepo) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[username]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return u.Clone(), nil
}

func (r *memoryUserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.users[username]
	return ok, nil
}

func (r *memoryUserRepo) SaveProgress(ctx context.Context, u *user.User, expectedXP user.XP) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.Username.String()] = u.Clone()
	return nil
}

func (r *memoryUserRepo) ResetStaleStreaks(ctx context.Context, activeBefore time.Time) (int64, error) {
	return r.resetCount, r.resetErr
}

func (r *memoryUserRepo) List(ctx context.Context, offset, limit int) ([]*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

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

func (r *memoryUserRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users), nil
}

type memoryRankIndex struct {
	mu     sync.Mutex
	scores map[string]int64
}

func newMemoryRankIndex() *memoryRankIndex {
	return &memoryRankIndex{scores: make(map[string]int64)}
}

func (m *memoryRankIndex) Upsert(ctx context.Context, username string, xp int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[username] = xp
	return nil
}

func (m *memoryRankIndex) TopN(ctx context.Context, n int) ([]leaderboard.Entry, error) {
	return nil, nil
}

func (m *memoryRankIndex) RankOf(ctx context.Context, username string) (int64, error) {
	return 0, leaderboard.ErrNotRanked
}

func (m *memoryRankIndex) ScoreOf(ctx context.Context, username string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	score, ok := m.scores[username]
	if !ok {
		return 0, leaderboard.ErrNotRanked
	}
	return score, nil
}

func (m *memoryRankIndex) Remove(ctx context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.scores, username)
	return nil
}

func (m *memoryRankIndex) score(username string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scores[username]
}

func TestReconcileRepairsDivergedEntries(t *testing.T) {
	users := newMemoryUserRepo()
	users.add(t, "greta", 450)
	users.add(t, "arne", 120)
	users.add(t, "luisa", 300)

	index := newMemoryRankIndex()
	index.scores["greta"] = 450 // in sync
	index.scores["arne"] = 90   // stale
	// luisa is missing from the index entirely

	job := NewReconcileRankIndexJob(users, index, nil, DefaultReconcileConfig())
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, int64(450), index.score("greta"))
	assert.Equal(t, int64(120), index.score("arne"))
	assert.Equal(t, int64(300), index.score("luisa"))

	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, int64(3), stats.UsersChecked)
	assert.Equal(t, int64(2), stats.Repaired)
	assert.Equal(t, int64(1), stats.Missing)
	assert.Equal(t, int64(0), stats.Failures)
}

func TestReconcilePaginatesLedger(t *testing.T) {
	users := newMemoryUserRepo()
	for _, name := range []string{"anna", "boris", "clara", "dina", "egor"} {
		users.add(t, name, 100)
	}

	index := newMemoryRankIndex()

	config := DefaultReconcileConfig()
	config.PageSize = 2
	job := NewReconcileRankIndexJob(users, index, nil, config)
	require.NoError(t, job.Run(context.Background()))

	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, int64(5), stats.UsersChecked)
	assert.Equal(t, int64(5), stats.Repaired)
}

func TestReconcileEmptyLedger(t *testing.T) {
	job := NewReconcileRankIndexJob(newMemoryUserRepo(), newMemoryRankIndex(), nil, DefaultReconcileConfig())
	require.NoError(t, job.Run(context.Background()))

	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, int64(0), stats.UsersChecked)
}
