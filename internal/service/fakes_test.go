package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/token-curator/internal/config"
	"github.com/token-curator/internal/models"
	"github.com/token-curator/internal/storage"
	"github.com/token-curator/internal/types"
)

// memDB is an in-memory stand-in for Postgres and ClickHouse. Project writes are
// guarded by version exactly like the SQL repositories.
type memDB struct {
	mu        sync.Mutex
	projects  map[string]*models.Project
	votes     map[string]*models.Vote
	users     map[string]*models.User
	ratings   map[string]*models.Rating
	snapshots []*models.ROISnapshot
	nextID    int

	// injected failures
	listErr         error
	applyErr        error
	insertROIErr    error
	updateMarketErr error

	// beforeApply runs outside the lock at the start of every ApplyVote call
	beforeApply func(call int)
	applyCalls  int
}

func newMemDB() *memDB {
	return &memDB{
		projects: make(map[string]*models.Project),
		votes:    make(map[string]*models.Vote),
		users:    make(map[string]*models.User),
		ratings:  make(map[string]*models.Rating),
	}
}

func voteKey(userID, projectID string) string { return userID + "|" + projectID }

func (db *memDB) id(prefix string) string {
	db.nextID++
	return fmt.Sprintf("%s-%d", prefix, db.nextID)
}

// addProject stores p directly, bypassing submission
func (db *memDB) addProject(p *models.Project) *models.Project {
	db.mu.Lock()
	defer db.mu.Unlock()
	if p.ID == "" {
		p.ID = db.id("project")
	}
	if p.Version == 0 {
		p.Version = 1
	}
	db.projects[p.ID] = p.Clone()
	return p
}

func (db *memDB) project(id string) *models.Project {
	db.mu.Lock()
	defer db.mu.Unlock()
	if p, ok := db.projects[id]; ok {
		return p.Clone()
	}
	return nil
}

func (db *memDB) addUser(u *models.User) {
	db.mu.Lock()
	defer db.mu.Unlock()
	c := *u
	db.users[u.ID] = &c
}

func (db *memDB) user(id string) *models.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	if u, ok := db.users[id]; ok {
		c := *u
		return &c
	}
	return nil
}

func (db *memDB) snapshotsFor(projectID string) []*models.ROISnapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []*models.ROISnapshot
	for _, s := range db.snapshots {
		if s.ProjectID == projectID {
			c := *s
			out = append(out, &c)
		}
	}
	return out
}

// memProjects implements ProjectStore
type memProjects struct{ db *memDB }

func (m memProjects) Create(ctx context.Context, project *models.Project) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	project.ContractAddress = types.NormalizeAddress(project.ContractAddress)
	for _, p := range m.db.projects {
		if p.ContractAddress == project.ContractAddress {
			return storage.ErrDuplicateAddress
		}
	}
	if project.ID == "" {
		project.ID = m.db.id("project")
	}
	project.Version = 1
	m.db.projects[project.ID] = project.Clone()
	if u, ok := m.db.users[project.SubmittedBy]; ok {
		u.ProjectsSubmitted++
	}
	return nil
}

func (m memProjects) GetByID(ctx context.Context, id string) (*models.Project, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if p, ok := m.db.projects[id]; ok {
		return p.Clone(), nil
	}
	return nil, storage.ErrNotFound
}

func (m memProjects) GetByAddress(ctx context.Context, address string) (*models.Project, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, p := range m.db.projects {
		if p.ContractAddress == types.NormalizeAddress(address) {
			return p.Clone(), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m memProjects) GetByIDs(ctx context.Context, ids []string) (map[string]*models.Project, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := make(map[string]*models.Project)
	for _, id := range ids {
		if p, ok := m.db.projects[id]; ok {
			out[id] = p.Clone()
		}
	}
	return out, nil
}

func (m memProjects) List(ctx context.Context, filter storage.ProjectFilter) ([]*models.Project, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.listErr != nil {
		return nil, m.db.listErr
	}

	var out []*models.Project
	for _, p := range m.db.projects {
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		if p.Votes < filter.MinVotes || p.Bulls < filter.MinBulls {
			continue
		}
		if filter.HasROI && p.ROI == nil {
			continue
		}
		out = append(out, p.Clone())
	}
	// map order is random; the service must impose its own ordering
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit && filter.OrderBy == "" {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m memProjects) UpdateStatus(ctx context.Context, project *models.Project) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	stored, ok := m.db.projects[project.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if stored.Version != project.Version {
		return storage.ErrVersionConflict
	}
	stored.Status = project.Status
	stored.ApprovedAt = project.ApprovedAt
	stored.ApprovedBy = project.ApprovedBy
	stored.Version++
	project.Version++
	return nil
}

func (m memProjects) UpdateMarket(ctx context.Context, id string, currentPrice, roi float64) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.updateMarketErr != nil {
		return m.db.updateMarketErr
	}
	stored, ok := m.db.projects[id]
	if !ok {
		return storage.ErrNotFound
	}
	stored.CurrentPrice = currentPrice
	stored.ROI = &roi
	return nil
}

// memVotes implements VoteStore
type memVotes struct{ db *memDB }

func (m memVotes) GetByUserAndProject(ctx context.Context, userID, projectID string) (*models.Vote, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if v, ok := m.db.votes[voteKey(userID, projectID)]; ok {
		c := *v
		return &c, nil
	}
	return nil, storage.ErrNotFound
}

func (m memVotes) ListByProject(ctx context.Context, projectID string) ([]*models.Vote, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []*models.Vote
	for _, v := range m.db.votes {
		if v.ProjectID == projectID {
			c := *v
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m memVotes) ApplyVote(ctx context.Context, change *storage.VoteChange) error {
	m.db.mu.Lock()
	m.db.applyCalls++
	call := m.db.applyCalls
	hook := m.db.beforeApply
	m.db.mu.Unlock()
	if hook != nil {
		hook(call)
	}

	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.applyErr != nil {
		return m.db.applyErr
	}

	key := voteKey(change.Vote.UserID, change.Vote.ProjectID)
	if _, exists := m.db.votes[key]; exists && change.Insert {
		return storage.ErrVoteExists
	}
	stored, ok := m.db.projects[change.Project.ID]
	if !ok || stored.Version != change.Project.Version {
		return storage.ErrVersionConflict
	}

	now := time.Now().UTC()
	if change.Insert {
		change.Vote.ID = m.db.id("vote")
		change.Vote.CreatedAt = now
		if u, ok := m.db.users[change.Vote.UserID]; ok {
			u.ProjectsVoted++
		}
	}
	change.Vote.UpdatedAt = now
	v := *change.Vote
	m.db.votes[key] = &v

	change.Project.Version++
	m.db.projects[change.Project.ID] = change.Project.Clone()
	return nil
}

// memUsers implements UserStore
type memUsers struct{ db *memDB }

func (m memUsers) Upsert(ctx context.Context, user *models.User) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if existing, ok := m.db.users[user.ID]; ok {
		existing.Username = user.Username
		existing.FirstName = user.FirstName
		existing.LastName = user.LastName
		existing.IsAdmin = user.IsAdmin
		*user = *existing
		return nil
	}
	c := *user
	m.db.users[user.ID] = &c
	return nil
}

func (m memUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if u, ok := m.db.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, storage.ErrNotFound
}

func (m memUsers) GetByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := make(map[string]*models.User)
	for _, id := range ids {
		if u, ok := m.db.users[id]; ok {
			c := *u
			out[id] = &c
		}
	}
	return out, nil
}

func (m memUsers) SetWallet(ctx context.Context, userID, address string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[userID]
	if !ok {
		return storage.ErrNotFound
	}
	u.WalletAddress = &address
	return nil
}

func (m memUsers) ListTop(ctx context.Context, order storage.UserOrder, limit int) ([]*models.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.listErr != nil {
		return nil, m.db.listErr
	}
	var out []*models.User
	for _, u := range m.db.users {
		c := *u
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// memRatings implements RatingStore
type memRatings struct {
	db       *memDB
	averages []models.CategoryAverage
}

func (m *memRatings) Upsert(ctx context.Context, rating *models.Rating) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c := *rating
	m.db.ratings[rating.UserID+"|"+rating.ProjectID+"|"+string(rating.Category)] = &c
	return nil
}

// CategoryAverages returns the preset averages when set, otherwise aggregates stored ratings
func (m *memRatings) CategoryAverages(ctx context.Context) ([]models.CategoryAverage, error) {
	if m.averages != nil {
		return m.averages, nil
	}
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	type key struct {
		project  string
		category types.RatingCategory
	}
	sums := make(map[key]*models.CategoryAverage)
	var order []key
	for _, r := range m.db.ratings {
		k := key{r.ProjectID, r.Category}
		avg, ok := sums[k]
		if !ok {
			avg = &models.CategoryAverage{ProjectID: r.ProjectID, Category: r.Category}
			sums[k] = avg
			order = append(order, k)
		}
		avg.Average += float64(r.Score)
		avg.Count++
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].project != order[j].project {
			return order[i].project < order[j].project
		}
		return order[i].category < order[j].category
	})
	out := make([]models.CategoryAverage, 0, len(order))
	for _, k := range order {
		avg := sums[k]
		avg.Average /= float64(avg.Count)
		out = append(out, *avg)
	}
	return out, nil
}

// memROI implements ROIStore
type memROI struct{ db *memDB }

func (m memROI) Insert(ctx context.Context, snapshot *models.ROISnapshot) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.insertROIErr != nil {
		return m.db.insertROIErr
	}
	if snapshot.ID == "" {
		snapshot.ID = m.db.id("snapshot")
	}
	// keep timestamps strictly increasing so earliest/latest are unambiguous
	if n := len(m.db.snapshots); n > 0 && !snapshot.Timestamp.After(m.db.snapshots[n-1].Timestamp) {
		snapshot.Timestamp = m.db.snapshots[n-1].Timestamp.Add(time.Millisecond)
	}
	c := *snapshot
	m.db.snapshots = append(m.db.snapshots, &c)
	return nil
}

func (m memROI) pick(projectID string, earliest bool) (*models.ROISnapshot, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var found *models.ROISnapshot
	for _, s := range m.db.snapshots {
		if s.ProjectID != projectID {
			continue
		}
		if found == nil || (earliest && s.Timestamp.Before(found.Timestamp)) || (!earliest && s.Timestamp.After(found.Timestamp)) {
			found = s
		}
	}
	if found == nil {
		return nil, storage.ErrNotFound
	}
	c := *found
	return &c, nil
}

func (m memROI) Earliest(ctx context.Context, projectID string) (*models.ROISnapshot, error) {
	return m.pick(projectID, true)
}

func (m memROI) Latest(ctx context.Context, projectID string) (*models.ROISnapshot, error) {
	return m.pick(projectID, false)
}

func (m memROI) LatestPerProject(ctx context.Context, limit int) ([]*models.ROISnapshot, error) {
	m.db.mu.Lock()
	latest := make(map[string]*models.ROISnapshot)
	for _, s := range m.db.snapshots {
		if cur, ok := latest[s.ProjectID]; !ok || s.Timestamp.After(cur.Timestamp) {
			latest[s.ProjectID] = s
		}
	}
	m.db.mu.Unlock()

	out := make([]*models.ROISnapshot, 0, len(latest))
	for _, s := range latest {
		c := *s
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ROI > out[j].ROI })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakeOracle implements PriceOracle
type fakeOracle struct {
	mu    sync.Mutex
	data  map[string]*types.TokenData
	err   error
	calls int
}

func (f *fakeOracle) GetTokenByAddress(ctx context.Context, address string) (*types.TokenData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if d, ok := f.data[types.NormalizeAddress(address)]; ok {
		c := *d
		return &c, nil
	}
	return nil, nil
}

func (f *fakeOracle) setPrice(address string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data == nil {
		f.data = make(map[string]*types.TokenData)
	}
	key := types.NormalizeAddress(address)
	d, ok := f.data[key]
	if !ok {
		d = &types.TokenData{Name: "Token", Symbol: "TKN"}
		f.data[key] = d
	}
	d.Price = price
}

// fakeLedger implements LedgerClient; every address is valid unless listed in invalid
type fakeLedger struct {
	invalid map[string]bool
	err     error
}

func (f *fakeLedger) ValidateContract(ctx context.Context, address string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return !f.invalid[address], nil
}

func (f *fakeLedger) ValidateWallet(ctx context.Context, address string) (bool, error) {
	return f.ValidateContract(ctx, address)
}

// newTestCache returns a Redis-backed leaderboard cache on a throwaway miniredis
func newTestCache(t *testing.T) (*storage.LeaderboardCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return storage.NewLeaderboardCache(storage.NewRedisCacheFromClient(client), time.Minute), mr
}

func testVotingConfig() config.VotingConfig {
	return config.VotingConfig{VoteThreshold: 10, FastTrackPercent: 70, MaxConflictRetry: 5}
}

func vettingProject(db *memDB) *models.Project {
	return db.addProject(&models.Project{
		ContractAddress: fmt.Sprintf("0x%040d", len(db.projects)+1),
		Name:            "Token",
		Symbol:          "TKN",
		Status:          types.StatusVetting,
		SubmittedBy:     "submitter",
	})
}
