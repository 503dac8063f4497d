package codex

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/phturb/campaign-codex-backend-go/internal"
	"github.com/phturb/campaign-codex-backend-go/model"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type MockDependencies struct {
	db *gorm.DB
}

func (m *MockDependencies) Database(ctx context.Context) *gorm.DB {
	return m.db.WithContext(ctx)
}

func (m *MockDependencies) Cron() *cron.Cron {
	return cron.New()
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SessionLogged(ctx context.Context, s *model.Session) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

// recordingRevalidator keeps every path it was asked to revalidate.
type recordingRevalidator struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingRevalidator) Revalidate(paths ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, paths...)
}

func (r *recordingRevalidator) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

type testEnv struct {
	svc  *Services
	deps *MockDependencies
	rv   *recordingRevalidator
	n    *MockNotifier
}

func setupTest(t *testing.T) *testEnv {
	t.Helper()
	internal.LoadConfig("../.env.test")
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	db, err := internal.OpenDatabase("sqlite", filepath.Join(t.TempDir(), "codex.db"))
	require.NoError(t, err)
	require.NoError(t, internal.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	deps := &MockDependencies{db: db}
	rv := &recordingRevalidator{}
	n := &MockNotifier{}
	n.On("SessionLogged", mock.Anything, mock.Anything).Return(nil).Maybe()

	return &testEnv{
		svc:  NewServices(deps, rv, n),
		deps: deps,
		rv:   rv,
		n:    n,
	}
}

func (e *testEnv) campaign(t *testing.T, title string) *model.Campaign {
	t.Helper()
	c, err := e.svc.Entities.Campaigns.Create(context.Background(), &model.Campaign{Title: title})
	require.NoError(t, err)
	return c
}

func (e *testEnv) adventure(t *testing.T, campaignID uint, title string) *model.Adventure {
	t.Helper()
	a, err := e.svc.Entities.Adventures.Create(context.Background(), &model.Adventure{CampaignID: campaignID, Title: title})
	require.NoError(t, err)
	return a
}

func (e *testEnv) character(t *testing.T, campaignID uint, name string, ct model.CharacterType) *model.Character {
	t.Helper()
	c, err := e.svc.Entities.Characters.Create(context.Background(), &model.Character{
		CampaignID:    campaignID,
		Name:          name,
		CharacterType: ct,
	})
	require.NoError(t, err)
	return c
}

func (e *testEnv) location(t *testing.T, campaignID uint, name string) *model.Location {
	t.Helper()
	l, err := e.svc.Entities.Locations.Create(context.Background(), &model.Location{CampaignID: campaignID, Name: name})
	require.NoError(t, err)
	return l
}

func (e *testEnv) quest(t *testing.T, campaignID uint, title string) *model.Quest {
	t.Helper()
	q, err := e.svc.Entities.Quests.Create(context.Background(), &model.Quest{CampaignID: campaignID, Title: title})
	require.NoError(t, err)
	return q
}

func (e *testEnv) magicItem(t *testing.T, campaignID uint, name string) *model.MagicItem {
	t.Helper()
	m, err := e.svc.Entities.MagicItems.Create(context.Background(), &model.MagicItem{
		CampaignID: campaignID,
		Name:       name,
		Rarity:     model.RarityRare,
	})
	require.NoError(t, err)
	return m
}

func (e *testEnv) count(t *testing.T, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.deps.db.Table(table).Count(&n).Error)
	return n
}
