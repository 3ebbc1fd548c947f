package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/p-n-ai/interview-coach/internal/platform/cache"
	"github.com/p-n-ai/interview-coach/internal/platform/database"
	"github.com/p-n-ai/interview-coach/internal/session"
)

func startPostgres(t *testing.T) *database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("coach"),
		tcpostgres.WithUsername("coach"),
		tcpostgres.WithPassword("coach"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	db, err := database.New(ctx, dsn, 4, 1)
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(db.Close)

	if err := session.EnsureSchema(ctx, db.Pool); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	// Applying twice must be harmless.
	if err := session.EnsureSchema(ctx, db.Pool); err != nil {
		t.Fatalf("second EnsureSchema() error = %v", err)
	}
	return db
}

func startRedis(t *testing.T) *cache.Cache {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}

	endpoint, err := ctr.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("endpoint: %v", err)
	}
	c, err := cache.New(ctx, "redis://"+endpoint)
	if err != nil {
		t.Fatalf("cache.New() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestPostgresStore(t *testing.T) {
	db := startPostgres(t)

	store, err := session.NewPostgresStore(db.Pool)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	exerciseStore(t, store)
}

func TestPostgresEventLogger(t *testing.T) {
	db := startPostgres(t)
	logger := session.NewPostgresEventLogger(db.Pool)
	id := uuid.NewString()

	for _, typ := range []string{session.EventScoreRecorded, session.EventScoreRecorded, session.EventBadgeEarned} {
		if err := logger.LogEvent(session.Event{
			SessionID: id,
			EventType: typ,
			Data:      map[string]any{"level_id": 1},
		}); err != nil {
			t.Fatalf("LogEvent() error = %v", err)
		}
	}

	n, err := logger.CountEvents(context.Background(), id, session.EventScoreRecorded)
	if err != nil {
		t.Fatalf("CountEvents() error = %v", err)
	}
	if n != 2 {
		t.Errorf("CountEvents() = %d, want 2", n)
	}
}

func TestManager_Postgres(t *testing.T) {
	db := startPostgres(t)
	store, err := session.NewPostgresStore(db.Pool)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	cat := techCatalog(t)
	mgr := session.NewManager(session.ManagerConfig{
		Catalog: cat,
		Store:   store,
		Events:  session.NewPostgresEventLogger(db.Pool),
	})

	ctx := context.Background()
	sess, err := mgr.Start(ctx)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	out := completeLevelVia(t, mgr, sess.ID, 1, 8)
	if got, _ := out.Session.State.Level(2); got.Status != "in_progress" {
		t.Errorf("level 2 Status = %q, want in_progress", got.Status)
	}
}

func TestRedisStore(t *testing.T) {
	c := startRedis(t)
	exerciseStore(t, session.NewRedisStore(c.Client, time.Hour))
}

func TestRedisStore_TTL(t *testing.T) {
	c := startRedis(t)
	ctx := context.Background()
	store := session.NewRedisStore(c.Client, time.Minute)
	sess := newSession(t)

	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	ttl, err := c.Client.TTL(ctx, "coach:session:"+sess.ID).Result()
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = %v, want within (0, 1m]", ttl)
	}
}

func TestRedisStore_Replicas(t *testing.T) {
	c := startRedis(t)
	ctx := context.Background()
	cat := techCatalog(t)
	replicas := []*session.Manager{
		session.NewManager(session.ManagerConfig{Catalog: cat, Store: session.NewRedisStore(c.Client, time.Hour)}),
		session.NewManager(session.ManagerConfig{Catalog: cat, Store: session.NewRedisStore(c.Client, time.Hour)}),
	}
	sess, err := replicas[0].Start(ctx)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	var wg sync.WaitGroup
	for _, mgr := range replicas {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 3 {
				if _, err := mgr.Record(ctx, sess.ID, 1, "l1q1", uniform(7)); err != nil {
					t.Errorf("Record() error = %v", err)
				}
			}
		}()
	}
	wg.Wait()

	got, err := replicas[1].Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.State.StreakCount != 6 || got.Version != 6 {
		t.Errorf("streak %d, version %d; want 6 and 6", got.State.StreakCount, got.Version)
	}
}
