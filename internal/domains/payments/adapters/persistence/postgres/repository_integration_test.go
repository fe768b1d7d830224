//go:build integration

package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"github.com/Apurer/course-marketplace-api/internal/domains/payments/domain"
	"github.com/Apurer/course-marketplace-api/internal/domains/payments/ports"
	"github.com/Apurer/course-marketplace-api/internal/platform/migrations"
	platformpostgres "github.com/Apurer/course-marketplace-api/internal/platform/postgres"
	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

func setupPaymentsPostgresContainer(t *testing.T) (*gorm.DB, func()) {
	ctx := context.Background()

	pgContainer, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcpostgres.WithDatabase("marketplace_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := platformpostgres.Connect(ctx, dsn)
	require.NoError(t, err)

	err = migrations.Run(db)
	require.NoError(t, err)

	cleanup := func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		pgContainer.Terminate(ctx)
	}

	return db, cleanup
}

func newPendingOrder(t *testing.T, code int64, buyerID string, target purchase.Target, now time.Time) *domain.Order {
	order, err := domain.NewOrder(code, buyerID, target, 10000, now, 15*time.Minute)
	require.NoError(t, err)
	return order
}

func TestRepository_CreateAndGetByCode(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupPaymentsPostgresContainer(t)
	defer cleanup()

	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	created, err := repo.Create(ctx, newPendingOrder(t, 1234567890, "buyer-1", purchase.Level("B1"), now))
	require.NoError(t, err)
	assert.Equal(t, int64(1234567890), created.Code)

	fetched, err := repo.GetByCode(ctx, 1234567890)
	require.NoError(t, err)
	assert.Equal(t, purchase.Level("B1"), fetched.Target)
	assert.Equal(t, "lvl-B1", fetched.Reference)
	assert.Equal(t, domain.StatusPending, fetched.Status)
	assert.WithinDuration(t, now.Add(15*time.Minute), fetched.ExpiresAt, time.Second)

	_, err = repo.GetByCode(ctx, 1)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestRepository_OneOpenOrderPerPurchase(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupPaymentsPostgresContainer(t)
	defer cleanup()

	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := repo.Create(ctx, newPendingOrder(t, 100, "buyer-1", purchase.Level("B1"), now))
	require.NoError(t, err)

	_, err = repo.Create(ctx, newPendingOrder(t, 101, "buyer-1", purchase.Level("B1"), now))
	assert.ErrorIs(t, err, ports.ErrOpenOrderExists)

	_, err = repo.Create(ctx, newPendingOrder(t, 100, "buyer-2", purchase.Level("B1"), now))
	assert.ErrorIs(t, err, ports.ErrDuplicateCode)

	// once settled, the index no longer covers the old row
	_, won, err := repo.Transition(ctx, 100, domain.Transition{To: domain.StatusCancelled, Channel: domain.ChannelCancel, At: now})
	require.NoError(t, err)
	require.True(t, won)
	_, err = repo.Create(ctx, newPendingOrder(t, 102, "buyer-1", purchase.Level("B1"), now))
	require.NoError(t, err)
}

func TestRepository_TransitionIsCompareAndSet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupPaymentsPostgresContainer(t)
	defer cleanup()

	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()
	_, err := repo.Create(ctx, newPendingOrder(t, 200, "buyer-1", purchase.Course("c-1"), now))
	require.NoError(t, err)

	const writers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			to := domain.StatusPaid
			if i%2 == 1 {
				to = domain.StatusExpired
			}
			_, won, err := repo.Transition(ctx, 200, domain.Transition{To: to, Channel: domain.ChannelPoll, PaidAmount: 10000, At: now})
			assert.NoError(t, err)
			if won {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	stored, err := repo.GetByCode(ctx, 200)
	require.NoError(t, err)
	assert.True(t, stored.IsTerminal())
	assert.Equal(t, domain.ChannelPoll, stored.SettledVia)
	assert.NotNil(t, stored.SettledAt)
}

func TestRepository_MarkGrantedAndPurge(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupPaymentsPostgresContainer(t)
	defer cleanup()

	repo := NewRepository(db)
	ctx := context.Background()
	past := time.Now().UTC().Add(-2 * time.Hour)

	for _, code := range []int64{300, 301, 302} {
		_, err := repo.Create(ctx, newPendingOrder(t, code, "buyer-1", purchase.Course(fmt.Sprintf("c-%d", code)), past))
		require.NoError(t, err)
	}
	_, _, err := repo.Transition(ctx, 300, domain.Transition{To: domain.StatusPaid, Channel: domain.ChannelWebhook, PaidAmount: 10000, At: past})
	require.NoError(t, err)
	require.NoError(t, repo.MarkGranted(ctx, 300, past))
	require.NoError(t, repo.MarkGranted(ctx, 300, time.Now()))
	_, _, err = repo.Transition(ctx, 301, domain.Transition{To: domain.StatusPaid, Channel: domain.ChannelWebhook, PaidAmount: 10000, At: past})
	require.NoError(t, err)

	granted, err := repo.GetByCode(ctx, 300)
	require.NoError(t, err)
	require.NotNil(t, granted.GrantedAt)
	assert.WithinDuration(t, past, *granted.GrantedAt, time.Second)

	assert.ErrorIs(t, repo.MarkGranted(ctx, 999, past), ports.ErrNotFound)

	purged, err := repo.PurgeSettled(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = repo.GetByCode(ctx, 301)
	assert.NoError(t, err, "a PAID order still owing a grant is kept")
	_, err = repo.GetByCode(ctx, 302)
	assert.NoError(t, err, "a PENDING order is kept")
}

func TestEventLog_RecordsPayload(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupPaymentsPostgresContainer(t)
	defer cleanup()

	log := NewEventLog(db)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, log.Record(ctx, domain.EventRecord{
		OrderCode: 400, Channel: domain.ChannelWebhook, Reported: domain.StatusPaid, Resulting: domain.StatusPaid,
		Transitioned: true, Payload: []byte(`{"orderCode":400,"status":"PAID"}`), ObservedAt: now,
	}))
	require.NoError(t, log.Record(ctx, domain.EventRecord{
		OrderCode: 400, Channel: domain.ChannelPoll, Reported: domain.StatusPaid, Resulting: domain.StatusPaid,
		Payload: []byte(`not json`), ObservedAt: now.Add(time.Second),
	}))

	records, err := log.ForOrder(ctx, 400)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].Transitioned)
	assert.JSONEq(t, `{"orderCode":400,"status":"PAID"}`, string(records[0].Payload))
	assert.Empty(t, records[1].Payload)
}
