package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"commute-rewards/internal/core/domain"
	"commute-rewards/internal/core/ports"
	"commute-rewards/internal/core/ports/mocks"
	"commute-rewards/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type earnTestDeps struct {
	svc        *EarnServiceImpl
	store      *mocks.MockAccountStore
	ledgerRepo *mocks.MockLedgerRepository
	idempRepo  *mocks.MockIdempotencyRepository
	idempCache *mocks.MockIdempotencyCache
	auditSvc   *mocks.MockAuditService
	ctrl       *gomock.Controller
}

func setupEarnService(t *testing.T) *earnTestDeps {
	ctrl := gomock.NewController(t)
	d := &earnTestDeps{
		store:      mocks.NewMockAccountStore(ctrl),
		ledgerRepo: mocks.NewMockLedgerRepository(ctrl),
		idempRepo:  mocks.NewMockIdempotencyRepository(ctrl),
		idempCache: mocks.NewMockIdempotencyCache(ctrl),
		auditSvc:   mocks.NewMockAuditService(ctrl),
		ctrl:       ctrl,
	}
	d.svc = NewEarnService(
		d.store, d.ledgerRepo, d.idempRepo, d.idempCache,
		d.auditSvc, 1000, zerolog.Nop(),
	)
	return d
}

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

// runTxFunc drives the store mock so the service's transaction closure
// executes against the given starting balance.
func runTxFunc(startBalance int64, tx pgx.Tx) func(context.Context, uuid.UUID, ports.TxFunc) (int64, error) {
	return func(ctx context.Context, _ uuid.UUID, fn ports.TxFunc) (int64, error) {
		newBalance, err := fn(ctx, tx, startBalance)
		if err != nil {
			return 0, err
		}
		if newBalance < 0 {
			return 0, apperror.ErrInvariantViolation(errors.New("negative balance"))
		}
		return newBalance, nil
	}
}

// ==================== Earn Tests ====================

func TestEarnService_Earn_Success(t *testing.T) {
	d := setupEarnService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	tx := &mockTx{}

	req := ports.EarnRequest{
		AccountID: accountID,
		Amount:    50,
		Reason:    string(domain.ReasonRideCompleted),
		ClientIP:  "1.2.3.4",
	}

	var appended *domain.LedgerEntry
	d.store.EXPECT().TransactionalUpdate(ctx, accountID, gomock.Any()).
		DoAndReturn(runTxFunc(100, tx))
	d.ledgerRepo.EXPECT().Append(ctx, tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, entry *domain.LedgerEntry) error {
			appended = entry
			return nil
		})
	d.auditSvc.EXPECT().Log(ctx, gomock.Any())

	result, err := d.svc.Earn(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, int64(150), result.NewBalance)

	require.NotNil(t, appended)
	assert.Equal(t, domain.EntryKindEarn, appended.Kind)
	assert.Equal(t, int64(50), appended.Delta)
	assert.Equal(t, int64(150), appended.BalanceAfter)
	assert.Equal(t, result.EntryID, appended.ID)
}

func TestEarnService_Earn_ZeroAmount(t *testing.T) {
	d := setupEarnService(t)
	defer d.ctrl.Finish()

	req := ports.EarnRequest{
		AccountID: uuid.New(),
		Amount:    0,
		Reason:    string(domain.ReasonRideCompleted),
	}

	result, err := d.svc.Earn(context.Background(), req)
	assert.Nil(t, result)
	assertAppError(t, err, "VAL_001")
}

func TestEarnService_Earn_NegativeAmount(t *testing.T) {
	d := setupEarnService(t)
	defer d.ctrl.Finish()

	req := ports.EarnRequest{
		AccountID: uuid.New(),
		Amount:    -10,
		Reason:    string(domain.ReasonRideCompleted),
	}

	result, err := d.svc.Earn(context.Background(), req)
	assert.Nil(t, result)
	assertAppError(t, err, "VAL_001")
}

func TestEarnService_Earn_ExceedsPerEventMax(t *testing.T) {
	d := setupEarnService(t)
	defer d.ctrl.Finish()

	req := ports.EarnRequest{
		AccountID: uuid.New(),
		Amount:    1001,
		Reason:    string(domain.ReasonRideCompleted),
	}

	result, err := d.svc.Earn(context.Background(), req)
	assert.Nil(t, result)
	assertAppError(t, err, "VAL_001")
}

func TestEarnService_Earn_AtPerEventMax(t *testing.T) {
	d := setupEarnService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	tx := &mockTx{}

	d.store.EXPECT().TransactionalUpdate(ctx, accountID, gomock.Any()).
		DoAndReturn(runTxFunc(0, tx))
	d.ledgerRepo.EXPECT().Append(ctx, tx, gomock.Any()).Return(nil)
	d.auditSvc.EXPECT().Log(ctx, gomock.Any())

	result, err := d.svc.Earn(ctx, ports.EarnRequest{
		AccountID: accountID,
		Amount:    1000,
		Reason:    string(domain.ReasonReferral),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), result.NewBalance)
}

func TestEarnService_Earn_UnknownReason(t *testing.T) {
	d := setupEarnService(t)
	defer d.ctrl.Finish()

	req := ports.EarnRequest{
		AccountID: uuid.New(),
		Amount:    50,
		Reason:    "hacked_the_planet",
	}

	result, err := d.svc.Earn(context.Background(), req)
	assert.Nil(t, result)
	assertAppError(t, err, "VAL_001")
}

func TestEarnService_Earn_IdempotentRedisHit(t *testing.T) {
	d := setupEarnService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()

	cached := &ports.EarnResult{EntryID: uuid.New(), NewBalance: 170}
	cachedJSON, _ := json.Marshal(cached)

	idempKey := domain.BuildEarnIdempotencyKey(accountID, "RIDE-42")
	d.idempCache.EXPECT().Get(ctx, idempKey).Return(cachedJSON, nil)

	result, err := d.svc.Earn(ctx, ports.EarnRequest{
		AccountID:   accountID,
		Amount:      20,
		Reason:      string(domain.ReasonRideCompleted),
		ReferenceID: "RIDE-42",
	})
	require.NoError(t, err)
	assert.Equal(t, cached.EntryID, result.EntryID)
	assert.Equal(t, int64(170), result.NewBalance)
}

func TestEarnService_Earn_IdempotentDBHit(t *testing.T) {
	d := setupEarnService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()

	cached := &ports.EarnResult{EntryID: uuid.New(), NewBalance: 90}
	cachedJSON, _ := json.Marshal(cached)

	idempKey := domain.BuildEarnIdempotencyKey(accountID, "RIDE-7")
	d.idempCache.EXPECT().Get(ctx, idempKey).Return(nil, nil)
	d.idempRepo.EXPECT().Get(ctx, idempKey).Return(&domain.IdempotencyLog{
		Key:          idempKey,
		EntryID:      cached.EntryID,
		ResponseJSON: cachedJSON,
	}, nil)

	result, err := d.svc.Earn(ctx, ports.EarnRequest{
		AccountID:   accountID,
		Amount:      20,
		Reason:      string(domain.ReasonRideCompleted),
		ReferenceID: "RIDE-7",
	})
	require.NoError(t, err)
	assert.Equal(t, cached.EntryID, result.EntryID)
}

func TestEarnService_Earn_WithReference_WritesIdempotencyLog(t *testing.T) {
	d := setupEarnService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	tx := &mockTx{}
	idempKey := domain.BuildEarnIdempotencyKey(accountID, "RIDE-99")

	d.idempCache.EXPECT().Get(ctx, idempKey).Return(nil, nil)
	d.idempRepo.EXPECT().Get(ctx, idempKey).Return(nil, nil)
	d.store.EXPECT().TransactionalUpdate(ctx, accountID, gomock.Any()).
		DoAndReturn(runTxFunc(0, tx))
	d.ledgerRepo.EXPECT().Append(ctx, tx, gomock.Any()).Return(nil)
	d.idempRepo.EXPECT().Create(ctx, tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, log *domain.IdempotencyLog) error {
			assert.Equal(t, idempKey, log.Key)
			assert.NotEmpty(t, log.ResponseJSON)
			return nil
		})
	d.idempCache.EXPECT().Set(ctx, idempKey, gomock.Any(), idempotencyTTL).Return(nil)
	d.auditSvc.EXPECT().Log(ctx, gomock.Any())

	result, err := d.svc.Earn(ctx, ports.EarnRequest{
		AccountID:   accountID,
		Amount:      25,
		Reason:      string(domain.ReasonCrowdReport),
		ReferenceID: "RIDE-99",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(25), result.NewBalance)
}

func TestEarnService_Earn_LostIdempotencyRaceReplaysStoredResponse(t *testing.T) {
	d := setupEarnService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	idempKey := domain.BuildEarnIdempotencyKey(accountID, "RIDE-13")

	winner := &ports.EarnResult{EntryID: uuid.New(), NewBalance: 120}
	winnerJSON, _ := json.Marshal(winner)

	// Both pre-checks miss: the competing call has not committed yet.
	d.idempCache.EXPECT().Get(ctx, idempKey).Return(nil, nil)
	d.idempRepo.EXPECT().Get(ctx, idempKey).Return(nil, nil)

	// The competing call commits first; this transaction dies on the
	// idempotency log's unique key.
	dupErr := apperror.InternalError(fmt.Errorf("save idempotency log: %w",
		&pgconn.PgError{Code: "23505", ConstraintName: "idempotency_logs_pkey"}))
	d.store.EXPECT().TransactionalUpdate(ctx, accountID, gomock.Any()).
		Return(int64(0), dupErr)

	// The re-read now finds the winner's stored response.
	d.idempRepo.EXPECT().Get(ctx, idempKey).Return(&domain.IdempotencyLog{
		Key:          idempKey,
		EntryID:      winner.EntryID,
		ResponseJSON: winnerJSON,
	}, nil)

	result, err := d.svc.Earn(ctx, ports.EarnRequest{
		AccountID:   accountID,
		Amount:      20,
		Reason:      string(domain.ReasonRideCompleted),
		ReferenceID: "RIDE-13",
	})
	require.NoError(t, err)
	assert.Equal(t, winner.EntryID, result.EntryID)
	assert.Equal(t, int64(120), result.NewBalance)
}

func TestEarnService_Earn_StoreConflict(t *testing.T) {
	d := setupEarnService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()

	d.store.EXPECT().TransactionalUpdate(ctx, accountID, gomock.Any()).
		Return(int64(0), apperror.ErrConflictRetriesExhausted(errors.New("serialization failure")))

	result, err := d.svc.Earn(ctx, ports.EarnRequest{
		AccountID: accountID,
		Amount:    10,
		Reason:    string(domain.ReasonRideShared),
	})
	assert.Nil(t, result)
	assertAppError(t, err, "PTS_002")
}

// ==================== Helper ====================

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}
