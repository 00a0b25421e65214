package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"commute-rewards/internal/core/domain"
	"commute-rewards/internal/core/ports"
	"commute-rewards/pkg/apperror"
	"commute-rewards/pkg/metrics"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

const idempotencyTTL = 24 * time.Hour

// EarnServiceImpl implements ports.EarnService.
type EarnServiceImpl struct {
	store       ports.AccountStore
	ledgerRepo  ports.LedgerRepository
	idempRepo   ports.IdempotencyRepository
	idempCache  ports.IdempotencyCache
	auditSvc    ports.AuditService
	maxPerEvent int64
	log         zerolog.Logger
}

// NewEarnService creates a new EarnServiceImpl.
func NewEarnService(
	store ports.AccountStore,
	ledgerRepo ports.LedgerRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	auditSvc ports.AuditService,
	maxPerEvent int64,
	log zerolog.Logger,
) *EarnServiceImpl {
	return &EarnServiceImpl{
		store:       store,
		ledgerRepo:  ledgerRepo,
		idempRepo:   idempRepo,
		idempCache:  idempCache,
		auditSvc:    auditSvc,
		maxPerEvent: maxPerEvent,
		log:         log,
	}
}

// Earn credits points for a commute action. The credit, its ledger
// entry and the optional idempotency log commit atomically.
func (s *EarnServiceImpl) Earn(ctx context.Context, req ports.EarnRequest) (*ports.EarnResult, error) {
	if req.Amount <= 0 {
		metrics.EarnsRejected.WithLabelValues("invalid_amount").Inc()
		return nil, apperror.ErrInvalidAmount()
	}
	if req.Amount > s.maxPerEvent {
		metrics.EarnsRejected.WithLabelValues("exceeds_max").Inc()
		return nil, apperror.ErrAmountExceedsMax(s.maxPerEvent)
	}
	if !domain.ValidEarnReason(req.Reason) {
		metrics.EarnsRejected.WithLabelValues("unknown_reason").Inc()
		return nil, apperror.ErrUnknownReason(req.Reason)
	}

	idempKey := ""
	if req.ReferenceID != "" {
		idempKey = domain.BuildEarnIdempotencyKey(req.AccountID, req.ReferenceID)

		// Layer 1: Redis idempotency check
		cached, err := s.idempCache.Get(ctx, idempKey)
		if err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("redis idempotency check failed, falling through to DB")
		}
		if cached != nil {
			return unmarshalCachedEarn(cached)
		}

		// Layer 2: DB idempotency check
		idempLog, err := s.idempRepo.Get(ctx, idempKey)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
		}
		if idempLog != nil {
			return unmarshalCachedEarn(idempLog.ResponseJSON)
		}
	}

	entryID := uuid.New()
	var respJSON []byte

	newBalance, err := s.store.TransactionalUpdate(ctx, req.AccountID, func(ctx context.Context, tx pgx.Tx, balance int64) (int64, error) {
		now := time.Now().UTC()
		entry := &domain.LedgerEntry{
			ID:           entryID,
			AccountID:    req.AccountID,
			Kind:         domain.EntryKindEarn,
			Delta:        req.Amount,
			Reason:       req.Reason,
			BalanceAfter: balance + req.Amount,
			CreatedAt:    now,
		}
		if err := s.ledgerRepo.Append(ctx, tx, entry); err != nil {
			return 0, fmt.Errorf("append ledger entry: %w", err)
		}

		if idempKey != "" {
			result := &ports.EarnResult{EntryID: entryID, NewBalance: entry.BalanceAfter}
			var err error
			respJSON, err = json.Marshal(result)
			if err != nil {
				return 0, fmt.Errorf("marshal response: %w", err)
			}
			idempLogEntry := &domain.IdempotencyLog{
				Key:          idempKey,
				EntryID:      entryID,
				ResponseJSON: respJSON,
				CreatedAt:    now,
			}
			if err := s.idempRepo.Create(ctx, tx, idempLogEntry); err != nil {
				return 0, fmt.Errorf("save idempotency log: %w", err)
			}
		}

		return balance + req.Amount, nil
	})
	if err != nil {
		// A concurrent call with the same reference_id may have slipped
		// past both idempotency checks and committed first. Replay its
		// stored response instead of surfacing the unique-key violation.
		if idempKey != "" && isUniqueViolation(err) {
			idempLog, getErr := s.idempRepo.Get(ctx, idempKey)
			if getErr == nil && idempLog != nil {
				return unmarshalCachedEarn(idempLog.ResponseJSON)
			}
		}
		return nil, err
	}

	// Post-process: cache in Redis (best-effort)
	if idempKey != "" && respJSON != nil {
		if err := s.idempCache.Set(ctx, idempKey, respJSON, idempotencyTTL); err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("failed to cache idempotency in redis")
		}
	}

	metrics.PointsEarned.WithLabelValues(req.Reason).Add(float64(req.Amount))

	accountID := req.AccountID
	s.auditSvc.Log(ctx, &domain.AuditLog{
		AccountID:    &accountID,
		Action:       domain.AuditActionEarn,
		ResourceType: "ledger_entry",
		ResourceID:   entryID.String(),
		Details:      `{"amount":` + strconv.FormatInt(req.Amount, 10) + `,"reason":"` + req.Reason + `"}`,
		IPAddress:    req.ClientIP,
	})

	s.log.Info().
		Str("entry_id", entryID.String()).
		Str("account_id", req.AccountID.String()).
		Int64("amount", req.Amount).
		Str("reason", req.Reason).
		Int64("new_balance", newBalance).
		Msg("points credited")

	return &ports.EarnResult{EntryID: entryID, NewBalance: newBalance}, nil
}

// isUniqueViolation reports whether err carries a postgres unique-key
// violation, the signature of a lost idempotency race.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func unmarshalCachedEarn(data []byte) (*ports.EarnResult, error) {
	result := &ports.EarnResult{}
	if err := json.Unmarshal(data, result); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached earn result: %w", err))
	}
	return result, nil
}
