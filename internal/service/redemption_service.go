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
	"github.com/rs/zerolog"
)

// RedemptionServiceImpl implements ports.RedemptionService.
type RedemptionServiceImpl struct {
	store       ports.AccountStore
	ledgerRepo  ports.LedgerRepository
	voucherRepo ports.VoucherRepository
	idempRepo   ports.IdempotencyRepository
	idempCache  ports.IdempotencyCache
	catalog     ports.RewardCatalog
	auditSvc    ports.AuditService
	log         zerolog.Logger
}

// NewRedemptionService creates a new RedemptionServiceImpl.
func NewRedemptionService(
	store ports.AccountStore,
	ledgerRepo ports.LedgerRepository,
	voucherRepo ports.VoucherRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	catalog ports.RewardCatalog,
	auditSvc ports.AuditService,
	log zerolog.Logger,
) *RedemptionServiceImpl {
	return &RedemptionServiceImpl{
		store:       store,
		ledgerRepo:  ledgerRepo,
		voucherRepo: voucherRepo,
		idempRepo:   idempRepo,
		idempCache:  idempCache,
		catalog:     catalog,
		auditSvc:    auditSvc,
		log:         log,
	}
}

// Redeem exchanges points for a reward voucher. The debit, its ledger
// entry and the voucher commit atomically under the account lock, so
// two racing redeems on the same balance can never both succeed.
func (s *RedemptionServiceImpl) Redeem(ctx context.Context, req ports.RedeemRequest) (*ports.RedeemResult, error) {
	// The catalog is the only source of truth for what a reward costs.
	// A missing title or a client-claimed cost that disagrees with the
	// catalog are rejected identically, before any balance is touched.
	def, ok := s.catalog.Lookup(req.RewardTitle)
	if !ok || def.Cost != req.ClaimedCost {
		metrics.RedemptionsRejected.WithLabelValues("invalid_reward").Inc()
		accountID := req.AccountID
		s.auditSvc.Log(ctx, &domain.AuditLog{
			AccountID:    &accountID,
			Action:       domain.AuditActionRewardTamper,
			ResourceType: "reward",
			ResourceID:   req.RewardTitle,
			Details:      `{"claimed_cost":` + strconv.FormatInt(req.ClaimedCost, 10) + `,"known":` + strconv.FormatBool(ok) + `}`,
			IPAddress:    req.ClientIP,
		})
		return nil, apperror.ErrInvalidReward()
	}
	cost := def.Cost

	idempKey := ""
	if req.ReferenceID != "" {
		idempKey = domain.BuildRedeemIdempotencyKey(req.AccountID, req.ReferenceID)

		// Layer 1: Redis idempotency check
		cached, err := s.idempCache.Get(ctx, idempKey)
		if err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("redis idempotency check failed, falling through to DB")
		}
		if cached != nil {
			return unmarshalCachedRedeem(cached)
		}

		// Layer 2: DB idempotency check
		idempLog, err := s.idempRepo.Get(ctx, idempKey)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
		}
		if idempLog != nil {
			return unmarshalCachedRedeem(idempLog.ResponseJSON)
		}
	}

	entryID := uuid.New()
	var voucher *domain.Voucher
	var respJSON []byte

	newBalance, err := s.store.TransactionalUpdate(ctx, req.AccountID, func(ctx context.Context, tx pgx.Tx, balance int64) (int64, error) {
		if balance < cost {
			return 0, apperror.ErrInsufficientBalance()
		}

		now := time.Now().UTC()
		entry := &domain.LedgerEntry{
			ID:           entryID,
			AccountID:    req.AccountID,
			Kind:         domain.EntryKindRedeem,
			Delta:        -cost,
			Reason:       req.RewardTitle,
			BalanceAfter: balance - cost,
			CreatedAt:    now,
		}
		if err := s.ledgerRepo.Append(ctx, tx, entry); err != nil {
			return 0, fmt.Errorf("append ledger entry: %w", err)
		}

		voucher = &domain.Voucher{
			ID:          uuid.New(),
			AccountID:   req.AccountID,
			RewardTitle: req.RewardTitle,
			CostPaid:    cost,
			Status:      domain.VoucherStatusActive,
			IssuedAt:    now,
			UpdatedAt:   now,
		}
		if err := s.voucherRepo.Create(ctx, tx, voucher); err != nil {
			return 0, fmt.Errorf("create voucher: %w", err)
		}

		if idempKey != "" {
			result := &ports.RedeemResult{Voucher: voucher, NewBalance: entry.BalanceAfter}
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

		return balance - cost, nil
	})
	if err != nil {
		// A concurrent call with the same reference_id may have slipped
		// past both idempotency checks and committed first. Replay its
		// stored response instead of surfacing the unique-key violation.
		if idempKey != "" && isUniqueViolation(err) {
			idempLog, getErr := s.idempRepo.Get(ctx, idempKey)
			if getErr == nil && idempLog != nil {
				return unmarshalCachedRedeem(idempLog.ResponseJSON)
			}
		}
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Code == "PTS_001" {
			metrics.RedemptionsRejected.WithLabelValues("insufficient_balance").Inc()
		}
		return nil, err
	}

	// Post-process: cache in Redis (best-effort)
	if idempKey != "" && respJSON != nil {
		if err := s.idempCache.Set(ctx, idempKey, respJSON, idempotencyTTL); err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("failed to cache idempotency in redis")
		}
	}

	metrics.PointsRedeemed.Add(float64(cost))
	metrics.VouchersIssued.WithLabelValues(req.RewardTitle).Inc()

	accountID := req.AccountID
	s.auditSvc.Log(ctx, &domain.AuditLog{
		AccountID:    &accountID,
		Action:       domain.AuditActionRedeem,
		ResourceType: "voucher",
		ResourceID:   voucher.ID.String(),
		Details:      `{"reward":"` + req.RewardTitle + `","cost":` + strconv.FormatInt(cost, 10) + `}`,
		IPAddress:    req.ClientIP,
	})

	s.log.Info().
		Str("voucher_id", voucher.ID.String()).
		Str("account_id", req.AccountID.String()).
		Str("reward", req.RewardTitle).
		Int64("cost", cost).
		Int64("new_balance", newBalance).
		Msg("reward redeemed")

	return &ports.RedeemResult{Voucher: voucher, NewBalance: newBalance}, nil
}

func unmarshalCachedRedeem(data []byte) (*ports.RedeemResult, error) {
	result := &ports.RedeemResult{}
	if err := json.Unmarshal(data, result); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached redeem result: %w", err))
	}
	return result, nil
}
