package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/eaglebank/ledger-service/internal/ledger"
	"github.com/eaglebank/ledger-service/shared/models"
	sharedredis "github.com/eaglebank/ledger-service/shared/redis"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	accountViewKeyPrefix = "account:view:"
	processedOpKeyPrefix = "processed:op:"
	defaultProcessedTTL  = 72 * time.Hour
)

// AccountReadRepository maintains the Redis read model of accounts and the
// markers that keep stream-delivered transfers from running twice.
// The in-memory store stays the source of truth; nothing here is read back
// to serve balances.
type AccountReadRepository struct {
	redis        *goredis.Client
	cache        *sharedredis.ViewCache[models.AccountView]
	processedTTL time.Duration
	logger       *zap.Logger
}

func NewAccountReadRepository(client *goredis.Client, processedTTL time.Duration, logger *zap.Logger) *AccountReadRepository {
	if processedTTL <= 0 {
		processedTTL = defaultProcessedTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountReadRepository{
		redis:        client,
		cache:        sharedredis.NewViewCache[models.AccountView](client, 0, logger),
		processedTTL: processedTTL,
		logger:       logger,
	}
}

// AccountToView projects an account's current snapshot. The version is read
// before the state, so the view is never older than the version it carries.
func AccountToView(acc ledger.Account) *models.AccountView {
	version := acc.Version()
	snap := acc.Snapshot()
	return &models.AccountView{
		ID:           acc.ID(),
		Available:    snap.Available(),
		Blocked:      snap.ReservedTotal(),
		IsLocked:     acc.IsLocked(),
		Reservations: snap.ReservationCount(),
		Version:      version,
		UpdatedAt:    time.Now().UTC(),
	}
}

// CacheAccountView writes view unless a newer version of it is already stored.
func (r *AccountReadRepository) CacheAccountView(ctx context.Context, view *models.AccountView) {
	if !r.cache.Set(ctx, accountViewKeyPrefix+view.ID, view.Version, view) {
		r.logger.Debug("account view not written", zap.String("account_id", view.ID), zap.Uint64("version", view.Version))
	}
}

func (r *AccountReadRepository) GetAccountView(ctx context.Context, accountID string) (*models.AccountView, bool) {
	return r.cache.Get(ctx, accountViewKeyPrefix+accountID)
}

// InvalidateAccountView removes the view of a deleted account and keeps late
// writes from recreating it.
func (r *AccountReadRepository) InvalidateAccountView(ctx context.Context, accountID string) {
	r.cache.Retire(ctx, accountViewKeyPrefix+accountID, r.processedTTL)
}

// ClaimOperation records operationID as processed and reports whether this
// caller was the first to do so. Claiming before the transfer runs means a
// crash mid-transfer drops the request rather than risking a second debit.
func (r *AccountReadRepository) ClaimOperation(ctx context.Context, operationID string) (bool, error) {
	ok, err := r.redis.SetNX(ctx, processedOpKeyPrefix+operationID, "1", r.processedTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim operation %s: %w", operationID, err)
	}
	return ok, nil
}

func (r *AccountReadRepository) IsOperationProcessed(ctx context.Context, operationID string) bool {
	n, err := r.redis.Exists(ctx, processedOpKeyPrefix+operationID).Result()
	if err != nil {
		r.logger.Warn("failed to check processed operation", zap.String("operation_id", operationID), zap.Error(err))
		return false
	}
	return n > 0
}

// AccountToSummary builds the API summary from a single snapshot so
// available and blocked always agree with each other.
func AccountToSummary(acc ledger.Account) *models.AccountSummary {
	snap := acc.Snapshot()
	return &models.AccountSummary{
		ID:        acc.ID(),
		Available: snap.Available(),
		Blocked:   snap.ReservedTotal(),
		IsLocked:  acc.IsLocked(),
	}
}
