package command

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/eaglebank/ledger-service/internal/repository"
	"github.com/eaglebank/ledger-service/internal/transfer"
	"github.com/eaglebank/ledger-service/shared/cqrs"
	"github.com/eaglebank/ledger-service/shared/events"
	"github.com/eaglebank/ledger-service/shared/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type published struct {
	stream    string
	eventType string
	data      any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, stream, eventType string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{stream: stream, eventType: eventType, data: data})
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.eventType)
	}
	return out
}

type recordingProjector struct {
	mu          sync.Mutex
	views       map[string]*models.AccountView
	invalidated []string
}

func newRecordingProjector() *recordingProjector {
	return &recordingProjector{views: make(map[string]*models.AccountView)}
}

func (p *recordingProjector) CacheAccountView(_ context.Context, view *models.AccountView) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.views[view.ID] = view
}

func (p *recordingProjector) InvalidateAccountView(_ context.Context, accountID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.views, accountID)
	p.invalidated = append(p.invalidated, accountID)
}

type fixture struct {
	store     *repository.InMemoryAccountStore
	projector *recordingProjector
	publisher *recordingPublisher
	svc       *AccountCommandService
}

func newFixture() *fixture {
	f := &fixture{
		store:     repository.NewInMemoryAccountStore(),
		projector: newRecordingProjector(),
		publisher: &recordingPublisher{},
	}
	f.svc = NewAccountCommandService(f.store, f.projector, f.publisher, zap.NewNop())
	return f
}

func (f *fixture) create(t *testing.T, amount string) string {
	t.Helper()
	summary, err := f.svc.CreateAccount(context.Background(), cqrs.CreateAccountCommand{InitialAmount: d(amount)})
	require.NoError(t, err)
	return summary.ID
}

func TestCreateAccount(t *testing.T) {
	f := newFixture()

	summary, err := f.svc.CreateAccount(context.Background(), cqrs.CreateAccountCommand{InitialAmount: d("100.005")})
	require.NoError(t, err)

	assert.NotEmpty(t, summary.ID)
	assert.True(t, d("100.00").Equal(summary.Available), "banker's rounding applies to the initial amount")
	assert.True(t, summary.Blocked.IsZero())
	assert.False(t, summary.IsLocked)

	assert.True(t, f.store.Exists(summary.ID))
	assert.Contains(t, f.projector.views, summary.ID)
	require.Equal(t, []string{events.AccountCreated}, f.publisher.types())
	assert.Equal(t, events.AccountEventsStream, f.publisher.events[0].stream)
}

func TestCreateAccountRejectsNegativeAmount(t *testing.T) {
	f := newFixture()

	_, err := f.svc.CreateAccount(context.Background(), cqrs.CreateAccountCommand{InitialAmount: d("-1")})

	assert.ErrorIs(t, err, repository.ErrNegativeInitialAmount)
	assert.Equal(t, 0, f.store.Len())
	assert.Empty(t, f.publisher.types())
}

func TestPublishFailureDoesNotUndoMutation(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	store := repository.NewInMemoryAccountStore()
	pub := &recordingPublisher{err: errors.New("stream down")}
	svc := NewAccountCommandService(store, nil, pub, zap.New(core))

	summary, err := svc.CreateAccount(context.Background(), cqrs.CreateAccountCommand{InitialAmount: d("5")})

	require.NoError(t, err)
	assert.True(t, store.Exists(summary.ID))
	assert.Equal(t, 1, logs.FilterMessage("failed to publish event").Len())
}

func TestDeleteAccount(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		amount  string
		lock    bool
		id      string
		wantErr error
	}{
		{name: "locked and empty", amount: "0", lock: true},
		{name: "unlocked", amount: "0", lock: false, wantErr: repository.ErrAccountNotRemovable},
		{name: "locked with funds", amount: "0.01", lock: true, wantErr: repository.ErrAccountNotRemovable},
		{name: "unknown id", id: "missing", wantErr: repository.ErrAccountNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			id := tt.id
			if id == "" {
				id = f.create(t, tt.amount)
				if tt.lock {
					_, err := f.svc.SetAccountState(ctx, cqrs.SetAccountStateCommand{AccountID: id, Locked: true})
					require.NoError(t, err)
				}
			}

			err := f.svc.DeleteAccount(ctx, cqrs.DeleteAccountCommand{AccountID: id})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.NotContains(t, f.publisher.types(), events.AccountDeleted)
				return
			}
			require.NoError(t, err)
			assert.False(t, f.store.Exists(id))
			assert.Equal(t, []string{id}, f.projector.invalidated)
			assert.Contains(t, f.publisher.types(), events.AccountDeleted)
		})
	}
}

func TestSetAccountState(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	id := f.create(t, "1")

	state, err := f.svc.SetAccountState(ctx, cqrs.SetAccountStateCommand{AccountID: id, Locked: true})
	require.NoError(t, err)
	assert.True(t, state.Locked)
	assert.True(t, f.projector.views[id].IsLocked)

	state, err = f.svc.SetAccountState(ctx, cqrs.SetAccountStateCommand{AccountID: id, Locked: false})
	require.NoError(t, err)
	assert.False(t, state.Locked)

	_, err = f.svc.SetAccountState(ctx, cqrs.SetAccountStateCommand{AccountID: "missing", Locked: true})
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)
}

func TestTransfer(t *testing.T) {
	tests := []struct {
		name         string
		sourceAmount string
		amount       string
		lockDest     bool
		missingDest  bool
		want         transfer.Result
		wantSource   string
		wantDest     string
	}{
		{name: "success", sourceAmount: "100", amount: "40.25", want: transfer.Success, wantSource: "59.75", wantDest: "40.25"},
		{name: "insufficient funds", sourceAmount: "10", amount: "10.01", want: transfer.SourceAccountNotEnoughResources, wantSource: "10", wantDest: "0"},
		{name: "destination locked", sourceAmount: "10", amount: "5", lockDest: true, want: transfer.DestinationAccountLocked, wantSource: "10", wantDest: "0"},
		{name: "destination missing", sourceAmount: "10", amount: "5", missingDest: true, want: transfer.DestinationAccountNotFound, wantSource: "10"},
		{name: "zero amount", sourceAmount: "10", amount: "0", want: transfer.AmountMustBeMoreThanZero, wantSource: "10", wantDest: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture()
			src := f.create(t, tt.sourceAmount)
			dst := "missing"
			if !tt.missingDest {
				dst = f.create(t, "0")
			}
			if tt.lockDest {
				_, err := f.svc.SetAccountState(ctx, cqrs.SetAccountStateCommand{AccountID: dst, Locked: true})
				require.NoError(t, err)
			}

			result, err := f.svc.Transfer(ctx, cqrs.TransferCommand{
				SourceAccountID:      src,
				DestinationAccountID: dst,
				Amount:               d(tt.amount),
			})

			require.NoError(t, err)
			assert.Equal(t, tt.want, result)

			source, _ := f.store.Get(src)
			assert.True(t, d(tt.wantSource).Equal(source.Balance()), "source balance %s", source.Balance())
			assert.True(t, source.ReservedTotal().IsZero())
			if !tt.missingDest {
				dest, _ := f.store.Get(dst)
				assert.True(t, d(tt.wantDest).Equal(dest.Balance()), "destination balance %s", dest.Balance())
			}

			types := f.publisher.types()
			require.NotEmpty(t, types)
			assert.Equal(t, events.TransferCompleted, types[len(types)-1])
			completed := f.publisher.events[len(types)-1].data.(events.TransferCompletedEvent)
			assert.Equal(t, int(tt.want.Code), completed.Code)
			assert.NotEmpty(t, completed.OperationID)
		})
	}
}

func TestTransferUnknownSource(t *testing.T) {
	f := newFixture()
	dst := f.create(t, "0")

	_, err := f.svc.Transfer(context.Background(), cqrs.TransferCommand{
		SourceAccountID:      "missing",
		DestinationAccountID: dst,
		Amount:               d("1"),
	})

	assert.ErrorIs(t, err, repository.ErrAccountNotFound)
	assert.NotContains(t, f.publisher.types(), events.TransferCompleted)
}

func TestTransferKeepsSuppliedOperationID(t *testing.T) {
	f := newFixture()
	src := f.create(t, "5")
	dst := f.create(t, "0")

	_, err := f.svc.Transfer(context.Background(), cqrs.TransferCommand{
		OperationID:          "op-42",
		SourceAccountID:      src,
		DestinationAccountID: dst,
		Amount:               d("1"),
	})
	require.NoError(t, err)

	completed := f.publisher.events[len(f.publisher.events)-1].data.(events.TransferCompletedEvent)
	assert.Equal(t, "op-42", completed.OperationID)
}

func TestTransferCompletedCarriesRoundedAmount(t *testing.T) {
	f := newFixture()
	src := f.create(t, "5")
	dst := f.create(t, "0")

	result, err := f.svc.Transfer(context.Background(), cqrs.TransferCommand{
		SourceAccountID:      src,
		DestinationAccountID: dst,
		Amount:               d("1.005"),
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	dest, _ := f.store.Get(dst)
	completed := f.publisher.events[len(f.publisher.events)-1].data.(events.TransferCompletedEvent)
	assert.True(t, d("1.00").Equal(completed.Amount), "event amount %s", completed.Amount)
	assert.True(t, dest.Balance().Equal(completed.Amount))
}

func TestConcurrentTransfersConserveTotal(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	a := f.create(t, "100")
	b := f.create(t, "100")

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = f.svc.Transfer(ctx, cqrs.TransferCommand{SourceAccountID: a, DestinationAccountID: b, Amount: d("1.10")})
		}()
		go func() {
			defer wg.Done()
			_, _ = f.svc.Transfer(ctx, cqrs.TransferCommand{SourceAccountID: b, DestinationAccountID: a, Amount: d("0.90")})
		}()
	}
	wg.Wait()

	accA, _ := f.store.Get(a)
	accB, _ := f.store.Get(b)
	total := accA.Balance().Add(accB.Balance())
	assert.True(t, d("200").Equal(total), "total drifted to %s", total)
	assert.True(t, accA.ReservedTotal().IsZero())
	assert.True(t, accB.ReservedTotal().IsZero())
}
