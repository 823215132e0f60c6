package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/eaglebank/ledger-service/internal/repository"
	"github.com/eaglebank/ledger-service/shared/events"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubClaimer struct {
	claimed map[string]bool
	err     error
	// failures is the number of calls that return errFlaky before claims succeed.
	failures int
}

var errFlaky = errors.New("redis unavailable")

func (c *stubClaimer) ClaimOperation(_ context.Context, id string) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	if c.failures > 0 {
		c.failures--
		return false, errFlaky
	}
	if c.claimed == nil {
		c.claimed = make(map[string]bool)
	}
	if c.claimed[id] {
		return false, nil
	}
	c.claimed[id] = true
	return true, nil
}

func transferEvent(opID, src, dst, amount string) events.Event {
	return events.Event{
		Type:      events.TransferRequested,
		Timestamp: time.Now().UTC(),
		Data: events.TransferRequestedEvent{
			OperationID:          opID,
			SourceAccountID:      src,
			DestinationAccountID: dst,
			Amount:               d(amount),
		},
	}
}

func TestTransferRequestHandler(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	src := f.create(t, "10")
	dst := f.create(t, "0")
	h := NewTransferRequestHandler(f.svc, &stubClaimer{}, zap.NewNop())

	require.NoError(t, h.Handle(ctx, transferEvent("op-1", src, dst, "4")))
	// Redelivery of the same operation must not debit again.
	require.NoError(t, h.Handle(ctx, transferEvent("op-1", src, dst, "4")))

	source, _ := f.store.Get(src)
	dest, _ := f.store.Get(dst)
	assert.True(t, d("6").Equal(source.Balance()))
	assert.True(t, d("4").Equal(dest.Balance()))
}

func TestTransferRequestHandlerAcksWithoutRetry(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	dst := f.create(t, "0")
	h := NewTransferRequestHandler(f.svc, &stubClaimer{}, nil)

	tests := []struct {
		name  string
		event events.Event
	}{
		{name: "other event type", event: events.Event{Type: events.AccountCreated}},
		{name: "missing operation id", event: transferEvent("", "x", dst, "1")},
		{name: "malformed source id", event: transferEvent("op-2", "missing", dst, "1")},
		{name: "unknown source", event: transferEvent("op-3", "6f1c2b7e-3d1a-4c57-9a7e-2f0d5b8c9e10", dst, "1")},
		{name: "malformed payload", event: events.Event{Type: events.TransferRequested, Data: "not an object"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, h.Handle(ctx, tt.event))
		})
	}
}

func TestTransferRequestHandlerClaimFailureIsRetried(t *testing.T) {
	f := newFixture()
	src := f.create(t, "10")
	dst := f.create(t, "0")
	h := NewTransferRequestHandler(f.svc, &stubClaimer{err: errors.New("redis down")}, nil)

	err := h.Handle(context.Background(), transferEvent("op-3", src, dst, "1"))

	assert.Error(t, err)
	source, _ := f.store.Get(src)
	assert.True(t, d("10").Equal(source.Balance()))
}

func TestTransferRequestsFromStream(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	readRepo := repository.NewAccountReadRepository(client, time.Hour, nil)
	store := repository.NewInMemoryAccountStore()
	svc := NewAccountCommandService(store, readRepo, events.NewPublisher(client), nil)
	src, err := store.Create(d("20"))
	require.NoError(t, err)
	dst, err := store.Create(d("0"))
	require.NoError(t, err)

	pub := events.NewPublisher(client)
	for i := 0; i < 2; i++ {
		require.NoError(t, pub.Publish(ctx, events.TransferRequestsStream, events.TransferRequested, events.TransferRequestedEvent{
			OperationID:          "op-stream",
			SourceAccountID:      src,
			DestinationAccountID: dst,
			Amount:               d("7.50"),
		}))
	}

	sub := events.NewSubscriber(client, events.SubscriberConfig{
		Group:         "ledger",
		Consumer:      "c1",
		Stream:        events.TransferRequestsStream,
		BlockDuration: 10 * time.Millisecond,
		Handler:       NewTransferRequestHandler(svc, readRepo, nil).Handle,
	})
	require.NoError(t, client.XGroupCreateMkStream(ctx, events.TransferRequestsStream, "ledger", "0").Err())
	require.NoError(t, sub.ReadOnce(ctx))

	source, _ := store.Get(src)
	dest, _ := store.Get(dst)
	assert.True(t, d("12.50").Equal(source.Balance()), "source %s", source.Balance())
	assert.True(t, d("7.50").Equal(dest.Balance()), "destination %s", dest.Balance())
	assert.True(t, readRepo.IsOperationProcessed(ctx, "op-stream"))

	view, ok := readRepo.GetAccountView(ctx, src)
	require.True(t, ok)
	assert.True(t, d("12.50").Equal(view.Available))
}

func TestTransferRequestRetriedAfterClaimFailure(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := newFixture()
	src := f.create(t, "10")
	dst := f.create(t, "0")

	require.NoError(t, events.NewPublisher(client).Publish(ctx, events.TransferRequestsStream, events.TransferRequested, events.TransferRequestedEvent{
		OperationID:          "op-retry",
		SourceAccountID:      src,
		DestinationAccountID: dst,
		Amount:               d("3"),
	}))
	require.NoError(t, client.XGroupCreateMkStream(ctx, events.TransferRequestsStream, "ledger", "0").Err())

	sub := events.NewSubscriber(client, events.SubscriberConfig{
		Group:         "ledger",
		Consumer:      "c1",
		Stream:        events.TransferRequestsStream,
		BlockDuration: 10 * time.Millisecond,
		ClaimMinIdle:  time.Millisecond,
		Handler:       NewTransferRequestHandler(f.svc, &stubClaimer{failures: 1}, nil).Handle,
	})

	require.NoError(t, sub.ReadOnce(ctx))
	source, _ := f.store.Get(src)
	require.True(t, d("10").Equal(source.Balance()), "nothing moves while the claim fails")

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, sub.ReadOnce(ctx))

	dest, _ := f.store.Get(dst)
	assert.True(t, d("7").Equal(source.Balance()), "source %s", source.Balance())
	assert.True(t, d("3").Equal(dest.Balance()), "destination %s", dest.Balance())

	pending, err := client.XPending(ctx, events.TransferRequestsStream, "ledger").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)
}
