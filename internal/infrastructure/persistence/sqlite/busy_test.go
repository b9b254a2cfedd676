package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryBusyRetriesOnlyBusy(t *testing.T) {
	calls := 0
	err := RetryBusy(context.Background(), func() error {
		calls++
		if calls < 2 {
			return errors.New("database is locked (5) (SQLITE_BUSY)")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	plain := errors.New("no such table: domain_hashes")
	err = RetryBusy(context.Background(), func() error {
		calls++
		return plain
	})
	assert.ErrorIs(t, err, plain)
	assert.Equal(t, 1, calls)
}

func TestRetryBusyGivesUp(t *testing.T) {
	calls := 0
	err := RetryBusy(context.Background(), func() error {
		calls++
		return errors.New("database table is locked")
	})
	assert.True(t, IsBusy(err))
	assert.Equal(t, maxBusyRetries, calls)
}

func TestRetryBusyStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryBusy(ctx, func() error { return errors.New("SQLITE_BUSY") })
	assert.ErrorIs(t, err, context.Canceled)
}
