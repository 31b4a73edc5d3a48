package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTicketEffectiveStatus(t *testing.T) {
	now := time.Now()

	t.Run("available before expiry", func(t *testing.T) {
		ticket := Ticket{Status: TicketAvailable, ExpiresAt: now.Add(time.Hour)}
		assert.Equal(t, TicketAvailable, ticket.EffectiveStatus(now))
		assert.True(t, ticket.IsSellable(now))
	})

	t.Run("available past expiry reads as expired", func(t *testing.T) {
		ticket := Ticket{Status: TicketAvailable, ExpiresAt: now.Add(-time.Minute)}
		assert.Equal(t, TicketExpired, ticket.EffectiveStatus(now))
		assert.False(t, ticket.IsSellable(now))
	})

	t.Run("expiry instant itself counts as expired", func(t *testing.T) {
		ticket := Ticket{Status: TicketAvailable, ExpiresAt: now}
		assert.Equal(t, TicketExpired, ticket.EffectiveStatus(now))
	})

	t.Run("sold status survives expiry", func(t *testing.T) {
		ticket := Ticket{Status: TicketSold, ExpiresAt: now.Add(-time.Hour)}
		assert.Equal(t, TicketSold, ticket.EffectiveStatus(now))
		assert.False(t, ticket.IsSellable(now))
	})

	t.Run("invalidated is never sellable", func(t *testing.T) {
		ticket := Ticket{Status: TicketInvalidated, ExpiresAt: now.Add(time.Hour)}
		assert.Equal(t, TicketInvalidated, ticket.EffectiveStatus(now))
		assert.False(t, ticket.IsSellable(now))
	})
}

func TestBalanceConsistent(t *testing.T) {
	assert.True(t, Balance{}.Consistent())
	assert.True(t, Balance{Total: 100, Available: 60, Pending: 30, Reserved: 10}.Consistent())
	assert.False(t, Balance{Total: 100, Available: 60}.Consistent())
}

func TestWithdrawalIsTerminal(t *testing.T) {
	for status, terminal := range map[string]bool{
		WithdrawalPending:    false,
		WithdrawalProcessing: false,
		WithdrawalCompleted:  true,
		WithdrawalFailed:     true,
		WithdrawalRejected:   true,
	} {
		wd := Withdrawal{Status: status}
		assert.Equal(t, terminal, wd.IsTerminal(), "status %s", status)
	}
}
