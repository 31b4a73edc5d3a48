package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateReferralCode(t *testing.T) {
	code := GenerateReferralCode()
	assert.True(t, strings.HasPrefix(code, "WIFI"))
	assert.Greater(t, len(code), 8)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		seen[GenerateReferralCode()] = true
	}
	assert.Greater(t, len(seen), 90)
}

func TestGenerateTransactionID(t *testing.T) {
	assert.True(t, strings.HasPrefix(GenerateTransactionID("sale"), "SAL"))
	assert.True(t, strings.HasPrefix(GenerateTransactionID("withdrawal"), "WIT"))
	assert.True(t, strings.HasPrefix(GenerateTransactionID("referral"), "REF"))
}

func TestGenerateTicketUsername(t *testing.T) {
	t.Run("sanitizes the zone name", func(t *testing.T) {
		username := GenerateTicketUsername("Maquis du Rond-Point!")
		parts := strings.Split(username, "_")
		assert.GreaterOrEqual(t, len(parts), 2)
		assert.Equal(t, strings.ToLower(username), username)
		for _, c := range username {
			assert.True(t, (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_',
				"unexpected character %q in %q", c, username)
		}
	})

	t.Run("caps the prefix length", func(t *testing.T) {
		username := GenerateTicketUsername("a very very long zone name indeed")
		prefix := username[:strings.LastIndex(username, "_")]
		assert.LessOrEqual(t, len(prefix), 10)
	})

	t.Run("falls back when the name has no usable characters", func(t *testing.T) {
		username := GenerateTicketUsername("!!!")
		assert.True(t, strings.HasPrefix(username, "zone_"))
	})
}

func TestGenerateTicketPassword(t *testing.T) {
	password := GenerateTicketPassword()
	assert.Len(t, password, 10)
	assert.NotEqual(t, password, GenerateTicketPassword())
}

func TestGenerateWithdrawalID(t *testing.T) {
	assert.True(t, strings.HasPrefix(GenerateWithdrawalID(), "WDR"))
}

func TestGenerateTicketID(t *testing.T) {
	assert.True(t, strings.HasPrefix(GenerateTicketID(), "TKT"))
}

func TestGenerateRandomToken(t *testing.T) {
	token := GenerateRandomToken()
	assert.Len(t, token, 64)
	for _, c := range token {
		assert.True(t, (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f'),
			"unexpected character %q in %q", c, token)
	}
	assert.NotEqual(t, token, GenerateRandomToken())
}
