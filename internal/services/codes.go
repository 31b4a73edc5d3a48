package services

import (
	cryptorand "crypto/rand"
	"encoding/hex"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const base36Upper = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
const base36Lower = "0123456789abcdefghijklmnopqrstuvwxyz"
const passwordChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

var usernamePrefixRe = regexp.MustCompile(`[^a-z0-9]+`)

func timestampBase36() string {
	return strings.ToUpper(strconv.FormatInt(time.Now().UnixMilli(), 36))
}

func randomString(charset string, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}

// GenerateReferralCode builds a WIFI-prefixed code. Uniqueness is
// enforced by the referral_code index; callers retry on collision.
func GenerateReferralCode() string {
	return "WIFI" + timestampBase36() + randomString(base36Upper, 4)
}

// GenerateTransactionID builds a type-prefixed, human-legible id,
// e.g. SALM2X4K19AB3F for a sale.
func GenerateTransactionID(txType string) string {
	prefix := strings.ToUpper(txType)
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	return prefix + timestampBase36() + randomString(base36Upper, 4)
}

// GenerateWithdrawalID builds a WDR-prefixed withdrawal reference.
func GenerateWithdrawalID() string {
	return "WDR" + timestampBase36() + randomString(base36Upper, 4)
}

// GenerateTicketID builds a TKT-prefixed voucher reference.
func GenerateTicketID() string {
	return "TKT" + timestampBase36() + randomString(base36Upper, 4)
}

// GenerateTicketUsername derives a hotspot login from the zone name
// plus a random suffix. Collision probability is non-zero by
// construction; callers must retry against the username index.
func GenerateTicketUsername(zoneName string) string {
	prefix := usernamePrefixRe.ReplaceAllString(strings.ToLower(zoneName), "_")
	prefix = strings.Trim(prefix, "_")
	if len(prefix) > 10 {
		prefix = prefix[:10]
	}
	if prefix == "" {
		prefix = "zone"
	}
	return prefix + "_" + randomString(base36Lower, 6)
}

// GenerateTicketPassword returns a 10-character voucher password.
func GenerateTicketPassword() string {
	raw := make([]byte, 10)
	cryptorand.Read(raw)
	b := make([]byte, len(raw))
	for i, r := range raw {
		b[i] = passwordChars[int(r)%len(passwordChars)]
	}
	return string(b)
}

// GenerateRandomToken returns an opaque token for email verification
// and password reset links. These tokens gate account access, so they
// are drawn from crypto/rand.
func GenerateRandomToken() string {
	raw := make([]byte, 32)
	cryptorand.Read(raw)
	return hex.EncodeToString(raw)
}
