// Package security derives the CVV written on materialized cards.
// The derivation is HMAC-SHA256 with dynamic truncation over
// PAN-without-check-digit | YYMM | domain label, so the value is
// reproducible from the key but stored once and read back afterwards.
package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"os"

	"github.com/rachaapp/racha-backend/internal/cardgen"
	"github.com/rachaapp/racha-backend/internal/expiry"
)

// domain separation label, versioned so a future scheme change cannot
// collide with already-issued cards
const domainStatic = "racha-cvv-v1"

// Key loads the CVV key from CVK_DEMO, falling back to a static dev
// key. The fallback is not for production.
func Key() []byte {
	key := []byte(os.Getenv("CVK_DEMO"))
	if len(key) == 0 {
		key = []byte("demo-cvk-not-for-production")
	}
	return key
}

// StaticCVV computes the 3-digit CVV for a card. pan must be a full
// Luhn-valid PAN; expiryYYMM the stored validity.
func StaticCVV(pan, expiryYYMM string, key []byte) (string, error) {
	p := cardgen.NormalizePAN(pan)
	if err := cardgen.ValidatePAN(p); err != nil {
		return "", err
	}
	if err := expiry.ValidateYYMM(expiryYYMM); err != nil {
		return "", err
	}
	panNoCD := p[:len(p)-1]
	msg := []byte(panNoCD + "|" + expiryYYMM + "|" + domainStatic)
	return hmacTruncatedDecimal(key, msg, 3), nil
}

// hmacTruncatedDecimal applies RFC 4226 style dynamic truncation and
// formats the result as a fixed-width decimal string.
func hmacTruncatedDecimal(key, msg []byte, width int) string {
	h := hmac.New(sha256.New, key)
	h.Write(msg)
	sum := h.Sum(nil)
	off := sum[len(sum)-1] & 0x0f
	code := (uint32(sum[off])&0x7f)<<24 |
		(uint32(sum[off+1])&0xff)<<16 |
		(uint32(sum[off+2])&0xff)<<8 |
		(uint32(sum[off+3]) & 0xff)
	if width == 4 {
		return fmt.Sprintf("%04d", code%10000)
	}
	return fmt.Sprintf("%03d", code%1000)
}
