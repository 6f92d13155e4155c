// Package expiry formats card validity dates. Storage keeps YYMM; the
// card face shows MM/YY.
package expiry

import (
	"fmt"
	"strings"
	"time"
)

var defaultLoc = time.UTC

// SetDefaultLocation sets the location used for expiry computations
// (fallback UTC).
func SetDefaultLocation(loc *time.Location) {
	if loc != nil {
		defaultLoc = loc
	}
}

// YYMM returns the storage form of issue date + years.
func YYMM(issue time.Time, years int) string {
	t := issue.In(defaultLoc)
	return fmt.Sprintf("%02d%02d", (t.Year()+years)%100, int(t.Month()))
}

// CardFace returns MM/YY for the card imprint.
func CardFace(issue time.Time, years int) string {
	t := issue.In(defaultLoc)
	return fmt.Sprintf("%02d/%02d", int(t.Month()), (t.Year()+years)%100)
}

// FaceFromYYMM converts the stored YYMM form to the MM/YY card face.
func FaceFromYYMM(yymm string) (string, error) {
	if err := ValidateYYMM(yymm); err != nil {
		return "", err
	}
	return yymm[2:] + "/" + yymm[:2], nil
}

// ParseCardFace accepts "MM/YY" or "MMYY" and returns YYMM.
func ParseCardFace(in string) (string, error) {
	s := strings.ReplaceAll(strings.TrimSpace(in), "/", "")
	if len(s) != 4 || !isDigits(s) {
		return "", fmt.Errorf("card face must be MM/YY or MMYY")
	}
	if mm := s[:2]; mm < "01" || mm > "12" {
		return "", fmt.Errorf("month must be 01..12")
	}
	return s[2:] + s[:2], nil
}

// ValidateYYMM checks the YYMM storage form: 4 digits, month 01..12.
func ValidateYYMM(yymm string) error {
	if len(yymm) != 4 || !isDigits(yymm) {
		return fmt.Errorf("expiry must be YYMM (4 digits)")
	}
	if mm := yymm[2:]; mm < "01" || mm > "12" {
		return fmt.Errorf("expiry month must be 01..12")
	}
	return nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
