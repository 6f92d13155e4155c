//go:build demo

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rachaapp/racha-backend/internal/cardgen"
	"github.com/rachaapp/racha-backend/internal/expiry"
	"github.com/rachaapp/racha-backend/internal/security"
)

var (
	flagBIN      = flag.String("bin", "421234", "6/8/9-digit BIN prefix")
	flagYears    = flag.Int("years", 3, "validity years stamped on the card")
	flagJSON     = flag.Bool("json", false, "print the credential preview as JSON")
	flagShowCVV  = flag.Bool("show-cvv", false, "print CVV to console (DANGEROUS; for demo only)")
	flagVerbose  = flag.Bool("verbose", false, "print full PAN (otherwise masked)")
	flagCardName = flag.String("card-name", "", "holder name for card face imprint")
)

func main() {
	flag.Parse()
	must(cardgen.ValidateBIN(*flagBIN))
	if *flagYears <= 0 {
		fail("-years must be positive")
	}

	cardName := normalizeCardName(*flagCardName)
	pan := must1(cardgen.GeneratePAN(*flagBIN, 16))
	now := time.Now()

	expCardFace := expiry.CardFace(now, *flagYears)
	expYYMM := expiry.YYMM(now, *flagYears)

	cvv := must1(security.StaticCVV(pan, expYYMM, security.Key()))

	printPAN := cardgen.MaskPAN(pan)
	if *flagVerbose {
		printPAN = pan + "   (WARNING: printing full PAN)"
	}

	if *flagJSON {
		preview := map[string]string{
			"numero":   printPAN,
			"validade": expCardFace,
			"nome":     cardName,
		}
		if *flagShowCVV {
			preview["cvv"] = cvv
		}
		enc, _ := json.MarshalIndent(preview, "", "  ")
		fmt.Println(string(enc))
		return
	}

	fmt.Printf("PAN: %s\nEXP(card-face): %s  EXP(stored): %s\n", printPAN, expCardFace, expYYMM)
	if cardName != "" {
		fmt.Printf("NAME(card-face): %s\n", cardName)
	} else {
		fmt.Println("NAME(card-face): (provide --card-name to imprint)")
	}
	if *flagShowCVV {
		fmt.Printf("CVV(static): %s\n", cvv)
	}
}

func normalizeCardName(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ""
	}
	normalized := strings.Join(strings.Fields(trimmed), " ")
	up := strings.ToUpper(normalized)
	if len(up) > 26 {
		return up[:26]
	}
	return up
}

func must(err error) {
	if err != nil {
		fail("%v", err)
	}
}
func must1[T any](v T, err error) T {
	if err != nil {
		fail("%v", err)
	}
	return v
}
func fail(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
