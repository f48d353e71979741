package services

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

type MismatchReason string

const (
	ReasonNone             MismatchReason = ""
	ReasonAmountMismatch   MismatchReason = "amount_mismatch"
	ReasonUnparseable      MismatchReason = "unparseable"
	ReasonNoExpectedAmount MismatchReason = "no_expected_amount"
	ReasonNoActiveTask     MismatchReason = "no_active_task"
)

var ErrAmountNotFound = errors.New("no amount in evidence text")

var (
	urlPattern      = regexp.MustCompile(`https?://\S+`)
	explorerPattern = regexp.MustCompile(`(?i)https?://\S*(scan|explorer|blockchair|blockchain|mempool|blockstream)\S*`)
	txHashPattern   = regexp.MustCompile(`\b(?:0x)?[0-9a-fA-F]{64}\b`)
	txKeyword       = regexp.MustCompile(`(?i)\b(txid|tx|hash|transaction)\b`)

	// amountToken skips digits glued to a preceding letter, so network
	// names like TRC20 or ERC20 are not read as amounts. A single space
	// followed by exactly three digits continues the number ("1 000.50").
	amountToken = regexp.MustCompile(`(?:^|[^\p{L}\d])(\d{1,3}(?: \d{3}\b)+[\d,.]*|\d[\d,.]*)`)
)

// LooksLikeEvidence reports whether text carries something resembling a
// settlement reference.
func LooksLikeEvidence(text string) bool {
	if explorerPattern.MatchString(text) || txHashPattern.MatchString(text) {
		return true
	}
	return txKeyword.MatchString(text) && urlPattern.MatchString(text)
}

// ExtractProof returns the most specific settlement reference in text.
func ExtractProof(text string) string {
	if u := explorerPattern.FindString(text); u != "" {
		return u
	}
	if u := urlPattern.FindString(text); u != "" {
		return u
	}
	return txHashPattern.FindString(text)
}

// ParseAmount reads the settled amount from evidence text. Links and hashes
// are removed first; of the remaining number, everything but digits and the
// decimal point is dropped before parsing, so commas and spaces only group.
func ParseAmount(text string) (decimal.Decimal, error) {
	cleaned := urlPattern.ReplaceAllString(text, " ")
	cleaned = txHashPattern.ReplaceAllString(cleaned, " ")

	m := amountToken.FindStringSubmatch(cleaned)
	if m == nil {
		return decimal.Zero, ErrAmountNotFound
	}

	token := strings.TrimRight(m[1], ".,")
	var b strings.Builder
	for _, r := range token {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}

	return decimal.NewFromString(b.String())
}
