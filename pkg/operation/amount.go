package operation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// TezDecimals is the number of fractional digits of one tez (1 tez = 10^6 mutez).
const TezDecimals = 6

var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount converts a non-negative decimal string ("1.5") into minimal
// units with the given number of fractional digits (1500000 for 6).
func ParseAmount(s string, decimals int) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	whole, frac, hasDot := strings.Cut(s, ".")
	if hasDot && frac == "" && whole == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if !isDigits(whole) || !isDigits(frac) {
		return 0, fmt.Errorf("%w: %q is not a non-negative decimal number", ErrInvalidAmount, s)
	}
	if len(frac) > decimals {
		return 0, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalidAmount, s, decimals)
	}

	digits := whole + frac + strings.Repeat("0", decimals-len(frac))
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidAmount, s)
	}
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidAmount, s)
	}
	return v, nil
}

// ParseTez is ParseAmount with TezDecimals.
func ParseTez(s string) (uint64, error) {
	return ParseAmount(s, TezDecimals)
}

// FormatTez renders mutez as a decimal tez string without trailing zeros.
func FormatTez(mutez uint64) string {
	whole := mutez / 1_000_000
	frac := mutez % 1_000_000
	if frac == 0 {
		return strconv.FormatUint(whole, 10)
	}
	f := strings.TrimRight(fmt.Sprintf("%06d", frac), "0")
	return strconv.FormatUint(whole, 10) + "." + f
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
