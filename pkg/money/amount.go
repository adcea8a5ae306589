// Package money holds exact decimal amounts for guardrail thresholds and
// action payloads.
package money

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	dErrors "actiongate/pkg/domain-errors"
)

// Digit limits keep every accepted amount exactly representable by String.
const (
	maxIntegerDigits  = 18
	maxFractionDigits = 8
)

var decimalPattern = regexp.MustCompile(fmt.Sprintf(`^[+-]?[0-9]{1,%d}(\.[0-9]{1,%d})?$`, maxIntegerDigits, maxFractionDigits))

// Amount is an exact decimal. The zero value is "absent".
type Amount struct {
	v *big.Rat
}

// Parse reads a plain decimal string such as "15000" or "1234.50". Fractions,
// exponents and hex forms are rejected, as are values with more than
// maxIntegerDigits integer or maxFractionDigits fraction digits.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, dErrors.New(dErrors.CodeValidation, "amount is empty")
	}
	if !decimalPattern.MatchString(s) {
		return Amount{}, dErrors.New(dErrors.CodeValidation, "amount is not a plain decimal number within supported precision")
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return Amount{}, dErrors.New(dErrors.CodeValidation, "amount is not a decimal number")
	}
	return Amount{v: r}, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func FromInt(n int64) Amount {
	return Amount{v: new(big.Rat).SetInt64(n)}
}

func (a Amount) IsZero() bool { return a.v == nil }

func (a Amount) IsNegative() bool { return a.v != nil && a.v.Sign() < 0 }

// Cmp compares a and b. Absent amounts compare as zero.
func (a Amount) Cmp(b Amount) int {
	return a.rat().Cmp(b.rat())
}

func (a Amount) String() string {
	if a.v == nil {
		return ""
	}
	if a.v.IsInt() {
		return a.v.Num().String()
	}
	s := a.v.FloatString(8)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func (a Amount) rat() *big.Rat {
	if a.v == nil {
		return new(big.Rat)
	}
	return a.v
}

// MarshalJSON writes the amount as a JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	if a.v == nil {
		return []byte("null"), nil
	}
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = Amount{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText lets YAML scalars decode straight into an Amount.
func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
