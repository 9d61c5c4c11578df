package cardano

import (
	"bytes"
	"encoding/json"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// LovelacePerAda is the scale between the whole currency unit and the
// smallest on-chain unit.
const LovelacePerAda = 1_000_000

// Lovelace is an amount in the smallest on-chain unit.
type Lovelace uint64

// Add returns a+b, failing rather than wrapping on overflow.
func (l Lovelace) Add(o Lovelace) (sum Lovelace, err error) {
	if uint64(l) > math.MaxUint64-uint64(o) {
		err = errors.Wrapf(ErrInvalidAmount, "%d + %d overflows", l, o)
		return
	}
	return l + o, nil
}

func (l Lovelace) String() string {
	return strconv.FormatUint(uint64(l), 10)
}

// Ada renders the amount in whole currency units, e.g. 1500000 -> "1.5".
func (l Lovelace) Ada() string {
	whole := uint64(l) / LovelacePerAda
	frac := uint64(l) % LovelacePerAda
	if frac == 0 {
		return strconv.FormatUint(whole, 10)
	}
	fracStr := strings.TrimRight(strconv.FormatUint(frac+LovelacePerAda, 10)[1:], "0")
	return strconv.FormatUint(whole, 10) + "." + fracStr
}

// ParseLovelace parses a base-10 integer string such as the utxo values
// returned by the chain backends.
func ParseLovelace(value string) (l Lovelace, err error) {
	v, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil {
		err = errors.Wrapf(ErrInvalidAmount, "'%s' is not a lovelace value", value)
		return
	}
	return Lovelace(v), nil
}

var plainDecimal = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// Decimal is a whole-currency amount as supplied by a client. It accepts both
// JSON numbers and JSON strings so no precision is lost to float64.
type Decimal string

func (d *Decimal) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.WithStack(err)
		}
		*d = Decimal(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.Wrapf(ErrInvalidAmount, "%s", string(data))
	}
	*d = Decimal(n.String())
	return nil
}

func (d Decimal) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(d))
}

// Lovelace scales the decimal by 10^6. Only plain base-10 notation is
// accepted. A remainder below one lovelace or a value beyond uint64 is
// rejected.
func (d Decimal) Lovelace() (l Lovelace, err error) {
	s := strings.TrimSpace(string(d))
	if s == "" {
		err = errors.Wrap(ErrInvalidAmount, "empty amount")
		return
	}

	if strings.HasPrefix(s, "-") {
		err = errors.Wrapf(ErrInvalidAmount, "'%s' is negative", s)
		return
	}

	// big.Rat also takes fractions, exponents and base prefixes
	if !plainDecimal.MatchString(s) {
		err = errors.Wrapf(ErrInvalidAmount, "'%s' is not a decimal number", s)
		return
	}

	r, ok := new(big.Rat).SetString(s)
	if !ok {
		err = errors.Wrapf(ErrInvalidAmount, "'%s' is not a number", s)
		return
	}

	r.Mul(r, new(big.Rat).SetInt64(LovelacePerAda))
	if !r.IsInt() {
		err = errors.Wrapf(ErrInvalidAmount, "'%s' has more than 6 decimal places", s)
		return
	}

	n := r.Num()
	if !n.IsUint64() {
		err = errors.Wrapf(ErrInvalidAmount, "'%s' is too large", s)
		return
	}

	return Lovelace(n.Uint64()), nil
}
