package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaxMoney is the largest amount accepted on input (ten digits, two of them
// after the decimal point).
const MaxMoney Money = 99999999_99

// Money is a decimal amount with two fractional digits, held as integer cents.
// It serializes as a JSON string such as "12.50" and accepts either a string
// or a number on input.
type Money int64

var errMoneyFormat = errors.New("must be a decimal number with at most 2 decimal places")

// ParseMoney parses a decimal string like "12", "12.5" or "12.50".
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errMoneyFormat
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" && (!hasDot || frac == "") {
		return 0, errMoneyFormat
	}
	if len(frac) > 2 {
		return 0, errMoneyFormat
	}
	for _, part := range []string{whole, frac} {
		for _, r := range part {
			if r < '0' || r > '9' {
				return 0, errMoneyFormat
			}
		}
	}

	var units int64
	if whole != "" {
		n, err := strconv.ParseInt(whole, 10, 64)
		if err != nil || n > int64(MaxMoney/100) {
			return 0, fmt.Errorf("must not exceed %s", MaxMoney)
		}
		units = n
	}

	frac = (frac + "00")[:2]
	cents, _ := strconv.ParseInt(frac, 10, 64)

	m := Money(units*100 + cents)
	if m > MaxMoney {
		return 0, fmt.Errorf("must not exceed %s", MaxMoney)
	}
	if neg {
		m = -m
	}
	return m, nil
}

// String formats the amount with exactly two decimal places.
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON encodes the amount as a quoted decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts "12.50" or 12.5.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		s = string(data)
	}

	v, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
