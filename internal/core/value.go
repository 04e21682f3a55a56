package core

import "strconv"

// Value is a raw player property. Players answer either numbers or text.
type Value struct {
	Raw string
}

// Int reports the value as an integer when it is all digits.
func (v Value) Int() (int, bool) {
	if v.Raw == "" {
		return 0, false
	}
	for _, r := range v.Raw {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(v.Raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (v Value) String() string { return v.Raw }
