package form

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
)

var jsonNumber = regexp.MustCompile(`^-?(0|[1-9]\d*)(\.\d+)?([eE][+-]?\d+)?$`)

// Numeric keeps a numeric answer as typed by the applicant so validation can
// report non-numeric input. It encodes as a JSON number when it is one, as a
// string otherwise and as null when empty.
type Numeric string

// NumericOf formats a number.
func NumericOf(v float64) Numeric {
	return Numeric(strconv.FormatFloat(v, 'f', -1, 64))
}

func (n Numeric) String() string { return string(n) }

// IsNumber reports whether the raw text is a well-formed number.
func (n Numeric) IsNumber() bool {
	return jsonNumber.MatchString(string(n))
}

func (n Numeric) MarshalJSON() ([]byte, error) {
	if n == "" {
		return []byte("null"), nil
	}
	if n.IsNumber() {
		return []byte(n), nil
	}
	return json.Marshal(string(n))
}

func (n *Numeric) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*n = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Numeric(s)
	case jsonNumber.Match(data):
		*n = Numeric(data)
	default:
		return fmt.Errorf("numeric field: unexpected value %s", data)
	}
	return nil
}
