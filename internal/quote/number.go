package quote

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Number is a lenient numeric field. It accepts JSON numbers and numeric
// strings. Any other value, as well as negatives, decodes to zero instead of
// failing the request. Present is false when the field was absent or null.
type Number struct {
	Value   decimal.Decimal
	Present bool
}

// UnmarshalJSON implements json.Unmarshaler and never returns an error.
func (n *Number) UnmarshalJSON(data []byte) error {
	n.Value = decimal.Zero
	n.Present = false

	raw := bytes.TrimSpace(data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	n.Present = true

	text := string(raw)
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		text = strings.TrimSpace(s)
	}
	v, err := decimal.NewFromString(text)
	if err != nil || v.IsNegative() || v.GreaterThan(maxValue) {
		return nil
	}
	n.Value = v
	return nil
}

// MarshalJSON renders the coerced value.
func (n Number) MarshalJSON() ([]byte, error) {
	return n.Value.MarshalJSON()
}

// maxLineQuantity bounds a single line so aggregate quantities stay in int range.
const maxLineQuantity = 1_000_000

// Values above maxValue are treated as corrupt input.
var maxValue = decimal.New(1, 12)

// Quantity truncates the value to a whole unit count.
func (n Number) Quantity() int {
	if n.Value.GreaterThan(decimal.NewFromInt(maxLineQuantity)) {
		return maxLineQuantity
	}
	q := n.Value.IntPart()
	if q < 0 {
		return 0
	}
	return int(q)
}
