package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	errs "icloudalbum/pkg/errors"
)

// Severity controls what happens when a field is missing or malformed
type Severity int

const (
	// Required fields fail the extraction with a FieldError
	Required Severity = iota
	// Optional fields fall back to a default and log a warning
	Optional
	// Lenient fields behave like Optional but are routinely absent, so absence is logged at debug
	Lenient
)

func (s Severity) String() string {
	switch s {
	case Required:
		return "required"
	case Optional:
		return "optional"
	case Lenient:
		return "lenient"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Object is a JSON object whose members are decoded on demand
type Object map[string]json.RawMessage

// Decoder turns one raw JSON value into T. A returned *KindError tells the
// extractor which IssueKind to report.
type Decoder[T any] func(raw json.RawMessage) (T, error)

// KindError is a decode failure carrying its issue kind
type KindError struct {
	Kind   errs.IssueKind
	Reason string
}

func (e *KindError) Error() string {
	if e.Reason == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func wrongType(want string, raw json.RawMessage) error {
	return &KindError{Kind: errs.IssueWrongType, Reason: fmt.Sprintf("expected %s, got %s", want, jsonKind(raw))}
}

func invalidValue(format string, args ...interface{}) error {
	return &KindError{Kind: errs.IssueInvalidValue, Reason: fmt.Sprintf(format, args...)}
}

// Extract decodes obj[field] with decode. Missing and null members count as
// missing. Depending on severity a failure either becomes a FieldError or is
// absorbed into ctx and def is returned.
func Extract[T any](ctx *Context, obj Object, field string, severity Severity, decode Decoder[T], def T) (T, error) {
	fctx := ctx.Field(field)

	raw, ok := obj[field]
	if !ok || isNull(raw) {
		return resolve(fctx, severity, fctx.Issue(errs.IssueMissing, ""), nil, def)
	}

	value, err := decode(raw)
	if err != nil {
		kind := errs.IssueInvalidValue
		reason := err.Error()
		if ke, ok := err.(*KindError); ok {
			kind = ke.Kind
			reason = ke.Reason
		}
		return resolve(fctx, severity, fctx.Issue(kind, reason), err, def)
	}
	return value, nil
}

func resolve[T any](ctx *Context, severity Severity, issue errs.ValidationIssue, cause error, def T) (T, error) {
	if severity == Required {
		return def, &errs.FieldError{Issue: issue, Err: cause}
	}
	ctx.Absorb(issue, severity)
	return def, nil
}

// ParseObject decodes a response body that must be a JSON object
func ParseObject(endpoint string, body []byte) (Object, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, &errs.DecodeError{Endpoint: endpoint, Err: fmt.Errorf("empty response body")}
	}
	if trimmed[0] != '{' {
		return nil, &errs.DecodeError{Endpoint: endpoint, Err: fmt.Errorf("expected JSON object, got %s", jsonKind(trimmed))}
	}
	var obj Object
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, &errs.DecodeError{Endpoint: endpoint, Err: err}
	}
	return obj, nil
}

// String decodes a JSON string
func String(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", wrongType("string", raw)
	}
	return s, nil
}

// Int64 accepts a native JSON integer or a string holding one
func Int64(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, wrongType("number", raw)
		}
		return parseInteger(strings.TrimSpace(s))
	}
	if jsonKind(raw) != "number" {
		return 0, wrongType("number", raw)
	}
	return parseInteger(string(raw))
}

// Int is Int64 narrowed to int
func Int(raw json.RawMessage) (int, error) {
	n, err := Int64(raw)
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt || n < math.MinInt {
		return 0, invalidValue("%d overflows int", n)
	}
	return int(n), nil
}

// Count is Int64 restricted to non-negative values
func Count(raw json.RawMessage) (int64, error) {
	n, err := Int64(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, invalidValue("negative value %d", n)
	}
	return n, nil
}

func parseInteger(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	// Integral floats such as 1.2e3 or 800.0 are accepted.
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, invalidValue("%q is not a number", s)
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, invalidValue("%q is not an integer", s)
	}
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, invalidValue("%q overflows int64", s)
	}
	return int64(f), nil
}

// Bool decodes a JSON boolean
func Bool(raw json.RawMessage) (bool, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false, wrongType("boolean", raw)
	}
	return b, nil
}

// Raw keeps the value undecoded
func Raw(raw json.RawMessage) (json.RawMessage, error) {
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out, nil
}

// ObjectOf decodes a JSON object into an Object
func ObjectOf(raw json.RawMessage) (Object, error) {
	if jsonKind(raw) != "object" {
		return nil, wrongType("object", raw)
	}
	var obj Object
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, invalidValue("%v", err)
	}
	return obj, nil
}

// ArrayOf decodes a JSON array into its raw elements
func ArrayOf(raw json.RawMessage) ([]json.RawMessage, error) {
	if jsonKind(raw) != "array" {
		return nil, wrongType("array", raw)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, invalidValue("%v", err)
	}
	return items, nil
}

// Strings decodes an array of strings
func Strings(raw json.RawMessage) ([]string, error) {
	if jsonKind(raw) != "array" {
		return nil, wrongType("array", raw)
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, invalidValue("array contains non-string values")
	}
	return out, nil
}

func isNull(raw json.RawMessage) bool {
	return jsonKind(raw) == "null"
}

// jsonKind names the JSON type of raw from its first significant byte
func jsonKind(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "empty"
	}
	switch c := raw[0]; {
	case c == '{':
		return "object"
	case c == '[':
		return "array"
	case c == '"':
		return "string"
	case c == 't' || c == 'f':
		return "boolean"
	case c == 'n':
		return "null"
	case c == '-' || (c >= '0' && c <= '9'):
		return "number"
	default:
		return "invalid"
	}
}
