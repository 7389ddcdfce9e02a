// Package schema decodes loosely typed JSON responses.
//
// Validate checks the Required top-level members of a response against
// per-endpoint Rules. Extract then pulls individual members out with a Severity:
// Required members fail with a FieldError, Optional and Lenient members fall
// back to a default and are recorded on the Context so callers can report
// them.
//
// Numeric decoders accept both native numbers and numeric strings, in that
// order, since the upstream service is not consistent about either.
package schema
