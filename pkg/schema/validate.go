package schema

import (
	"encoding/json"

	errs "icloudalbum/pkg/errors"
)

// Kind is the JSON type a top-level member is expected to have
type Kind string

const (
	KindAny            Kind = "any"
	KindObject         Kind = "object"
	KindArray          Kind = "array"
	KindString         Kind = "string"
	KindNumberOrString Kind = "number_or_string"
)

// Requirement describes one top-level member of a response
type Requirement struct {
	Field    string
	Kind     Kind
	Severity Severity
}

// Rules are the requirements for one endpoint
type Rules struct {
	Endpoint     string
	Requirements []Requirement
}

// Validate checks the Required members of obj before any mapping happens and
// reports all of their problems in one SchemaError. Optional and Lenient
// members are not recorded here: Extract absorbs their issues when it applies
// the default, so each one is counted once.
func Validate(ctx *Context, obj Object, rules Rules) error {
	var fatal []errs.ValidationIssue

	for _, req := range rules.Requirements {
		if req.Severity != Required {
			continue
		}
		fctx := ctx.Field(req.Field)

		raw, ok := obj[req.Field]
		var issue *errs.ValidationIssue
		switch {
		case !ok || isNull(raw):
			i := fctx.Issue(errs.IssueMissing, "")
			issue = &i
		case !matchesKind(raw, req.Kind):
			i := fctx.Issue(errs.IssueWrongType, "expected "+string(req.Kind)+", got "+jsonKind(raw))
			issue = &i
		}
		if issue != nil {
			fatal = append(fatal, *issue)
		}
	}

	if len(fatal) > 0 {
		return &errs.SchemaError{Endpoint: rules.Endpoint, Issues: fatal}
	}
	return nil
}

func matchesKind(raw json.RawMessage, kind Kind) bool {
	actual := jsonKind(raw)
	switch kind {
	case KindAny:
		return actual != "invalid" && actual != "empty"
	case KindNumberOrString:
		return actual == "number" || actual == "string"
	default:
		return actual == string(kind)
	}
}
