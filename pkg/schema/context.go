package schema

import (
	"strconv"
	"strings"

	errs "icloudalbum/pkg/errors"
	"icloudalbum/pkg/logger"
)

// Context tracks where in a response document decoding currently is and
// collects the issues that were absorbed instead of failing the decode.
// Child contexts created with Field or Index share the parent's issue list.
type Context struct {
	endpoint string
	path     []string
	issues   *[]errs.ValidationIssue
	log      logger.Logger
}

// NewContext starts a decode of one response from endpoint
func NewContext(endpoint string, log logger.Logger) *Context {
	return &Context{
		endpoint: endpoint,
		issues:   &[]errs.ValidationIssue{},
		log:      logger.OrDefault(log),
	}
}

// Endpoint returns the endpoint this decode belongs to
func (c *Context) Endpoint() string { return c.endpoint }

// Field returns a child context for a named member
func (c *Context) Field(name string) *Context {
	return c.child(name)
}

// Index returns a child context for an array element
func (c *Context) Index(i int) *Context {
	return c.child("[" + strconv.Itoa(i) + "]")
}

func (c *Context) child(segment string) *Context {
	path := make([]string, len(c.path), len(c.path)+1)
	copy(path, c.path)
	return &Context{
		endpoint: c.endpoint,
		path:     append(path, segment),
		issues:   c.issues,
		log:      c.log,
	}
}

// Path renders the current location, e.g. photos[3].derivatives.
func (c *Context) Path() string {
	if len(c.path) == 0 {
		return "$"
	}
	var b strings.Builder
	for i, segment := range c.path {
		if i > 0 && !strings.HasPrefix(segment, "[") {
			b.WriteByte('.')
		}
		b.WriteString(segment)
	}
	return b.String()
}

// Issue builds a ValidationIssue located at the current path
func (c *Context) Issue(kind errs.IssueKind, reason string) errs.ValidationIssue {
	return errs.ValidationIssue{Path: c.Path(), Kind: kind, Reason: reason}
}

// Absorb records an issue that was resolved locally. Lenient issues are
// logged at debug level since they are expected in normal responses.
func (c *Context) Absorb(issue errs.ValidationIssue, severity Severity) {
	*c.issues = append(*c.issues, issue)

	fields := map[string]interface{}{
		"endpoint": c.endpoint,
		"path":     issue.Path,
		"kind":     string(issue.Kind),
		"severity": severity.String(),
	}
	if issue.Reason != "" {
		fields["reason"] = issue.Reason
	}
	if severity == Lenient {
		c.log.DebugWithFields("field defaulted", fields)
		return
	}
	c.log.WarnWithFields("field defaulted", fields)
}

// Skip records that a whole entry was dropped
func (c *Context) Skip(err error) {
	issue := c.Issue(errs.IssueInvalidValue, err.Error())
	*c.issues = append(*c.issues, issue)
	c.log.WarnWithFields("skipping malformed entry", map[string]interface{}{
		"endpoint": c.endpoint,
		"path":     issue.Path,
		"error":    err.Error(),
	})
}

// Warnings returns every issue absorbed so far across the whole decode
func (c *Context) Warnings() []errs.ValidationIssue {
	out := make([]errs.ValidationIssue, len(*c.issues))
	copy(out, *c.issues)
	return out
}
