// Package validator pre-checks generated statements with the TiDB parser.
package validator

import (
	"strings"
	"sync"

	"github.com/pingcap/tidb/pkg/parser"
	_ "github.com/pingcap/tidb/pkg/types/parser_driver" // Register TiDB parser driver.
)

// Validator wraps the TiDB parser for SQL validation. A parser.Parser is not
// safe for concurrent use, so calls are serialized.
type Validator struct {
	mu     sync.Mutex
	parser *parser.Parser
}

// Check is the outcome of validating one statement.
type Check struct {
	Valid bool
	// Digest identifies the statement shape with literals stripped.
	Digest string
	Err    error
}

// New returns a Validator instance.
func New() *Validator {
	return &Validator{parser: parser.New()}
}

// Validate parses a SQL statement and returns any syntax error.
func (v *Validator) Validate(sql string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, _, err := v.parser.Parse(sql, "", "")
	return err
}

// Check validates sql and computes its normalized digest. VQL-only
// constructs fail to parse; the digest is still computed for them.
func (v *Validator) Check(sql string) Check {
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return Check{}
	}
	err := v.Validate(sql)
	_, digest := parser.NormalizeDigest(sql)
	c := Check{Valid: err == nil, Err: err}
	if digest != nil {
		c.Digest = digest.String()
	}
	return c
}
