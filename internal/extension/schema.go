package extension

import (
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/reqlog/internal/ir"
)

// Schema validates extension action parameters against a CUE definition.
//
// The source is the body of a closed struct, for example:
//
//	salt: =~"^[0-9a-fA-F]{16,}$"
//	paymentAddress?: string
//
// Keys not named in the schema are rejected.
type Schema struct {
	mu    sync.Mutex
	ctx   *cue.Context
	value cue.Value
}

// CompileSchema compiles a CUE struct body into a Schema.
func CompileSchema(body string) (*Schema, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString("#Params: {\n" + body + "\n}")
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	def := root.LookupPath(cue.ParsePath("#Params"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{ctx: ctx, value: def}, nil
}

// MustCompileSchema is CompileSchema for package-level schemas.
func MustCompileSchema(body string) *Schema {
	s, err := CompileSchema(body)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks params against the schema. Failures are
// ReasonInvalidParameters rejections.
func (s *Schema) Validate(params ir.IRObject) error {
	if params == nil {
		params = ir.IRObject{}
	}
	data, err := ir.MarshalIRValue(params)
	if err != nil {
		return ir.Reject(ir.ReasonInvalidParameters, "parameters: %v", err)
	}

	// cue.Context is not safe for concurrent use.
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.ctx.CompileBytes(data)
	if err := v.Err(); err != nil {
		return ir.Reject(ir.ReasonInvalidParameters, "parameters: %v", err)
	}
	if err := s.value.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return ir.Reject(ir.ReasonInvalidParameters, "parameters: %v", err)
	}
	return nil
}
