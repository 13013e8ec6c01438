package profile

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/speciate/internal/codegen"
	"github.com/roach88/speciate/internal/invoke"
	"github.com/roach88/speciate/internal/ir"
	"github.com/roach88/speciate/internal/pregen"
)

//go:embed schema.cue
var schemaSource string

// Profile is a compiled pregeneration and tuning profile.
type Profile struct {
	Container string
	Request   pregen.Request

	FieldCountThreshold int
	ExpressionThreshold int
	CompileThreshold    int
}

// Default returns the profile used when none is given: basic forms only,
// default container and thresholds.
func Default() *Profile {
	return &Profile{
		Container:           codegen.DefaultContainer,
		Request:             pregen.Request{BasicForms: true},
		FieldCountThreshold: invoke.DefaultFieldCountThreshold,
		ExpressionThreshold: invoke.DefaultExpressionThreshold,
		CompileThreshold:    invoke.DefaultCompileThreshold,
	}
}

// RuntimeOptions returns the runtime options the profile selects.
func (p *Profile) RuntimeOptions() []invoke.Option {
	return []invoke.Option{
		invoke.WithFieldCountThreshold(p.FieldCountThreshold),
		invoke.WithExpressionThreshold(p.ExpressionThreshold),
		invoke.WithCompileThreshold(p.CompileThreshold),
	}
}

// BridgeOptions returns the bridge options the profile selects.
func (p *Profile) BridgeOptions() []codegen.BridgeOption {
	return []codegen.BridgeOption{codegen.WithContainer(p.Container)}
}

// CompileError reports an invalid profile field.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads a profile from a .cue file or from the CUE package in a
// directory.
func Load(path string) (*Profile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	ctx := cuecontext.New()
	var v cue.Value
	if info.IsDir() {
		instances := load.Instances([]string{"."}, &load.Config{Dir: path})
		if len(instances) == 0 {
			return nil, fmt.Errorf("load profile: no CUE package in %s", path)
		}
		if err := instances[0].Err; err != nil {
			return nil, formatCUEError(err)
		}
		v = ctx.BuildInstance(instances[0])
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load profile: %w", err)
		}
		v = ctx.CompileBytes(data, cue.Filename(path))
	}
	return compileWithSchema(ctx, v)
}

// Parse compiles profile source text.
func Parse(src []byte, filename string) (*Profile, error) {
	ctx := cuecontext.New()
	return compileWithSchema(ctx, ctx.CompileBytes(src, cue.Filename(filename)))
}

func compileWithSchema(ctx *cue.Context, v cue.Value) (*Profile, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("profile schema: %w", err)
	}

	if !v.LookupPath(cue.ParsePath("profile")).Exists() {
		return nil, &CompileError{Field: "profile", Message: "profile is required", Pos: v.Pos()}
	}
	if err := schema.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}
	// Read from the unvalidated value so positions point into the profile
	// source rather than the schema.
	return Compile(v.LookupPath(cue.ParsePath("profile")))
}

// Compile converts a profile struct value. Absent fields keep the values
// of Default.
func Compile(v cue.Value) (*Profile, error) {
	if !v.Exists() {
		return nil, &CompileError{Field: "profile", Message: "profile value does not exist"}
	}
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	p := Default()

	if f := v.LookupPath(cue.ParsePath("container")); f.Exists() {
		s, err := f.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		p.Container = s
	}
	if f := v.LookupPath(cue.ParsePath("basic_forms")); f.Exists() {
		b, err := f.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		p.Request.BasicForms = b
	}

	var err error
	if p.Request.Direct, err = methodTypes(v, "direct"); err != nil {
		return nil, err
	}
	if p.Request.Delegating, err = methodTypes(v, "delegating"); err != nil {
		return nil, err
	}
	if p.Request.Invokers, err = methodTypes(v, "invokers"); err != nil {
		return nil, err
	}
	if p.Request.CallSites, err = methodTypes(v, "call_sites"); err != nil {
		return nil, err
	}
	if p.Request.Species, err = stringList(v, "species"); err != nil {
		return nil, err
	}

	thresholds := []struct {
		path string
		dst  *int
	}{
		{"runtime.field_count_threshold", &p.FieldCountThreshold},
		{"runtime.expression_threshold", &p.ExpressionThreshold},
		{"runtime.compile_threshold", &p.CompileThreshold},
	}
	for _, th := range thresholds {
		f := v.LookupPath(cue.ParsePath(th.path))
		if !f.Exists() {
			continue
		}
		n, err := f.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		*th.dst = int(n)
	}
	return p, nil
}

func stringList(v cue.Value, field string) ([]string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return nil, nil
	}
	iter, err := f.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

func methodTypes(v cue.Value, field string) ([]ir.MethodType, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return nil, nil
	}
	iter, err := f.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []ir.MethodType
	for i := 0; iter.Next(); i++ {
		elem := iter.Value()
		s, err := elem.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		mt, err := ir.ParseMethodType(s)
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: err.Error(),
				Pos:     elem.Pos(),
			}
		}
		out = append(out, mt)
	}
	return out, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
