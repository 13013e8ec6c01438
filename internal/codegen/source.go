package codegen

import (
	"bytes"
	"fmt"
	"go/format"
	"strings"

	"github.com/roach88/speciate/internal/ir"
	"github.com/roach88/speciate/internal/lform"
	"github.com/roach88/speciate/internal/species"
)

// SourceBackend renders forms as Go functions for ahead-of-time holders.
//
// Generated functions expect three helpers in the holder package:
//
//	recordOf(receiver any) any
//	targetOf(receiver any) any
//	invokeBasic(callee any, args ...any) (any, error)
//
// and the layout types produced by SpeciesSource.
type SourceBackend struct{}

// NewSourceBackend creates a source backend.
func NewSourceBackend() *SourceBackend { return &SourceBackend{} }

// Name implements Backend.
func (b *SourceBackend) Name() string { return "source" }

// Generate implements Backend.
func (b *SourceBackend) Generate(name string, f *lform.Form) (*Unit, error) {
	src, err := formatDecl(renderFunc(LocalName(f), f))
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	u := newUnit(b.Name(), name, f)
	u.Source = src
	return u, nil
}

func renderFunc(fname string, f *lform.Form) string {
	var b strings.Builder
	ret := f.ReturnType()

	fmt.Fprintf(&b, "// %s implements\n//\n//\t%s\n", fname, f)
	fmt.Fprintf(&b, "func %s(", fname)
	for i := 0; i < f.Arity(); i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "a%d %s", i, goType(f.Name(i).Type))
	}
	if ret == ir.V {
		b.WriteString(") error {\n")
	} else {
		fmt.Fprintf(&b, ") (%s, error) {\n", goType(ret))
	}

	fail := "return " + zeroLiteral(ret) + ", err"
	if ret == ir.V {
		fail = "return err"
	}

	for i := f.Arity(); i < f.Len(); i++ {
		n := f.Name(i)
		fn := *n.Fn
		out := fmt.Sprintf("t%d", i)
		switch fn.Op() {
		case lform.OpGetter:
			fmt.Fprintf(&b, "\t%s := recordOf(%s).(*%s).%s\n",
				out, argLabel(f, n.Args[0]), LayoutType(fn.Species()), fieldName(fn.Species(), fn.Field()))
		case lform.OpGetTarget:
			fmt.Fprintf(&b, "\t%s := targetOf(%s)\n", out, argLabel(f, n.Args[0]))
		case lform.OpIdentity:
			fmt.Fprintf(&b, "\t%s := %s\n", out, argLabel(f, n.Args[0]))
		case lform.OpZero:
			if n.Type != ir.V {
				fmt.Fprintf(&b, "\tvar %s %s\n", out, goType(n.Type))
			}
		case lform.OpInvokeBasic:
			labels := make([]string, len(n.Args))
			for j, a := range n.Args {
				labels[j] = argLabel(f, a)
			}
			call := "invokeBasic(" + strings.Join(labels, ", ") + ")"
			if n.Type == ir.V {
				fmt.Fprintf(&b, "\tif _, err := %s; err != nil {\n\t\t%s\n\t}\n", call, fail)
				continue
			}
			fmt.Fprintf(&b, "\tr%d, err := %s\n\tif err != nil {\n\t\t%s\n\t}\n", i, call, fail)
			if n.Type == ir.L {
				fmt.Fprintf(&b, "\t%s := r%d\n", out, i)
			} else {
				fmt.Fprintf(&b, "\t%s := r%d.(%s)\n", out, i, goType(n.Type))
			}
		}
	}

	if ret == ir.V {
		b.WriteString("\treturn nil\n}\n")
	} else {
		fmt.Fprintf(&b, "\treturn %s, nil\n}\n", argLabel(f, f.Result()))
	}
	return b.String()
}

func argLabel(f *lform.Form, i int) string {
	if i < f.Arity() {
		return fmt.Sprintf("a%d", i)
	}
	return fmt.Sprintf("t%d", i)
}

func goType(t ir.BasicType) string {
	switch t {
	case ir.I:
		return "int32"
	case ir.J:
		return "int64"
	case ir.F:
		return "float32"
	case ir.D:
		return "float64"
	default:
		return "any"
	}
}

func zeroLiteral(t ir.BasicType) string {
	if t == ir.L {
		return "nil"
	}
	return "0"
}

// LayoutType returns the Go type name of a species layout.
func LayoutType(s *species.SpeciesData) string {
	if s.Key() == "" {
		return "SimpleHandle"
	}
	return "Species_" + s.Key()
}

// fieldName names field i by its basic type and slot, e.g. I0.
func fieldName(s *species.SpeciesData, i int) string {
	return fmt.Sprintf("%s%d", s.FieldType(i), s.Slot(i))
}

// SpeciesSource renders the Go struct layout of a species.
func SpeciesSource(s *species.SpeciesData) (string, error) {
	var b strings.Builder
	name := LayoutType(s)
	fmt.Fprintf(&b, "// %s is the record layout %s for signature key %q.\n", name, s.Name(), s.Key())
	fmt.Fprintf(&b, "type %s struct {\n", name)
	for i := 0; i < s.FieldCount(); i++ {
		fmt.Fprintf(&b, "\t%s %s\n", fieldName(s, i), goType(s.FieldType(i)))
	}
	b.WriteString("}\n")
	src, err := formatDecl(b.String())
	if err != nil {
		return "", ir.NewBackendError("species source", s.Key(), err)
	}
	return src, nil
}

// formatDecl gofmts a single top-level declaration.
func formatDecl(decl string) (string, error) {
	const header = "package holder\n\n"
	out, err := format.Source([]byte(header + decl))
	if err != nil {
		return "", err
	}
	return string(bytes.TrimPrefix(out, []byte(header))), nil
}

// RenderFile assembles layouts and unit sources into one gofmt'ed Go
// file in package pkg.
func RenderFile(pkg string, layouts []string, units []*Unit) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString("// Code generated by speciate. DO NOT EDIT.\n\n")
	fmt.Fprintf(&b, "package %s\n", pkg)
	for _, l := range layouts {
		b.WriteByte('\n')
		b.WriteString(l)
	}
	for _, u := range units {
		if u.Source == "" {
			continue
		}
		b.WriteByte('\n')
		b.WriteString(u.Source)
	}
	out, err := format.Source(b.Bytes())
	if err != nil {
		return nil, ir.NewBackendError("render file", pkg, err)
	}
	return out, nil
}
