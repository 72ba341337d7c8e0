package codegen

import (
	"fmt"
	"go/ast"
	"go/token"
	"strings"

	"github.com/san-kum/sphstep/internal/device"
)

// emitVariant renders the device functions for one variant: one function per
// stage, parameters typed with the context precision scalar type. Kernels
// call these with a 0 sentinel in place of a stepper instance.
func emitVariant(ir *variantIR, p device.Precision) string {
	real := p.CType()
	var b strings.Builder
	for _, stage := range ir.stages {
		params := []string{"int self"}
		for _, f := range stage.fields {
			params = append(params, fmt.Sprintf("__global %s* %s", real, f))
		}
		params = append(params, "int d_idx", real+" t", real+" dt")
		fmt.Fprintf(&b, "void %s_%s(%s)\n{\n", ir.name, stage.name, strings.Join(params, ", "))
		for _, stmt := range stage.stmts {
			emitStmt(&b, stmt, real, 1)
		}
		b.WriteString("}\n\n")
	}
	return b.String()
}

// emitKernel renders the per-destination kernel wrapper: buffer parameters
// typed from the destination's registered field types, then t and dt, with a
// one-work-item-per-particle entry point.
func (t *Translator) emitKernel(ir *variantIR, stage *stageIR, dest, kernel string) (string, error) {
	real := t.precision.CType()
	params := make([]string, 0, len(stage.fields)+2)
	for _, f := range stage.fields {
		dt, err := t.types.FieldType(dest, strings.TrimPrefix(f, "d_"))
		if err != nil {
			return "", &CompileError{
				Variant: ir.name,
				Dest:    dest,
				Stage:   stage.name,
				Detail:  fmt.Sprintf("missing type for field %s: %v", f, err),
			}
		}
		params = append(params, fmt.Sprintf("__global %s* %s", dt.CType(), f))
	}
	params = append(params, real+" t", real+" dt")

	args := append([]string{"0"}, stage.fields...)
	args = append(args, "d_idx", "t", "dt")

	var b strings.Builder
	fmt.Fprintf(&b, "__kernel void %s(%s)\n{\n", kernel, strings.Join(params, ", "))
	b.WriteString("    int d_idx = get_global_id(0);\n")
	fmt.Fprintf(&b, "    %s_%s(%s);\n", ir.name, stage.name, strings.Join(args, ", "))
	b.WriteString("}\n\n")
	return b.String(), nil
}

func emitStmt(b *strings.Builder, stmt ast.Stmt, real string, depth int) {
	indent := strings.Repeat("    ", depth)
	switch st := stmt.(type) {
	case *ast.AssignStmt:
		lhs := emitExpr(st.Lhs[0])
		rhs := emitExpr(st.Rhs[0])
		if st.Tok == token.DEFINE {
			fmt.Fprintf(b, "%s%s %s = %s;\n", indent, real, lhs, rhs)
			return
		}
		fmt.Fprintf(b, "%s%s %s %s;\n", indent, lhs, st.Tok, rhs)
	case *ast.IfStmt:
		fmt.Fprintf(b, "%sif (%s) {\n", indent, emitExpr(st.Cond))
		for _, inner := range st.Body.List {
			emitStmt(b, inner, real, depth+1)
		}
		switch el := st.Else.(type) {
		case *ast.BlockStmt:
			fmt.Fprintf(b, "%s} else {\n", indent)
			for _, inner := range el.List {
				emitStmt(b, inner, real, depth+1)
			}
		case *ast.IfStmt:
			fmt.Fprintf(b, "%s} else {\n", indent)
			emitStmt(b, el, real, depth+1)
		}
		fmt.Fprintf(b, "%s}\n", indent)
	}
}

func emitExpr(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.Ident:
		return e.Name
	case *ast.BasicLit:
		return e.Value
	case *ast.IndexExpr:
		return fmt.Sprintf("%s[%s]", emitExpr(e.X), emitExpr(e.Index))
	case *ast.BinaryExpr:
		return fmt.Sprintf("%s %s %s", emitOperand(e.X, e.Op), e.Op, emitOperand(e.Y, e.Op))
	case *ast.UnaryExpr:
		// A nested minus would read as the C -- operator.
		if _, ok := e.X.(*ast.UnaryExpr); ok {
			return "-(" + emitExpr(e.X) + ")"
		}
		return "-" + emitOperand(e.X, token.MUL)
	case *ast.ParenExpr:
		return "(" + emitExpr(e.X) + ")"
	case *ast.CallExpr:
		args := make([]string, len(e.Args))
		for i, arg := range e.Args {
			args[i] = emitExpr(arg)
		}
		name := builtins[e.Fun.(*ast.Ident).Name]
		return fmt.Sprintf("%s(%s)", name, strings.Join(args, ", "))
	}
	return ""
}

// emitOperand parenthesizes a binary child whose operator binds looser than
// its parent, so the C reads the way the Go parsed.
func emitOperand(expr ast.Expr, parent token.Token) string {
	if child, ok := expr.(*ast.BinaryExpr); ok {
		if child.Op.Precedence() < parent.Precedence() {
			return "(" + emitExpr(expr) + ")"
		}
	}
	return emitExpr(expr)
}
