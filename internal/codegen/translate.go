// Package codegen translates stepper stage bodies into device kernel source.
//
// Stage bodies are written in a small Go subset: assignments, if/else,
// arithmetic, and a fixed set of math builtins over destination fields
// (d_<field>[d_idx]) and the scalars t and dt. Each body is parsed and
// validated once per stepper variant; one kernel is then emitted per
// (stage, destination), binding the destination's registered field types.
// Steppers carry no instance state, so kernels pass a 0 sentinel where a
// stepper struct would otherwise go.
package codegen

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"sort"
	"strings"

	"github.com/san-kum/sphstep/internal/device"
	"github.com/san-kum/sphstep/internal/steppers"
)

// TypeRegistry answers the numeric type bound to a destination field.
type TypeRegistry interface {
	FieldType(dest, field string) (device.DType, error)
}

// CompileError is a fatal translation failure. It identifies the offending
// variant and, when known, the destination and stage.
type CompileError struct {
	Variant string
	Dest    string
	Stage   string
	Detail  string
}

func (e *CompileError) Error() string {
	where := "variant " + e.Variant
	if e.Dest != "" {
		where += ", destination " + e.Dest
	}
	if e.Stage != "" {
		where += ", " + e.Stage
	}
	return fmt.Sprintf("codegen: %s: %s", where, e.Detail)
}

// KernelEntry describes one generated kernel: its (stage, destination) key,
// entry point name, and buffer arguments in signature order. Entries are
// immutable once a Module is built.
type KernelEntry struct {
	Stage  string
	Dest   string
	Kernel string
	Fields []string
}

// Module is one translated kernel set: the full device source plus host
// fallbacks. It implements device.Source.
type Module struct {
	text    string
	entries []KernelEntry
	hosts   map[string]hostEntry
}

type hostEntry struct {
	fn   device.HostKernelFunc
	argc int
}

func (m *Module) Text() string { return m.text }

// Entries returns the kernel table, ordered by destination then stage order.
func (m *Module) Entries() []KernelEntry { return m.entries }

func (m *Module) EntryPoints() []string {
	names := make([]string, len(m.entries))
	for i, e := range m.entries {
		names[i] = e.Kernel
	}
	return names
}

func (m *Module) HostKernel(name string) (device.HostKernelFunc, int, bool) {
	h, ok := m.hosts[name]
	if !ok {
		return nil, 0, false
	}
	return h.fn, h.argc, true
}

type stageIR struct {
	name   string
	stmts  []ast.Stmt
	fields []string // first-appearance order; fixes the kernel signature
}

type variantIR struct {
	name   string
	stages []*stageIR
	code   string // device functions, emitted once per variant
}

func (v *variantIR) stage(name string) *stageIR {
	for _, s := range v.stages {
		if s.name == name {
			return s
		}
	}
	return nil
}

// Translator generates kernel source for every (stage, destination) pair.
// Variant bodies are translated once and cached, so repeated Translate calls
// with identical inputs produce byte-identical source.
type Translator struct {
	types     TypeRegistry
	precision device.Precision
	variants  map[string]*variantIR
}

func NewTranslator(types TypeRegistry, p device.Precision) *Translator {
	return &Translator{
		types:     types,
		precision: p,
		variants:  make(map[string]*variantIR),
	}
}

const rule = "// ------------------------------------------------------------\n"

// Translate builds the kernel module for a destination → stepper assignment.
func (t *Translator) Translate(dests map[string]steppers.Stepper) (*Module, error) {
	destNames := make([]string, 0, len(dests))
	for name := range dests {
		destNames = append(destNames, name)
	}
	sort.Strings(destNames)

	variantNames := make([]string, 0, len(dests))
	for _, dest := range destNames {
		s := dests[dest]
		if _, ok := t.variants[s.Variant()]; ok {
			continue
		}
		ir, err := t.translateVariant(s)
		if err != nil {
			return nil, err
		}
		t.variants[s.Variant()] = ir
	}
	for name := range t.variants {
		variantNames = append(variantNames, name)
	}
	sort.Strings(variantNames)

	var b strings.Builder
	b.WriteString(rule)
	b.WriteString("// Integrator steppers.\n")
	for _, name := range variantNames {
		used := false
		for _, dest := range destNames {
			if dests[dest].Variant() == name {
				used = true
				break
			}
		}
		if !used {
			continue
		}
		b.WriteString(t.variants[name].code)
	}

	mod := &Module{hosts: make(map[string]hostEntry)}
	for _, dest := range destNames {
		ir := t.variants[dests[dest].Variant()]
		b.WriteString(rule)
		b.WriteString("// Steppers for " + dest + "\n")
		for _, stage := range ir.stages {
			kernel := stage.name + "_" + dest
			src, err := t.emitKernel(ir, stage, dest, kernel)
			if err != nil {
				return nil, err
			}
			b.WriteString(src)
			fn, argc := stage.hostKernel()
			fields := make([]string, len(stage.fields))
			for i, f := range stage.fields {
				fields[i] = strings.TrimPrefix(f, "d_")
			}
			mod.entries = append(mod.entries, KernelEntry{
				Stage:  stage.name,
				Dest:   dest,
				Kernel: kernel,
				Fields: fields,
			})
			mod.hosts[kernel] = hostEntry{fn: fn, argc: argc}
		}
	}
	b.WriteString(rule)
	mod.text = b.String()
	return mod, nil
}

func (t *Translator) translateVariant(s steppers.Stepper) (*variantIR, error) {
	ir := &variantIR{name: s.Variant()}
	for _, stage := range s.Stages() {
		stmts, err := parseStmts(stage.Body)
		if err != nil {
			return nil, &CompileError{Variant: ir.name, Stage: stage.Name, Detail: err.Error()}
		}
		sir := &stageIR{name: stage.Name, stmts: stmts}
		if detail := checkStage(sir); detail != "" {
			return nil, &CompileError{Variant: ir.name, Stage: stage.Name, Detail: detail}
		}
		ir.stages = append(ir.stages, sir)
	}
	ir.code = emitVariant(ir, t.precision)
	return ir, nil
}

func parseStmts(body string) ([]ast.Stmt, error) {
	src := "package p\nfunc _() {\n" + body + "\n}"
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "stage.go", src, 0)
	if err != nil {
		return nil, err
	}
	fn := file.Decls[0].(*ast.FuncDecl)
	return fn.Body.List, nil
}

// builtins maps the allowed call names to their OpenCL C spellings.
var builtins = map[string]string{
	"sqrt":  "sqrt",
	"abs":   "fabs",
	"sin":   "sin",
	"cos":   "cos",
	"exp":   "exp",
	"pow":   "pow",
	"min":   "fmin",
	"max":   "fmax",
	"floor": "floor",
}

// checkStage validates a parsed stage body against the supported subset and
// collects field arguments in first-appearance order. It returns an error
// detail string, or "" when the body is valid.
func checkStage(s *stageIR) string {
	c := &checker{
		stage:  s,
		seen:   make(map[string]bool),
		locals: make(map[string]bool),
	}
	for _, stmt := range s.stmts {
		if detail := c.stmt(stmt); detail != "" {
			return detail
		}
	}
	return ""
}

type checker struct {
	stage  *stageIR
	seen   map[string]bool
	locals map[string]bool
}

func (c *checker) stmt(stmt ast.Stmt) string {
	switch st := stmt.(type) {
	case *ast.AssignStmt:
		if len(st.Lhs) != 1 || len(st.Rhs) != 1 {
			return "multiple assignment is not supported"
		}
		switch st.Tok {
		case token.ASSIGN, token.DEFINE, token.ADD_ASSIGN, token.SUB_ASSIGN,
			token.MUL_ASSIGN, token.QUO_ASSIGN:
		default:
			return fmt.Sprintf("unsupported assignment operator %q", st.Tok)
		}
		if detail := c.expr(st.Rhs[0]); detail != "" {
			return detail
		}
		switch lhs := st.Lhs[0].(type) {
		case *ast.IndexExpr:
			if st.Tok == token.DEFINE {
				return "cannot declare a field with :="
			}
			return c.expr(lhs)
		case *ast.Ident:
			if lhs.Name == "t" || lhs.Name == "dt" || lhs.Name == "d_idx" {
				return fmt.Sprintf("cannot assign to %s", lhs.Name)
			}
			if strings.HasPrefix(lhs.Name, "d_") {
				return fmt.Sprintf("field %s must be indexed with [d_idx]", lhs.Name)
			}
			if st.Tok == token.DEFINE {
				c.locals[lhs.Name] = true
				return ""
			}
			if !c.locals[lhs.Name] {
				return fmt.Sprintf("assignment to undeclared local %s", lhs.Name)
			}
			return ""
		default:
			return fmt.Sprintf("unsupported assignment target %T", st.Lhs[0])
		}
	case *ast.IfStmt:
		if st.Init != nil {
			return "if statements with init clauses are not supported"
		}
		if detail := c.expr(st.Cond); detail != "" {
			return detail
		}
		for _, inner := range st.Body.List {
			if detail := c.stmt(inner); detail != "" {
				return detail
			}
		}
		if st.Else != nil {
			switch el := st.Else.(type) {
			case *ast.BlockStmt:
				for _, inner := range el.List {
					if detail := c.stmt(inner); detail != "" {
						return detail
					}
				}
			case *ast.IfStmt:
				return c.stmt(el)
			}
		}
		return ""
	default:
		return fmt.Sprintf("unsupported construct %T", stmt)
	}
}

func (c *checker) expr(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.Ident:
		switch e.Name {
		case "t", "dt", "d_idx":
			return ""
		}
		if strings.HasPrefix(e.Name, "d_") {
			return fmt.Sprintf("field %s must be indexed with [d_idx]", e.Name)
		}
		if !c.locals[e.Name] {
			return fmt.Sprintf("unknown identifier %s", e.Name)
		}
		return ""
	case *ast.BasicLit:
		if e.Kind != token.INT && e.Kind != token.FLOAT {
			return fmt.Sprintf("unsupported literal %s", e.Value)
		}
		return ""
	case *ast.IndexExpr:
		ident, ok := e.X.(*ast.Ident)
		if !ok || !strings.HasPrefix(ident.Name, "d_") || ident.Name == "d_idx" {
			return "only destination fields may be indexed"
		}
		if !c.seen[ident.Name] {
			c.seen[ident.Name] = true
			c.stage.fields = append(c.stage.fields, ident.Name)
		}
		return c.expr(e.Index)
	case *ast.BinaryExpr:
		switch e.Op {
		case token.ADD, token.SUB, token.MUL, token.QUO,
			token.LSS, token.LEQ, token.GTR, token.GEQ, token.EQL, token.NEQ,
			token.LAND, token.LOR:
		default:
			return fmt.Sprintf("unsupported operator %q", e.Op)
		}
		if detail := c.expr(e.X); detail != "" {
			return detail
		}
		return c.expr(e.Y)
	case *ast.UnaryExpr:
		if e.Op != token.SUB {
			return fmt.Sprintf("unsupported unary operator %q", e.Op)
		}
		return c.expr(e.X)
	case *ast.ParenExpr:
		return c.expr(e.X)
	case *ast.CallExpr:
		ident, ok := e.Fun.(*ast.Ident)
		if !ok {
			return "only builtin math calls are supported"
		}
		if _, ok := builtins[ident.Name]; !ok {
			return fmt.Sprintf("unknown builtin %s", ident.Name)
		}
		for _, arg := range e.Args {
			if detail := c.expr(arg); detail != "" {
				return detail
			}
		}
		return ""
	default:
		return fmt.Sprintf("unsupported construct %T", expr)
	}
}
