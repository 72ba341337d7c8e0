package codegen

import (
	"fmt"
	"go/ast"
	"go/token"
	"math"
	"strconv"

	"github.com/san-kum/sphstep/internal/device"
)

// hostKernel builds the host fallback for one stage: the validated AST
// evaluated once per particle index. Argument layout matches the generated
// kernel signature: field buffers in order, then t, dt.
func (s *stageIR) hostKernel() (device.HostKernelFunc, int) {
	argc := len(s.fields) + 2
	fn := func(n int, args []any) error {
		if len(args) != argc {
			return fmt.Errorf("%w: %s wants %d args, got %d", device.ErrArgCount, s.name, argc, len(args))
		}
		env := &evalEnv{
			bufs:   make(map[string]device.Buffer, len(s.fields)),
			locals: make(map[string]float64),
		}
		for i, f := range s.fields {
			buf, ok := args[i].(device.Buffer)
			if !ok {
				return fmt.Errorf("codegen: argument %d for %s is %T, want device.Buffer", i, f, args[i])
			}
			env.bufs[f] = buf
		}
		var ok bool
		if env.t, ok = args[argc-2].(float64); !ok {
			return fmt.Errorf("codegen: scalar t is %T, want float64", args[argc-2])
		}
		if env.dt, ok = args[argc-1].(float64); !ok {
			return fmt.Errorf("codegen: scalar dt is %T, want float64", args[argc-1])
		}
		for i := 0; i < n; i++ {
			env.idx = i
			for _, stmt := range s.stmts {
				if err := evalStmt(stmt, env); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return fn, argc
}

type evalEnv struct {
	bufs   map[string]device.Buffer
	locals map[string]float64
	t, dt  float64
	idx    int
}

func evalStmt(stmt ast.Stmt, env *evalEnv) error {
	switch st := stmt.(type) {
	case *ast.AssignStmt:
		v, err := evalExpr(st.Rhs[0], env)
		if err != nil {
			return err
		}
		switch lhs := st.Lhs[0].(type) {
		case *ast.IndexExpr:
			buf := env.bufs[lhs.X.(*ast.Ident).Name]
			fidx, err := evalExpr(lhs.Index, env)
			if err != nil {
				return err
			}
			i := int(fidx)
			buf.Set(i, applyOp(st.Tok, buf.Get(i), v))
		case *ast.Ident:
			env.locals[lhs.Name] = applyOp(st.Tok, env.locals[lhs.Name], v)
		}
		return nil
	case *ast.IfStmt:
		cond, err := evalExpr(st.Cond, env)
		if err != nil {
			return err
		}
		if cond != 0 {
			return evalBlock(st.Body.List, env)
		}
		switch el := st.Else.(type) {
		case *ast.BlockStmt:
			return evalBlock(el.List, env)
		case *ast.IfStmt:
			return evalStmt(el, env)
		}
		return nil
	}
	return fmt.Errorf("codegen: unexpected statement %T at eval time", stmt)
}

func evalBlock(stmts []ast.Stmt, env *evalEnv) error {
	for _, stmt := range stmts {
		if err := evalStmt(stmt, env); err != nil {
			return err
		}
	}
	return nil
}

func applyOp(tok token.Token, cur, v float64) float64 {
	switch tok {
	case token.ADD_ASSIGN:
		return cur + v
	case token.SUB_ASSIGN:
		return cur - v
	case token.MUL_ASSIGN:
		return cur * v
	case token.QUO_ASSIGN:
		return cur / v
	}
	return v
}

func evalExpr(expr ast.Expr, env *evalEnv) (float64, error) {
	switch e := expr.(type) {
	case *ast.Ident:
		switch e.Name {
		case "t":
			return env.t, nil
		case "dt":
			return env.dt, nil
		case "d_idx":
			return float64(env.idx), nil
		}
		return env.locals[e.Name], nil
	case *ast.BasicLit:
		return strconv.ParseFloat(e.Value, 64)
	case *ast.IndexExpr:
		buf := env.bufs[e.X.(*ast.Ident).Name]
		fidx, err := evalExpr(e.Index, env)
		if err != nil {
			return 0, err
		}
		return buf.Get(int(fidx)), nil
	case *ast.ParenExpr:
		return evalExpr(e.X, env)
	case *ast.UnaryExpr:
		v, err := evalExpr(e.X, env)
		return -v, err
	case *ast.BinaryExpr:
		x, err := evalExpr(e.X, env)
		if err != nil {
			return 0, err
		}
		y, err := evalExpr(e.Y, env)
		if err != nil {
			return 0, err
		}
		return applyBinary(e.Op, x, y), nil
	case *ast.CallExpr:
		args := make([]float64, len(e.Args))
		for i, arg := range e.Args {
			v, err := evalExpr(arg, env)
			if err != nil {
				return 0, err
			}
			args[i] = v
		}
		return applyBuiltin(e.Fun.(*ast.Ident).Name, args), nil
	}
	return 0, fmt.Errorf("codegen: unexpected expression %T at eval time", expr)
}

func applyBinary(op token.Token, x, y float64) float64 {
	switch op {
	case token.ADD:
		return x + y
	case token.SUB:
		return x - y
	case token.MUL:
		return x * y
	case token.QUO:
		return x / y
	case token.LSS:
		return boolVal(x < y)
	case token.LEQ:
		return boolVal(x <= y)
	case token.GTR:
		return boolVal(x > y)
	case token.GEQ:
		return boolVal(x >= y)
	case token.EQL:
		return boolVal(x == y)
	case token.NEQ:
		return boolVal(x != y)
	case token.LAND:
		return boolVal(x != 0 && y != 0)
	case token.LOR:
		return boolVal(x != 0 || y != 0)
	}
	return 0
}

func applyBuiltin(name string, args []float64) float64 {
	switch name {
	case "sqrt":
		return math.Sqrt(args[0])
	case "abs":
		return math.Abs(args[0])
	case "sin":
		return math.Sin(args[0])
	case "cos":
		return math.Cos(args[0])
	case "exp":
		return math.Exp(args[0])
	case "pow":
		return math.Pow(args[0], args[1])
	case "min":
		return math.Min(args[0], args[1])
	case "max":
		return math.Max(args[0], args[1])
	case "floor":
		return math.Floor(args[0])
	}
	return 0
}

func boolVal(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
