package core

import (
	"fmt"
	"go/ast"
	"go/types"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"golang.org/x/tools/go/packages"
)

func TestServiceStructContract(t *testing.T) {
	pkg := loadCorePackage(t)

	obj := pkg.Types.Scope().Lookup("Service")
	if obj == nil {
		t.Fatalf("Service type not found in package")
	}
	structType, ok := obj.Type().Underlying().(*types.Struct)
	if !ok {
		t.Fatalf("Service is not a struct")
	}

	qualifier := func(p *types.Package) string {
		if p == nil {
			return ""
		}
		return p.Path()
	}
	fields := make(map[string]string, structType.NumFields())
	for i := 0; i < structType.NumFields(); i++ {
		field := structType.Field(i)
		fields[field.Name()] = types.TypeString(field.Type(), qualifier)
	}

	required := map[string]string{
		"store":     "studentrecords/pkg/domain.PersistentStore",
		"admission": "*studentrecords/pkg/domain.RulesEngine",
		"clock":     "studentrecords/internal/core.Clock",
		"logger":    "studentrecords/internal/core.Logger",
		"metrics":   "studentrecords/internal/core.MetricsRecorder",
		"tracer":    "studentrecords/internal/core.Tracer",
		"audit":     "studentrecords/internal/core.AuditRecorder",
	}

	var problems []string
	for name, want := range required {
		got, ok := fields[name]
		switch {
		case !ok:
			problems = append(problems, "missing field "+name)
		case got != want:
			problems = append(problems, fmt.Sprintf("%s: want %s, got %s", name, want, got))
		}
	}
	if len(problems) > 0 {
		t.Fatalf("service struct contract violated: %s", strings.Join(problems, "; "))
	}
}

// Exported service operations must be wrapped by run so they are traced and
// measured. Plain accessors and thin delegating queries are exempt.
func TestServiceOperationsUseRun(t *testing.T) {
	pkg := loadCorePackage(t)

	var violations []string
	for _, target := range []string{"service.go", "evaluation.go", "sinks.go", "filter.go"} {
		file := findFile(t, pkg, target)
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv == nil || fn.Body == nil || !ast.IsExported(fn.Name.Name) {
				continue
			}
			recv, ok := serviceReceiverName(fn)
			if !ok || !returnsError(fn) || delegatesToService(fn, recv) {
				continue
			}
			if usesRun(fn, recv) {
				continue
			}
			pos := pkg.Fset.Position(fn.Pos())
			violations = append(violations, fmt.Sprintf("%s:%d %s", filepath.Base(pos.Filename), pos.Line, fn.Name.Name))
		}
	}
	if len(violations) > 0 {
		t.Fatalf("service operations must delegate to run:\n%s", strings.Join(violations, "\n"))
	}
}

var (
	corePkgOnce sync.Once
	corePkg     *packages.Package
	corePkgErr  error
)

func loadCorePackage(t *testing.T) *packages.Package {
	t.Helper()

	corePkgOnce.Do(func() {
		cfg := &packages.Config{
			Mode: packages.NeedName | packages.NeedTypes | packages.NeedSyntax | packages.NeedCompiledGoFiles | packages.NeedFiles,
		}
		pkgs, err := packages.Load(cfg, "studentrecords/internal/core")
		if err != nil {
			corePkgErr = fmt.Errorf("load core package: %w", err)
			return
		}
		for _, pkg := range pkgs {
			if len(pkg.Errors) > 0 {
				corePkgErr = fmt.Errorf("package load errors: %v", pkg.Errors)
				return
			}
			if pkg.PkgPath == "studentrecords/internal/core" {
				corePkg = pkg
				return
			}
		}
		corePkgErr = fmt.Errorf("core package not found in load results")
	})

	if corePkgErr != nil {
		t.Fatalf("core package load: %v", corePkgErr)
	}
	return corePkg
}

func findFile(t *testing.T, pkg *packages.Package, target string) *ast.File {
	t.Helper()
	for _, file := range pkg.Syntax {
		if filepath.Base(pkg.Fset.Position(file.Pos()).Filename) == target {
			return file
		}
	}
	t.Fatalf("failed to locate %s in package", target)
	return nil
}

func serviceReceiverName(fn *ast.FuncDecl) (string, bool) {
	if len(fn.Recv.List) != 1 {
		return "", false
	}
	field := fn.Recv.List[0]
	star, ok := field.Type.(*ast.StarExpr)
	if !ok {
		return "", false
	}
	ident, ok := star.X.(*ast.Ident)
	if !ok || ident.Name != "Service" || len(field.Names) == 0 {
		return "", false
	}
	return field.Names[0].Name, true
}

func returnsError(fn *ast.FuncDecl) bool {
	if fn.Type.Results == nil {
		return false
	}
	for _, res := range fn.Type.Results.List {
		if ident, ok := res.Type.(*ast.Ident); ok && ident.Name == "error" {
			return true
		}
	}
	return false
}

// delegatesToService reports whether fn is a single return of another method
// on the same receiver.
func delegatesToService(fn *ast.FuncDecl, recv string) bool {
	stmts := fn.Body.List
	if len(stmts) == 0 {
		return false
	}
	ret, ok := stmts[len(stmts)-1].(*ast.ReturnStmt)
	if !ok || len(ret.Results) != 1 {
		return false
	}
	return isRecvCall(ret.Results[0], recv, "")
}

func usesRun(fn *ast.FuncDecl, recv string) bool {
	found := false
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		if expr, ok := n.(ast.Expr); ok && isRecvCall(expr, recv, "run") {
			found = true
			return false
		}
		return true
	})
	return found
}

func isRecvCall(expr ast.Expr, recv, method string) bool {
	call, ok := expr.(*ast.CallExpr)
	if !ok {
		return false
	}
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	ident, ok := sel.X.(*ast.Ident)
	if !ok || ident.Name != recv {
		return false
	}
	return method == "" || sel.Sel.Name == method
}
