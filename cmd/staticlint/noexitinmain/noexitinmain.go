// Package noexitinmain reports calls that terminate the process from
// main.main: os.Exit and the log.Fatal family. Both skip deferred calls,
// so the service would exit without closing its store or flushing logs.
package noexitinmain

import (
	"go/ast"
	"go/types"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/analysis"
)

var Analyzer = &analysis.Analyzer{
	Name: "noexitinmain",
	Doc:  "prohibits os.Exit and log.Fatal* in main.main",
	Run:  run,
}

// forbidden maps a package path to the function names that must not be
// called from main.main.
var forbidden = map[string]map[string]bool{
	"os":  {"Exit": true},
	"log": {"Fatal": true, "Fatalf": true, "Fatalln": true},
}

func run(pass *analysis.Pass) (interface{}, error) {
	if pass.Pkg.Name() != "main" {
		return nil, nil
	}

	for _, file := range pass.Files {
		if isGoBuildCacheFile(pass.Fset.File(file.Pos()).Name()) {
			continue
		}

		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Name.Name != "main" || fn.Recv != nil || fn.Body == nil {
				continue
			}

			ast.Inspect(fn.Body, func(n ast.Node) bool {
				call, ok := n.(*ast.CallExpr)
				if !ok {
					return true
				}
				sel, ok := call.Fun.(*ast.SelectorExpr)
				if !ok {
					return true
				}
				callee, ok := pass.TypesInfo.Uses[sel.Sel].(*types.Func)
				if !ok || callee.Pkg() == nil {
					return true
				}
				if forbidden[callee.Pkg().Path()][callee.Name()] {
					pass.Reportf(call.Pos(), "avoid calling %s.%s in main.main", callee.Pkg().Name(), callee.Name())
				}
				return true
			})
		}
	}
	return nil, nil
}

func isGoBuildCacheFile(path string) bool {
	path = filepath.ToSlash(path)
	return strings.Contains(path, "/go-build/")
}
