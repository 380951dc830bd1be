package httpx

import (
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

// defaultClientHelpers are net/http identifiers that go through
// http.DefaultClient, which has no timeouts.
var defaultClientHelpers = []string{"DefaultClient", "Get", "Head", "Post", "PostForm"}

func TestNoDefaultClientUsage(t *testing.T) {
	repoRoot := filepath.Clean(filepath.Join("..", "..", ".."))

	var violations []string
	fset := token.NewFileSet()

	for _, root := range []string{filepath.Join(repoRoot, "internal"), filepath.Join(repoRoot, "cmd")} {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
				return nil
			}

			file, parseErr := parser.ParseFile(fset, path, nil, parser.SkipObjectResolution)
			if parseErr != nil {
				return parseErr
			}
			ast.Inspect(file, func(n ast.Node) bool {
				sel, ok := n.(*ast.SelectorExpr)
				if !ok {
					return true
				}
				if ident, ok := sel.X.(*ast.Ident); ok && ident.Name == "http" && slices.Contains(defaultClientHelpers, sel.Sel.Name) {
					violations = append(violations, fset.Position(sel.Pos()).String()+": http."+sel.Sel.Name)
				}
				return true
			})
			return nil
		})
		if err != nil {
			t.Fatalf("scan %s: %v", root, err)
		}
	}

	if len(violations) > 0 {
		slices.Sort(violations)
		t.Fatalf("http.DefaultClient has no timeouts; use httpx.NewClient instead:\n%s", strings.Join(violations, "\n"))
	}
}
