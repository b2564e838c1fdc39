package domain

import (
	"go/build"
	"strings"
	"testing"
)

// Domain types are shared by every layer, so the package may only depend on
// the standard library.
func TestDomainImportsOnlyStdlib(t *testing.T) {
	pkg, err := build.Default.ImportDir(".", 0)
	if err != nil {
		t.Fatalf("import dir: %v", err)
	}
	for _, imp := range pkg.Imports {
		first, _, _ := strings.Cut(imp, "/")
		if strings.Contains(first, ".") || strings.HasPrefix(imp, "studentrecords/") {
			t.Errorf("domain package must only import the standard library, found %s", imp)
		}
	}
}
