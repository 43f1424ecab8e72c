package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/glossopoeia/rexxcore/runtime"
	"github.com/google/go-cmp/cmp"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, text := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestDirLoader(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"helper.rex": "arg x\nreturn x x",
		"lib.yaml":   "clauses:\n  - say: \"'lib loaded'\"\nroutines:\n  shout:\n    - parse arg s\n    - return s'!'\n",
		"main.yaml":  "clauses:\n  - requires: lib\n  - say: helper('a')\n  - say: shout('hey')\n  - say: shout('again')\n",
	})
	loader, err := NewDirLoader(dir, dir, "")
	if err != nil {
		t.Fatal(err)
	}
	code, err := loader.Load("Main")
	if err != nil {
		t.Fatalf("Expected no error, got %v instead", err)
	}
	if code == nil {
		t.Fatal("Expected main to load")
	}
	if code.Name != "MAIN" {
		t.Errorf("Expected %v, got %v instead", "MAIN", code.Name)
	}

	m, output := newTestManager(t, "", func(opts *runtime.Options) {
		opts.Loader = loader
	})
	if _, err := runCode(t, m, code); err != nil {
		t.Fatalf("Expected no error, got %v instead", err)
	}
	exp := []string{"lib loaded", "A A", "hey!", "again!"}
	if diff := cmp.Diff(exp, output.lines()); diff != "" {
		t.Errorf("Output mismatch (-want +got):\n%s", diff)
	}
}

func TestDirLoaderCaches(t *testing.T) {
	dir := writeFiles(t, map[string]string{"once.rex": "say 'once'"})
	loader, err := NewDirLoader(dir)
	if err != nil {
		t.Fatal(err)
	}
	first, err := loader.Load("ONCE")
	if err != nil {
		t.Fatal(err)
	}
	second, err := loader.Load("once")
	if err != nil {
		t.Fatal(err)
	}
	if first == nil || first != second {
		t.Error("Expected the same compiled code for both loads")
	}
}

func TestDirLoaderMissing(t *testing.T) {
	dir := writeFiles(t, map[string]string{"sub.rex": "nop"})
	loader, err := NewDirLoader(dir)
	if err != nil {
		t.Fatal(err)
	}
	data := []string{"absent", "../sub", filepath.Join(dir, "sub")}

	for _, name := range data {
		t.Run(name, func(t *testing.T) {
			code, err := loader.Load(name)
			if err != nil || code != nil {
				t.Errorf("Expected nothing found, got %v and %v instead", code, err)
			}
		})
	}
}

func TestDirLoaderCompileError(t *testing.T) {
	dir := writeFiles(t, map[string]string{"broken.rex": "say 1\ndo forever"})
	loader, err := NewDirLoader(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := loader.Load("broken"); err == nil {
		t.Error("Expected a compile error")
	}
}

func TestLoadFile(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"plain.rex":  "say 'plain'",
		"named.yml":  "name: custom\nclauses: [nop]\n",
		"broken.yml": "clauses: [\n",
	})
	testCases := []struct {
		file string
		name string
		fail bool
	}{
		{"plain.rex", "PLAIN", false},
		{"named.yml", "custom", false},
		{"broken.yml", "", true},
		{"missing.rex", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.file, func(t *testing.T) {
			code, err := LoadFile(filepath.Join(dir, tc.file))
			if tc.fail {
				if err == nil {
					t.Errorf("Expected an error for %v", tc.file)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v instead", err)
			}
			if code.Name != tc.name {
				t.Errorf("Expected %v, got %v instead", tc.name, code.Name)
			}
		})
	}
}

func TestTranslator(t *testing.T) {
	code, err := Translator{}.Translate("x = 1; say x")
	if err != nil {
		t.Fatalf("Expected no error, got %v instead", err)
	}
	if code.Name != "INTERPRET" || len(code.Instructions) != 2 {
		t.Errorf("Expected a two clause INTERPRET code, got %v with %v clauses instead", code.Name, len(code.Instructions))
	}
	if _, err := (Translator{}).Translate("if"); err == nil {
		t.Error("Expected an error for an incomplete clause")
	}
}
