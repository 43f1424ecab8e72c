package cmd

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
)

func writeProgram(t *testing.T, name string, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// Run the root command with the given arguments and input, returning what
// it wrote to standard output.
func execute(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	cfgFile, logLevel, traceOpt, searchPath = "", "warn", "N", nil
	for _, flags := range []*pflag.FlagSet{rootCmd.PersistentFlags(), runCmd.Flags()} {
		flags.VisitAll(func(f *pflag.Flag) { f.Changed = false })
	}
	out := &bytes.Buffer{}
	rootCmd.SetArgs(args)
	rootCmd.SetIn(strings.NewReader(input))
	rootCmd.SetOut(out)
	rootCmd.SetErr(&bytes.Buffer{})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRun(t *testing.T) {
	testCases := []struct {
		name    string
		file    string
		program string
		args    []string
		input   string
		exp     []string
	}{
		{"Source", "hello.rex", "parse arg w\nsay 'hello' w", []string{"big", "world"}, "", []string{"hello big world"}},
		{"NoArguments", "plain.rex", "say arg()", nil, "", []string{"0"}},
		{"Pull", "ask.rex", "pull answer\nsay 'got' answer", nil, "yes\n", []string{"got YES"}},
		{
			"Listing",
			"greet.yaml",
			"name: greet\nclauses:\n  - say 'listed'\n  - do: {control: i, from: 1, to: 2, body: [say i]}\n",
			nil,
			"",
			[]string{"listed", "1", "2"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeProgram(t, tc.file, tc.program)
			out, err := execute(t, tc.input, append([]string{"run", path}, tc.args...)...)
			if err != nil {
				t.Fatalf("Expected no error, got %v instead", err)
			}
			lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
			if diff := cmp.Diff(tc.exp, lines); diff != "" {
				t.Errorf("Output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRunExitCode(t *testing.T) {
	path := writeProgram(t, "three.rex", "return 3")
	_, err := execute(t, "", "run", path)
	var code exitCode
	if !errors.As(err, &code) || code != 3 {
		t.Errorf("Expected %v, got %v instead", exitCode(3), err)
	}

	path = writeProgram(t, "zero.rex", "return 0")
	if _, err := execute(t, "", "run", path); err != nil {
		t.Errorf("Expected no error, got %v instead", err)
	}
}

func TestRunConditionExitCode(t *testing.T) {
	path := writeProgram(t, "bad.rex", "x = 1 + 'a'")
	_, err := execute(t, "", "run", path)
	var code exitCode
	if !errors.As(err, &code) || code != -41 {
		t.Errorf("Expected %v, got %v instead", exitCode(-41), err)
	}
}

func TestRunSearchPath(t *testing.T) {
	lib := t.TempDir()
	if err := os.WriteFile(filepath.Join(lib, "twice.rex"), []byte("arg n\nreturn n * 2"), 0o644); err != nil {
		t.Fatal(err)
	}
	path := writeProgram(t, "main.rex", "say twice(21)")
	out, err := execute(t, "", "run", "--path", lib, path)
	if err != nil {
		t.Fatalf("Expected no error, got %v instead", err)
	}
	if out != "42\n" {
		t.Errorf("Expected %q, got %q instead", "42\n", out)
	}
}

func TestRunSystemCommand(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no shell available")
	}
	path := writeProgram(t, "shell.rex", "'echo from shell'\nsay rc\n'exit 4'\nsay rc")
	out, err := execute(t, "", "run", path)
	if err != nil {
		t.Fatalf("Expected no error, got %v instead", err)
	}
	exp := []string{"from shell", "0", "4"}
	if diff := cmp.Diff(exp, strings.Split(strings.TrimSuffix(out, "\n"), "\n")); diff != "" {
		t.Errorf("Output mismatch (-want +got):\n%s", diff)
	}
}

func TestRunErrors(t *testing.T) {
	testCases := []struct {
		name string
		args func(t *testing.T) []string
		exp  string
	}{
		{"MissingFile", func(t *testing.T) []string {
			return []string{"run", filepath.Join(t.TempDir(), "absent.rex")}
		}, "absent.rex"},
		{"CompileError", func(t *testing.T) []string {
			return []string{"run", writeProgram(t, "broken.rex", "say 'ok'\nx = (1")}
		}, "line 2"},
		{"BadTrace", func(t *testing.T) []string {
			return []string{"run", "--trace", "Z", writeProgram(t, "t.rex", "nop")}
		}, "trace setting"},
		{"NoProgram", func(t *testing.T) []string {
			return []string{"run"}
		}, "requires at least 1 arg"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := execute(t, "", tc.args(t)...)
			if err == nil || !strings.Contains(err.Error(), tc.exp) {
				t.Errorf("Expected an error containing %q, got %v instead", tc.exp, err)
			}
		})
	}
}

func TestRunConfigFile(t *testing.T) {
	cfg := writeProgram(t, "rexxcore.yaml", "numeric:\n  digits: 4\n")
	path := writeProgram(t, "digits.rex", "say 2 / 3\nsay digits()")
	out, err := execute(t, "", "run", "--config", cfg, path)
	if err != nil {
		t.Fatalf("Expected no error, got %v instead", err)
	}
	if out != "0.6667\n4\n" {
		t.Errorf("Expected %q, got %q instead", "0.6667\n4\n", out)
	}
}

func TestList(t *testing.T) {
	path := writeProgram(t, "listed.rex", "x = 1\nsay x")
	out, err := execute(t, "", "list", path)
	if err != nil {
		t.Fatalf("Expected no error, got %v instead", err)
	}
	if !strings.HasPrefix(out, "LISTED:\n") {
		t.Errorf("Expected the listing to start with the program name, got %q instead", out)
	}
	if !strings.Contains(out, "SAY") {
		t.Errorf("Expected the listing to contain SAY, got %q instead", out)
	}
}
