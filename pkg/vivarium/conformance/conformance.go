// Package conformance runs recorded input/output cases against programs.
//
// A suite is a directory holding a tests.txt manifest of test names. Each
// name has a program <name>.py and a case file <name>.json or <name>.yaml
// holding an ordered list of {input: [...], output: [...]} cases. Every case
// runs the program with fresh globals, its input lines fed to input() and
// print output captured, and passes when the captured lines equal output.
package conformance

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sambeau/vivarium/pkg/vivarium/ast"
	verrors "github.com/sambeau/vivarium/pkg/vivarium/errors"
	"github.com/sambeau/vivarium/pkg/vivarium/parser"
	"github.com/sambeau/vivarium/pkg/vivarium/vivarium"
)

// ManifestName is the file listing the tests of a suite, one per line.
const ManifestName = "tests.txt"

// Column width of each side of a mismatch table.
const columnWidth = 30

// Case is one recorded run: the lines fed to input() and the lines print
// must produce.
type Case struct {
	Input  []string `yaml:"input" json:"input"`
	Output []string `yaml:"output" json:"output"`
}

// CaseResult is the outcome of a single case.
type CaseResult struct {
	Index    int // 1-based
	Passed   bool
	Expected []string
	Actual   []string
	Err      error
}

// TestResult is the outcome of one named test.
type TestResult struct {
	Name     string
	Cases    []CaseResult
	Err      error // load or parse failure; no cases ran
	Duration time.Duration
}

// Passed reports whether the test loaded and every case passed.
func (t *TestResult) Passed() bool {
	if t.Err != nil {
		return false
	}
	for _, c := range t.Cases {
		if !c.Passed {
			return false
		}
	}
	return true
}

// Report collects the results of a suite run.
type Report struct {
	Dir     string
	Tests   []*TestResult
	Stopped bool // a failing test stopped the run early
}

// Passed reports whether every test that ran passed.
func (r *Report) Passed() bool {
	for _, t := range r.Tests {
		if !t.Passed() {
			return false
		}
	}
	return true
}

// Counts returns the number of tests, cases and failed cases.
func (r *Report) Counts() (tests, cases, failed int) {
	for _, t := range r.Tests {
		tests++
		if t.Err != nil {
			failed++
		}
		for _, c := range t.Cases {
			cases++
			if !c.Passed {
				failed++
			}
		}
	}
	return tests, cases, failed
}

// LoadManifest reads the test names listed in dir/tests.txt. Blank lines and
// lines starting with # are skipped.
func LoadManifest(dir string) ([]string, error) {
	f, err := os.Open(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}
		names = append(names, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return names, nil
}

// LoadCases reads a case file. JSON is a subset of YAML 1.2, so both formats
// go through the same decoder.
func LoadCases(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading cases: %w", err)
	}
	var cases []Case
	if err := yaml.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return cases, nil
}

// caseFile finds the case file for name, preferring .json.
func caseFile(dir, name string) (string, error) {
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := filepath.Join(dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no case file for test %q", name)
}

// Runner runs conformance suites.
type Runner struct {
	// Out receives progress lines and mismatch tables. Nil discards them.
	Out io.Writer
	// KeepGoing runs every test instead of stopping at the first failure.
	KeepGoing bool
	// Strip lists built-ins removed from each case's globals.
	Strip []string
}

func (r *Runner) printf(format string, args ...any) {
	if r.Out != nil {
		fmt.Fprintf(r.Out, format, args...)
	}
}

// RunSuite runs every test named in dir's manifest, in order.
func (r *Runner) RunSuite(ctx context.Context, dir string) (*Report, error) {
	names, err := LoadManifest(dir)
	if err != nil {
		return nil, err
	}

	report := &Report{Dir: dir}
	r.printf("Running unit tests...\n")
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		result := r.RunTest(ctx, dir, name)
		report.Tests = append(report.Tests, result)
		if !result.Passed() && !r.KeepGoing {
			report.Stopped = true
			return report, nil
		}
	}
	if report.Passed() {
		r.printf("Done!\n")
	}
	return report, nil
}

// RunTest loads and runs a single named test from dir.
func (r *Runner) RunTest(ctx context.Context, dir, name string) *TestResult {
	start := time.Now()
	result := &TestResult{Name: name}
	defer func() { result.Duration = time.Since(start) }()

	r.printf("Running %s\n", name)

	programPath := filepath.Join(dir, name+".py")
	code, err := os.ReadFile(programPath)
	if err != nil {
		result.Err = verrors.New("IO-0001", map[string]any{"Path": programPath, "GoError": err.Error()})
		r.printf("%s\n", result.Err)
		return result
	}
	program, err := parser.Parse(string(code), programPath)
	if err != nil {
		result.Err = err
		r.printf("%s\n", err)
		return result
	}

	path, err := caseFile(dir, name)
	if err != nil {
		result.Err = err
		r.printf("%s\n", err)
		return result
	}
	cases, err := LoadCases(path)
	if err != nil {
		result.Err = err
		r.printf("%s\n", err)
		return result
	}

	for i, c := range cases {
		if ctx.Err() != nil {
			break
		}
		r.printf("Case %d\n", i+1)
		cr := r.runCase(program, programPath, i+1, c)
		result.Cases = append(result.Cases, cr)
		if !cr.Passed {
			break
		}
	}
	return result
}

func (r *Runner) runCase(program ast.Node, filename string, index int, c Case) CaseResult {
	input := c.Input
	if input == nil {
		input = []string{}
	}
	expected := c.Output
	if expected == nil {
		expected = []string{}
	}

	cr := CaseResult{Index: index, Expected: expected}
	env, err := vivarium.NewEnvironment(vivarium.Options{
		Input:    input,
		Strip:    r.Strip,
		Filename: filename,
	})
	if err != nil {
		cr.Err = err
		return cr
	}

	_, err = env.Run(program)
	cr.Actual = env.Output.Lines()
	cr.Err = err

	if err != nil {
		r.printf("Runtime error\n%s\n", err)
		return cr
	}
	if !equalLines(cr.Actual, expected) {
		r.printf("Output does not match!\n")
		for _, line := range SideBySide(cr.Actual, expected) {
			r.printf("%s\n", line)
		}
		return cr
	}
	cr.Passed = true
	return cr
}

func equalLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SideBySide lays actual and expected output out in two columns: actual
// right-aligned, expected left-aligned, separated by "---" where the lines
// differ. The shorter side is padded with empty lines.
func SideBySide(actual, expected []string) []string {
	n := max(len(actual), len(expected))
	lines := make([]string, n)
	for i := range n {
		var a, b string
		if i < len(actual) {
			a = actual[i]
		}
		if i < len(expected) {
			b = expected[i]
		}
		sep := "   "
		if a != b {
			sep = "---"
		}
		lines[i] = fmt.Sprintf("%*s %s %-*s", columnWidth, a, sep, columnWidth, b)
	}
	return lines
}
