package probe

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"

	"github.com/frederic-klein/pylibxml2/internal/runner"
	"github.com/frederic-klein/pylibxml2/internal/runner/runnertest"
)

const sampleOutput = `[config]
_xmlversion = """
extern void xmlCheckVersion(int version);
"""

version = "2.9.14"

with_threads = true
with_iconv = true
with_zlib = false
with_lzma = false
with_icu = true
`

func quietLogger() log.Interface {
	return &log.Logger{Handler: discard.New(), Level: log.DebugLevel}
}

func installHeaders(t *testing.T, root string) {
	t.Helper()
	dir := filepath.Join(root, "libxml2", "libxml")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "tree.h"), []byte("/* tree */\n"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestFindIncludeRoot_FirstMatchWins(t *testing.T) {
	// Arrange
	empty := t.TempDir()
	first := t.TempDir()
	second := t.TempDir()
	installHeaders(t, first)
	installHeaders(t, second)

	// Act
	got, err := FindIncludeRoot([]string{empty, first, second})

	// Assert
	if err != nil {
		t.Fatalf("FindIncludeRoot() error = %v", err)
	}
	if want := filepath.Join(first, "libxml2"); got != want {
		t.Errorf("FindIncludeRoot() = %q, want %q", got, want)
	}

	got, err = FindIncludeRoot([]string{second, first})
	if err != nil {
		t.Fatalf("FindIncludeRoot() error = %v", err)
	}
	if want := filepath.Join(second, "libxml2"); got != want {
		t.Errorf("FindIncludeRoot() reordered = %q, want %q", got, want)
	}
}

func TestFindIncludeRoot_NotFound(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	// a directory named tree.h is not a header
	if err := os.MkdirAll(filepath.Join(a, "libxml2", "libxml", "tree.h"), 0755); err != nil {
		t.Fatal(err)
	}

	_, err := FindIncludeRoot([]string{a, b})

	if !errors.Is(err, ErrHeadersNotFound) {
		t.Fatalf("FindIncludeRoot() error = %v, want ErrHeadersNotFound", err)
	}
	var nf *HeadersNotFoundError
	if !errors.As(err, &nf) || len(nf.Searched) != 2 {
		t.Fatalf("error should list searched dirs, got %v", err)
	}
	for _, dir := range []string{a, b} {
		if !strings.Contains(err.Error(), dir) {
			t.Errorf("error %q should mention %s", err, dir)
		}
	}
}

func TestDefaultSearchPath(t *testing.T) {
	got := DefaultSearchPath("/home/alice")
	want := []string{"/usr/include", "/usr/local/include", "/opt/include", "/include", "/home/alice"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("DefaultSearchPath() = %v, want %v", got, want)
	}

	if got := DefaultSearchPath(""); len(got) != 4 {
		t.Errorf("DefaultSearchPath(\"\") = %v, want 4 entries", got)
	}
}

func TestParseBuildConfig(t *testing.T) {
	cfg, err := ParseBuildConfig([]byte(sampleOutput))

	if err != nil {
		t.Fatalf("ParseBuildConfig() error = %v", err)
	}
	if cfg.Version != "2.9.14" {
		t.Errorf("Version = %q, want 2.9.14", cfg.Version)
	}
	if _, ok := cfg.Get("_xmlversion"); ok {
		t.Error("scratch keys should be dropped")
	}

	want := []Feature{
		{"threads", true},
		{"iconv", true},
		{"zlib", false},
		{"lzma", false},
		{"icu", true},
	}
	got := cfg.Features()
	if len(got) != len(want) {
		t.Fatalf("Features() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Features()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestParseBuildConfig_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"malformed", "[config\nversion = 1"},
		{"no table", `version = "2.9.14"`},
		{"no version", "[config]\nwith_zlib = true\n"},
		{"numeric version", "[config]\nversion = 2\n"},
		{"non-bool feature", "[config]\nversion = \"2.9.14\"\nwith_zlib = \"yes\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseBuildConfig([]byte(tt.input)); err == nil {
				t.Errorf("ParseBuildConfig(%q) should fail", tt.input)
			}
		})
	}
}

func TestProber_Probe(t *testing.T) {
	// Arrange
	scratch := t.TempDir()
	fake := &runnertest.Fake{
		Handler: func(cmd runner.Command) (*runner.Result, error) {
			return &runner.Result{Stdout: []byte(sampleOutput)}, nil
		},
	}
	p := NewProber(fake, "clang", quietLogger())

	// Act
	cfg, err := p.Probe("/usr/include/libxml2", scratch)

	// Assert
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if cfg.Version != "2.9.14" {
		t.Errorf("Version = %q", cfg.Version)
	}
	if len(fake.Calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(fake.Calls))
	}
	call := fake.Calls[0]
	header := filepath.Join(scratch, "libxml2-config.h")
	wantArgs := []string{"-w", "-I", "/usr/include/libxml2", "-E", "-ansi", "-P", header}
	if call.Name != "clang" || strings.Join(call.Args, " ") != strings.Join(wantArgs, " ") {
		t.Errorf("call = %s, want clang %v", call.Command, wantArgs)
	}
	data, err := os.ReadFile(header)
	if err != nil {
		t.Fatalf("header not written: %v", err)
	}
	if !strings.Contains(string(data), "LIBXML_DOTTED_VERSION") {
		t.Error("written header should reference LIBXML_DOTTED_VERSION")
	}
}

func TestProber_Probe_ToolFailure(t *testing.T) {
	fake := &runnertest.Fake{
		Handler: func(cmd runner.Command) (*runner.Result, error) {
			return &runner.Result{}, &runner.ExitError{Tool: cmd.Name, Code: 1, Stderr: "fatal error: libxml/xmlversion.h: No such file"}
		},
	}
	p := NewProber(fake, "cc", quietLogger())

	_, err := p.Probe("/nowhere", t.TempDir())

	var exitErr *runner.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Probe() error = %v, want *runner.ExitError", err)
	}
	if !strings.Contains(err.Error(), "cc exited with status 1") {
		t.Errorf("error %q should surface the tool and status", err)
	}
}

func TestProber_Probe_MalformedOutput(t *testing.T) {
	fake := &runnertest.Fake{
		Handler: func(cmd runner.Command) (*runner.Result, error) {
			return &runner.Result{Stdout: []byte("# 1 \"libxml2-config.h\"\ngarbage")}, nil
		},
	}
	p := NewProber(fake, "cc", quietLogger())

	if _, err := p.Probe("/usr/include/libxml2", t.TempDir()); err == nil {
		t.Error("Probe() should fail on malformed output")
	}
}
