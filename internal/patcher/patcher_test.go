package patcher

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/frederic-klein/pylibxml2/internal/version"
)

const libxmlC = `static PyObject *
libxml_xmlInputReadCallback(void *context, char *buffer, int len) {
    ret = PyEval_CallMethod(file, (char *) "io_read", (char *) "(i)", len);
    result = PyEval_CallObject(pythonInputCallback, args);
    return PyObject_CallMethod(file, "close", NULL);
}
`

const libxmlCPatched = `static PyObject *
libxml_xmlInputReadCallback(void *context, char *buffer, int len) {
    ret = PyObject_CallMethod(file, (char *) "io_read", (char *) "(i)", len);
    result = PyObject_CallObject(pythonInputCallback, args);
    return PyObject_CallMethod(file, "close", NULL);
}
`

func writeSource(t *testing.T, files map[string]string) string {
	t.Helper()
	src := t.TempDir()
	for name, content := range files {
		path := filepath.Join(src, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return src
}

func TestPythonCallAPI_Transform(t *testing.T) {
	got := PythonCallAPI.Transform([]byte(libxmlC))

	if string(got) != libxmlCPatched {
		t.Errorf("Transform() =\n%s\nwant\n%s", got, libxmlCPatched)
	}
}

func TestPythonCallAPI_Transform_Idempotent(t *testing.T) {
	inputs := []string{libxmlC, libxmlCPatched, "", "PyEval_CallMethodPyEval_CallObject"}

	for _, in := range inputs {
		once := PythonCallAPI.Transform([]byte(in))
		twice := PythonCallAPI.Transform(once)
		if !bytes.Equal(once, twice) {
			t.Errorf("Transform not idempotent for %q:\nonce  %q\ntwice %q", in, once, twice)
		}
	}
}

func TestShim_Apply(t *testing.T) {
	// Arrange
	src := writeSource(t, map[string]string{
		"python/libxml.c": libxmlC,
		"python/types.c":  "PyEval_CallObject",
	})

	// Act
	changed, err := PythonCallAPI.Apply(src)

	// Assert
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !changed {
		t.Error("Apply() should report a change")
	}
	data, _ := os.ReadFile(filepath.Join(src, "python", "libxml.c"))
	if string(data) != libxmlCPatched {
		t.Errorf("libxml.c not patched:\n%s", data)
	}
	other, _ := os.ReadFile(filepath.Join(src, "python", "types.c"))
	if string(other) != "PyEval_CallObject" {
		t.Error("Apply() touched another file")
	}
}

func TestShim_Apply_Twice(t *testing.T) {
	src := writeSource(t, map[string]string{"python/libxml.c": libxmlC})

	if _, err := PythonCallAPI.Apply(src); err != nil {
		t.Fatal(err)
	}
	first, _ := os.ReadFile(filepath.Join(src, "python", "libxml.c"))

	changed, err := PythonCallAPI.Apply(src)

	if err != nil {
		t.Fatalf("second Apply() error = %v", err)
	}
	if changed {
		t.Error("second Apply() should be a no-op")
	}
	second, _ := os.ReadFile(filepath.Join(src, "python", "libxml.c"))
	if !bytes.Equal(first, second) {
		t.Error("second Apply() changed content")
	}
}

func TestShim_Apply_KeepsMode(t *testing.T) {
	src := writeSource(t, map[string]string{"python/libxml.c": libxmlC})
	path := filepath.Join(src, "python", "libxml.c")
	if err := os.Chmod(path, 0640); err != nil {
		t.Fatal(err)
	}

	if _, err := PythonCallAPI.Apply(src); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0640 {
		t.Errorf("mode = %v, want 0640", info.Mode().Perm())
	}
}

func TestShim_Apply_MissingFile(t *testing.T) {
	if _, err := PythonCallAPI.Apply(t.TempDir()); err == nil {
		t.Error("Apply() should fail when python/libxml.c is missing")
	}
}

func TestShim_AppliesTo(t *testing.T) {
	since := version.MustParse("2.9.0")
	until := version.MustParse("2.13.0")
	bounded := Shim{Since: &since, Until: &until}

	tests := []struct {
		shim Shim
		ver  string
		want bool
	}{
		{PythonCallAPI, "2.9.14", true},
		{PythonCallAPI, "2.13.5", true},
		{bounded, "2.8.9", false},
		{bounded, "2.9.0", true},
		{bounded, "2.12.9", true},
		{bounded, "2.13.0", false},
	}

	for _, tt := range tests {
		if got := tt.shim.AppliesTo(version.MustParse(tt.ver)); got != tt.want {
			t.Errorf("AppliesTo(%s) = %v, want %v (since=%v until=%v)", tt.ver, got, tt.want, tt.shim.Since, tt.shim.Until)
		}
	}
}
