package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
)

func quietLogger() log.Interface {
	return &log.Logger{Handler: discard.New(), Level: log.DebugLevel}
}

func TestWorkspace_Layout(t *testing.T) {
	ws, err := NewIn(t.TempDir(), false, quietLogger())
	if err != nil {
		t.Fatalf("NewIn() error = %v", err)
	}
	defer ws.Release()

	if !strings.HasPrefix(filepath.Base(ws.Root), "python-libxml2.") {
		t.Errorf("Root = %q, want python-libxml2. prefix", ws.Root)
	}
	if ws.Src() != filepath.Join(ws.Root, "src") ||
		ws.Build() != filepath.Join(ws.Root, "build") ||
		ws.Install() != filepath.Join(ws.Root, "install") {
		t.Errorf("unexpected layout: %s %s %s", ws.Src(), ws.Build(), ws.Install())
	}
}

func TestWorkspace_Release(t *testing.T) {
	ws, err := NewIn(t.TempDir(), false, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(ws.Install(), 0755); err != nil {
		t.Fatal(err)
	}

	if err := ws.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	if _, err := os.Stat(ws.Root); !os.IsNotExist(err) {
		t.Errorf("workspace still exists after Release(): %v", err)
	}
}

func TestWorkspace_Release_Retained(t *testing.T) {
	ws, err := NewIn(t.TempDir(), true, quietLogger())
	if err != nil {
		t.Fatal(err)
	}

	if err := ws.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	if _, err := os.Stat(ws.Root); err != nil {
		t.Errorf("retained workspace was removed: %v", err)
	}
	if !ws.Retained() {
		t.Error("Retained() = false")
	}
}
