package daemon

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func fakeSystemctl(t *testing.T, fail string) *[]string {
	t.Helper()

	var calls []string
	orig, origPath := systemctl, unitPath
	t.Cleanup(func() { systemctl, unitPath = orig, origPath })

	unitPath = filepath.Join(t.TempDir(), "system", unitName)
	systemctl = func(args ...string) error {
		call := strings.Join(args, " ")
		calls = append(calls, call)
		if call == fail {
			return errors.New("exit status 1")
		}
		return nil
	}
	return &calls
}

func TestRenderUnit(t *testing.T) {
	unit := RenderUnit("/usr/local/bin/tankgauge", "/etc/tankgauge.json", "/run/tankgauge.sock")

	want := "ExecStart=/usr/local/bin/tankgauge daemon --config=/etc/tankgauge.json --daemon-socket=/run/tankgauge.sock\n"
	if !strings.Contains(unit, want) {
		t.Fatalf("unit does not contain %q:\n%s", want, unit)
	}
	if strings.Contains(unit, "/path/to") {
		t.Fatalf("unit still has placeholders:\n%s", unit)
	}
}

func TestInstallUninstall(t *testing.T) {
	calls := fakeSystemctl(t, "")

	if err := install("unit"); err != nil {
		t.Fatalf("install failed: %v", err)
	}
	b, err := os.ReadFile(unitPath)
	if err != nil || string(b) != "unit" {
		t.Fatalf("unexpected unit file %q: %v", b, err)
	}

	if err := Uninstall(); err != nil {
		t.Fatalf("uninstall failed: %v", err)
	}
	if _, err := os.Stat(unitPath); !os.IsNotExist(err) {
		t.Fatalf("unit file should be removed, got %v", err)
	}

	want := []string{
		"daemon-reload",
		"enable --now " + unitName,
		"disable --now " + unitName,
		"daemon-reload",
	}
	if strings.Join(*calls, ",") != strings.Join(want, ",") {
		t.Fatalf("got calls %v, want %v", *calls, want)
	}
}

func TestInstallSystemctlFailure(t *testing.T) {
	fakeSystemctl(t, "enable --now "+unitName)

	if err := install("unit"); err == nil {
		t.Fatalf("expected error when enabling fails")
	}
}

func TestUninstallMissingUnit(t *testing.T) {
	fakeSystemctl(t, "")

	if err := Uninstall(); err != nil {
		t.Fatalf("uninstall without a unit file should succeed: %v", err)
	}
}
