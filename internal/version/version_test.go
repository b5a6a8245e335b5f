package version

import "testing"

func TestVersionDefaults(t *testing.T) {
	if Version == "" {
		t.Error("Version should have a default value")
	}
	// GitCommit, GitMessage and BuildDate stay empty unless set via
	// -ldflags.
	if GitCommit != "" || GitMessage != "" || BuildDate != "" {
		t.Errorf("build metadata should default empty, got %q %q %q", GitCommit, GitMessage, BuildDate)
	}
}

func TestVersionOverride(t *testing.T) {
	orig := Version
	defer func() { Version = orig }()

	Version = "1.2.3"
	if Version != "1.2.3" {
		t.Errorf("Version = %q, want %q", Version, "1.2.3")
	}
}
