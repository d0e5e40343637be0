// ABOUTME: Tests for version command
// ABOUTME: Verifies version info display and SetVersion functionality

package commands

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewVersionCmd(t *testing.T) {
	cmd := NewVersionCmd()

	if cmd.Use != "version" {
		t.Errorf("Use = %q, want %q", cmd.Use, "version")
	}

	if cmd.Short == "" {
		t.Error("Short description should not be empty")
	}
}

func saveVersion(t *testing.T) {
	t.Helper()
	original := versionInfo
	t.Cleanup(func() { versionInfo = original })
}

func TestVersionCmd_Output(t *testing.T) {
	saveVersion(t)
	SetVersion("1.2.3", "abc123", "2026-01-31")

	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	expectedParts := []string{
		"finrag 1.2.3",
		"Commit: abc123",
		"Built:  2026-01-31",
	}

	for _, expected := range expectedParts {
		if !strings.Contains(out, expected) {
			t.Errorf("Output should contain %q, got:\n%s", expected, out)
		}
	}
}

func TestVersionCmd_JSON(t *testing.T) {
	saveVersion(t)
	SetVersion("2.0.0", "deadbeef", "2026-06-15")

	out, err := execute(t, "--format", "json", "version")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var info VersionInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if info.Version != "2.0.0" || info.Commit != "deadbeef" {
		t.Errorf("got %+v", info)
	}
}

func TestSetVersion(t *testing.T) {
	saveVersion(t)

	testCases := []struct {
		version string
		commit  string
		date    string
	}{
		{"1.0.0", "deadbeef", "2026-01-01"},
		{"dev", "none", "unknown"},
		{"2.0.0-beta", "1234567890abcdef", "2026-06-15T10:30:00Z"},
	}

	for _, tc := range testCases {
		t.Run(tc.version, func(t *testing.T) {
			SetVersion(tc.version, tc.commit, tc.date)

			if versionInfo.Version != tc.version {
				t.Errorf("Version = %q, want %q", versionInfo.Version, tc.version)
			}
			if versionInfo.Commit != tc.commit {
				t.Errorf("Commit = %q, want %q", versionInfo.Commit, tc.commit)
			}
			if versionInfo.Date != tc.date {
				t.Errorf("Date = %q, want %q", versionInfo.Date, tc.date)
			}
		})
	}
}

func TestVersionCmd_ExtraArgsIgnored(t *testing.T) {
	cmd := NewVersionCmd()
	var output bytes.Buffer
	cmd.SetOut(&output)
	cmd.SetErr(&output)
	cmd.SetArgs([]string{"extra", "args"})

	_ = cmd.Execute()

	if !strings.Contains(output.String(), "finrag") {
		t.Error("Version output should still be produced with extra args")
	}
}
