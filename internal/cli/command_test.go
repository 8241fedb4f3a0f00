package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idelchi/findexec/internal/findexec"
)

//nolint:gochecknoglobals // Test fixture
var elfHeader = []byte{0x7F, 0x45, 0x4C, 0x46, 0x02, 0x01, 0x01, 0x00}

func testCLI() CLI {
	c := New("v1.2.3")
	c.env = findexec.Env{
		Users: findexec.StaticUsers{uint32(os.Getuid()): "tester"}, //nolint:gosec // uid fits
	}

	return c
}

func execute(t *testing.T, c CLI, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	cmd := c.Command()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())

	return stdout.String(), stderr.String(), err
}

func tree(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.out"), elfHeader, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "readme.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "test_bin"), elfHeader, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "nested"), elfHeader, 0o755))

	return root
}

func TestCommand_TextOutput(t *testing.T) {
	root := tree(t)

	stdout, _, err := execute(t, testCLI(), "--exclude", "test", root)
	require.NoError(t, err)

	want := `tester: ["` + filepath.Join(root, "a.out") + `"], amount = 1, size = 8;` + "\n"
	assert.Equal(t, want, stdout)
}

func TestCommand_JSONOutput(t *testing.T) {
	root := tree(t)

	stdout, _, err := execute(t, testCLI(), "-r", "-o", "json", root)
	require.NoError(t, err)

	var groups []struct {
		UID      uint32   `json:"uid"`
		Username string   `json:"username"`
		Files    []string `json:"files"`
		Amount   int      `json:"amount"`
		Size     int64    `json:"size"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &groups))

	require.Len(t, groups, 1)
	assert.Equal(t, "tester", groups[0].Username)
	assert.Equal(t, 3, groups[0].Amount)
	assert.Equal(t, int64(24), groups[0].Size)
	assert.Equal(t, []string{
		filepath.Join(root, "a.out"),
		filepath.Join(root, "test_bin"),
		filepath.Join(root, "sub", "nested"),
	}, groups[0].Files)
}

func TestCommand_ExcludeOwnerAlias(t *testing.T) {
	root := tree(t)

	for _, flag := range []string{"--exclude-user", "--exclude-owner"} {
		stdout, _, err := execute(t, testCLI(), flag, "tester", "-o", "json", root)
		require.NoError(t, err)
		assert.JSONEq(t, "[]", stdout)
	}
}

func TestCommand_EnvironmentOverrides(t *testing.T) {
	root := tree(t)
	t.Setenv("FINDEXEC_RECURSIVELY", "true")
	t.Setenv("FINDEXEC_EXCLUDE", "test")

	stdout, _, err := execute(t, testCLI(), root)
	require.NoError(t, err)
	assert.Contains(t, stdout, "amount = 2")
	assert.Contains(t, stdout, filepath.Join(root, "sub", "nested"))
}

func TestCommand_ConfigFile(t *testing.T) {
	root := tree(t)
	config := filepath.Join(t.TempDir(), "findexec.yaml")
	require.NoError(t, os.WriteFile(config, []byte("recursively: true\noutput: table\n"), 0o644))

	stdout, _, err := execute(t, testCLI(), "--config", config, root)
	require.NoError(t, err)
	assert.Contains(t, stdout, "tester")
	assert.Contains(t, stdout, "Total files:")
	assert.Contains(t, stdout, "3")
}

func TestCommand_Errors(t *testing.T) {
	root := tree(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing target", nil},
		{"too many targets", []string{root, root}},
		{"bad output", []string{"-o", "xml", root}},
		{"bad strategy", []string{"--strategy", "pe", root}},
		{"missing config", []string{"--config", filepath.Join(root, "nope.yaml"), root}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, testCLI(), tt.args...)
			require.Error(t, err)
		})
	}
}

func TestCommand_Version(t *testing.T) {
	stdout, _, err := execute(t, testCLI(), "--version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "v1.2.3")
}

func TestCommand_SkippedEntriesAreLogged(t *testing.T) {
	stdout, stderr, err := execute(t, testCLI(), filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, `"skipped":1`)
}

func TestCommand_SkippedEntriesAreListedAtDebug(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")

	_, stderr, err := execute(t, testCLI(), "--log-level", "debug", missing)
	require.NoError(t, err)
	assert.Contains(t, stderr, `"message":"skipped entries"`)
	assert.Contains(t, stderr, "read-dir: "+missing)

	_, stderr, err = execute(t, testCLI(), missing)
	require.NoError(t, err)
	assert.NotContains(t, stderr, "skipped entries")
}

func TestCommand_UsageOnArgumentErrors(t *testing.T) {
	root := tree(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing target", nil, "accepts 1 arg(s), received 0"},
		{"too many targets", []string{root, root}, "accepts 1 arg(s), received 2"},
		{"unknown flag", []string{"--bogus", root}, "unknown flag: --bogus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, testCLI(), tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Contains(t, err.Error(), "Usage:")
			assert.Contains(t, err.Error(), "findexec [flags] target")
		})
	}
}

func TestCommand_RuntimeErrorsOmitUsage(t *testing.T) {
	_, _, err := execute(t, testCLI(), "-o", "xml", tree(t))
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "Usage:")
}
