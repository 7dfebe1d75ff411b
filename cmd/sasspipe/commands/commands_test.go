package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/sasspipe/internal/config"
	"github.com/Sumatoshi-tech/sasspipe/pkg/compiler"
	"github.com/Sumatoshi-tech/sasspipe/pkg/report"
)

// echoService compiles a stylesheet to its own source.
type echoService struct{}

func (echoService) Compile(_ context.Context, req compiler.Request) (compiler.Response, error) {
	return compiler.Response{CSS: req.Source}, nil
}

func echoFactory(*config.Config, *slog.Logger) compiler.Service {
	return echoService{}
}

func writeProject(t *testing.T, files map[string]string) (string, string) {
	t.Helper()

	dir := t.TempDir()

	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	cfgPath := filepath.Join(dir, ".sasspipe.yaml")
	cfg := "paths:\n  root: " + dir + "\n  output: dist\ncache:\n  enabled: false\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	return dir, cfgPath
}

func defaultProject(t *testing.T) (string, string) {
	t.Helper()

	return writeProject(t, map[string]string{
		"main.scss":             "@import \"vars\";\n@import \"missing\";\n.main { color: $c; }\n",
		"_vars.scss":            "$c: red;\n",
		"other.scss":            ".other { margin: 0; }\n",
		"components/_card.scss": ".card {}\n",
	})
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	app := newAppWithService(echoFactory)

	root := &cobra.Command{Use: "sasspipe", SilenceUsage: true, SilenceErrors: true}
	app.BindFlags(root.PersistentFlags())
	root.AddCommand(app.NewDepsCommand(), app.NewCompileCommand(), app.NewBuildCommand(), NewVersionCommand())

	var stdout, stderr bytes.Buffer

	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())

	return stdout.String(), stderr.String(), err
}

func TestDeps_JSON(t *testing.T) {
	t.Parallel()

	dir, cfgPath := defaultProject(t)

	stdout, _, err := execute(t, "deps", "--config", cfgPath, "-f", "json", filepath.Join(dir, "main.scss"))
	require.NoError(t, err)

	var got []report.Dependencies

	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	require.Len(t, got, 1)
	assert.Equal(t, filepath.Join(dir, "main.scss"), got[0].Entry)
	assert.Equal(t, []report.File{{Path: filepath.Join(dir, "_vars.scss"), Bytes: int64(len("$c: red;\n"))}}, got[0].Files)
	assert.Equal(t, []report.Unresolved{{Importer: filepath.Join(dir, "main.scss"), Target: "missing"}}, got[0].Unresolved)
}

func TestDeps_Text(t *testing.T) {
	t.Parallel()

	dir, cfgPath := defaultProject(t)

	stdout, _, err := execute(t, "deps", "--config", cfgPath, filepath.Join(dir, "main.scss"))
	require.NoError(t, err)
	assert.Contains(t, stdout, "_vars.scss")
	assert.Contains(t, stdout, "unresolved: missing in main.scss")
}

func TestDeps_Errors(t *testing.T) {
	t.Parallel()

	dir, cfgPath := defaultProject(t)

	_, _, err := execute(t, "deps", "--config", cfgPath, "-f", "xml", filepath.Join(dir, "main.scss"))
	require.ErrorIs(t, err, report.ErrUnsupportedFormat)

	_, _, err = execute(t, "deps", "--config", cfgPath, filepath.Join(dir, "absent.scss"))
	require.ErrorContains(t, err, "read ")

	_, _, err = execute(t, "deps", "--config", cfgPath)
	require.Error(t, err)
}

func TestCompile_Stdout(t *testing.T) {
	t.Parallel()

	dir, cfgPath := defaultProject(t)

	stdout, _, err := execute(t, "compile", "--config", cfgPath, filepath.Join(dir, "other.scss"))
	require.NoError(t, err)
	assert.Equal(t, ".other { margin: 0; }\n\n", stdout)
}

func TestCompile_OutputFile(t *testing.T) {
	t.Parallel()

	dir, cfgPath := defaultProject(t)
	out := filepath.Join(dir, "public", "other.css")

	stdout, _, err := execute(t, "compile", "--config", cfgPath, "-o", out, filepath.Join(dir, "other.scss"))
	require.NoError(t, err)
	assert.Empty(t, stdout)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, ".other { margin: 0; }\n\n", string(data))
}

func TestBuild_WritesAndChecks(t *testing.T) {
	t.Parallel()

	dir, cfgPath := defaultProject(t)

	_, stderr, err := execute(t, "build", "--config", cfgPath, "--no-color")
	require.NoError(t, err)
	assert.Contains(t, stderr, "written")

	data, err := os.ReadFile(filepath.Join(dir, "dist", "main.css"))
	require.NoError(t, err)
	assert.Contains(t, string(data), ".main { color: $c; }")

	_, err = os.Stat(filepath.Join(dir, "dist", "other.css"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "dist", "_vars.css"))
	require.True(t, os.IsNotExist(err))

	_, _, err = execute(t, "build", "--config", cfgPath, "--check")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.scss"), []byte(".other { margin: 1px; }\n"), 0o644))

	stdout, _, err := execute(t, "build", "--config", cfgPath, "--check", "-f", "json")
	require.ErrorIs(t, err, ErrStaleOutputs)

	var summary report.BuildSummary

	require.NoError(t, json.Unmarshal([]byte(stdout), &summary))
	assert.Equal(t, 1, summary.Stale)
	assert.Equal(t, 0, summary.Written)
}

func TestBuild_Changed(t *testing.T) {
	t.Parallel()

	dir, cfgPath := defaultProject(t)

	stdout, _, err := execute(t, "build", "--config", cfgPath, "-f", "json",
		"--changed", filepath.Join(dir, "_vars.scss"))
	require.NoError(t, err)

	var summary report.BuildSummary

	require.NoError(t, json.Unmarshal([]byte(stdout), &summary))
	require.Len(t, summary.Files, 1)
	assert.Equal(t, "main.scss", summary.Files[0].Entry)
	assert.Equal(t, "written", summary.Files[0].Status)

	_, err = os.Stat(filepath.Join(dir, "dist", "other.css"))
	require.True(t, os.IsNotExist(err))
}

func TestBuild_BadExclude(t *testing.T) {
	t.Parallel()

	_, cfgPath := defaultProject(t)

	_, _, err := execute(t, "build", "--config", cfgPath, "--exclude", "[")
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	t.Parallel()

	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "sasspipe ")
}

func TestAbsolutize(t *testing.T) {
	t.Parallel()

	got := absolutize("/proj", []string{"vendor", "/opt/styles/", "../shared"})
	assert.Equal(t, []string{"/proj/vendor", "/opt/styles", "/shared"}, got)
}
