package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag of c and its children to its default so
// runs do not leak into each other.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, child := range c.Commands() {
		resetFlags(child)
	}
}

// executeCommand runs the CLI with a private config file and returns stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	resetFlags(rootCmd)

	configFile := filepath.Join(t.TempDir(), "displayhal.toml")
	for i, a := range args {
		if a == "--config" && i+1 < len(args) {
			configFile = args[i+1]
		}
	}
	args = append([]string{"--config", configFile}, args...)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "displayhal "+Version)
}

func TestConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.toml")

	out, err := executeCommand(t, "config", "path", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, path+"\n", out)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "displayhal.toml")

	t.Run("creates config file when it doesn't exist", func(t *testing.T) {
		_, err := executeCommand(t, "config", "init", "--config", path)
		require.NoError(t, err)

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), "refresh_ms")
		assert.Contains(t, string(content), "max_virtual_display_dimension")
	})

	t.Run("doesn't overwrite existing config without force", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("[watch]\nrefresh_ms = 900\n"), 0644))

		_, err := executeCommand(t, "config", "init", "--config", path)
		require.NoError(t, err)

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "[watch]\nrefresh_ms = 900\n", string(content))
	})

	t.Run("overwrites with force flag", func(t *testing.T) {
		_, err := executeCommand(t, "config", "init", "--force", "--config", path)
		require.NoError(t, err)

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), "max_virtual_displays")
		assert.Contains(t, string(content), "900", "values read from the file are kept")
	})
}

func TestConfigShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "displayhal.toml")
	require.NoError(t, os.WriteFile(path, []byte("[watch]\nrefresh_ms = 500\n[simulation]\nframes = 7\n"), 0644))

	out, err := executeCommand(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "refresh_ms = 500")
	assert.Contains(t, out, "frames = 7")
	assert.Contains(t, out, "scenario = (built-in)")
}

func TestConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "displayhal.toml")
	require.NoError(t, os.WriteFile(path, []byte("[watch\nrefresh_ms = 500\n"), 0644))

	_, err := executeCommand(t, "config", "show", "--config", path)
	assert.Error(t, err)
}

func TestDumpJSON(t *testing.T) {
	out, err := executeCommand(t, "dump", "--json")
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "generalized", doc["multiDisplayMode"])
	assert.Len(t, doc["displays"], 2)
}

func TestDumpPlain(t *testing.T) {
	out, err := executeCommand(t, "dump", "--plain")
	require.NoError(t, err)
	assert.Contains(t, out, "multi-display mode: generalized")
	assert.Contains(t, out, "Builtin Panel")
	assert.Contains(t, out, "LG ULTRAFINE")
}

func TestDumpText(t *testing.T) {
	out, err := executeCommand(t, "dump")
	require.NoError(t, err)
	assert.Contains(t, out, "Builtin Panel")
	assert.Contains(t, out, "2560x1600 @ 120.00Hz group 0 (active)")
}

func TestDumpBadScenario(t *testing.T) {
	_, err := executeCommand(t, "dump", "--scenario", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to load scenario")
}

func TestSimulate(t *testing.T) {
	out, err := executeCommand(t, "simulate", "--frames", "6", "--client-every", "2")
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`Frames\s+6\n`), out)
	// Two physical displays plus the virtual one.
	assert.Regexp(t, regexp.MustCompile(`Presented\s+18\n`), out)
	assert.Regexp(t, regexp.MustCompile(`Failed\s+0\n`), out)
}

func TestSimulateHotplug(t *testing.T) {
	out, err := executeCommand(t, "simulate", "--frames", "9", "--hotplug", "--virtual=false")
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`Frames\s+9\n`), out)
	assert.Regexp(t, regexp.MustCompile(`Failed\s+0\n`), out)
}

func TestSimulateNoFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "displayhal.toml")
	require.NoError(t, os.WriteFile(path, []byte("[simulation]\nframes = 0\n"), 0644))

	out, err := executeCommand(t, "simulate", "--config", path)
	require.NoError(t, err)
	assert.Empty(t, out)
}
