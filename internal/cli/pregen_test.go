package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/speciate/internal/pregen"
	"github.com/roach88/speciate/internal/store"
)

const testProfile = `
profile: {
	container:  "app.Holder"
	direct:     ["(int32,int32)int64"]
	delegating: ["(any)any"]
	species:    ["LL", "LIJ"]
}
`

// pregenResponse mirrors CLIResponse with a typed payload.
type pregenResponse struct {
	Status string       `json:"status"`
	Data   PregenResult `json:"data"`
}

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.cue")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func executePregen(t *testing.T, format string, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := newPregenCommand(&PregenOptions{
		RootOptions: &RootOptions{Format: format},
		IDs:         pregen.NewFixedGenerator("bundle-1", "bundle-2"),
	})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func decodePregen(t *testing.T, buf *bytes.Buffer) PregenResult {
	t.Helper()
	var resp pregenResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func TestPregenDefaultsToBasicForms(t *testing.T) {
	buf, err := executePregen(t, "json")
	require.NoError(t, err)

	r := decodePregen(t, buf)
	assert.Equal(t, "bundle-1", r.ID)
	assert.Equal(t, "all", r.Section)
	assert.Equal(t, "speciate.Holder", r.Container)
	assert.Len(t, r.Units, 11)
	assert.Contains(t, r.Units, "speciate.Holder.zero_V")
	assert.Contains(t, r.Units, "speciate.Holder.identity_D")
	assert.Empty(t, r.Layouts)
	assert.Empty(t, r.Skipped)
	assert.False(t, r.Stored)
	assert.NotEmpty(t, r.Digest)
}

func TestPregenWithProfile(t *testing.T) {
	path := writeProfile(t, testProfile)

	buf, err := executePregen(t, "json", "--profile", path)
	require.NoError(t, err)

	r := decodePregen(t, buf)
	assert.Equal(t, "app.Holder", r.Container)
	assert.Equal(t, []string{"LL", "LIJ"}, r.Layouts)
	// 11 basic forms, one direct unit, a reinvoker and a delegate.
	assert.Len(t, r.Units, 14)
	for _, name := range r.Units {
		assert.True(t, strings.HasPrefix(name, "app.Holder."), name)
	}
}

func TestPregenSingleSection(t *testing.T) {
	path := writeProfile(t, testProfile)

	buf, err := executePregen(t, "json", "--profile", path, "--section", "species")
	require.NoError(t, err)

	r := decodePregen(t, buf)
	assert.Equal(t, "species", r.Section)
	assert.Empty(t, r.Units)
	assert.Equal(t, []string{"LL", "LIJ"}, r.Layouts)
}

func TestPregenInvokersSection(t *testing.T) {
	path := writeProfile(t, `profile: {
	container:  "app.Holder"
	invokers:   ["(int32)int32", "(int32)int32", "(any)any"]
	call_sites: ["(any)any"]
}`)

	buf, err := executePregen(t, "json", "--profile", path, "--section", "invokers-holder")
	require.NoError(t, err)

	r := decodePregen(t, buf)
	assert.Equal(t, "invokers-holder", r.Section)
	assert.Equal(t, []string{
		"app.Holder.invoker_LLI_I",
		"app.Holder.invoker_LLL_L",
		"app.Holder.callsite_LL_L",
	}, r.Units)
}

func TestPregenTextOutput(t *testing.T) {
	buf, err := executePregen(t, "text", "--section", "basic-forms")
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Bundle bundle-1 (basic-forms)")
	assert.Contains(t, output, "container: speciate.Holder")
	assert.Contains(t, output, "units:     11")
}

func TestPregenStoresBundle(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "units.db")
	path := writeProfile(t, testProfile)

	buf, err := executePregen(t, "json", "--profile", path, "--db", dbPath)
	require.NoError(t, err)
	assert.True(t, decodePregen(t, buf).Stored)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	b, err := st.ReadBundle(context.Background(), "bundle-1")
	require.NoError(t, err)
	assert.Len(t, b.Units, 14)
	assert.Len(t, b.Layouts, 2)
}

func TestPregenWritesSource(t *testing.T) {
	out := filepath.Join(t.TempDir(), "holder_gen.go")

	_, err := executePregen(t, "text", "--backend", "source", "--package", "gen", "-o", out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "package gen")
}

func TestPregenCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown section", []string{"--section", "everything"}, "unknown section"},
		{"unknown backend", []string{"--backend", "jit"}, "unknown backend"},
		{"output without source backend", []string{"-o", "x.go"}, "--output requires --backend source"},
		{"missing profile", []string{"--profile", "/nonexistent/tuning.cue"}, "failed to load profile"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executePregen(t, "text", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestPregenRejectsArgs(t *testing.T) {
	_, err := executePregen(t, "text", "extra")
	require.Error(t, err)
}

func TestPregenStrictFailsOnSkippedUnits(t *testing.T) {
	// A direct shape this wide exceeds the closure backend's name limit.
	wide := "(" + strings.Repeat("int,", 253) + "int)int"
	path := writeProfile(t, "profile: {\n\tbasic_forms: false\n\tdirect: [\""+wide+"\"]\n}\n")

	buf, err := executePregen(t, "json", "--profile", path)
	require.NoError(t, err)
	r := decodePregen(t, buf)
	assert.Empty(t, r.Units)
	require.Len(t, r.Skipped, 1)

	buf, err = executePregen(t, "json", "--profile", path, "--strict")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeUnitsSkipped, resp.Error.Code)
}
