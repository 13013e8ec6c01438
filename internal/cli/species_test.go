package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/speciate/internal/store"
)

func executeSpecies(t *testing.T, format string, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewSpeciesCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func TestSpeciesText(t *testing.T) {
	buf, err := executeSpecies(t, "text", "LIJ")
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, `"LIJ" invoke.BoundHandle$Species_LIJ`)
	assert.Contains(t, output, "0: L slot 0")
	assert.Contains(t, output, "1: I slot 0")
	assert.Contains(t, output, "2: J slot 0")
}

func TestSpeciesJSON(t *testing.T) {
	buf, err := executeSpecies(t, "json", "LL", "")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   []SpeciesInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 2)

	ll := resp.Data[0]
	assert.Equal(t, "LL", ll.Key)
	assert.Equal(t, "invoke.BoundHandle$Species_LL", ll.Name)
	assert.Equal(t, []string{"L", "L"}, ll.Fields)
	assert.Equal(t, []int{0, 1}, ll.Slots)
	assert.NotEmpty(t, ll.Source)

	empty := resp.Data[1]
	assert.Equal(t, "", empty.Key)
	assert.Equal(t, "invoke.SimpleHandle", empty.Name)
	assert.Empty(t, empty.Fields)
}

func TestSpeciesInvalidKey(t *testing.T) {
	_, err := executeSpecies(t, "text", "LX")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid signature key "LX"`)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSpeciesMaxFields(t *testing.T) {
	_, err := executeSpecies(t, "text", "LIJ", "--max-fields", "2")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = executeSpecies(t, "text", "LI", "--max-fields", "2")
	require.NoError(t, err)
}

func TestSpeciesMissingArgs(t *testing.T) {
	_, err := executeSpecies(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}

func TestSpeciesStoresLayouts(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "units.db")

	_, err := executeSpecies(t, "text", "LIJ", "LL", "--db", dbPath)
	require.NoError(t, err)
	// Storing the same layout twice is a no-op.
	_, err = executeSpecies(t, "text", "LL", "--db", dbPath)
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	layouts, err := st.ReadSpecies(context.Background())
	require.NoError(t, err)
	keys := make([]string, len(layouts))
	for i, l := range layouts {
		keys[i] = l.Key
	}
	assert.ElementsMatch(t, []string{"LIJ", "LL"}, keys)
}

func TestSpeciesRejectsNonPositiveMaxFields(t *testing.T) {
	for _, n := range []string{"0", "-1"} {
		_, err := executeSpecies(t, "text", "I", "--max-fields="+n)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	}

	buf, err := executeSpecies(t, "text", "I", "--max-fields", "1")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"I"`)
}
