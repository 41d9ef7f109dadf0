package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/sidekick/corpus/cornell"
)

func TestPrepareWritesSideCharacters(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		cornell.TitlesFile:        "m0\tshrek\t2001\t7.9\t1\t['animation' 'comedy']\n",
		cornell.CharactersFile:    "u0\tSHREK\tm0\tshrek\tm\t1\nu1\tDONKEY\tm0\tshrek\tm\t5\n",
		cornell.LinesFile:         "L1\tu1\tm0\tDONKEY\tAre we there yet?\nL2\tu0\tm0\tSHREK\tNo.\n",
		cornell.ConversationsFile: "u1\tu0\tm0\t['L1' 'L2']\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	prepareOutput = filepath.Join(dir, "out", "personas.json")
	prepareMaxConversations = cornell.DefaultMaxConversations
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	require.NoError(t, runPrepare(cmd, []string{dir}))
	assert.Contains(t, buf.String(), "Wrote 1 side characters (1 conversations)")

	chars, err := cornell.ReadFile(prepareOutput)
	require.NoError(t, err)
	require.Len(t, chars, 1)
	assert.Equal(t, "DONKEY", chars[0].Name)
	assert.Equal(t, []string{"DONKEY: Are we there yet?\nSHREK: No."}, chars[0].Conversations)
}
