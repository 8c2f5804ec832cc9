package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gompm/InputParameters"
	"github.com/notargets/gompm/internal/logging"
)

func TestExampleInput(t *testing.T) {
	var ip InputParameters.InputParametersMPM
	require.NoError(t, ip.Parse([]byte(exampleInput)))
	assert.Equal(t, 2, ip.Partition.Ranks)
	assert.Equal(t, "coordinate", ip.Partition.Partitioner)
}

func TestDecompose(t *testing.T) {
	var ip InputParameters.InputParametersMPM
	require.NoError(t, ip.Parse([]byte(exampleInput)))
	for _, transport := range []string{"local", "grpc"} {
		assert.NoError(t, Decompose(&ip, transport, logging.Noop()), transport)
	}
	assert.Error(t, Decompose(&ip, "mpi", logging.Noop()))
	ip.Partition.Partitioner = "scotch"
	assert.Error(t, Decompose(&ip, "local", logging.Noop()))
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.yaml")
	require.NoError(t, os.WriteFile(input, []byte(exampleInput), 0644))
	checkpoint := filepath.Join(dir, "particles.bin")
	rootCmd.SetArgs([]string{"run", "-I", input, "--checkpoint", checkpoint, "--logLevel", "warn"})
	require.NoError(t, rootCmd.Execute())
	info, err := os.Stat(checkpoint)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
