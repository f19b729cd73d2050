package checkpoints

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStructManagerPaths(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run1")
	fsm, err := NewFileStructManager(dir)
	require.NoError(t, err)

	assert.Equal(t, dir, fsm.Root())
	assert.Equal(t, filepath.Join(dir, "weights.ckpt"), fsm.WeightsPath())
	assert.Equal(t, filepath.Join(dir, "optimizer.ckpt"), fsm.OptimizerStatePath())
	assert.Equal(t, filepath.Join(dir, "processor_state.json"), fsm.ProcessorStatePath())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = NewFileStructManager("")
	assert.Error(t, err)
}

func TestCheckpointRoundTrip(t *testing.T) {
	for _, format := range []CheckpointFormat{FormatJSON, FormatBinary} {
		t.Run(format.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "weights.ckpt")
			saver := NewCheckpointSaver(format)

			saved := &Checkpoint{
				Weights: []WeightTensor{
					{Name: "dense_1.weight", Shape: []int{2, 3}, Data: []float32{1, 2, 3, 4, 5, 6}},
					{Name: "dense_1.bias", Shape: []int{3}, Data: []float32{0.1, 0.2, 0.3}},
				},
			}
			require.NoError(t, saver.SaveCheckpoint(saved, path))

			// Metadata gets stamped on first save.
			assert.NotEmpty(t, saved.Metadata.ID)
			assert.Equal(t, "neural-pipeline", saved.Metadata.Framework)

			loaded, err := saver.LoadCheckpoint(path)
			require.NoError(t, err)
			require.Len(t, loaded.Weights, 2)
			assert.Equal(t, saved.Weights[0].Name, loaded.Weights[0].Name)
			assert.Equal(t, saved.Weights[0].Shape, loaded.Weights[0].Shape)
			assert.Equal(t, saved.Weights[0].Data, loaded.Weights[0].Data)
			assert.Equal(t, saved.Metadata.ID, loaded.Metadata.ID)
		})
	}
}

func TestOptimizerStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "optimizer.ckpt")
	saver := NewCheckpointSaver(FormatBinary)

	saved := &OptimizerState{
		Type:       "SGD",
		Parameters: map[string]float64{"lr": 0.01, "momentum": 0.9},
		StateData: []OptimizerTensor{
			{Name: "momentum_model_0", Shape: []int{4}, Data: []float32{1, 2, 3, 4}, StateType: "momentum"},
		},
	}
	require.NoError(t, saver.SaveOptimizerState(saved, path))

	loaded, err := saver.LoadOptimizerState(path)
	require.NoError(t, err)
	assert.Equal(t, "SGD", loaded.Type)
	assert.Equal(t, 0.9, loaded.Parameters["momentum"])
	require.Len(t, loaded.StateData, 1)
	assert.Equal(t, saved.StateData[0].Data, loaded.StateData[0].Data)
}

func TestLoadMissingArtifact(t *testing.T) {
	saver := NewCheckpointSaver(FormatJSON)
	missing := filepath.Join(t.TempDir(), "nope.ckpt")

	_, err := saver.LoadCheckpoint(missing)
	assert.ErrorIs(t, err, ErrCheckpointMissing)

	_, err = saver.LoadOptimizerState(missing)
	assert.ErrorIs(t, err, ErrCheckpointMissing)

	_, err = LoadProcessorState(missing)
	assert.ErrorIs(t, err, ErrCheckpointMissing)
}

func TestLoadCorruptArtifact(t *testing.T) {
	dir := t.TempDir()

	weights := filepath.Join(dir, "weights.ckpt")
	require.NoError(t, os.WriteFile(weights, []byte("not a checkpoint"), 0o644))
	_, err := NewCheckpointSaver(FormatJSON).LoadCheckpoint(weights)
	assert.ErrorIs(t, err, ErrCheckpointMissing)

	state := filepath.Join(dir, "processor_state.json")
	require.NoError(t, os.WriteFile(state, []byte("{broken"), 0o644))
	_, err = LoadProcessorState(state)
	assert.ErrorIs(t, err, ErrStateCorrupt)
	assert.False(t, errors.Is(err, ErrCheckpointMissing))
}

func TestProcessorStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processor_state.json")

	require.NoError(t, SaveProcessorState(&ProcessorState{LastEpochIdx: 7, LR: 0.001}, path))

	loaded, err := LoadProcessorState(path)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.LastEpochIdx)
	assert.Equal(t, 0.001, loaded.LR)
}
