package checkpoints

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// CheckpointFormat defines the serialization format for weight and
// optimizer artifacts.
type CheckpointFormat int

const (
	FormatJSON CheckpointFormat = iota
	FormatBinary
)

func (cf CheckpointFormat) String() string {
	switch cf {
	case FormatJSON:
		return "JSON"
	case FormatBinary:
		return "Binary"
	default:
		return "Unknown"
	}
}

// WeightTensor is one named model parameter with its flattened data.
type WeightTensor struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

// Checkpoint is the persisted weight artifact.
type Checkpoint struct {
	Weights  []WeightTensor     `json:"weights"`
	Metadata CheckpointMetadata `json:"metadata"`
}

// CheckpointMetadata identifies one saved checkpoint.
type CheckpointMetadata struct {
	ID        string    `json:"id"`
	Framework string    `json:"framework"`
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

// OptimizerTensor is one named optimizer state buffer (momentum, first or
// second moment, and so on).
type OptimizerTensor struct {
	Name      string    `json:"name"`
	Shape     []int     `json:"shape"`
	Data      []float32 `json:"data"`
	StateType string    `json:"state_type"`
}

// OptimizerState is the persisted optimizer artifact. The trainer treats
// it as opaque; its layout is owned by the optimizer implementation.
type OptimizerState struct {
	Type       string             `json:"type"`
	Parameters map[string]float64 `json:"parameters"`
	StateData  []OptimizerTensor  `json:"state_data"`
}

// ProcessorState is the structured resume point persisted alongside the
// weight and optimizer artifacts.
type ProcessorState struct {
	LastEpochIdx int     `json:"last_epoch_idx"`
	LR           float64 `json:"lr"`
}

// CheckpointSaver reads and writes checkpoint artifacts in one format.
type CheckpointSaver struct {
	format CheckpointFormat
}

// NewCheckpointSaver creates a saver for the given format.
func NewCheckpointSaver(format CheckpointFormat) *CheckpointSaver {
	return &CheckpointSaver{format: format}
}

// SaveCheckpoint persists the weight artifact, stamping metadata if the
// caller left it empty.
func (cs *CheckpointSaver) SaveCheckpoint(checkpoint *Checkpoint, path string) error {
	if checkpoint.Metadata.Framework == "" {
		checkpoint.Metadata = CheckpointMetadata{
			ID:        uuid.NewString(),
			Framework: "neural-pipeline",
			Version:   "1.0.0",
			CreatedAt: time.Now().UTC(),
		}
	}
	return cs.write(path, checkpoint)
}

// LoadCheckpoint reads the weight artifact. A missing or undecodable
// artifact is reported as ErrCheckpointMissing.
func (cs *CheckpointSaver) LoadCheckpoint(path string) (*Checkpoint, error) {
	var checkpoint Checkpoint
	if err := cs.read(path, &checkpoint); err != nil {
		return nil, err
	}
	return &checkpoint, nil
}

// SaveOptimizerState persists the optimizer artifact.
func (cs *CheckpointSaver) SaveOptimizerState(state *OptimizerState, path string) error {
	return cs.write(path, state)
}

// LoadOptimizerState reads the optimizer artifact. A missing or
// undecodable artifact is reported as ErrCheckpointMissing.
func (cs *CheckpointSaver) LoadOptimizerState(path string) (*OptimizerState, error) {
	var state OptimizerState
	if err := cs.read(path, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// SaveProcessorState persists the structured state file. The file is
// always a textual key-value document regardless of the saver format.
func SaveProcessorState(state *ProcessorState, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create state file: %v", err)
	}
	defer file.Close()

	if err := json.NewEncoder(file).Encode(state); err != nil {
		return fmt.Errorf("failed to encode state: %v", err)
	}
	return nil
}

// LoadProcessorState reads the structured state file. A missing file is
// ErrCheckpointMissing; a file that fails to parse is ErrStateCorrupt.
func LoadProcessorState(path string) (*ProcessorState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCheckpointMissing, path)
	}
	var state ProcessorState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStateCorrupt, path, err)
	}
	return &state, nil
}

func (cs *CheckpointSaver) write(path string, v interface{}) error {
	var data []byte
	var err error
	switch cs.format {
	case FormatJSON:
		data, err = json.MarshalIndent(v, "", "  ")
	case FormatBinary:
		data, err = marshalBinary(v)
	default:
		return fmt.Errorf("unsupported checkpoint format: %s", cs.format)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s artifact: %v", cs.format, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write artifact: %v", err)
	}
	return nil
}

func (cs *CheckpointSaver) read(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrCheckpointMissing, path)
	}
	switch cs.format {
	case FormatJSON:
		err = json.Unmarshal(data, v)
	case FormatBinary:
		err = unmarshalBinary(data, v)
	default:
		return fmt.Errorf("unsupported checkpoint format: %s", cs.format)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: failed to decode %s artifact: %v", ErrCheckpointMissing, path, cs.format, err)
	}
	return nil
}
