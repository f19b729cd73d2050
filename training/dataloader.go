package training

import (
	"fmt"
	"io"
	"math/rand"
	"sync"

	"github.com/Santhosh-KS/neural-pipeline/batch"
	"github.com/Santhosh-KS/neural-pipeline/tensor"
)

// Dataset is a random-access collection of samples. Get returns the data
// and target of one sample as CPU tensors; the loader stacks them into
// batches.
type Dataset interface {
	Len() int
	Get(idx int) (data *tensor.Tensor, target *tensor.Tensor, err error)
}

// SliceDataset serves samples from pre-built tensor slices. Data and
// targets must have equal length.
type SliceDataset struct {
	data    []*tensor.Tensor
	targets []*tensor.Tensor
}

// NewSliceDataset creates a dataset over parallel data and target slices.
func NewSliceDataset(data, targets []*tensor.Tensor) (*SliceDataset, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("dataset cannot be empty")
	}
	if len(data) != len(targets) {
		return nil, fmt.Errorf("dataset has %d data samples but %d targets", len(data), len(targets))
	}
	return &SliceDataset{data: data, targets: targets}, nil
}

func (d *SliceDataset) Len() int {
	return len(d.data)
}

func (d *SliceDataset) Get(idx int) (*tensor.Tensor, *tensor.Tensor, error) {
	if idx < 0 || idx >= len(d.data) {
		return nil, nil, fmt.Errorf("sample index %d out of range [0, %d)", idx, len(d.data))
	}
	return d.data[idx], d.targets[idx], nil
}

// DataLoader batches a dataset and implements BatchSource. With shuffling
// enabled, Reset reshuffles the sample order using the loader's own
// random source, so two loaders seeded alike draw identical epochs.
type DataLoader struct {
	dataset   Dataset
	batchSize int
	shuffle   bool
	rng       *rand.Rand
	indices   []int
	position  int
	mutex     sync.Mutex
}

// NewDataLoader creates a loader over the dataset. rng may be nil when
// shuffle is false.
func NewDataLoader(dataset Dataset, batchSize int, shuffle bool, rng *rand.Rand) (*DataLoader, error) {
	if dataset == nil {
		return nil, fmt.Errorf("dataset cannot be nil")
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	if shuffle && rng == nil {
		return nil, fmt.Errorf("shuffling requires a random source")
	}

	indices := make([]int, dataset.Len())
	for i := range indices {
		indices[i] = i
	}

	return &DataLoader{
		dataset:   dataset,
		batchSize: batchSize,
		shuffle:   shuffle,
		rng:       rng,
		indices:   indices,
	}, nil
}

// Len returns the number of batches per epoch.
func (dl *DataLoader) Len() int {
	return (dl.dataset.Len() + dl.batchSize - 1) / dl.batchSize
}

// Reset rewinds the loader for a new pass, reshuffling if configured.
func (dl *DataLoader) Reset() error {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()

	dl.position = 0
	if dl.shuffle {
		dl.rng.Shuffle(len(dl.indices), func(i, j int) {
			dl.indices[i], dl.indices[j] = dl.indices[j], dl.indices[i]
		})
	}
	return nil
}

// Next returns the next batch, or io.EOF when the pass is exhausted. The
// final batch of a pass may be smaller than the configured size.
func (dl *DataLoader) Next() (*batch.Batch, error) {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()

	if dl.position >= len(dl.indices) {
		return nil, io.EOF
	}

	end := dl.position + dl.batchSize
	if end > len(dl.indices) {
		end = len(dl.indices)
	}
	batchIndices := dl.indices[dl.position:end]
	dl.position = end

	return dl.stack(batchIndices)
}

func (dl *DataLoader) stack(indices []int) (*batch.Batch, error) {
	firstData, firstTarget, err := dl.dataset.Get(indices[0])
	if err != nil {
		return nil, fmt.Errorf("failed to load sample %d: %v", indices[0], err)
	}

	dataBuf := make([]float32, 0, len(indices)*firstData.NumElems)
	targetBuf := make([]float32, 0, len(indices)*firstTarget.NumElems)

	for _, idx := range indices {
		data, target, err := dl.dataset.Get(idx)
		if err != nil {
			return nil, fmt.Errorf("failed to load sample %d: %v", idx, err)
		}
		dataVals, err := data.Float32s()
		if err != nil {
			return nil, fmt.Errorf("sample %d data: %v", idx, err)
		}
		targetVals, err := target.Float32s()
		if err != nil {
			return nil, fmt.Errorf("sample %d target: %v", idx, err)
		}
		if len(dataVals) != firstData.NumElems || len(targetVals) != firstTarget.NumElems {
			return nil, fmt.Errorf("sample %d size differs from the first sample in the batch", idx)
		}
		dataBuf = append(dataBuf, dataVals...)
		targetBuf = append(targetBuf, targetVals...)
	}

	dataTensor, err := tensor.NewTensor(batchShape(len(indices), firstData.Shape), tensor.Float32, tensor.CPU, dataBuf)
	if err != nil {
		return nil, fmt.Errorf("failed to build batch data tensor: %v", err)
	}
	targetTensor, err := tensor.NewTensor(batchShape(len(indices), firstTarget.Shape), tensor.Float32, tensor.CPU, targetBuf)
	if err != nil {
		return nil, fmt.Errorf("failed to build batch target tensor: %v", err)
	}

	return batch.New(batch.Leaf{Tensor: dataTensor}, batch.Leaf{Tensor: targetTensor})
}

func batchShape(n int, sampleShape []int) []int {
	shape := make([]int, 0, len(sampleShape)+1)
	shape = append(shape, n)
	shape = append(shape, sampleShape...)
	return shape
}
