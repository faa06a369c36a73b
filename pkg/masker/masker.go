// Package masker reduces a subject volume to one value per labelled region
// of an atlas label image.
package masker

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/voxelai/parcpak/internal/models"
	"github.com/voxelai/parcpak/pkg/nifti"
)

// LabelsMasker computes per-region statistics of a volume over the regions
// of a label image. When the two grids differ the labels are resampled into
// the volume grid by nearest neighbour.
type LabelsMasker struct {
	logger *zap.Logger
}

// Option configures a LabelsMasker
type Option func(*LabelsMasker)

// WithLogger sets the logger used for resampling notices
func WithLogger(logger *zap.Logger) Option {
	return func(m *LabelsMasker) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New creates a LabelsMasker
func New(opts ...Option) *LabelsMasker {
	m := &LabelsMasker{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ReduceRegions returns one statistic per region of labels, ordered by
// ascending label value. Label 0 is background. Regions that lose every
// voxel when aligned to the volume grid yield 0.
func (m *LabelsMasker) ReduceRegions(volume, labels *nifti.Image, metric models.StatKind) ([]float64, error) {
	if err := metric.Validate(); err != nil {
		return nil, err
	}
	if volume.Nt > 1 {
		return nil, fmt.Errorf("%w: volume has %d time points, select a single 3D volume", models.ErrInvalidArgument, volume.Nt)
	}
	if labels.Nt > 1 {
		return nil, fmt.Errorf("%w: label image has %d volumes, expected 3D", models.ErrInvalidArgument, labels.Nt)
	}

	regions := Regions(labels)

	aligned := labels
	if !labels.SameGrid(volume) {
		m.logger.Debug("resampling labels into volume grid",
			zap.Ints("labelDims", []int{labels.Nx, labels.Ny, labels.Nz}),
			zap.Ints("volumeDims", []int{volume.Nx, volume.Ny, volume.Nz}))
		var err error
		aligned, err = Align(labels, volume)
		if err != nil {
			return nil, err
		}
	}

	index := make(map[int]int, len(regions))
	for i, label := range regions {
		index[label] = i
	}
	voxels := make([][]float64, len(regions))
	n := volume.Voxels()
	for i := 0; i < n; i++ {
		label := int(math.Round(aligned.Data[i]))
		if label == 0 {
			continue
		}
		if r, ok := index[label]; ok {
			voxels[r] = append(voxels[r], volume.Data[i])
		}
	}

	values := make([]float64, len(regions))
	for r := range regions {
		v, err := Compute(metric, voxels[r])
		if err != nil {
			return nil, err
		}
		values[r] = v
	}
	return values, nil
}

// Regions lists the distinct non-zero labels of a label image in ascending
// order. This is the row order expected of the atlas label table.
func Regions(labels *nifti.Image) []int {
	seen := make(map[int]bool)
	for _, v := range labels.Data[:labels.Voxels()] {
		if label := int(math.Round(v)); label != 0 {
			seen[label] = true
		}
	}
	regions := make([]int, 0, len(seen))
	for label := range seen {
		regions = append(regions, label)
	}
	sort.Ints(regions)
	return regions
}

// Align resamples a label image into the grid of target by nearest
// neighbour. Target voxels that map outside the label grid are background.
func Align(labels, target *nifti.Image) (*nifti.Image, error) {
	var fromWorld mat.Dense
	if err := fromWorld.Inverse(affineDense(labels.Affine)); err != nil {
		return nil, fmt.Errorf("label image affine is not invertible: %w", err)
	}
	var vox mat.Dense
	vox.Mul(&fromWorld, affineDense(target.Affine))

	var t [3][4]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			t[i][j] = vox.At(i, j)
		}
	}

	out, err := nifti.New(target.Nx, target.Ny, target.Nz, target.Affine, nil)
	if err != nil {
		return nil, err
	}
	out.Datatype = labels.Datatype

	for z := 0; z < target.Nz; z++ {
		fz := float64(z)
		for y := 0; y < target.Ny; y++ {
			fy := float64(y)
			for x := 0; x < target.Nx; x++ {
				fx := float64(x)
				i := int(math.Round(t[0][0]*fx + t[0][1]*fy + t[0][2]*fz + t[0][3]))
				j := int(math.Round(t[1][0]*fx + t[1][1]*fy + t[1][2]*fz + t[1][3]))
				k := int(math.Round(t[2][0]*fx + t[2][1]*fy + t[2][2]*fz + t[2][3]))
				if i < 0 || j < 0 || k < 0 || i >= labels.Nx || j >= labels.Ny || k >= labels.Nz {
					continue
				}
				out.Data[out.Index(x, y, z)] = labels.Data[labels.Index(i, j, k)]
			}
		}
	}
	return out, nil
}

func affineDense(a nifti.Affine) *mat.Dense {
	data := make([]float64, 0, 16)
	for i := 0; i < 4; i++ {
		data = append(data, a[i][:]...)
	}
	return mat.NewDense(4, 4, data)
}
