// Package visualization renders orthogonal slices of a volume as JPEG
// images for quick visual checks of a subject volume or an aligned atlas.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"github.com/voxelai/parcpak/pkg/nifti"
)

// Viewer extracts slices from a 3D image. Intensities are scaled from the
// volume's minimum and maximum to the full 16-bit range.
type Viewer struct {
	// volumeData holds the voxels of a single 3D volume
	volumeData []float64

	// dimensions of the volume
	width  int
	height int
	depth  int

	// intensity range used for normalization
	min, max float64
}

// NewViewer creates a viewer over the first volume of img
func NewViewer(img *nifti.Image) *Viewer {
	data := img.Data[:img.Voxels()]
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range data {
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo > hi {
		lo, hi = 0, 0
	}

	return &Viewer{
		volumeData: data,
		width:      img.Nx,
		height:     img.Ny,
		depth:      img.Nz,
		min:        lo,
		max:        hi,
	}
}

func (v *Viewer) gray(value float64) color.Gray16 {
	if v.max <= v.min || math.IsNaN(value) {
		return color.Gray16{}
	}
	scaled := (value - v.min) / (v.max - v.min)
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, scaled*65535)))}
}

// ExtractSlice extracts a 2D slice from the volume along the specified axis
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	var img *image.Gray16

	switch axis {
	case "x", "X":
		// Extract slice along YZ plane
		if position >= v.width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, v.width)
		}

		img = image.NewGray16(image.Rect(0, 0, v.height, v.depth))
		for z := 0; z < v.depth; z++ {
			for y := 0; y < v.height; y++ {
				idx := z*v.width*v.height + y*v.width + position
				// flip so superior is up
				img.SetGray16(y, v.depth-1-z, v.gray(v.volumeData[idx]))
			}
		}

	case "y", "Y":
		// Extract slice along XZ plane
		if position >= v.height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, v.height)
		}

		img = image.NewGray16(image.Rect(0, 0, v.width, v.depth))
		for z := 0; z < v.depth; z++ {
			for x := 0; x < v.width; x++ {
				idx := z*v.width*v.height + position*v.width + x
				img.SetGray16(x, v.depth-1-z, v.gray(v.volumeData[idx]))
			}
		}

	case "z", "Z":
		// Extract slice along XY plane
		if position >= v.depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, v.depth)
		}

		img = image.NewGray16(image.Rect(0, 0, v.width, v.height))
		for y := 0; y < v.height; y++ {
			for x := 0; x < v.width; x++ {
				idx := position*v.width*v.height + y*v.width + x
				img.SetGray16(x, v.height-1-y, v.gray(v.volumeData[idx]))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveMidSlices writes the middle slice along each axis to outputDir as
// <prefix>_<axis>.jpg and returns the file paths.
func (v *Viewer) SaveMidSlices(outputDir, prefix string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}

	mid := map[string]int{"x": v.width / 2, "y": v.height / 2, "z": v.depth / 2}
	var paths []string
	for _, axis := range []string{"x", "y", "z"} {
		img, err := v.ExtractSlice(axis, mid[axis])
		if err != nil {
			return nil, err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("%s_%s.jpg", prefix, axis))
		if err := v.SaveSlice(img, filename); err != nil {
			return nil, fmt.Errorf("failed to save %s: %w", filename, err)
		}
		paths = append(paths, filename)
	}

	return paths, nil
}
