package nifti

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/klauspost/compress/gzip"
)

// Affine maps voxel indices (i, j, k, 1) to world coordinates in mm
type Affine [4][4]float64

// Identity returns the identity affine (1mm voxels at the origin)
func Identity() Affine {
	return Affine{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}}
}

// Scaled returns an affine with isotropic voxel size and translation
func Scaled(voxel float64, origin [3]float64) Affine {
	return Affine{
		{voxel, 0, 0, origin[0]},
		{0, voxel, 0, origin[1]},
		{0, 0, voxel, origin[2]},
		{0, 0, 0, 1},
	}
}

// Image is a decoded NIfTI-1 image. Data holds scaled voxel values with x
// varying fastest, then y, z and t.
type Image struct {
	Header Header

	// Nx, Ny, Nz, Nt are the grid dimensions, 1 where unused
	Nx, Ny, Nz, Nt int

	// Affine is the voxel-to-world transform
	Affine Affine

	// Datatype is the on-disk datatype code, used again when writing
	Datatype int16

	Data []float64
}

// New creates a 3D in-memory image. data may be nil for a zero image.
func New(nx, ny, nz int, affine Affine, data []float64) (*Image, error) {
	if nx < 1 || ny < 1 || nz < 1 {
		return nil, fmt.Errorf("invalid dimensions %dx%dx%d", nx, ny, nz)
	}
	n := nx * ny * nz
	if data == nil {
		data = make([]float64, n)
	}
	if len(data) != n {
		return nil, fmt.Errorf("data has %d voxels, dimensions %dx%dx%d need %d", len(data), nx, ny, nz, n)
	}
	return &Image{
		Nx:       nx,
		Ny:       ny,
		Nz:       nz,
		Nt:       1,
		Affine:   affine,
		Datatype: DTFloat32,
		Data:     data,
	}, nil
}

// ReadFile loads a .nii or .nii.gz file
func ReadFile(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	return img, nil
}

// Decode reads a single-file NIfTI-1 image, gunzipping it first if the
// stream starts with the gzip magic bytes.
func Decode(r io.Reader) (*Image, error) {
	br := bufio.NewReader(r)
	var src io.Reader = br
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("error opening gzip stream: %w", err)
		}
		defer zr.Close()
		src = zr
	}

	raw, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("error reading image data: %w", err)
	}

	h, order, err := readHeader(raw)
	if err != nil {
		return nil, err
	}

	nx, ny, nz, nt := h.dims()
	n := nx * ny * nz * nt
	offset := int(h.VoxOffset)
	if offset < minVoxOffset {
		offset = minVoxOffset
	}
	size := bytesPerVoxel(h.Datatype)
	if len(raw) < offset+n*size {
		return nil, fmt.Errorf("file has %d bytes, header requires %d", len(raw), offset+n*size)
	}

	data := decodeVoxels(raw[offset:offset+n*size], h.Datatype, order, n)
	if h.SclSlope != 0 && !(h.SclSlope == 1 && h.SclInter == 0) {
		slope, inter := float64(h.SclSlope), float64(h.SclInter)
		for i := range data {
			data[i] = slope*data[i] + inter
		}
	}

	return &Image{
		Header:   h,
		Nx:       nx,
		Ny:       ny,
		Nz:       nz,
		Nt:       nt,
		Affine:   headerAffine(h),
		Datatype: h.Datatype,
		Data:     data,
	}, nil
}

func decodeVoxels(buf []byte, dt int16, order binary.ByteOrder, n int) []float64 {
	data := make([]float64, n)
	switch dt {
	case DTUint8:
		for i := range data {
			data[i] = float64(buf[i])
		}
	case DTInt8:
		for i := range data {
			data[i] = float64(int8(buf[i]))
		}
	case DTInt16:
		for i := range data {
			data[i] = float64(int16(order.Uint16(buf[2*i:])))
		}
	case DTUint16:
		for i := range data {
			data[i] = float64(order.Uint16(buf[2*i:]))
		}
	case DTInt32:
		for i := range data {
			data[i] = float64(int32(order.Uint32(buf[4*i:])))
		}
	case DTUint32:
		for i := range data {
			data[i] = float64(order.Uint32(buf[4*i:]))
		}
	case DTFloat32:
		for i := range data {
			data[i] = float64(math.Float32frombits(order.Uint32(buf[4*i:])))
		}
	case DTInt64:
		for i := range data {
			data[i] = float64(int64(order.Uint64(buf[8*i:])))
		}
	case DTUint64:
		for i := range data {
			data[i] = float64(order.Uint64(buf[8*i:]))
		}
	case DTFloat64:
		for i := range data {
			data[i] = math.Float64frombits(order.Uint64(buf[8*i:]))
		}
	}
	return data
}

// headerAffine picks sform, then qform, then plain pixdim scaling
func headerAffine(h Header) Affine {
	if h.SformCode > 0 {
		var a Affine
		for j := 0; j < 4; j++ {
			a[0][j] = float64(h.SrowX[j])
			a[1][j] = float64(h.SrowY[j])
			a[2][j] = float64(h.SrowZ[j])
		}
		a[3] = [4]float64{0, 0, 0, 1}
		return a
	}

	dx, dy, dz := voxelSize(h)
	if h.QformCode > 0 {
		return quaternAffine(h, dx, dy, dz)
	}
	return Affine{
		{dx, 0, 0, 0},
		{0, dy, 0, 0},
		{0, 0, dz, 0},
		{0, 0, 0, 1},
	}
}

func voxelSize(h Header) (float64, float64, float64) {
	size := [3]float64{1, 1, 1}
	for i := 0; i < 3; i++ {
		if v := float64(h.Pixdim[i+1]); v > 0 {
			size[i] = v
		}
	}
	return size[0], size[1], size[2]
}

// quaternAffine builds the qform transform (method 2 in nifti1.h)
func quaternAffine(h Header, dx, dy, dz float64) Affine {
	b, c, d := float64(h.QuaternB), float64(h.QuaternC), float64(h.QuaternD)
	a := 1 - (b*b + c*c + d*d)
	if a < 1e-7 {
		norm := 1 / math.Sqrt(b*b+c*c+d*d)
		b, c, d = b*norm, c*norm, d*norm
		a = 0
	} else {
		a = math.Sqrt(a)
	}

	qfac := 1.0
	if h.Pixdim[0] < 0 {
		qfac = -1
	}
	dz *= qfac

	return Affine{
		{(a*a + b*b - c*c - d*d) * dx, 2 * (b*c - a*d) * dy, 2 * (b*d + a*c) * dz, float64(h.QoffsetX)},
		{2 * (b*c + a*d) * dx, (a*a + c*c - b*b - d*d) * dy, 2 * (c*d - a*b) * dz, float64(h.QoffsetY)},
		{2 * (b*d - a*c) * dx, 2 * (c*d + a*b) * dy, (a*a + d*d - c*c - b*b) * dz, float64(h.QoffsetZ)},
		{0, 0, 0, 1},
	}
}

// Voxels returns the number of voxels in one 3D volume
func (img *Image) Voxels() int {
	return img.Nx * img.Ny * img.Nz
}

// Index returns the offset of voxel (x, y, z) within a 3D volume
func (img *Image) Index(x, y, z int) int {
	return x + img.Nx*(y+img.Ny*z)
}

// At returns the value at voxel (x, y, z) of volume t
func (img *Image) At(x, y, z, t int) float64 {
	return img.Data[t*img.Voxels()+img.Index(x, y, z)]
}

// Volume returns a 3D copy of volume t of a 4D image
func (img *Image) Volume(t int) (*Image, error) {
	if t < 0 || t >= img.Nt {
		return nil, fmt.Errorf("volume index %d out of range [0, %d)", t, img.Nt)
	}
	n := img.Voxels()
	data := make([]float64, n)
	copy(data, img.Data[t*n:(t+1)*n])

	vol := *img
	vol.Nt = 1
	vol.Data = data
	vol.Header.Dim[0] = 3
	vol.Header.Dim[4] = 1
	return &vol, nil
}

// SameGrid reports whether two images share dimensions and affine
func (img *Image) SameGrid(other *Image) bool {
	if img.Nx != other.Nx || img.Ny != other.Ny || img.Nz != other.Nz {
		return false
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if math.Abs(img.Affine[i][j]-other.Affine[i][j]) > 1e-4 {
				return false
			}
		}
	}
	return true
}
