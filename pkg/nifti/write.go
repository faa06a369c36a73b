package nifti

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// WriteFile saves img as a single-file NIfTI-1 image, gzip-compressed when
// path ends in ".gz".
func WriteFile(path string, img *Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	var w io.Writer = f
	var zw *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		zw = gzip.NewWriter(f)
		w = zw
	}

	if err := Encode(w, img); err != nil {
		f.Close()
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			f.Close()
			return fmt.Errorf("error compressing %s: %w", path, err)
		}
	}
	return f.Close()
}

// Encode writes img in little-endian NIfTI-1 layout with an sform affine.
// The datatype is img.Datatype; float32 is used when it is unset.
func Encode(w io.Writer, img *Image) error {
	dt := img.Datatype
	if dt == 0 {
		dt = DTFloat32
	}
	switch dt {
	case DTUint8, DTInt16, DTInt32, DTFloat32, DTFloat64:
	default:
		return fmt.Errorf("writing datatype %d is not supported", dt)
	}
	if len(img.Data) != img.Voxels()*max(img.Nt, 1) {
		return fmt.Errorf("data has %d voxels, dimensions need %d", len(img.Data), img.Voxels()*max(img.Nt, 1))
	}

	h := buildHeader(img, dt)
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, &h); err != nil {
		return err
	}
	// empty extension block
	if _, err := bw.Write([]byte{0, 0, 0, 0}); err != nil {
		return err
	}

	buf := make([]byte, 8)
	size := bytesPerVoxel(dt)
	for _, v := range img.Data {
		encodeVoxel(buf, dt, v)
		if _, err := bw.Write(buf[:size]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func buildHeader(img *Image, dt int16) Header {
	h := Header{
		SizeofHdr: headerSize,
		Datatype:  dt,
		Bitpix:    int16(8 * bytesPerVoxel(dt)),
		VoxOffset: minVoxOffset,
		SclSlope:  1,
		XyztUnits: 2 | 8, // mm, seconds
		SformCode: xformAligned,
		Magic:     singleFileMagic,
	}

	h.Dim = [8]int16{3, int16(img.Nx), int16(img.Ny), int16(img.Nz), 1, 1, 1, 1}
	if img.Nt > 1 {
		h.Dim[0] = 4
		h.Dim[4] = int16(img.Nt)
	}

	h.Pixdim[0] = 1
	for j := 0; j < 3; j++ {
		col := math.Sqrt(img.Affine[0][j]*img.Affine[0][j] +
			img.Affine[1][j]*img.Affine[1][j] +
			img.Affine[2][j]*img.Affine[2][j])
		h.Pixdim[j+1] = float32(col)
	}
	h.Pixdim[4] = 1

	for j := 0; j < 4; j++ {
		h.SrowX[j] = float32(img.Affine[0][j])
		h.SrowY[j] = float32(img.Affine[1][j])
		h.SrowZ[j] = float32(img.Affine[2][j])
	}
	copy(h.Descrip[:], "parcpak")
	return h
}

func encodeVoxel(buf []byte, dt int16, v float64) {
	switch dt {
	case DTUint8:
		buf[0] = uint8(clamp(math.Round(v), 0, math.MaxUint8))
	case DTInt16:
		binary.LittleEndian.PutUint16(buf, uint16(int16(clamp(math.Round(v), math.MinInt16, math.MaxInt16))))
	case DTInt32:
		binary.LittleEndian.PutUint32(buf, uint32(int32(clamp(math.Round(v), math.MinInt32, math.MaxInt32))))
	case DTFloat32:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(v)))
	case DTFloat64:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
