// Package nifti reads and writes single-file NIfTI-1 images (.nii and
// .nii.gz), the voxel format of both the subject volumes and the atlas
// label images.
//
// Header layout follows nifti1.h.
package nifti

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Header is the 348-byte NIfTI-1 header
type Header struct {
	SizeofHdr          int32      // Must be 348
	UnusedDataType     [10]byte   // Unused
	UnusedDbName       [18]byte   // Unused
	UnusedExtents      int32      // Unused
	UnusedSessionError int16      // Unused
	UnusedRegular      byte       // Unused
	DimInfo            byte       // MRI slice ordering
	Dim                [8]int16   // Data array dimensions
	IntentP1           float32    // 1st intent parameter
	IntentP2           float32    // 2nd intent parameter
	IntentP3           float32    // 3rd intent parameter
	IntentCode         int16      // NIFTI_INTENT_* code
	Datatype           int16      // Defines data type
	Bitpix             int16      // Number bits/voxel
	SliceStart         int16      // First slice index
	Pixdim             [8]float32 // Grid spacing
	VoxOffset          float32    // Offset into .nii file
	SclSlope           float32    // Data scaling: slope
	SclInter           float32    // Data scaling: offset
	SliceEnd           int16      // Last slice index
	SliceCode          byte       // Slice timing order
	XyztUnits          byte       // Units of pixdim[1..4]
	CalMax             float32    // Max display intensity
	CalMin             float32    // Min display intensity
	SliceDuration      float32    // Time for 1 slice
	Toffset            float32    // Time axis shift
	UnusedGlmax        int32      // Unused
	UnusedGlmin        int32      // Unused
	Descrip            [80]byte   // Any text you like
	AuxFile            [24]byte   // Auxiliary filename
	QformCode          int16      // NIFTI_XFORM_* code
	SformCode          int16      // NIFTI_XFORM_* code
	QuaternB           float32    // Quaternion b param
	QuaternC           float32    // Quaternion c param
	QuaternD           float32    // Quaternion d param
	QoffsetX           float32    // Quaternion x shift
	QoffsetY           float32    // Quaternion y shift
	QoffsetZ           float32    // Quaternion z shift
	SrowX              [4]float32 // 1st row affine transform
	SrowY              [4]float32 // 2nd row affine transform
	SrowZ              [4]float32 // 3rd row affine transform
	IntentName         [16]byte   // 'name' or meaning of data
	Magic              [4]byte    // Must be "n+1\0" for single files
}

const (
	headerSize   = 348
	minVoxOffset = 352
	xformAligned = 2
)

var singleFileMagic = [4]byte{'n', '+', '1', 0}

// Datatype codes from nifti1.h
const (
	DTUint8   int16 = 2
	DTInt16   int16 = 4
	DTInt32   int16 = 8
	DTFloat32 int16 = 16
	DTFloat64 int16 = 64
	DTInt8    int16 = 256
	DTUint16  int16 = 512
	DTUint32  int16 = 768
	DTInt64   int16 = 1024
	DTUint64  int16 = 1280
)

// bytesPerVoxel returns the storage size of a supported datatype, or 0
func bytesPerVoxel(dt int16) int {
	switch dt {
	case DTUint8, DTInt8:
		return 1
	case DTInt16, DTUint16:
		return 2
	case DTInt32, DTUint32, DTFloat32:
		return 4
	case DTInt64, DTUint64, DTFloat64:
		return 8
	}
	return 0
}

// readHeader decodes the header, probing little then big endian by the
// sizeof_hdr field.
func readHeader(raw []byte) (Header, binary.ByteOrder, error) {
	if len(raw) < headerSize {
		return Header{}, nil, fmt.Errorf("file too short for a NIfTI-1 header: %d bytes", len(raw))
	}

	var h Header
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		h = Header{}
		if err := binary.Read(bytes.NewReader(raw[:headerSize]), order, &h); err != nil {
			return Header{}, nil, fmt.Errorf("error decoding header: %w", err)
		}
		if h.SizeofHdr == headerSize {
			return h, order, validateHeader(h)
		}
	}
	return Header{}, nil, fmt.Errorf("not a NIfTI-1 file: sizeof_hdr is %d", h.SizeofHdr)
}

func validateHeader(h Header) error {
	switch {
	case h.Magic != singleFileMagic:
		return fmt.Errorf("unsupported magic %q: only single-file (n+1) images are supported", bytes.TrimRight(h.Magic[:], "\x00"))
	case h.Dim[0] < 1 || h.Dim[0] > 7:
		return fmt.Errorf("dim[0] is %d, not in range [1, 7]", h.Dim[0])
	case bytesPerVoxel(h.Datatype) == 0:
		return fmt.Errorf("unsupported datatype %d", h.Datatype)
	}
	for i := 5; i <= int(h.Dim[0]); i++ {
		if h.Dim[i] > 1 {
			return fmt.Errorf("images with more than 4 dimensions are not supported (dim[%d] = %d)", i, h.Dim[i])
		}
	}
	for i := 1; i <= int(h.Dim[0]) && i <= 4; i++ {
		if h.Dim[i] < 1 {
			return fmt.Errorf("dim[%d] is %d", i, h.Dim[i])
		}
	}
	return nil
}

// dims returns nx, ny, nz, nt with unused dimensions set to 1
func (h Header) dims() (int, int, int, int) {
	d := [4]int{1, 1, 1, 1}
	for i := 1; i <= int(h.Dim[0]) && i <= 4; i++ {
		d[i-1] = int(h.Dim[i])
	}
	return d[0], d[1], d[2], d[3]
}
