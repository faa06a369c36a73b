package visualization

import (
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/voxelai/parcpak/pkg/nifti"
)

// createTestVolume builds a volume where each Z slice has a unique value
func createTestVolume(t *testing.T, width, height, depth int) *nifti.Image {
	t.Helper()
	data := make([]float64, width*height*depth)
	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				data[z*width*height+y*width+x] = float64(z)
			}
		}
	}
	img, err := nifti.New(width, height, depth, nifti.Identity(), data)
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	return img
}

// TestNewViewer verifies dimensions and the normalization range
func TestNewViewer(t *testing.T) {
	viewer := NewViewer(createTestVolume(t, 10, 8, 5))

	if viewer.width != 10 || viewer.height != 8 || viewer.depth != 5 {
		t.Errorf("Expected 10x8x5, got %dx%dx%d", viewer.width, viewer.height, viewer.depth)
	}
	if viewer.min != 0 || viewer.max != 4 {
		t.Errorf("Expected intensity range [0, 4], got [%f, %f]", viewer.min, viewer.max)
	}
}

// TestExtractSlice verifies that slices are correctly extracted from the volume
func TestExtractSlice(t *testing.T) {
	width, height, depth := 10, 8, 5
	viewer := NewViewer(createTestVolume(t, width, height, depth))

	for z := 0; z < depth; z++ {
		img, err := viewer.ExtractSlice("z", z)
		if err != nil {
			t.Fatalf("Failed to extract Z slice at position %d: %v", z, err)
		}

		bounds := img.Bounds()
		if bounds.Dx() != width || bounds.Dy() != height {
			t.Errorf("Expected Z slice dimensions %dx%d, got %dx%d",
				width, height, bounds.Dx(), bounds.Dy())
		}

		gray16Img, ok := img.(*image.Gray16)
		if !ok {
			t.Fatalf("Expected *image.Gray16, got %T", img)
		}
		expected := uint16(float64(z) / float64(depth-1) * 65535)
		if got := gray16Img.Gray16At(width/2, height/2).Y; got != expected {
			t.Errorf("Expected Z slice value %d at center, got %d", expected, got)
		}
	}

	imgX, err := viewer.ExtractSlice("x", width/2)
	if err != nil {
		t.Fatalf("Failed to extract X slice: %v", err)
	}
	if b := imgX.Bounds(); b.Dx() != height || b.Dy() != depth {
		t.Errorf("Expected X slice dimensions %dx%d, got %dx%d", height, depth, b.Dx(), b.Dy())
	}

	// superior slices are drawn at the top
	top := imgX.(*image.Gray16).Gray16At(0, 0).Y
	if top != 65535 {
		t.Errorf("Expected brightest row at the top of the X slice, got %d", top)
	}

	imgY, err := viewer.ExtractSlice("y", height/2)
	if err != nil {
		t.Fatalf("Failed to extract Y slice: %v", err)
	}
	if b := imgY.Bounds(); b.Dx() != width || b.Dy() != depth {
		t.Errorf("Expected Y slice dimensions %dx%d, got %dx%d", width, depth, b.Dx(), b.Dy())
	}

	if _, err := viewer.ExtractSlice("invalid", 0); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
	if _, err := viewer.ExtractSlice("z", depth+1); err == nil {
		t.Error("Expected error for out of bounds position, got nil")
	}
	if _, err := viewer.ExtractSlice("y", -1); err == nil {
		t.Error("Expected error for negative position, got nil")
	}
}

// TestUniformVolume verifies a constant volume renders black without dividing by zero
func TestUniformVolume(t *testing.T) {
	img, err := nifti.New(3, 3, 3, nifti.Identity(), nil)
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	slice, err := NewViewer(img).ExtractSlice("z", 1)
	if err != nil {
		t.Fatalf("Failed to extract slice: %v", err)
	}
	if v := slice.(*image.Gray16).Gray16At(1, 1).Y; v != 0 {
		t.Errorf("Expected 0 for uniform volume, got %d", v)
	}
}

// TestSaveMidSlices verifies that the three orthogonal previews are written
func TestSaveMidSlices(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	outputDir := filepath.Join(t.TempDir(), "preview")
	viewer := NewViewer(createTestVolume(t, 6, 5, 4))

	paths, err := viewer.SaveMidSlices(outputDir, "subject")
	if err != nil {
		t.Fatalf("Failed to save mid slices: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("Expected 3 files, got %d", len(paths))
	}

	for _, axis := range []string{"x", "y", "z"} {
		filename := filepath.Join(outputDir, "subject_"+axis+".jpg")
		f, err := os.Open(filename)
		if err != nil {
			t.Fatalf("Expected slice file %s: %v", filename, err)
		}
		if _, err := jpeg.Decode(f); err != nil {
			t.Errorf("%s is not a valid JPEG: %v", filename, err)
		}
		f.Close()
	}
}
