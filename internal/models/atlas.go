package models

import (
	"fmt"
	"strings"
)

// Resolution is the isotropic voxel size of an atlas grid in millimetres
type Resolution int

const (
	// Res1mm selects the 1mm atlas images
	Res1mm Resolution = 1

	// Res2mm selects the 2mm atlas images
	Res2mm Resolution = 2
)

// ParseResolution accepts "1", "2", "1mm" or "2mm"
func ParseResolution(s string) (Resolution, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "1mm":
		return Res1mm, nil
	case "2", "2mm":
		return Res2mm, nil
	}
	return 0, fmt.Errorf("%w: resolution %q (must be 1mm or 2mm)", ErrInvalidArgument, s)
}

// Validate reports whether r is one of the published atlas resolutions
func (r Resolution) Validate() error {
	if r != Res1mm && r != Res2mm {
		return fmt.Errorf("%w: resolution %d (must be 1 or 2)", ErrInvalidArgument, int(r))
	}
	return nil
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dmm", int(r))
}

// AtlasSpec describes one remote atlas: a label image and its label table
type AtlasSpec struct {
	// Name is the parcellation name written to the Parcellation column
	Name string

	// LabelImageURL points at the NIfTI label image
	LabelImageURL string

	// LabelTableURL points at the CSV region-name table
	LabelTableURL string

	// Resolution is the voxel size of the label image
	Resolution Resolution
}

// CachedAtlas is an AtlasSpec resolved to files in the local cache
type CachedAtlas struct {
	Name           string
	LabelImagePath string
	LabelTablePath string
}
