// Package catalog holds the fixed list of parcellation atlases published in
// the parcpak data repository and builds their download URLs.
//
// Cached files are keyed by the basename of their URL, so every entry added
// here must have an image and table filename that no other entry uses with a
// different URL. CheckBasenames enforces that.
package catalog

import (
	"fmt"
	"net/url"
	"path"

	"github.com/voxelai/parcpak/internal/models"
)

// DefaultBaseURL is the root of the published atlas data
const DefaultBaseURL = "https://github.com/voxelai/parcpak/raw/main/data/"

const (
	parcellationsDir = "parcellations"
	tablesDir        = "tables"
)

// Size is the number of atlases in the catalog
const Size = 15

// Schaefer returns the Schaefer 2018 7-network cortical parcellation with
// the given number of parcels (100 to 1000 in steps of 100).
func Schaefer(baseURL string, parcels int, res models.Resolution) (models.AtlasSpec, error) {
	if parcels < 100 || parcels > 1000 || parcels%100 != 0 {
		return models.AtlasSpec{}, fmt.Errorf("%w: Schaefer parcel count %d (must be 100..1000 in steps of 100)",
			models.ErrInvalidArgument, parcels)
	}
	return build(baseURL, res,
		fmt.Sprintf("Schaefer%d_7Networks", parcels),
		fmt.Sprintf("Schaefer2018_%dParcels_7Networks_order_FSLMNI152_%dmm.nii.gz", parcels, int(res)),
		fmt.Sprintf("Schaefer2018_%dParcels_7Networks.csv", parcels))
}

// Tian returns the Tian 3T subcortical parcellation at scale S1..S4
func Tian(baseURL string, version int, res models.Resolution) (models.AtlasSpec, error) {
	if version < 1 || version > 4 {
		return models.AtlasSpec{}, fmt.Errorf("%w: Tian version %d (must be 1..4)", models.ErrInvalidArgument, version)
	}
	return build(baseURL, res,
		fmt.Sprintf("Tian_Subcortex_S%d", version),
		fmt.Sprintf("Tian_Subcortex_S%d_3T_%dmm.nii.gz", version, int(res)),
		fmt.Sprintf("Tian_Subcortex_S%d_3T_label.csv", version))
}

// Diedrichsen returns the Diedrichsen cerebellar atlas
func Diedrichsen(baseURL string, res models.Resolution) (models.AtlasSpec, error) {
	return build(baseURL, res,
		"Diedrichsen",
		fmt.Sprintf("Diedrichsen_space-MNI_dseg_%dmm.nii.gz", int(res)),
		"Diedrichsen.csv")
}

// Buckner returns the Buckner 7-network cerebellar atlas
func Buckner(baseURL string, res models.Resolution) (models.AtlasSpec, error) {
	return build(baseURL, res,
		"Buckner7",
		fmt.Sprintf("Buckner7_space-MNI_dseg_%dmm.nii.gz", int(res)),
		"Buckner7.csv")
}

// Specs returns every catalog atlas at the given resolution, in catalog
// order: Schaefer 100..1000, Tian S1..S3, Diedrichsen, Buckner7.
func Specs(baseURL string, res models.Resolution) ([]models.AtlasSpec, error) {
	if err := res.Validate(); err != nil {
		return nil, err
	}

	specs := make([]models.AtlasSpec, 0, Size)
	for parcels := 100; parcels <= 1000; parcels += 100 {
		spec, err := Schaefer(baseURL, parcels, res)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	for version := 1; version <= 3; version++ {
		spec, err := Tian(baseURL, version, res)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}

	d, err := Diedrichsen(baseURL, res)
	if err != nil {
		return nil, err
	}
	b, err := Buckner(baseURL, res)
	if err != nil {
		return nil, err
	}
	specs = append(specs, d, b)

	if err := CheckBasenames(specs); err != nil {
		return nil, err
	}
	return specs, nil
}

// CheckBasenames fails if two different URLs in specs share a basename and
// would therefore collide in the cache directory.
func CheckBasenames(specs []models.AtlasSpec) error {
	owners := make(map[string]string)
	for _, spec := range specs {
		for _, u := range []string{spec.LabelImageURL, spec.LabelTableURL} {
			base := Basename(u)
			if prev, ok := owners[base]; ok && prev != u {
				return fmt.Errorf("cache key collision: %s and %s share basename %q", prev, u, base)
			}
			owners[base] = u
		}
	}
	return nil
}

// Basename returns the last path element of a URL, ignoring any query
func Basename(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(rawURL)
}

func build(baseURL string, res models.Resolution, name, image, table string) (models.AtlasSpec, error) {
	if err := res.Validate(); err != nil {
		return models.AtlasSpec{}, err
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	imageURL, err := url.JoinPath(baseURL, parcellationsDir, image)
	if err != nil {
		return models.AtlasSpec{}, fmt.Errorf("%w: base URL %q: %v", models.ErrInvalidArgument, baseURL, err)
	}
	tableURL, err := url.JoinPath(baseURL, tablesDir, table)
	if err != nil {
		return models.AtlasSpec{}, fmt.Errorf("%w: base URL %q: %v", models.ErrInvalidArgument, baseURL, err)
	}

	return models.AtlasSpec{
		Name:          name,
		LabelImageURL: imageURL,
		LabelTableURL: tableURL,
		Resolution:    res,
	}, nil
}
