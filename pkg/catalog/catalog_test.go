package catalog

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/voxelai/parcpak/internal/models"
)

// TestSpecsOrder verifies the catalog has 15 entries in the fixed order
func TestSpecsOrder(t *testing.T) {
	specs, err := Specs("", models.Res2mm)
	if err != nil {
		t.Fatalf("Specs failed: %v", err)
	}

	want := []string{
		"Schaefer100_7Networks", "Schaefer200_7Networks", "Schaefer300_7Networks",
		"Schaefer400_7Networks", "Schaefer500_7Networks", "Schaefer600_7Networks",
		"Schaefer700_7Networks", "Schaefer800_7Networks", "Schaefer900_7Networks",
		"Schaefer1000_7Networks",
		"Tian_Subcortex_S1", "Tian_Subcortex_S2", "Tian_Subcortex_S3",
		"Diedrichsen", "Buckner7",
	}
	var got []string
	for _, spec := range specs {
		got = append(got, spec.Name)
		if spec.Resolution != models.Res2mm {
			t.Errorf("%s: expected resolution 2mm, got %v", spec.Name, spec.Resolution)
		}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("catalog order mismatch (-want +got):\n%s", diff)
	}
}

func TestSpecURLs(t *testing.T) {
	tests := []struct {
		name  string
		spec  func() (models.AtlasSpec, error)
		image string
		table string
	}{
		{
			name:  "schaefer",
			spec:  func() (models.AtlasSpec, error) { return Schaefer("", 400, models.Res1mm) },
			image: DefaultBaseURL + "parcellations/Schaefer2018_400Parcels_7Networks_order_FSLMNI152_1mm.nii.gz",
			table: DefaultBaseURL + "tables/Schaefer2018_400Parcels_7Networks.csv",
		},
		{
			name:  "tian",
			spec:  func() (models.AtlasSpec, error) { return Tian("", 2, models.Res2mm) },
			image: DefaultBaseURL + "parcellations/Tian_Subcortex_S2_3T_2mm.nii.gz",
			table: DefaultBaseURL + "tables/Tian_Subcortex_S2_3T_label.csv",
		},
		{
			name:  "diedrichsen",
			spec:  func() (models.AtlasSpec, error) { return Diedrichsen("", models.Res2mm) },
			image: DefaultBaseURL + "parcellations/Diedrichsen_space-MNI_dseg_2mm.nii.gz",
			table: DefaultBaseURL + "tables/Diedrichsen.csv",
		},
		{
			name:  "buckner",
			spec:  func() (models.AtlasSpec, error) { return Buckner("http://localhost:8080/data", models.Res1mm) },
			image: "http://localhost:8080/data/parcellations/Buckner7_space-MNI_dseg_1mm.nii.gz",
			table: "http://localhost:8080/data/tables/Buckner7.csv",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := tt.spec()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if spec.LabelImageURL != tt.image {
				t.Errorf("image URL = %s, want %s", spec.LabelImageURL, tt.image)
			}
			if spec.LabelTableURL != tt.table {
				t.Errorf("table URL = %s, want %s", spec.LabelTableURL, tt.table)
			}
		})
	}
}

func TestInvalidArguments(t *testing.T) {
	if _, err := Specs("", models.Resolution(3)); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for 3mm, got %v", err)
	}
	if _, err := Schaefer("", 150, models.Res2mm); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for 150 parcels, got %v", err)
	}
	if _, err := Tian("", 5, models.Res2mm); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for Tian S5, got %v", err)
	}
}

func TestCheckBasenames(t *testing.T) {
	a := models.AtlasSpec{Name: "A", LabelImageURL: "http://x/parcellations/a.nii.gz", LabelTableURL: "http://x/tables/a.csv"}
	b := models.AtlasSpec{Name: "B", LabelImageURL: "http://y/other/a.nii.gz", LabelTableURL: "http://x/tables/b.csv"}

	if err := CheckBasenames([]models.AtlasSpec{a, a}); err != nil {
		t.Errorf("identical URLs should not collide: %v", err)
	}
	if err := CheckBasenames([]models.AtlasSpec{a, b}); err == nil {
		t.Error("expected collision for a.nii.gz")
	}

	for _, res := range []models.Resolution{models.Res1mm, models.Res2mm} {
		specs, err := Specs("", res)
		if err != nil {
			t.Fatalf("Specs(%v): %v", res, err)
		}
		if len(specs) != Size {
			t.Errorf("Specs(%v) returned %d entries, want %d", res, len(specs), Size)
		}
	}
}

func TestBasename(t *testing.T) {
	if got := Basename("https://host/data/tables/Buckner7.csv?raw=true"); got != "Buckner7.csv" {
		t.Errorf("Basename = %q", got)
	}
}
