// Package reduce turns a subject volume into a long-format table of
// per-region statistics across every catalog parcellation.
package reduce

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/voxelai/parcpak/internal/models"
	"github.com/voxelai/parcpak/pkg/labeltable"
	"github.com/voxelai/parcpak/pkg/nifti"
)

// AtlasResolver materializes the catalog atlases on local disk.
// *fetch.Fetcher implements it.
type AtlasResolver interface {
	ResolveCatalog(ctx context.Context, res models.Resolution, overwrite bool) ([]models.CachedAtlas, error)
}

// RegionReducer computes one statistic per labelled region of labels over
// volume, in the label enumeration order the atlas label table follows.
// *masker.LabelsMasker implements it.
type RegionReducer interface {
	ReduceRegions(volume, labels *nifti.Image, metric models.StatKind) ([]float64, error)
}

// Reducer runs the region reduction for every atlas of the catalog
type Reducer struct {
	resolver AtlasResolver
	masker   RegionReducer
	logger   *zap.Logger
}

// Option configures a Reducer
type Option func(*Reducer)

// WithLogger sets the logger used for per-atlas progress
func WithLogger(logger *zap.Logger) Option {
	return func(r *Reducer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Reducer that fetches atlases through resolver and reduces
// regions with masker.
func New(resolver AtlasResolver, masker RegionReducer, opts ...Option) *Reducer {
	r := &Reducer{
		resolver: resolver,
		masker:   masker,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Summarize computes metric for every region of every catalog atlas.
//
// The metric and resolution are checked before any atlas is fetched, so an
// invalid argument never causes network access. The returned table lists
// atlases in catalog order and regions in label table order. Any failure
// aborts the whole call; there is no partial result.
//
// Parameters:
//   - volume: 3D subject image
//   - metric: statistic passed through to the region reducer
//   - res: atlas resolution to fetch
//   - overwrite: force re-download of cached atlas files
//
// Returns:
//   - The concatenated table, or the first error encountered
func (r *Reducer) Summarize(ctx context.Context, volume *nifti.Image, metric models.StatKind, res models.Resolution, overwrite bool) (models.ResultTable, error) {
	if err := metric.Validate(); err != nil {
		return nil, err
	}
	if err := res.Validate(); err != nil {
		return nil, err
	}
	if volume == nil {
		return nil, fmt.Errorf("%w: nil volume", models.ErrInvalidArgument)
	}
	if volume.Nt > 1 {
		return nil, fmt.Errorf("%w: volume has %d time points, select a single 3D volume", models.ErrInvalidArgument, volume.Nt)
	}

	atlases, err := r.resolver.ResolveCatalog(ctx, res, overwrite)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve atlas catalog: %w", err)
	}

	var table models.ResultTable
	for _, atlas := range atlases {
		rows, err := r.SummarizeAtlas(atlas, volume, metric)
		if err != nil {
			return nil, err
		}
		r.logger.Info("Reduced parcellation",
			zap.String("parcellation", atlas.Name),
			zap.Int("regions", len(rows)),
			zap.String("metric", string(metric)))
		table = append(table, rows...)
	}
	return table, nil
}

// SummarizeFile loads the NIfTI image at path and summarizes it. A 4D image
// must have a single volume.
func (r *Reducer) SummarizeFile(ctx context.Context, path string, metric models.StatKind, res models.Resolution, overwrite bool) (models.ResultTable, error) {
	if err := metric.Validate(); err != nil {
		return nil, err
	}
	volume, err := nifti.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load volume: %w", err)
	}
	return r.Summarize(ctx, volume, metric, res, overwrite)
}

// SummarizeAtlas reduces volume over one cached atlas. The label table must
// have exactly one row per region the masker reports.
func (r *Reducer) SummarizeAtlas(atlas models.CachedAtlas, volume *nifti.Image, metric models.StatKind) ([]models.RegionRow, error) {
	labels, err := nifti.ReadFile(atlas.LabelImagePath)
	if err != nil {
		return nil, fmt.Errorf("atlas %s: failed to load label image: %w", atlas.Name, err)
	}

	values, err := r.masker.ReduceRegions(volume, labels, metric)
	if err != nil {
		return nil, fmt.Errorf("atlas %s: %w", atlas.Name, err)
	}

	names, err := labeltable.ReadFile(atlas.LabelTablePath)
	if err != nil {
		return nil, fmt.Errorf("atlas %s: %w", atlas.Name, err)
	}

	if len(names) != len(values) {
		return nil, &models.DataShapeError{Atlas: atlas.Name, Regions: len(values), TableRows: len(names)}
	}

	rows := make([]models.RegionRow, len(values))
	for i, v := range values {
		rows[i] = models.RegionRow{Parcellation: atlas.Name, Region: names[i], Value: v}
	}
	return rows, nil
}
