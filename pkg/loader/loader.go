// Package loader reads boundary datasets from a data directory and builds
// the region hierarchy. A load either succeeds completely or returns an
// error and no hierarchy.
package loader

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/1F47E/geo-region-index/pkg/models"
	"github.com/1F47E/geo-region-index/pkg/region"
)

var (
	// ErrConfiguration means the data directory or a required level dataset
	// is missing.
	ErrConfiguration = eris.New("loader: configuration error")
	// ErrDataFormat means a dataset exists but cannot be used: unparsable
	// coordinates, duplicate codes, dangling parents and the like.
	ErrDataFormat = eris.New("loader: data format error")
)

// format is the on-disk encoding of a level dataset.
type format string

const (
	formatRecords   format = "json"
	formatGeoJSON   format = "geojson"
	formatShapefile format = "shapefile"
	formatDirectory format = "directory"
)

// source is a located dataset for one level.
type source struct {
	level  models.Level
	format format
	path   string
}

type options struct {
	logger  *zap.Logger
	workers int
}

// Option configures Load.
type Option func(*options)

// WithLogger sets the logger. Defaults to zap.L().
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithWorkers bounds how many region files are parsed at once when a level
// is stored as a directory. Defaults to runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// Load reads every level from province down to finest and returns the
// linked hierarchy. Levels below finest are never opened.
func Load(ctx context.Context, dir string, finest models.Level, opts ...Option) (*region.Hierarchy, error) {
	o := options{logger: zap.L(), workers: runtime.NumCPU()}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger.With(zap.String("component", "loader"))

	if !finest.Valid() {
		return nil, eris.Wrapf(ErrConfiguration, "finest level %d", int(finest))
	}
	st, err := os.Stat(dir)
	if err != nil {
		return nil, eris.Wrapf(ErrConfiguration, "data directory %s: %v", dir, err)
	}
	if !st.IsDir() {
		return nil, eris.Wrapf(ErrConfiguration, "data path %s is not a directory", dir)
	}

	// locate every level before parsing anything so a missing level fails fast
	sources := make([]source, 0, int(finest)+1)
	for level := models.Province; level <= finest; level++ {
		src, err := discover(dir, level)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}

	start := time.Now()
	b := region.NewBuilder()
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "loader: cancelled")
		}

		levelStart := time.Now()
		regions, err := read(ctx, src, o.workers)
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "loader: cancelled")
			}
			return nil, eris.Wrapf(ErrDataFormat, "%s: %v", src.path, err)
		}
		if len(regions) == 0 {
			return nil, eris.Wrapf(ErrConfiguration, "%s: no %s regions", src.path, src.level)
		}
		for _, r := range regions {
			r.Level = src.level
			if src.level == models.Province {
				r.ParentCode = ""
			}
			if err := b.Add(r); err != nil {
				return nil, eris.Wrapf(ErrDataFormat, "%s: %v", src.path, err)
			}
		}

		log.Info("level loaded",
			zap.Stringer("level", src.level),
			zap.String("format", string(src.format)),
			zap.String("path", src.path),
			zap.Int("regions", len(regions)),
			zap.Duration("elapsed", time.Since(levelStart)),
		)
	}

	h, err := b.Build()
	if err != nil {
		return nil, eris.Wrapf(ErrDataFormat, "%v", err)
	}

	log.Info("hierarchy built",
		zap.Int("regions", h.Len()),
		zap.Stringer("finest", finest),
		zap.Duration("elapsed", time.Since(start)),
	)
	return h, nil
}

// discover finds the dataset for a level. Candidates are checked in order:
// <level>.json, <level>.geojson, <level>.shp, then a <level>/ directory.
func discover(dir string, level models.Level) (source, error) {
	name := level.String()
	candidates := []source{
		{level: level, format: formatRecords, path: filepath.Join(dir, name+".json")},
		{level: level, format: formatGeoJSON, path: filepath.Join(dir, name+".geojson")},
		{level: level, format: formatShapefile, path: filepath.Join(dir, name+".shp")},
		{level: level, format: formatDirectory, path: filepath.Join(dir, name)},
	}
	for _, c := range candidates {
		st, err := os.Stat(c.path)
		if err != nil {
			continue
		}
		if st.IsDir() == (c.format == formatDirectory) {
			return c, nil
		}
	}
	return source{}, eris.Wrapf(ErrConfiguration, "no %s dataset in %s", name, dir)
}

func read(ctx context.Context, src source, workers int) ([]*region.Region, error) {
	switch src.format {
	case formatRecords:
		return readRecords(src.path)
	case formatGeoJSON:
		return readGeoJSON(src.path, src.level)
	case formatShapefile:
		return readShapefile(src.path, src.level)
	case formatDirectory:
		return readDirectory(ctx, src.path, src.level, workers)
	default:
		return nil, eris.Errorf("unsupported format %q", src.format)
	}
}
