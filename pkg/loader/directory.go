package loader

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/1F47E/geo-region-index/pkg/models"
	"github.com/1F47E/geo-region-index/pkg/region"
)

// latLng is a vertex in the per-region file layout. Both fields are
// required; pointers tell a missing key from 0.
type latLng struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// fileMeta is what a region file name encodes:
// province_<code>_<name>.json or <level>_<parent>_<code>_<name>.json.
type fileMeta struct {
	level      models.Level
	parentCode string
	code       string
	name       string
}

func parseFileName(name string) (fileMeta, error) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	prefix, rest, ok := strings.Cut(base, "_")
	if !ok {
		return fileMeta{}, eris.Errorf("invalid file name %s", name)
	}
	level, err := models.ParseLevel(prefix)
	if err != nil || prefix == "" {
		return fileMeta{}, eris.Errorf("unknown level in file name %s", name)
	}

	if level == models.Province {
		parts := strings.SplitN(rest, "_", 2)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return fileMeta{}, eris.Errorf("invalid province file name %s", name)
		}
		return fileMeta{level: level, code: parts[0], name: parts[1]}, nil
	}
	parts := strings.SplitN(rest, "_", 3)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return fileMeta{}, eris.Errorf("invalid %s file name %s", level, name)
	}
	return fileMeta{level: level, parentCode: parts[0], code: parts[1], name: parts[2]}, nil
}

// readDirectory loads one region per file. Every ring in a file is a
// separate part; orientation is ignored. Files are parsed in parallel and
// the first failure cancels the rest.
func readDirectory(ctx context.Context, dir string, level models.Level, workers int) ([]*region.Region, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrap(err, "read dir")
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, e.Name())
	}

	out := make([]*region.Region, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, name := range files {
		i, name := i, name
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			meta, err := parseFileName(name)
			if err != nil {
				return err
			}
			if meta.level != level {
				return eris.Errorf("%s: %s file in %s directory", name, meta.level, level)
			}
			polys, err := readRegionFile(filepath.Join(dir, name))
			if err != nil {
				return eris.Wrap(err, name)
			}
			out[i] = &region.Region{
				Code:       meta.code,
				Name:       meta.name,
				ParentCode: meta.parentCode,
				Polygons:   polys,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func readRegionFile(path string) ([]region.Polygon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open")
	}
	defer f.Close()

	var rings [][]latLng
	if err := json.NewDecoder(bufio.NewReader(f)).Decode(&rings); err != nil {
		return nil, eris.Wrap(err, "decode rings")
	}
	if len(rings) == 0 {
		return nil, eris.New("no rings")
	}

	polys := make([]region.Polygon, 0, len(rings))
	for i, ring := range rings {
		pts := make([][2]float64, 0, len(ring))
		for j, p := range ring {
			if p.Lat == nil || p.Lng == nil {
				return nil, eris.Errorf("ring %d point %d: missing lat or lng", i, j)
			}
			lat, lng := *p.Lat, *p.Lng
			if !(models.Location{Lat: lat, Lon: lng}).Valid() {
				return nil, eris.Errorf("ring %d point %d: coordinate (%v, %v) out of range", i, j, lat, lng)
			}
			pts = append(pts, [2]float64{lat, lng})
		}
		polys = append(polys, region.NewPolygon([][][2]float64{pts}))
	}
	return polys, nil
}
