package region

import (
	"bufio"
	"encoding/gob"
	"os"

	"github.com/rotisserie/eris"

	"github.com/1F47E/geo-region-index/pkg/models"
)

const snapshotVersion = 1

// snapshot is the serializable form of a hierarchy
type snapshot struct {
	Version int
	Regions []*Region
}

// SaveSnapshot writes the hierarchy to a gob file so later starts can skip
// parsing the boundary dataset.
func SaveSnapshot(filename string, h *Hierarchy) error {
	data := snapshot{Version: snapshotVersion, Regions: make([]*Region, 0, h.Len())}
	for _, level := range models.Levels {
		for _, code := range h.Level(level) {
			data.Regions = append(data.Regions, h.regions[code])
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return eris.Wrap(err, "region: create snapshot")
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	if err := gob.NewEncoder(w).Encode(data); err != nil {
		return eris.Wrap(err, "region: encode snapshot")
	}
	if err := w.Flush(); err != nil {
		return eris.Wrap(err, "region: flush snapshot")
	}
	if err := file.Sync(); err != nil {
		return eris.Wrap(err, "region: sync snapshot")
	}
	return nil
}

// LoadSnapshot reads a gob file written by SaveSnapshot and rebuilds the
// hierarchy, re-running validation and linking.
func LoadSnapshot(filename string) (*Hierarchy, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, eris.Wrap(err, "region: open snapshot")
	}
	defer file.Close()

	var data snapshot
	if err := gob.NewDecoder(bufio.NewReader(file)).Decode(&data); err != nil {
		return nil, eris.Wrap(err, "region: decode snapshot")
	}
	if data.Version != snapshotVersion {
		return nil, eris.Errorf("region: snapshot version %d, want %d", data.Version, snapshotVersion)
	}

	b := NewBuilder()
	for _, r := range data.Regions {
		if err := b.Add(r); err != nil {
			return nil, err
		}
	}
	return b.Build()
}
