package storage

import (
	"os"
	"path/filepath"
)

// Footprint is the on-disk size of the catalog and the vector index snapshot.
type Footprint struct {
	DatabaseBytes int64 `json:"database_bytes"`
	SnapshotBytes int64 `json:"snapshot_bytes"`
}

// MeasureFootprint sums the database file with its WAL side files, and the snapshot file with
// the side files the FAISS index writes next to it.
func MeasureFootprint(dbPath, snapshotPath string) (Footprint, error) {
	var fp Footprint
	var err error
	if dbPath != "" {
		if fp.DatabaseBytes, err = DiskUsageBytes(dbPath, dbPath+"-wal", dbPath+"-shm"); err != nil {
			return Footprint{}, err
		}
	}
	if snapshotPath != "" {
		if fp.SnapshotBytes, err = DiskUsageBytes(snapshotPath, snapshotPath+".faiss", snapshotPath+".texts"); err != nil {
			return Footprint{}, err
		}
	}
	return fp, nil
}

// DiskUsageBytes returns the total size in bytes of the given paths.
// Each path may be a file or a directory (recursively summed).
// Missing paths are skipped; other stat and walk errors are returned.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		if !info.IsDir() {
			total += info.Size()
			continue
		}
		err = filepath.WalkDir(p, func(_ string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			total += fi.Size()
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
