package backfill

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Fingerprint hashes the contents of an export's files in order, so the same export
// copied to two places gets the same fingerprint.
func Fingerprint(exp Export) (string, error) {
	h := sha256.New()
	for _, path := range exp.Files {
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("open %s: %w", path, err)
		}
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		// A zero byte separates pages.
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FindDuplicates returns the dirs of exports whose fingerprint matches an earlier
// export in the list or one already recorded in seen. The first copy wins.
func FindDuplicates(exports []Export, fingerprints map[string]string, seen map[string]string) map[string]bool {
	duplicates := make(map[string]bool)
	first := make(map[string]string, len(seen))
	for fp, dir := range seen {
		first[fp] = dir
	}

	for _, exp := range exports {
		fp, ok := fingerprints[exp.Dir]
		if !ok {
			continue
		}
		if dir, dup := first[fp]; dup && dir != exp.Dir {
			duplicates[exp.Dir] = true
			continue
		}
		first[fp] = exp.Dir
	}
	return duplicates
}
