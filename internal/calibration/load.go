package calibration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const maxTableFileSize = 1 * 1024 * 1024 // 1MB

// tableFile is the on-disk form of a Table. Joints is a slice so a file with
// the wrong number of entries is detected instead of truncated or zero-filled.
type tableFile struct {
	Revision string  `json:"revision"`
	Joints   []Joint `json:"joints"`
}

// LoadTable loads a calibration table from a JSON file. The file must list
// exactly NumJoints joints.
func LoadTable(path string) (*Table, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("calibration file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat calibration file: %w", err)
	}
	if fileInfo.Size() > maxTableFileSize {
		return nil, fmt.Errorf("calibration file too large: %d bytes (max %d)", fileInfo.Size(), maxTableFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read calibration file: %w", err)
	}

	var f tableFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse calibration JSON: %w", err)
	}
	if len(f.Joints) != NumJoints {
		return nil, fmt.Errorf("invalid calibration: file lists %d joints, want %d", len(f.Joints), NumJoints)
	}

	t := Table{Revision: f.Revision}
	copy(t.Joints[:], f.Joints)
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid calibration: %w", err)
	}
	return &t, nil
}

// Resolve returns the table from path when set, otherwise the named built-in
// revision.
func Resolve(revision, path string) (*Table, error) {
	if path != "" {
		return LoadTable(path)
	}
	return Lookup(revision)
}
