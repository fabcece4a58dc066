package jsonl

import (
	"bufio"
	"bytes"
	"os"
	"strings"
)

// ScanConflictMarkers returns true if any line in the file at path begins
// with an unresolved git-style merge conflict marker.
func ScanConflictMarkers(path string) (bool, error) {
	// #nosec G304 - path is the workspace-resolved canonical file
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ScanConflictMarkersData(data), nil
}

// ScanConflictMarkersData is the in-memory variant of ScanConflictMarkers.
func ScanConflictMarkersData(data []byte) bool {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "<<<<<<<") || strings.HasPrefix(line, "=======") || strings.HasPrefix(line, ">>>>>>>") {
			return true
		}
	}
	return false
}
