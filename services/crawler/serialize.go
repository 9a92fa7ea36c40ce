package crawler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"tuoitre-crawler/lib/textutil"

	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatJson Format = "json"
	FormatYaml Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return FormatJson, nil
	case "yaml", "yml":
		return FormatYaml, nil
	}
	return "", fmt.Errorf("unknown output format %q, expected json or yaml", s)
}

// SaveRecord writes a record to <dataDir>/<postId>.<format> and
// returns the written path.
func SaveRecord(record Record, dataDir string, format Format) (string, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", err
	}

	var contents []byte
	var err error
	switch format {
	case FormatYaml:
		contents, err = yaml.Marshal(record)
	default:
		contents, err = json.MarshalIndent(record, "", "  ")
	}
	if err != nil {
		return "", fmt.Errorf("could not serialize post %s: %w", record.PostID, err)
	}

	dest := filepath.Join(dataDir, textutil.SanitizeFilename(record.PostID)+"."+string(format))
	if err := os.WriteFile(dest, contents, 0644); err != nil {
		return "", err
	}
	return dest, nil
}

// LoadRecord reads a record back from disk, inferring the format from
// the file extension.
func LoadRecord(path string) (Record, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return Record{}, err
	}

	var record Record
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		err = yaml.Unmarshal(contents, &record)
	} else {
		err = json.Unmarshal(contents, &record)
	}
	if err != nil {
		return Record{}, fmt.Errorf("could not parse record %s: %w", path, err)
	}
	return record, nil
}
