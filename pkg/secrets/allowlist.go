package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
)

// Allowlist holds content patterns and stopwords excluded from detection.
type Allowlist struct {
	Regexes   []string
	StopWords []string
}

// LoadAllowlists loads and merges allowlist files using union (OR) logic.
// Empty paths and missing files are skipped. Invalid TOML or regex patterns
// return errors.
//
// Files use the gitleaks layout:
//
//	[allowlist]
//	regexes = ['''EXAMPLE-[0-9]+''']
//	stopwords = ['''placeholder''']
func LoadAllowlists(paths ...string) (*Allowlist, error) {
	merged := &Allowlist{}

	for _, path := range paths {
		if path == "" {
			continue
		}
		list, err := loadTOML(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		merged.Regexes = append(merged.Regexes, list.Regexes...)
		merged.StopWords = append(merged.StopWords, list.StopWords...)
	}

	return merged, nil
}

// loadTOML loads and validates a single allowlist file.
func loadTOML(path string) (*Allowlist, error) {
	var file struct {
		Allowlist struct {
			Regexes   []string `toml:"regexes"`
			StopWords []string `toml:"stopwords"`
		} `toml:"allowlist"`
	}

	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, path, err)
	}

	for _, pattern := range file.Allowlist.Regexes {
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("%w: '%s' in %s: %v", ErrInvalidRegex, pattern, path, err)
		}
	}

	return &Allowlist{
		Regexes:   file.Allowlist.Regexes,
		StopWords: file.Allowlist.StopWords,
	}, nil
}
