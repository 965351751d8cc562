// Package source finds and decodes the SQL scripts fed to the segmenter.
//
// Scripts are expected in UTF-8 (with or without a byte order mark). Files
// that are not valid UTF-8 are decoded as GB18030, which also covers GBK.
package source

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Extension is the file extension of SQL scripts.
const Extension = ".sql"

// Encoding names reported for decoded files.
const (
	EncodingUTF8    = "utf-8"
	EncodingUTF8BOM = "utf-8-bom"
	EncodingGB18030 = "gb18030"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// File is a decoded SQL script.
type File struct {
	// Path is the path the file was read from.
	Path string
	// Name is the base name without extension; chunk files are named after it.
	Name     string
	Text     string
	Encoding string
}

// Discover returns the *.sql files directly inside dir, sorted by name.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sql directory %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), Extension) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	slices.Sort(paths)
	return paths, nil
}

// Resolve expands command line arguments into script paths. Directories are
// expanded with Discover, files are kept as given. With no arguments,
// defaultDir is discovered. Duplicates are removed, first occurrence wins.
func Resolve(args []string, defaultDir string) ([]string, error) {
	if len(args) == 0 {
		return Discover(defaultDir)
	}

	var paths []string
	seen := make(map[string]bool)
	add := func(p string) {
		key := filepath.Clean(p)
		if seen[key] {
			return
		}
		seen[key] = true
		paths = append(paths, p)
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			add(arg)
			continue
		}
		found, err := Discover(arg)
		if err != nil {
			return nil, err
		}
		for _, p := range found {
			add(p)
		}
	}
	return paths, nil
}

// Load reads and decodes a script.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	text, enc, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	base := filepath.Base(path)
	return &File{
		Path:     path,
		Name:     strings.TrimSuffix(base, filepath.Ext(base)),
		Text:     text,
		Encoding: enc,
	}, nil
}

// Decode converts raw script bytes to a string and reports the encoding used.
func Decode(data []byte) (string, string, error) {
	if bytes.HasPrefix(data, utf8BOM) {
		out, _, err := transform.Bytes(unicode.UTF8BOM.NewDecoder(), data)
		if err != nil {
			return "", "", err
		}
		return string(out), EncodingUTF8BOM, nil
	}

	if utf8.Valid(data) {
		return string(data), EncodingUTF8, nil
	}

	out, _, err := transform.Bytes(simplifiedchinese.GB18030.NewDecoder(), data)
	if err != nil {
		return "", "", err
	}
	return string(out), EncodingGB18030, nil
}

// Within reports whether path is dir or lies inside it. Both are made absolute
// and cleaned before comparing.
func Within(dir, path string) bool {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
