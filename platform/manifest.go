package platform

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	// ErrManifestMissing means the platform has no manifest file.
	ErrManifestMissing = errors.New("manifest does not exist")

	// ErrManifestInvalid means the manifest could not be decoded or has no usable name.
	ErrManifestInvalid = errors.New("manifest is invalid")
)

// Manifest is the platform descriptor file. Only Name is required; the other fields are
// informational and are shown in debug output.
type Manifest struct {
	Name     string   `json:"name"`
	LongName string   `json:"longname,omitempty"`
	Describe string   `json:"describe,omitempty"`
	DocURL   string   `json:"docurl,omitempty"`
	Domains  []string `json:"domains,omitempty"`
	Version  string   `json:"version,omitempty"`
	Status   string   `json:"status,omitempty"`
}

// Layout names the files that make up a platform directory.
type Layout struct {
	ManifestFile     string
	ParserFile       string
	TestDir          string
	FixtureExtension string
}

// DefaultLayout is the layout of an ezPAARSE platform directory.
func DefaultLayout() Layout {
	return Layout{
		ManifestFile:     "manifest.json",
		ParserFile:       "parser.js",
		TestDir:          "test",
		FixtureExtension: ".csv",
	}
}

// Descriptor describes a platform whose manifest has been validated.
type Descriptor struct {
	Name         string
	Manifest     Manifest
	RootPath     string
	ManifestPath string
	ParserPath   string
	TestDir      string
}

// HasParser reports whether the parser entry point exists. A platform without one has nothing
// to test.
func (d Descriptor) HasParser() bool {
	_, err := os.Stat(d.ParserPath)
	return err == nil
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Manifest{}, fmt.Errorf("%w: %s", ErrManifestMissing, path)
		}
		return Manifest{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Manifest{}, fmt.Errorf("%w: %s is not a JSON object: %s", ErrManifestInvalid, path, err)
	}
	rawName, ok := fields["name"]
	if !ok {
		return Manifest{}, fmt.Errorf("%w: field 'name' in %s does not exist", ErrManifestInvalid, path)
	}
	var name string
	if err := json.Unmarshal(rawName, &name); err != nil {
		return Manifest{}, fmt.Errorf("%w: field 'name' in %s is not a string", ErrManifestInvalid, path)
	}
	if name == "" {
		return Manifest{}, fmt.Errorf("%w: field 'name' in %s is empty", ErrManifestInvalid, path)
	}

	// Optional fields are informational; a mistyped one is left empty.
	var m Manifest
	_ = json.Unmarshal(data, &m)
	m.Name = name
	return m, nil
}

// Load validates the manifest of the platform directory root/name and resolves its paths.
func Load(root, name string, layout Layout) (Descriptor, error) {
	platformPath := filepath.Join(root, name)
	manifestPath := filepath.Join(platformPath, layout.ManifestFile)

	m, err := LoadManifest(manifestPath)
	if err != nil {
		return Descriptor{}, err
	}
	return Descriptor{
		Name:         m.Name,
		Manifest:     m,
		RootPath:     platformPath,
		ManifestPath: manifestPath,
		ParserPath:   filepath.Join(platformPath, layout.ParserFile),
		TestDir:      filepath.Join(platformPath, layout.TestDir),
	}, nil
}
