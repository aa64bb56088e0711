// Package loader handles loading FHIR packages from the NPM cache,
// local .tgz files, or remote URLs.
package loader

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/goccy/go-json"

	"github.com/gofhir/parser/pkg/logger"
)

// DefaultPackagePath returns the default FHIR package cache path.
func DefaultPackagePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".fhir", "packages")
}

// PackageRef represents a reference to a FHIR package.
type PackageRef struct {
	Name    string
	Version string
}

// String returns the package spec in "name#version" format.
func (p PackageRef) String() string {
	return fmt.Sprintf("%s#%s", p.Name, p.Version)
}

// Package represents a loaded FHIR package.
type Package struct {
	Name        string
	Version     string
	Path        string
	FHIRVersion string
	Resources   map[string]json.RawMessage // URL or resourceType/id -> raw JSON
}

// ResourcesOfType returns the raw resources whose resourceType is
// resourceType. A resource indexed under both its URL and its id is
// returned once.
func (p *Package) ResourcesOfType(resourceType string) []json.RawMessage {
	seen := make(map[string]bool)
	var out []json.RawMessage
	for _, data := range p.Resources {
		rt, err := jsonparser.GetString(data, "resourceType")
		if err != nil || rt != resourceType {
			continue
		}
		key := identityOf(data)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, data)
	}
	return out
}

// PackageManifest represents the package.json of a FHIR NPM package.
type PackageManifest struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	FHIRVersion  string            `json:"fhirVersion,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// UnmarshalJSON accepts fhirVersions (an array, used by newer packages) as
// well as fhirVersion.
func (m *PackageManifest) UnmarshalJSON(data []byte) error {
	type plain PackageManifest
	var raw struct {
		plain
		FHIRVersions []string `json:"fhirVersions,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = PackageManifest(raw.plain)
	if m.FHIRVersion == "" && len(raw.FHIRVersions) > 0 {
		m.FHIRVersion = raw.FHIRVersions[0]
	}
	return nil
}

// DefaultPackages maps FHIR versions to their core package.
var DefaultPackages = map[string][]PackageRef{
	"4.0.1": {
		{Name: "hl7.fhir.r4.core", Version: "4.0.1"},
		{Name: "hl7.fhir.uv.extensions.r4", Version: "5.2.0"},
	},
	"4.3.0": {
		{Name: "hl7.fhir.r4b.core", Version: "4.3.0"},
		{Name: "hl7.fhir.uv.extensions.r4", Version: "5.2.0"},
	},
	"5.0.0": {
		{Name: "hl7.fhir.r5.core", Version: "5.0.0"},
		{Name: "hl7.fhir.uv.extensions.r5", Version: "5.2.0"},
	},
}

// Loader loads FHIR packages from the NPM cache.
type Loader struct {
	basePath string
	client   *http.Client
	log      *logger.Logger
}

// NewLoader creates a new Loader with the given base path.
func NewLoader(basePath string) *Loader {
	if basePath == "" {
		basePath = DefaultPackagePath()
	}
	return &Loader{
		basePath: basePath,
		client:   http.DefaultClient,
		log:      logger.Default(),
	}
}

// WithLogger sets the logger used for skipped files and optional packages.
func (l *Loader) WithLogger(log *logger.Logger) *Loader {
	if log != nil {
		l.log = log
	}
	return l
}

// WithHTTPClient sets the client used by LoadFromURL.
func (l *Loader) WithHTTPClient(client *http.Client) *Loader {
	if client != nil {
		l.client = client
	}
	return l
}

// BasePath returns the base path for packages.
func (l *Loader) BasePath() string {
	return l.basePath
}

// LoadPackage loads a specific package by name and version.
func (l *Loader) LoadPackage(name, version string) (*Package, error) {
	pkgDir := filepath.Join(l.basePath, fmt.Sprintf("%s#%s", name, version))

	if _, err := os.Stat(pkgDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("package %s#%s not found at %s", name, version, pkgDir)
	}

	manifestPath := filepath.Join(pkgDir, "package", "package.json")
	manifestData, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read package manifest: %w", err)
	}

	var manifest PackageManifest
	if err := json.Unmarshal(manifestData, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse package manifest: %w", err)
	}

	pkg := &Package{
		Name:        name,
		Version:     version,
		Path:        pkgDir,
		FHIRVersion: manifest.FHIRVersion,
		Resources:   make(map[string]json.RawMessage),
	}

	packageDir := filepath.Join(pkgDir, "package")
	entries, err := os.ReadDir(packageDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read package directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if entry.Name() == "package.json" || entry.Name() == ".index.json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(packageDir, entry.Name()))
		if err != nil {
			l.log.Debug("skipping %s: %v", entry.Name(), err)
			continue
		}
		pkg.index(data)
	}

	l.log.Debug("loaded %s#%s: %d resource keys", name, version, len(pkg.Resources))
	return pkg, nil
}

// LoadPackageRef loads a package from a PackageRef.
func (l *Loader) LoadPackageRef(ref PackageRef) (*Package, error) {
	return l.LoadPackage(ref.Name, ref.Version)
}

// LoadVersion loads all default packages for a specific FHIR version.
// The core package is required; the others are skipped with a warning when
// missing.
func (l *Loader) LoadVersion(version string) ([]*Package, error) {
	refs, ok := DefaultPackages[version]
	if !ok {
		return nil, fmt.Errorf("unknown FHIR version: %s (supported: 4.0.1, 4.3.0, 5.0.0)", version)
	}

	packages := make([]*Package, 0, len(refs))
	for _, ref := range refs {
		pkg, err := l.LoadPackageRef(ref)
		if err != nil {
			if strings.Contains(ref.Name, ".core") {
				return nil, fmt.Errorf("failed to load core package: %w", err)
			}
			l.log.Warn("%s: %v", ref.String(), err)
			continue
		}
		packages = append(packages, pkg)
	}

	return packages, nil
}

// ListPackages returns all available packages in the cache.
func (l *Loader) ListPackages() ([]string, error) {
	entries, err := os.ReadDir(l.basePath)
	if err != nil {
		return nil, err
	}

	var packages []string
	for _, entry := range entries {
		if entry.IsDir() && strings.Contains(entry.Name(), "#") {
			packages = append(packages, entry.Name())
		}
	}
	return packages, nil
}

// ParsePackageSpec parses "name#version" into separate components.
func ParsePackageSpec(spec string) (name, version string) {
	parts := strings.SplitN(spec, "#", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return spec, ""
}

// LoadFromTgz loads a FHIR package from a local .tgz file.
func (l *Loader) LoadFromTgz(tgzPath string) (*Package, error) {
	file, err := os.Open(tgzPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open tgz file: %w", err)
	}
	defer file.Close()

	return l.LoadFromReader(file, tgzPath)
}

// LoadFromURL downloads a FHIR package .tgz and loads it.
func (l *Loader) LoadFromURL(ctx context.Context, url string) (*Package, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", url, err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download package from %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download package: HTTP %d", resp.StatusCode)
	}

	return l.LoadFromReader(resp.Body, url)
}

// LoadFromReader loads a package from a gzipped tar stream. source names the
// stream in errors and becomes Package.Path.
func (l *Loader) LoadFromReader(reader io.Reader, source string) (*Package, error) {
	gzReader, err := gzip.NewReader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)

	pkg := &Package{
		Resources: make(map[string]json.RawMessage),
	}

	var manifestData []byte

	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar entry: %w", err)
		}

		if header.Typeflag == tar.TypeDir {
			continue
		}

		name := strings.TrimPrefix(header.Name, "package/")
		if !strings.HasSuffix(name, ".json") {
			continue
		}

		data, err := io.ReadAll(tarReader)
		if err != nil {
			l.log.Debug("skipping %s: %v", header.Name, err)
			continue
		}

		switch name {
		case "package.json":
			manifestData = data
		case ".index.json":
		default:
			pkg.index(data)
		}
	}

	if manifestData == nil {
		return nil, fmt.Errorf("package.json not found in %s", source)
	}

	var manifest PackageManifest
	if err := json.Unmarshal(manifestData, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse package manifest: %w", err)
	}

	pkg.Name = manifest.Name
	pkg.Version = manifest.Version
	pkg.FHIRVersion = manifest.FHIRVersion
	pkg.Path = source

	l.log.Debug("loaded %s#%s from %s: %d resource keys", pkg.Name, pkg.Version, source, len(pkg.Resources))
	return pkg, nil
}

// LoadFromTgzData loads a package from .tgz bytes already in memory.
func (l *Loader) LoadFromTgzData(data []byte) (*Package, error) {
	return l.LoadFromReader(bytes.NewReader(data), "memory")
}

// LoadFromResources builds an in-memory package named "custom" from raw
// resources. Entries without a resourceType (including invalid JSON) are
// skipped.
func (l *Loader) LoadFromResources(resources [][]byte) (*Package, error) {
	pkg := &Package{
		Name:      "custom",
		Path:      "memory",
		Resources: make(map[string]json.RawMessage),
	}
	for _, data := range resources {
		pkg.index(data)
	}
	return pkg, nil
}

// index stores data under its canonical URL and under resourceType/id.
// Only the three top-level fields are read; the rest of the document is not
// decoded.
func (p *Package) index(data []byte) {
	resourceType, _ := jsonparser.GetString(data, "resourceType")
	if resourceType == "" {
		return
	}
	if url, _ := jsonparser.GetString(data, "url"); url != "" {
		p.Resources[url] = data
	}
	if id, _ := jsonparser.GetString(data, "id"); id != "" {
		p.Resources[resourceType+"/"+id] = data
	}
}

func identityOf(data []byte) string {
	rt, _ := jsonparser.GetString(data, "resourceType")
	id, _ := jsonparser.GetString(data, "id")
	url, _ := jsonparser.GetString(data, "url")
	return rt + "/" + id + "|" + url
}
