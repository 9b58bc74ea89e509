package adapters

import (
	"encoding/json"
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"pub/internal/ports"
	"pub/internal/types"
)

const packageConfigDir = ".dart_tool"
const packageConfigFile = "package_config.json"

type packageConfigDocument struct {
	ConfigVersion int                  `json:"configVersion"`
	Packages      []packageConfigEntry `json:"packages"`
	Generator     string               `json:"generator"`
}

type packageConfigEntry struct {
	Name       string `json:"name"`
	RootURI    string `json:"rootUri"`
	PackageURI string `json:"packageUri"`
}

// PackageConfigFileAdapter writes .dart_tool/package_config.json.
type PackageConfigFileAdapter struct{}

func NewPackageConfigFileAdapter() PackageConfigFileAdapter {
	return PackageConfigFileAdapter{}
}

func (a PackageConfigFileAdapter) Write(projectDir string, root types.Pubspec, packages []types.ResolvedPackage) error {
	configDir := filepath.Join(projectDir, packageConfigDir)
	ordered := append([]types.ResolvedPackage(nil), packages...)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ID.Name < ordered[j].ID.Name
	})
	doc := packageConfigDocument{ConfigVersion: 2, Generator: "pub"}
	for _, pkg := range ordered {
		doc.Packages = append(doc.Packages, packageConfigEntry{
			Name:       pkg.ID.Name,
			RootURI:    rootURI(configDir, pkg),
			PackageURI: "lib/",
		})
	}
	doc.Packages = append(doc.Packages, packageConfigEntry{Name: root.Name, RootURI: "../", PackageURI: "lib/"})

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to encode package config").
			WithCause(err)
	}
	return writeFileAtomic(filepath.Join(configDir, packageConfigFile), append(data, '\n'))
}

// rootURI is relative for relative path dependencies and an absolute file
// URI for everything living in the system cache.
func rootURI(configDir string, pkg types.ResolvedPackage) string {
	if pkg.ID.Description.Kind == types.SourceKindPath && pkg.ID.Description.Relative {
		if rel, err := filepath.Rel(configDir, pkg.Dir); err == nil {
			return strings.TrimSuffix(filepath.ToSlash(rel), "/") + "/"
		}
	}
	abs, err := filepath.Abs(pkg.Dir)
	if err != nil {
		abs = pkg.Dir
	}
	u := url.URL{Scheme: "file", Path: strings.TrimSuffix(filepath.ToSlash(abs), "/") + "/"}
	return u.String()
}

var _ ports.PackageConfigPort = PackageConfigFileAdapter{}
