package config

import (
	"fmt"

	"gopkg.in/ini.v1"

	"github.com/pinesagetechnology/filemonitor/internal/models"
)

// SeedFile is the optional first-run bootstrap file pointed at by the
// --config flag. It carries only a handful of initial FileDataSource rows
// for operator convenience; everything else is seeded through Defaults and
// adjusted afterward via the config/datasource CLI commands.
//
// Format:
//
//	[datasource "incoming-logs"]
//	folder_path = /var/spool/incoming-logs
//	archive_folder_path = /var/spool/incoming-logs/archive
//	file_pattern = *.log
//	enabled = true
type SeedFile struct {
	DataSources []models.FileDataSource
}

// LoadSeedFile parses path into a SeedFile. Each [datasource "name"]
// section becomes one FileDataSource, following the teacher's
// [section]/`ini:"field"` convention in internal/config/daemonconfig.go,
// repurposed from a single flat config to a repeated per-data-source block.
func LoadSeedFile(path string) (*SeedFile, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load seed file %q: %w", path, err)
	}

	out := &SeedFile{}
	for _, section := range cfg.Sections() {
		name, ok := parseDataSourceSection(section.Name())
		if !ok {
			continue
		}

		ds := models.FileDataSource{
			Name:              name,
			FolderPath:        section.Key("folder_path").String(),
			ArchiveFolderPath: section.Key("archive_folder_path").String(),
			FilePattern:       section.Key("file_pattern").String(),
			IsEnabled:         section.Key("enabled").MustBool(true),
		}
		if ds.FolderPath == "" {
			return nil, fmt.Errorf("seed file %q: data source %q missing folder_path", path, name)
		}
		out.DataSources = append(out.DataSources, ds)
	}
	return out, nil
}

// parseDataSourceSection extracts name from a `datasource "name"` section
// header, as produced by ini.v1's quoted-subsection naming.
func parseDataSourceSection(sectionName string) (string, bool) {
	const prefix = `datasource "`
	if len(sectionName) < len(prefix)+1 || sectionName[:len(prefix)] != prefix {
		return "", false
	}
	if sectionName[len(sectionName)-1] != '"' {
		return "", false
	}
	return sectionName[len(prefix) : len(sectionName)-1], true
}
