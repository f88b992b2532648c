package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSeedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.ini")
	content := `
[datasource "incoming-logs"]
folder_path = /var/spool/incoming-logs
archive_folder_path = /var/spool/incoming-logs/archive
file_pattern = *.log
enabled = true

[datasource "disabled-source"]
folder_path = /var/spool/other
enabled = false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	seed, err := LoadSeedFile(path)
	if err != nil {
		t.Fatalf("LoadSeedFile: %v", err)
	}
	if len(seed.DataSources) != 2 {
		t.Fatalf("got %d data sources, want 2", len(seed.DataSources))
	}

	byName := map[string]bool{}
	for _, ds := range seed.DataSources {
		byName[ds.Name] = ds.IsEnabled
	}
	if !byName["incoming-logs"] {
		t.Fatal("expected incoming-logs enabled")
	}
	if byName["disabled-source"] {
		t.Fatal("expected disabled-source disabled")
	}
}

func TestLoadSeedFile_MissingFolderPathIsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.ini")
	content := "[datasource \"broken\"]\nenabled = true\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := LoadSeedFile(path); err == nil {
		t.Fatal("expected error for missing folder_path")
	}
}
