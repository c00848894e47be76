package migrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

// maxVersionBumps bounds how far a create walks forward past taken versions.
const maxVersionBumps = 60

var unsafeNameChars = regexp.MustCompile(`[^a-z0-9]+`)

const migrationTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- rollback %[1]s
-- +goose StatementEnd
`

// CreateSQLMigration writes a new, empty goose migration into dir and returns its path.
func CreateSQLMigration(dir string, name string) (string, error) {
	return createAt(dir, name, time.Now().UTC())
}

// createAt picks the first free version at or after now, one second at a time,
// so two creates in the same second never share a version.
func createAt(dir, name string, now time.Time) (string, error) {
	if dir == "" {
		return "", errors.New("dir is required")
	}
	slug := migrationSlug(name)
	if slug == "" {
		return "", fmt.Errorf("name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}
	taken, err := existingVersions(dir)
	if err != nil {
		return "", err
	}

	for i := 0; i < maxVersionBumps; i++ {
		version := now.Add(time.Duration(i) * time.Second).Format(versionLayout)
		if taken[version] {
			continue
		}
		path := filepath.Join(dir, version+"_"+slug+".sql")
		content := fmt.Sprintf(migrationTemplate, slug)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return "", fmt.Errorf("write migration %q: %w", path, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("no free migration version within %d seconds of %s", maxVersionBumps, now.Format(versionLayout))
}

func existingVersions(dir string) (map[string]bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", dir, err)
	}
	taken := make(map[string]bool, len(entries))
	for _, e := range entries {
		if version, _, ok := strings.Cut(e.Name(), "_"); ok && len(version) == len(versionLayout) {
			taken[version] = true
		}
	}
	return taken, nil
}

func migrationSlug(name string) string {
	slug := unsafeNameChars.ReplaceAllString(strings.ToLower(name), "_")
	return strings.Trim(slug, "_")
}
