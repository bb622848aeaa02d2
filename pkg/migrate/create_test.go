package migrate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAtRefusesExistingVersion(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	path, err := createAt(dir, "seed_regions", at)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20260301090000_seed_regions.sql"), path)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "-- +goose Up")
	assert.Contains(t, string(body), "-- revert seed_regions")

	_, err = createAt(dir, "seed regions", at)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestCreateAtRejectsEmptyInput(t *testing.T) {
	_, err := createAt("", "x", time.Now())
	assert.Error(t, err)

	_, err = createAt(t.TempDir(), " !! ", time.Now())
	assert.Error(t, err)
}

func TestMigrationSlug(t *testing.T) {
	assert.Equal(t, "add_delivery_windows", migrationSlug("  Add Delivery-Windows!! "))
	assert.Equal(t, "", migrationSlug("???"))
}

func TestCheckAnnotations(t *testing.T) {
	ok := "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose StatementEnd\n-- +goose Down\nSELECT 1;\n"
	assert.NoError(t, checkAnnotations(ok))

	assert.Error(t, checkAnnotations("-- +goose Down\n-- +goose Up\n"))
	assert.Error(t, checkAnnotations("-- +goose Up\n-- +goose StatementBegin\n-- +goose Down\n"))
	assert.Error(t, checkAnnotations("-- +goose Up\n-- +goose StatementEnd\n-- +goose Down\n"))
	assert.Error(t, checkAnnotations("-- +goose Up\n"))
}
