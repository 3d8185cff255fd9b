package testsupport

import (
	"embed"
	"encoding/json"
	"os"
	"path"
	"testing"
)

//go:embed testdata/*.json
var embedded embed.FS

// LoadFixture loads test data from a fixture file.
// The path is relative to the test package directory.
func LoadFixture(t testing.TB, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}

	return data
}

// LoadFixtureJSON loads JSON test data from a fixture file and unmarshals it.
// The path is relative to the test package directory.
func LoadFixtureJSON(t testing.TB, path string, dest any) {
	t.Helper()

	data := LoadFixture(t, path)
	if err := json.Unmarshal(data, dest); err != nil {
		t.Fatalf("failed to unmarshal JSON fixture from %s: %v", path, err)
	}
}

// LoadEmbeddedJSON unmarshals one of the fixtures shipped with this package.
func LoadEmbeddedJSON(t testing.TB, name string, dest any) {
	t.Helper()

	data, err := embedded.ReadFile(path.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to load embedded fixture %s: %v", name, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		t.Fatalf("failed to unmarshal embedded fixture %s: %v", name, err)
	}
}
