package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xSoVx/amr-project/internal/domain"
)

func TestNewStoreLoadsFixture(t *testing.T) {
	store, err := NewStore(nil, "testdata/eucast-2025.1.yaml")
	require.NoError(t, err)

	cat := store.Current()
	assert.Equal(t, "EUCAST-2025.1", cat.VersionLabel)
	assert.NotEmpty(t, cat.Entries, "expected breakpoint entries to load")
	assert.Len(t, cat.IntrinsicResistance, 2)
}

func TestNewStoreMissingFile(t *testing.T) {
	_, err := NewStore(nil, "testdata/does-not-exist.yaml")
	assert.Error(t, err)
}

func TestReloadAtomicOnInvalidCatalog(t *testing.T) {
	store, err := NewStore(nil, "testdata/eucast-2025.1.yaml")
	require.NoError(t, err)
	before := store.Current()

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("version: BAD\nbreakpoints:\n  - organismScope: {kind: exact, value: X}\n    antibiotic: Y\n    method: MIC\n    source: EUCAST\n    unit: MM\n    comparator: LE_S_GT_R\n"), 0o644))

	_, err = store.Reload(bad)
	assert.Error(t, err)
	assert.Same(t, before, store.Current(), "failed reload must leave the live snapshot untouched")
}

func TestReloadPublishesNewVersion(t *testing.T) {
	store, err := NewStore(nil, "testdata/eucast-2025.1.yaml")
	require.NoError(t, err)

	dir := t.TempDir()
	f := filepath.Join(dir, "local.yaml")
	require.NoError(t, os.WriteFile(f, []byte("version: LOCAL-1\nbreakpoints:\n  - organismScope: {kind: exact, value: \"Escherichia coli\"}\n    antibiotic: Amoxicillin\n    method: MIC\n    source: LOCAL\n    sThreshold: 8\n    rThreshold: 8\n    comparator: LE_S_GT_R\n    unit: MG_PER_L\n"), 0o644))

	version, err := store.Reload(f)
	require.NoError(t, err)
	assert.Equal(t, "LOCAL-1", version)
	assert.Equal(t, "LOCAL-1", store.Current().VersionLabel)
}

func TestReloadNotifiesListenersOnSuccessOnly(t *testing.T) {
	store, err := NewStore(nil, "testdata/eucast-2025.1.yaml")
	require.NoError(t, err)

	var notified []string
	store.OnReload(func(cat *domain.RuleCatalog) { notified = append(notified, cat.VersionLabel) })

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("version: BAD\nbreakpoints:\n  - organismScope: {kind: exact, value: X}\n    antibiotic: Y\n    method: MIC\n    source: EUCAST\n    unit: MM\n    comparator: LE_S_GT_R\n"), 0o644))

	_, err = store.Reload(bad)
	require.Error(t, err)
	assert.Empty(t, notified, "listener must not fire on a failed reload")

	good := filepath.Join(dir, "local.yaml")
	require.NoError(t, os.WriteFile(good, []byte("version: LOCAL-2\nbreakpoints:\n  - organismScope: {kind: exact, value: \"Escherichia coli\"}\n    antibiotic: Amoxicillin\n    method: MIC\n    source: LOCAL\n    sThreshold: 8\n    rThreshold: 8\n    comparator: LE_S_GT_R\n    unit: MG_PER_L\n"), 0o644))

	_, err = store.Reload(good)
	require.NoError(t, err)
	assert.Equal(t, []string{"LOCAL-2"}, notified)
}

func TestEmptyAntibioticClassIsSemanticError(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "catalog.yaml")
	doc := `
version: T1
expertRules:
  - id: RULE-1
    priority: 10
    when:
      antibioticClasses: ["nonexistent-class"]
    effect:
      decision: R
      rationaleTemplate: "test"
`
	require.NoError(t, os.WriteFile(f, []byte(doc), 0o644))

	_, err := NewStore(nil, f)
	require.Error(t, err)
	loadErr, ok := err.(*domain.LoadError)
	require.True(t, ok, "expected *domain.LoadError, got %T", err)
	assert.NotEmpty(t, loadErr.SemanticErrors)
}
