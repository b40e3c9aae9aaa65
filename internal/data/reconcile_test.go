package data

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readDoc(t *testing.T, path string) *Document {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	doc, err := Parse(raw)
	require.NoError(t, err)
	return doc
}

func sortedKeys(d *Document) []string {
	keys := d.Keys()
	sort.Strings(keys)
	return keys
}

func TestReconcile_AddsMissingDropsExtraKeepsValues(t *testing.T) {
	schema := MustParse("a: 1\nb: 2\n")
	path := filepath.Join(t.TempDir(), "doc.yml")
	writeFile(t, path, "a: 5\nc: 9\n")

	got, changed, err := Reconcile(schema, path, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, changed)

	for _, doc := range []*Document{got, readDoc(t, path)} {
		assert.Equal(t, []string{"a", "b"}, sortedKeys(doc))
		assert.Equal(t, 5, doc.View().Int("a"), "user value preserved")
		assert.Equal(t, 2, doc.View().Int("b"), "missing key takes bundled value")
		assert.False(t, doc.Has("c"))
	}
}

func TestReconcile_SecondRunIsNoop(t *testing.T) {
	schema := MustParse("a: 1\nb:\n  c: [1, 2]\n")
	path := filepath.Join(t.TempDir(), "doc.yml")
	writeFile(t, path, "a: 7\nextra: true\n")
	log := zaptest.NewLogger(t)

	_, changed, err := Reconcile(schema, path, log)
	require.NoError(t, err)
	require.True(t, changed)

	before, err := os.ReadFile(path)
	require.NoError(t, err)
	stat, err := os.Stat(path)
	require.NoError(t, err)

	doc, changed, err := Reconcile(schema, path, log)
	require.NoError(t, err)
	assert.False(t, changed, "no write on the second pass")
	assert.Equal(t, 7, doc.View().Int("a"))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
	stat2, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, stat.ModTime(), stat2.ModTime())
}

func TestReconcile_EqualKeySetsSkipWrite(t *testing.T) {
	schema := MustParse("a: 1\nb: 2\n")
	path := filepath.Join(t.TempDir(), "doc.yml")
	content := "# user comment\nb: 20\na: 10\n"
	writeFile(t, path, content)

	doc, changed, err := Reconcile(schema, path, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 10, doc.View().Int("a"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(raw))
}

func TestReconcile_NestedSections(t *testing.T) {
	schema := MustParse(`
general-config:
  enabled: true
  disabled-in-worlds: []
levels:
  1:
    percentage-bonus: 5
  2:
    percentage-bonus: 10
`)
	path := filepath.Join(t.TempDir(), "doc.yml")
	writeFile(t, path, `
general-config:
  enabled: false
  legacy-flag: 3
levels:
  1:
    percentage-bonus: 50
`)

	got, changed, err := Reconcile(schema, path, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.True(t, changed)

	want := []string{
		"general-config",
		"general-config.disabled-in-worlds",
		"general-config.enabled",
		"levels",
		"levels.1",
		"levels.1.percentage-bonus",
		"levels.2",
		"levels.2.percentage-bonus",
	}
	if diff := cmp.Diff(want, sortedKeys(got)); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	v := got.View()
	assert.False(t, v.Bool("general-config.enabled"))
	assert.Equal(t, 50, v.Int("levels.1.percentage-bonus"))
	assert.Equal(t, 10, v.Int("levels.2.percentage-bonus"))
}

func TestReconcile_ScalarReplacedBySection(t *testing.T) {
	schema := MustParse("disguise:\n  material: player_head\n")
	user := MustParse("disguise: none\n")

	require.True(t, Merge(schema, user))
	assert.Equal(t, "player_head", user.View().String("disguise.material"))
	assert.ElementsMatch(t, schema.Keys(), user.Keys())
}

func TestReconcile_MalformedLeavesFileUntouched(t *testing.T) {
	schema := MustParse("a: 1\n")
	path := filepath.Join(t.TempDir(), "doc.yml")
	content := "a: [1, 2\n"
	writeFile(t, path, content)

	_, _, err := Reconcile(schema, path, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedDocument))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(raw))
}

func TestReconcile_TopLevelListIsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.yml")
	writeFile(t, path, "- a\n- b\n")

	_, _, err := Reconcile(MustParse("a: 1\n"), path, zaptest.NewLogger(t))
	assert.True(t, errors.Is(err, ErrMalformedDocument))
}

func TestReconcile_DuplicateKeysAreMalformed(t *testing.T) {
	for name, content := range map[string]string{
		"top":    "a: 5\na: 6\n",
		"nested": "a: 1\nb:\n  c: 1\n  c: 2\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "doc.yml")
			writeFile(t, path, content)

			_, changed, err := Reconcile(MustParse("a: 1\nb:\n  c: 3\n"), path, zaptest.NewLogger(t))
			require.ErrorIs(t, err, ErrMalformedDocument)
			assert.False(t, changed)

			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, content, string(raw))
		})
	}
}

func TestParse_DuplicateKeyInListItem(t *testing.T) {
	_, err := Parse([]byte("lore:\n  - x: 1\n    x: 2\n"))
	assert.ErrorIs(t, err, ErrMalformedDocument)

	_, err = Parse([]byte("a:\n  x: 1\nb:\n  x: 2\n"))
	assert.NoError(t, err, "same key under different parents")
}

func TestReconcile_MissingFileUsesSchema(t *testing.T) {
	schema := MustParse("a: 1\n")
	path := filepath.Join(t.TempDir(), "missing.yml")

	doc, changed, err := Reconcile(schema, path, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 1, doc.View().Int("a"))
	assert.NotSame(t, schema, doc)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestMerge_UserValuesNeverOverwritten(t *testing.T) {
	cases := []struct {
		name   string
		schema string
		user   string
	}{
		{"disjoint", "a: 1\n", "b: 2\n"},
		{"superset", "a: 1\n", "a: 3\nb: 4\nc: {d: 5}\n"},
		{"subset", "a: 1\nb: 2\nc: {d: 3, e: 4}\n", "c: {d: 30}\n"},
		{"lists", "a: [1, 2]\nb: [x]\n", "a: [9]\n"},
		{"empty user", "a: 1\nb: {c: 2}\n", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			schema := MustParse(tc.schema)
			user := MustParse(tc.user)
			before := user.Clone()

			Merge(schema, user)

			assert.ElementsMatch(t, schema.Keys(), user.Keys())
			for _, k := range before.Keys() {
				if !schema.Has(k) {
					continue
				}
				_, bv := before.pair(k)
				_, uv := user.pair(k)
				if bv.Kind == uv.Kind && bv.Kind != 0 && len(bv.Content) == 0 {
					assert.Equal(t, bv.Value, uv.Value, k)
				}
			}
			assert.False(t, Merge(schema, user), "second merge is a no-op")
		})
	}
}

func TestExtractDefault(t *testing.T) {
	fsys := fstest.MapFS{
		"talismans/common/x.yml": {Data: []byte("a: 1\n")},
	}
	dir := t.TempDir()
	log := zaptest.NewLogger(t)

	ExtractDefault(fsys, "talismans/common/x.yml", dir, log)
	dst := filepath.Join(dir, "talismans", "common", "x.yml")
	raw, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "a: 1\n", string(raw))

	// A user edit survives a second extraction.
	writeFile(t, dst, "a: 2\n")
	ExtractDefault(fsys, "talismans/common/x.yml", dir, log)
	raw, err = os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "a: 2\n", string(raw))

	// Missing bundled file is logged, not fatal.
	ExtractDefault(fsys, "talismans/common/none.yml", dir, log)
}

func TestBundledDefaultsParse(t *testing.T) {
	fsys := Bundled()
	for _, name := range []string{
		TalismanPath("common", "attack_speed"),
		TalismanPath("rare", "swiftness"),
		TalismanPath("legendary", "vitality"),
	} {
		doc, err := LoadBundled(fsys, name)
		require.NoError(t, err, name)
		assert.True(t, doc.View().Sub("levels").Exists(), name)
	}
}
