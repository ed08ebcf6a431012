package datfile_test

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mbofenka/cc-tools/internal/config"
	"github.com/mbofenka/cc-tools/internal/dat"
	"github.com/mbofenka/cc-tools/internal/datfile"
)

func newTestStore(t testing.TB, cfg config.CodecConfig) (*datfile.Store, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	return datfile.NewStore(cfg, zap.New(core)), logs
}

func testPack(t testing.TB) *dat.LevelPack {
	t.Helper()
	p := dat.NewLevelPack()
	for i := uint16(1); i <= 2; i++ {
		l := dat.NewLevel(i)
		l.Time = 90
		l.Chips = i
		title, err := dat.NewTitle("Level")
		require.NoError(t, err)
		l.AddField(title)
		p.AddLevel(l)
	}
	return p
}

func TestStore_SaveAndLoad(t *testing.T) {
	for _, atomic := range []bool{false, true} {
		store, logs := newTestStore(t, config.CodecConfig{AtomicWrite: atomic})
		path := filepath.Join(t.TempDir(), "pack.dat")

		p := testPack(t)
		require.NoError(t, store.Save(path, p))

		got, err := store.Load(path)
		require.NoError(t, err)
		assert.Equal(t, p, got)

		assert.Equal(t, 1, logs.FilterMessage("level pack saved").Len())
		assert.Equal(t, 1, logs.FilterMessage("level pack loaded").Len())
		assert.Equal(t, 2, logs.FilterMessage("level decoded").Len())
		assert.Equal(t, 2, logs.FilterMessage("level encoded").Len())
	}
}

func TestStore_SaveOverwrites(t *testing.T) {
	store, _ := newTestStore(t, config.CodecConfig{AtomicWrite: true})
	path := filepath.Join(t.TempDir(), "pack.dat")
	require.NoError(t, os.WriteFile(path, []byte("old contents"), 0644))

	require.NoError(t, store.Save(path, testPack(t)))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, dat.Magic[:], data[:4])

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestStore_SaveUsesTempDir(t *testing.T) {
	tmpDir := t.TempDir()
	store, _ := newTestStore(t, config.CodecConfig{AtomicWrite: true, TempDir: tmpDir})
	path := filepath.Join(t.TempDir(), "pack.dat")

	require.NoError(t, store.Save(path, testPack(t)))
	_, err := os.Stat(path)
	require.NoError(t, err)

	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_SaveInvalidPackLeavesFileUntouched(t *testing.T) {
	store, _ := newTestStore(t, config.CodecConfig{AtomicWrite: true})
	path := filepath.Join(t.TempDir(), "pack.dat")
	require.NoError(t, os.WriteFile(path, []byte("keep"), 0644))

	p := dat.NewLevelPack()
	l := dat.NewLevel(1)
	l.AddField(&dat.PlaintextPassword{Text: "BDHP"})
	p.AddLevel(l)

	err := store.Save(path, p)
	require.ErrorIs(t, err, dat.ErrUnsupportedOnWrite)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))
}

func TestStore_LoadMissingFile(t *testing.T) {
	store, _ := newTestStore(t, config.CodecConfig{})
	_, err := store.Load(filepath.Join(t.TempDir(), "missing.dat"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStore_LoadInvalidHeader_LogsWarning(t *testing.T) {
	store, logs := newTestStore(t, config.CodecConfig{})
	path := filepath.Join(t.TempDir(), "bad.dat")
	require.NoError(t, os.WriteFile(path, []byte{0, 0, 0, 0, 1, 0}, 0644))

	_, err := store.Load(path)
	require.ErrorIs(t, err, dat.ErrInvalidHeader)

	warnings := logs.FilterLevelExact(zap.WarnLevel).All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "level pack rejected", warnings[0].Message)
	assert.Equal(t, path, warnings[0].ContextMap()["path"])
}

func TestStore_StrictRejectsOpaqueFields(t *testing.T) {
	p := dat.NewLevelPack()
	l := dat.NewLevel(1)
	opaque, err := dat.NewOpaque(99, []byte{1, 2, 3})
	require.NoError(t, err)
	l.AddField(opaque)
	p.AddLevel(l)

	path := filepath.Join(t.TempDir(), "pack.dat")
	lenient, _ := newTestStore(t, config.CodecConfig{})
	require.NoError(t, lenient.Save(path, p))
	_, err = lenient.Load(path)
	require.NoError(t, err)

	strict, _ := newTestStore(t, config.CodecConfig{Strict: true})
	_, err = strict.Load(path)
	assert.ErrorIs(t, err, dat.ErrUnsupportedFieldType)
}

func TestStore_Dump(t *testing.T) {
	store, _ := newTestStore(t, config.CodecConfig{})
	path := filepath.Join(t.TempDir(), "pack.dat")
	require.NoError(t, store.Save(path, testPack(t)))

	var buf bytes.Buffer
	require.NoError(t, store.Dump(path, &buf))
	assert.Contains(t, buf.String(), "level_count: 2")
	assert.Contains(t, buf.String(), "text: Level")
}

func TestStore_ConcurrentLoads(t *testing.T) {
	store, _ := newTestStore(t, config.CodecConfig{AtomicWrite: true})
	dir := t.TempDir()
	paths := make([]string, 4)
	for i := range paths {
		paths[i] = filepath.Join(dir, "pack"+string(rune('a'+i))+".dat")
		require.NoError(t, store.Save(paths[i], testPack(t)))
	}

	var wg sync.WaitGroup
	errs := make([]error, len(paths))
	for i, path := range paths {
		i, path := i, path
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = store.Load(path)
		}()
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestNewFromFile_WiresConfigAndLogger(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "dat.log")
	cfgPath := filepath.Join(dir, "cctools.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
codec:
  strict: true
  atomic_write: true
logging:
  level: debug
  format: json
  output: `+logPath+`
`), 0644))

	store, err := datfile.NewFromFile(cfgPath)
	require.NoError(t, err)

	packPath := filepath.Join(dir, "pack.dat")
	p := testPack(t)
	require.NoError(t, store.Save(packPath, p))
	got, err := store.Load(packPath)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	l := dat.NewLevel(3)
	opaque, err := dat.NewOpaque(99, []byte{1})
	require.NoError(t, err)
	l.AddField(opaque)
	p.AddLevel(l)
	require.NoError(t, store.Save(packPath, p))
	_, err = store.Load(packPath)
	assert.ErrorIs(t, err, dat.ErrUnsupportedFieldType)

	_ = store.Sync()
	logged, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(logged), `"logger":"dat"`)
	assert.Contains(t, string(logged), "level pack saved")
	assert.Contains(t, string(logged), "level decoded")
	assert.Contains(t, string(logged), "level pack rejected")
}

func TestNewFromFile_Defaults(t *testing.T) {
	store, err := datfile.NewFromFile("")
	require.NoError(t, err)
	assert.NotNil(t, store)
}

func TestNewFromFile_InvalidConfig(t *testing.T) {
	_, err := datfile.NewFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  format: xml\n"), 0644))
	_, err = datfile.NewFromFile(path)
	assert.Error(t, err)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Logging.Level = "loud"
	_, err = datfile.New(cfg)
	assert.Error(t, err)
}
