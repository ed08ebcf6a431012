// Package datfile loads and saves DAT level packs on disk.
package datfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/mbofenka/cc-tools/internal/config"
	"github.com/mbofenka/cc-tools/internal/dat"
	"github.com/mbofenka/cc-tools/internal/observability"
)

// Store reads and writes level pack files. A Store holds no per-file state
// and may be used from several goroutines at once.
type Store struct {
	cfg    config.CodecConfig
	logger *zap.Logger
}

// NewStore creates a Store.
//
// Precondition: logger must be non-nil.
// Postcondition: returns a non-nil Store.
func NewStore(cfg config.CodecConfig, logger *zap.Logger) *Store {
	return &Store{cfg: cfg, logger: logger}
}

// New builds a Store whose logger is configured from cfg.Logging.
//
// Postcondition: returns a Store, or a non-nil error if cfg is invalid or
// the logger cannot be built.
func New(cfg config.Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	return NewStore(cfg.Codec, logger), nil
}

// NewFromFile loads the configuration file at path and builds a Store from
// it. An empty path uses the defaults.
func NewFromFile(path string) (*Store, error) {
	var (
		cfg config.Config
		err error
	)
	if path == "" {
		cfg, err = config.Default()
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return New(cfg)
}

// Sync flushes buffered log entries.
func (s *Store) Sync() error {
	return s.logger.Sync()
}

// Load decodes the level pack stored at path. The file is open only for
// the duration of the call.
//
// Precondition: path names a readable DAT file.
// Postcondition: returns the decoded pack, or a non-nil error.
func (s *Store) Load(path string) (*dat.LevelPack, error) {
	start := time.Now()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening level pack %s: %w", path, err)
	}
	defer f.Close()

	cr := &countingReader{r: bufio.NewReader(f)}
	p, err := dat.DecodeWithOptions(cr, dat.DecodeOptions{Strict: s.cfg.Strict})
	if err != nil {
		s.logger.Warn("level pack rejected",
			zap.String("path", path),
			zap.Int64("offset", cr.n),
			zap.Error(err),
		)
		return nil, fmt.Errorf("decoding level pack %s: %w", path, err)
	}

	for _, l := range p.Levels {
		s.logger.Debug("level decoded",
			zap.String("path", path),
			zap.Uint16("level", l.Number),
			zap.String("title", l.Title()),
			zap.Int("fields", len(l.Fields)),
		)
	}
	s.logger.Info("level pack loaded",
		zap.String("path", path),
		zap.Int("levels", p.LevelCount()),
		zap.Int64("bytes", cr.n),
		zap.Duration("elapsed", time.Since(start)),
	)
	return p, nil
}

// Save encodes p and writes it to path. With AtomicWrite enabled the bytes
// go to a temporary file that is renamed over path once complete;
// otherwise path is truncated and written in place.
//
// Precondition: p must be non-nil.
// Postcondition: path holds the encoded pack, or a non-nil error is returned.
func (s *Store) Save(path string, p *dat.LevelPack) error {
	start := time.Now()

	data, err := dat.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding level pack for %s: %w", path, err)
	}
	for _, l := range p.Levels {
		s.logger.Debug("level encoded",
			zap.String("path", path),
			zap.Uint16("level", l.Number),
			zap.Int("fields", len(l.Fields)),
		)
	}

	if s.cfg.AtomicWrite {
		err = s.writeAtomic(path, data)
	} else {
		err = writeInPlace(path, data)
	}
	if err != nil {
		return err
	}

	s.logger.Info("level pack saved",
		zap.String("path", path),
		zap.Int("levels", p.LevelCount()),
		zap.Int("bytes", len(data)),
		zap.Bool("atomic", s.cfg.AtomicWrite),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// Dump loads the pack at path and writes its YAML inspection view to w.
//
// Postcondition: w receives the YAML document, or a non-nil error is returned.
func (s *Store) Dump(path string, w io.Writer) error {
	p, err := s.Load(path)
	if err != nil {
		return err
	}
	if err := dat.DumpYAML(w, p); err != nil {
		return fmt.Errorf("dumping level pack %s: %w", path, err)
	}
	return nil
}

func writeInPlace(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating level pack %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing level pack %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing level pack %s: %w", path, err)
	}
	return nil
}

// writeAtomic writes data to a temp file and renames it over path. The temp
// file lives in TempDir when set, else next to path so the rename stays on
// one filesystem.
func (s *Store) writeAtomic(path string, data []byte) error {
	dir := s.cfg.TempDir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	tmp, err := os.CreateTemp(dir, "dat_*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing temp file %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		s.logger.Warn("rename failed, copying temp file into place",
			zap.String("temp", tmpPath),
			zap.String("path", path),
			zap.Error(err),
		)
		if err := copyFile(tmpPath, path); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("saving level pack %s: %w", path, err)
		}
		os.Remove(tmpPath)
	}
	return nil
}

// copyFile copies src over dst, for temp dirs on another filesystem.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// countingReader counts bytes handed to the decoder so a rejected file can
// be logged with the offset reached.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
