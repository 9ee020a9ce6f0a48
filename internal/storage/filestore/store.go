package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/yndnr/tokbroker/internal/core/domain"
	"github.com/yndnr/tokbroker/internal/telemetry/logger"
	"github.com/yndnr/tokbroker/pkg/crypto/adaptive"
)

const (
	entrySuffix = ".cbor"
	tempSuffix  = ".tmp"
	saltFile    = ".salt"

	// staleTempAge is how old an orphaned temp file must be before Prune
	// removes it.
	staleTempAge = time.Hour

	// saltReadWait bounds how long a short salt file is re-read before it
	// is treated as corrupt.
	saltReadWait = 500 * time.Millisecond
)

// Keys become file names, so they are restricted to a safe alphabet.
var validKey = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,200}$`)

// Store is a directory-backed CredentialStore.
type Store struct {
	fs     afero.Fs
	dir    string
	cipher adaptive.Cipher
	now    func() time.Time
	log    logger.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithFs replaces the OS filesystem, e.g. with afero.NewMemMapFs in tests.
func WithFs(fsys afero.Fs) Option {
	return func(s *Store) {
		if fsys != nil {
			s.fs = fsys
		}
	}
}

// WithCipher seals values at rest.
func WithCipher(c adaptive.Cipher) Option {
	return func(s *Store) {
		s.cipher = c
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// New opens (creating if needed) the store rooted at dir.
func New(dir string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, domain.ErrInvalidArgument.WithDetails("filestore: dir is required")
	}

	s := &Store{
		fs:  afero.NewOsFs(),
		dir: filepath.Clean(dir),
		now: time.Now,
		log: logger.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.fs.MkdirAll(s.dir, 0o700); err != nil {
		return nil, fmt.Errorf("filestore: create dir: %w", err)
	}
	return s, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", domain.ErrInvalidArgument.WithDetailsf("filestore: invalid key %q", key)
	}
	return filepath.Join(s.dir, key+entrySuffix), nil
}

// Get returns the value stored under key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(s.fs, p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrCacheMiss
		}
		return nil, fmt.Errorf("filestore: read %s: %w", key, err)
	}

	// Corrupt entries are misses. Reads never delete; Prune removes
	// corrupt and expired files.
	e, err := decodeEnvelope(data)
	if err != nil {
		s.log.Warn("filestore: ignoring corrupt entry", "key", key, "error", err)
		return nil, domain.ErrCacheMiss
	}
	if e.Key != key {
		s.log.Warn("filestore: ignoring misplaced entry", "key", key, "holds", e.Key)
		return nil, domain.ErrCacheMiss
	}
	if e.expired(s.now()) {
		return nil, domain.ErrCacheMiss
	}

	return s.open(key, e)
}

func (s *Store) open(key string, e *envelope) ([]byte, error) {
	if !e.Sealed {
		if s.cipher != nil {
			return nil, fmt.Errorf("filestore: %s is not sealed but encryption is configured", key)
		}
		return e.Value, nil
	}
	if s.cipher == nil {
		return nil, fmt.Errorf("filestore: %s is sealed but no encryption key is configured", key)
	}
	value, err := s.cipher.Open(e.Value, []byte(key))
	if err != nil {
		return nil, fmt.Errorf("filestore: open %s: %w", key, err)
	}
	return value, nil
}

// Set writes value under key for ttl, replacing any existing entry atomically.
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return domain.ErrInvalidArgument.WithDetailsf("filestore: ttl must be positive, got %s", ttl)
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}

	e := &envelope{
		Key:       key,
		ExpiresAt: s.now().Add(ttl),
		Value:     value,
	}
	if s.cipher != nil {
		sealed, err := s.cipher.Seal(value, []byte(key))
		if err != nil {
			return fmt.Errorf("filestore: seal %s: %w", key, err)
		}
		e.Value = sealed
		e.Sealed = true
	}

	data, err := encodeEnvelope(e)
	if err != nil {
		return fmt.Errorf("filestore: encode %s: %w", key, err)
	}
	return s.writeAtomic(p, data)
}

func (s *Store) writeAtomic(path string, data []byte) error {
	tmp, err := afero.TempFile(s.fs, s.dir, filepath.Base(path)+".*"+tempSuffix)
	if err != nil {
		return fmt.Errorf("filestore: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = s.fs.Rename(tmpName, path)
	}
	if err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("filestore: write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Delete removes key. Removing an absent key is not an error.
func (s *Store) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("filestore: delete %s: %w", key, err)
	}
	return nil
}

// Has reports whether Get would return a value.
func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	_, err := s.Get(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrCacheMiss):
		return false, nil
	default:
		return false, err
	}
}

// Prune removes expired entries, undecodable entries and orphaned temp
// files. It returns the number of files removed.
func (s *Store) Prune(ctx context.Context) (int, error) {
	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return 0, fmt.Errorf("filestore: list %s: %w", s.dir, err)
	}

	now := s.now()
	removed := 0
	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if info.IsDir() {
			continue
		}

		name := info.Name()
		p := filepath.Join(s.dir, name)
		switch {
		case strings.HasSuffix(name, tempSuffix):
			if now.Sub(info.ModTime()) < staleTempAge {
				continue
			}
		case strings.HasSuffix(name, entrySuffix):
			data, err := afero.ReadFile(s.fs, p)
			if err != nil {
				continue
			}
			if e, err := decodeEnvelope(data); err == nil && !e.expired(now) {
				continue
			}
		default:
			continue
		}

		if err := s.fs.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("filestore: prune failed", "file", name, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		s.log.Debug("filestore: pruned entries", "dir", s.dir, "removed", removed)
	}
	return removed, nil
}

// Close is a no-op; the store holds no open handles.
func (s *Store) Close() error {
	return nil
}

// LoadOrCreateSalt returns the salt kept in dir, creating it on first use.
// Processes racing to create it all end up with the winner's salt.
func LoadOrCreateSalt(fsys afero.Fs, dir string) ([]byte, error) {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if err := fsys.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("filestore: create dir: %w", err)
	}
	p := filepath.Join(dir, saltFile)

	salt, err := readSalt(fsys, p)
	if err == nil || !errors.Is(err, fs.ErrNotExist) {
		return salt, err
	}

	salt, err = adaptive.NewSalt()
	if err != nil {
		return nil, err
	}
	err = publishSalt(fsys, dir, p, salt)
	if errors.Is(err, fs.ErrExist) {
		// Lost the race; use the other writer's salt.
		return readSalt(fsys, p)
	}
	if err != nil {
		return nil, fmt.Errorf("filestore: create salt: %w", err)
	}
	return salt, nil
}

// readSalt reads the salt at p. A short file may still be mid-write on a
// filesystem without hard links, so it is re-read until saltReadWait has
// passed before it is reported corrupt.
func readSalt(fsys afero.Fs, p string) ([]byte, error) {
	deadline := time.Now().Add(saltReadWait)
	for {
		salt, err := afero.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("filestore: read salt: %w", err)
		}
		if len(salt) == adaptive.SaltSize {
			return salt, nil
		}
		if len(salt) > adaptive.SaltSize || time.Now().After(deadline) {
			return nil, fmt.Errorf("filestore: salt file %s is corrupt", p)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// publishSalt creates p holding salt and fails with fs.ErrExist when p is
// already present. On the OS filesystem the salt is written to a temp file
// and hard-linked into place, so p never appears partially written.
func publishSalt(fsys afero.Fs, dir, p string, salt []byte) error {
	if _, ok := fsys.(*afero.OsFs); !ok {
		f, err := fsys.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err != nil {
			return err
		}
		if _, err := f.Write(salt); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}

	tmp, err := afero.TempFile(fsys, dir, saltFile+".*"+tempSuffix)
	if err != nil {
		return err
	}
	name := tmp.Name()
	defer fsys.Remove(name)

	if _, err := tmp.Write(salt); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Link(name, p)
}

// CipherFromPassphrase builds the cipher used to seal entries in dir.
func CipherFromPassphrase(fsys afero.Fs, dir, passphrase, cipherType string) (adaptive.Cipher, error) {
	if len(passphrase) < adaptive.MinPassphraseLength {
		return nil, domain.ErrInvalidArgument.WithDetailsf("filestore: passphrase must be at least %d characters", adaptive.MinPassphraseLength)
	}
	salt, err := LoadOrCreateSalt(fsys, dir)
	if err != nil {
		return nil, err
	}
	key := adaptive.DeriveKey([]byte(passphrase), salt)

	typ, err := adaptive.ParseCipherType(cipherType)
	if err != nil {
		return nil, err
	}
	if typ == "" {
		return adaptive.New(key)
	}
	return adaptive.NewWithType(key, typ)
}
