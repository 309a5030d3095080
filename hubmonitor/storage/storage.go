// Package storage persists monitor settings on a LittleFS filesystem.
// Writes are atomic (temp file, sync, rename); leftovers from interrupted
// writes are removed at mount, and a stored record from another format
// version is wiped.
package storage

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"

	"tinygo.org/x/tinyfs"
	"tinygo.org/x/tinyfs/littlefs"

	"github.com/harveysanders/hubmonitor/hubmonitor/config"
)

const (
	configDir    = "/config"
	settingsFile = "/config/settings.bin"
	tempSuffix   = ".tmp"
)

var (
	ErrNotFound        = errors.New("settings not found")
	ErrInvalidSettings = errors.New("invalid settings data")
)

// Manager handles settings persistence using LittleFS.
type Manager struct {
	fs       *littlefs.LFS
	blockDev tinyfs.BlockDevice
	mounted  bool
	logger   *slog.Logger
}

// New mounts the filesystem on blockDev and performs boot-time cleanup.
// If format is true and mount fails, the device is formatted first.
func New(blockDev tinyfs.BlockDevice, format bool, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	lfs := littlefs.New(blockDev)
	lfs.Configure(&littlefs.Config{
		CacheSize:     512,
		LookaheadSize: 128,
	})

	if err := lfs.Mount(); err != nil {
		if !format {
			return nil, errors.New("littlefs mount:" + err.Error())
		}
		logger.Warn("storage:formatting", slog.Any("reason", err))
		if err := lfs.Format(); err != nil {
			return nil, errors.New("littlefs format:" + err.Error())
		}
		if err := lfs.Mount(); err != nil {
			return nil, errors.New("littlefs mount:" + err.Error())
		}
	}

	m := &Manager{
		fs:       lfs,
		blockDev: blockDev,
		mounted:  true,
		logger:   logger,
	}

	if err := m.bootCleanup(); err != nil {
		logger.Warn("storage:cleanup-failed", slog.Any("reason", err))
	}

	if m.versionMismatch() {
		logger.Warn("storage:version-mismatch", slog.Int("want", int(config.CurrentVersion)))
		if err := m.Wipe(); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Close unmounts the filesystem.
func (m *Manager) Close() error {
	if m.mounted {
		m.mounted = false
		return m.fs.Unmount()
	}
	return nil
}

// bootCleanup removes temporary files left over from interrupted writes.
func (m *Manager) bootCleanup() error {
	entries, err := m.readDir(configDir)
	if err != nil {
		if isNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, tempSuffix) {
			m.logger.Info("storage:removed-temp", slog.String("file", name))
			m.fs.Remove(path.Join(configDir, name))
		}
	}
	return nil
}

func (m *Manager) readDir(dirPath string) ([]os.FileInfo, error) {
	f, err := m.fs.Open(dirPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !f.IsDir() {
		return nil, errors.New("not a directory")
	}
	return f.Readdir(-1)
}

// versionMismatch reports whether a stored record exists with a foreign
// version or an unreadable body.
func (m *Manager) versionMismatch() bool {
	var s config.Settings
	err := m.LoadSettings(&s)
	switch {
	case err == nil:
		return false
	case errors.Is(err, config.ErrVersionMismatch), errors.Is(err, ErrInvalidSettings):
		return true
	}
	return false
}

// LoadSettings reads the stored settings into s. It returns ErrNotFound on
// first boot and config.ErrVersionMismatch for a record of another version.
func (m *Manager) LoadSettings(s *config.Settings) error {
	f, err := m.fs.Open(settingsFile)
	if err != nil {
		if isNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	defer f.Close()

	var buf [config.Size]byte
	n, err := f.Read(buf[:])
	if err != nil && !(errors.Is(err, io.EOF) && n == config.Size) {
		return err
	}
	if n != config.Size {
		return ErrInvalidSettings
	}

	var loaded config.Settings
	if err := loaded.UnmarshalBinary(buf[:]); err != nil {
		return ErrInvalidSettings
	}
	if loaded.Version != config.CurrentVersion {
		return config.ErrVersionMismatch
	}
	*s = loaded
	return nil
}

// Load returns the stored settings, or the defaults when nothing valid is
// stored.
func (m *Manager) Load() config.Settings {
	s := config.Default()
	if err := m.LoadSettings(&s); err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.logger.Warn("storage:load-failed", slog.Any("reason", err))
		}
		return config.Default()
	}
	if err := s.Validate(); err != nil {
		m.logger.Warn("storage:invalid-settings", slog.Any("reason", err))
		return config.Default()
	}
	return s
}

// Status is a short boot-screen line describing where the settings came
// from. It is safe to call on a nil Manager, which means flash could not be
// mounted.
func (m *Manager) Status() string {
	if m == nil {
		return "NO STORAGE"
	}
	var s config.Settings
	err := m.LoadSettings(&s)
	switch {
	case errors.Is(err, ErrNotFound):
		return "DEFAULTS"
	case err != nil:
		return "SETTINGS RESET"
	case s.Validate() != nil:
		return "SETTINGS RESET"
	}
	return "SETTINGS OK"
}

// SaveSettings validates s, stamps the current version and writes it
// atomically.
func (m *Manager) SaveSettings(s *config.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := m.fs.Mkdir(configDir, 0755); err != nil && !isExist(err) {
		return err
	}

	s.Version = config.CurrentVersion
	var buf [config.Size]byte
	s.Encode(&buf)
	return m.atomicWrite(settingsFile, buf[:])
}

// Wipe removes the stored settings. Missing files are not an error.
func (m *Manager) Wipe() error {
	if err := m.fs.Remove(settingsFile); err != nil && !isNotExist(err) {
		return err
	}
	return nil
}

// Size returns the capacity of the underlying block device.
func (m *Manager) Size() int64 {
	return m.blockDev.Size()
}

// atomicWrite writes data to a temporary file, syncs it, then renames it
// over filepath. The previous file is never left partially written.
func (m *Manager) atomicWrite(filepath string, data []byte) error {
	tempPath := filepath + tempSuffix
	m.fs.Remove(tempPath)

	f, err := m.fs.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		m.fs.Remove(tempPath)
		return err
	}

	if syncer, ok := f.(interface{ Sync() error }); ok {
		if err := syncer.Sync(); err != nil {
			f.Close()
			m.fs.Remove(tempPath)
			return err
		}
	}

	if err := f.Close(); err != nil {
		m.fs.Remove(tempPath)
		return err
	}

	// LittleFS rename replaces the target in one metadata commit, so the
	// previous record stays valid until the new one is in place.
	if err := m.fs.Rename(tempPath, filepath); err != nil {
		m.fs.Remove(tempPath)
		return err
	}
	return nil
}

// isExist matches "already exists" from LittleFS, which does not always
// satisfy os.IsExist.
func isExist(err error) bool {
	if err == nil {
		return false
	}
	return os.IsExist(err) || strings.Contains(err.Error(), "already exists")
}

func isNotExist(err error) bool {
	if err == nil {
		return false
	}
	return os.IsNotExist(err) || strings.Contains(err.Error(), "No directory entry")
}
