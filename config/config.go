// Package config holds the typed runtime configuration for gitstore.
//
// Values come from an optional TOML file (see Load) overridden by
// GITSTORE_* environment variables. Accessors are grouped by concern
// (config.Server, config.Storage, ...) so call sites read naturally.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type fileConfig struct {
	Server    serverConfig    `toml:"server"`
	Storage   storageConfig   `toml:"storage"`
	Uploads   uploadsConfig   `toml:"uploads"`
	Downloads downloadsConfig `toml:"downloads"`
	Search    searchConfig    `toml:"search"`
}

type serverConfig struct {
	Port               int      `toml:"port"`
	CorsAllowedOrigins []string `toml:"cors_allowed_origins"`
}

type storageConfig struct {
	RootDir            string   `toml:"root_dir"`
	DefaultMode        string   `toml:"default_mode"`
	LfsEnabled         bool     `toml:"lfs_enabled"`
	LfsPatterns        []string `toml:"lfs_patterns"`
	DefaultAuthorName  string   `toml:"default_author_name"`
	DefaultAuthorEmail string   `toml:"default_author_email"`
}

type uploadsConfig struct {
	Dir               string   `toml:"dir"`
	ChunkSizeBytes    int64    `toml:"chunk_size_bytes"`
	MaxChunkSizeBytes int64    `toml:"max_chunk_size_bytes"`
	MaxFileSizeBytes  int64    `toml:"max_file_size_bytes"`
	SessionTTLSeconds int64    `toml:"session_ttl_seconds"`
	AllowedExtensions []string `toml:"allowed_extensions"`
}

type downloadsConfig struct {
	CacheDir        string `toml:"cache_dir"`
	CacheTTLSeconds int64  `toml:"cache_ttl_seconds"`
}

type searchConfig struct {
	MaxFiles        int `toml:"max_files"`
	MaxLinesPerFile int `toml:"max_lines_per_file"`
	MaxLineLength   int `toml:"max_line_length"`
}

var loaded = defaults()

func defaults() fileConfig {
	return fileConfig{
		Server: serverConfig{
			Port:               8080,
			CorsAllowedOrigins: []string{"*"},
		},
		Storage: storageConfig{
			RootDir:            "./data/repos",
			DefaultMode:        "worktree",
			LfsPatterns:        []string{"*.bin", "*.iso", "*.zip", "*.tar.gz"},
			DefaultAuthorName:  "gitstore",
			DefaultAuthorEmail: "gitstore@localhost",
		},
		Uploads: uploadsConfig{
			Dir:               "./data/uploads",
			ChunkSizeBytes:    5 << 20,  // 5 MB
			MaxChunkSizeBytes: 16 << 20, // 16 MB
			MaxFileSizeBytes:  2 << 30,  // 2 GB
			SessionTTLSeconds: int64((24 * time.Hour).Seconds()),
			AllowedExtensions: nil, // empty list allows everything
		},
		Downloads: downloadsConfig{
			CacheDir:        "./data/download-cache",
			CacheTTLSeconds: int64((time.Hour).Seconds()),
		},
		Search: searchConfig{
			MaxFiles:        50,
			MaxLinesPerFile: 20,
			MaxLineLength:   512,
		},
	}
}

// Load reads the TOML file at path (skipped when path is empty or the file
// does not exist) and then applies environment overrides.
func Load(path string) error {
	cfg := defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	switch cfg.Storage.DefaultMode {
	case "worktree", "bare":
	default:
		return fmt.Errorf("storage.default_mode must be %q or %q, got %q", "worktree", "bare", cfg.Storage.DefaultMode)
	}

	loaded = cfg
	return nil
}

func applyEnv(cfg *fileConfig) {
	if v, ok := envInt("GITSTORE_PORT"); ok {
		cfg.Server.Port = int(v)
	}
	if v := os.Getenv("GITSTORE_CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.CorsAllowedOrigins = splitList(v)
	}
	if v := os.Getenv("GITSTORE_REPOS_DIR"); v != "" {
		cfg.Storage.RootDir = v
	}
	if v := os.Getenv("GITSTORE_DEFAULT_MODE"); v != "" {
		cfg.Storage.DefaultMode = v
	}
	if v := os.Getenv("GITSTORE_LFS_ENABLED"); v != "" {
		cfg.Storage.LfsEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("GITSTORE_LFS_PATTERNS"); v != "" {
		cfg.Storage.LfsPatterns = splitList(v)
	}
	if v := os.Getenv("GITSTORE_DEFAULT_AUTHOR_NAME"); v != "" {
		cfg.Storage.DefaultAuthorName = v
	}
	if v := os.Getenv("GITSTORE_DEFAULT_AUTHOR_EMAIL"); v != "" {
		cfg.Storage.DefaultAuthorEmail = v
	}
	if v := os.Getenv("GITSTORE_UPLOADS_DIR"); v != "" {
		cfg.Uploads.Dir = v
	}
	if v, ok := envInt("GITSTORE_UPLOAD_CHUNK_SIZE"); ok {
		cfg.Uploads.ChunkSizeBytes = v
	}
	if v, ok := envInt("GITSTORE_UPLOAD_MAX_CHUNK_SIZE"); ok {
		cfg.Uploads.MaxChunkSizeBytes = v
	}
	if v, ok := envInt("GITSTORE_UPLOAD_MAX_FILE_SIZE"); ok {
		cfg.Uploads.MaxFileSizeBytes = v
	}
	if v, ok := envInt("GITSTORE_UPLOAD_SESSION_TTL"); ok {
		cfg.Uploads.SessionTTLSeconds = v
	}
	if v := os.Getenv("GITSTORE_UPLOAD_ALLOWED_EXTENSIONS"); v != "" {
		cfg.Uploads.AllowedExtensions = splitList(v)
	}
	if v := os.Getenv("GITSTORE_DOWNLOAD_CACHE_DIR"); v != "" {
		cfg.Downloads.CacheDir = v
	}
	if v, ok := envInt("GITSTORE_DOWNLOAD_CACHE_TTL"); ok {
		cfg.Downloads.CacheTTLSeconds = v
	}
	if v, ok := envInt("GITSTORE_SEARCH_MAX_FILES"); ok {
		cfg.Search.MaxFiles = int(v)
	}
	if v, ok := envInt("GITSTORE_SEARCH_MAX_LINES_PER_FILE"); ok {
		cfg.Search.MaxLinesPerFile = int(v)
	}
	if v, ok := envInt("GITSTORE_SEARCH_MAX_LINE_LENGTH"); ok {
		cfg.Search.MaxLineLength = int(v)
	}
}

func envInt(name string) (int64, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsDev reports whether the process runs in development mode.
func IsDev() bool {
	env := os.Getenv("ENV")
	return env == "" || env == "dev" || env == "development"
}

type serverAccessor struct{}
type storageAccessor struct{}
type uploadsAccessor struct{}
type downloadsAccessor struct{}
type searchAccessor struct{}

var (
	Server    serverAccessor
	Storage   storageAccessor
	Uploads   uploadsAccessor
	Downloads downloadsAccessor
	Search    searchAccessor
)

func (serverAccessor) Port() int                    { return loaded.Server.Port }
func (serverAccessor) CorsAllowedOrigins() []string { return loaded.Server.CorsAllowedOrigins }

func (storageAccessor) RootDir() string            { return loaded.Storage.RootDir }
func (storageAccessor) DefaultMode() string        { return loaded.Storage.DefaultMode }
func (storageAccessor) LfsEnabled() bool           { return loaded.Storage.LfsEnabled }
func (storageAccessor) LfsPatterns() []string      { return loaded.Storage.LfsPatterns }
func (storageAccessor) DefaultAuthorName() string  { return loaded.Storage.DefaultAuthorName }
func (storageAccessor) DefaultAuthorEmail() string { return loaded.Storage.DefaultAuthorEmail }

func (uploadsAccessor) Dir() string                 { return loaded.Uploads.Dir }
func (uploadsAccessor) ChunkSizeBytes() int64       { return loaded.Uploads.ChunkSizeBytes }
func (uploadsAccessor) MaxChunkSizeBytes() int64    { return loaded.Uploads.MaxChunkSizeBytes }
func (uploadsAccessor) MaxFileSizeBytes() int64     { return loaded.Uploads.MaxFileSizeBytes }
func (uploadsAccessor) AllowedExtensions() []string { return loaded.Uploads.AllowedExtensions }
func (uploadsAccessor) SessionTTL() time.Duration {
	return time.Duration(loaded.Uploads.SessionTTLSeconds) * time.Second
}

func (downloadsAccessor) CacheDir() string { return loaded.Downloads.CacheDir }
func (downloadsAccessor) CacheTTL() time.Duration {
	return time.Duration(loaded.Downloads.CacheTTLSeconds) * time.Second
}

func (searchAccessor) MaxFiles() int        { return loaded.Search.MaxFiles }
func (searchAccessor) MaxLinesPerFile() int { return loaded.Search.MaxLinesPerFile }
func (searchAccessor) MaxLineLength() int   { return loaded.Search.MaxLineLength }
