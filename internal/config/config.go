// file: internal/config/config.go
// version: 2.0.0
// guid: 7b8c9d0e-1f2a-3b4c-5d6e-7f8a9b0c1d2e

package config

import (
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	RootDir     string   `yaml:"root_dir"`
	DataDir     string   `yaml:"data_dir"`
	PlaylistDir string   `yaml:"playlist_dir"`
	Recursive   bool     `yaml:"recursive"`
	Extensions  []string `yaml:"extensions"`

	MatchConcurrency     int  `yaml:"match_concurrency"`
	WatchEnabled         bool `yaml:"watch_enabled"`
	WatchDebounceSeconds int  `yaml:"watch_debounce_seconds"`

	GoogleBooksAPIKey string `yaml:"google_books_api_key,omitempty"`
	OpenAIAPIKey      string `yaml:"openai_api_key,omitempty"`
	EnableAIParsing   bool   `yaml:"enable_ai_parsing"`

	ServerAddr            string `yaml:"server_addr"`
	BasicAuthEnabled      bool   `yaml:"basic_auth_enabled"`
	BasicAuthUsername     string `yaml:"basic_auth_username"`
	BasicAuthPasswordHash string `yaml:"basic_auth_password_hash,omitempty"`
	APIRateLimitPerMinute int    `yaml:"api_rate_limit_per_minute"`

	LogLevel string `yaml:"log_level"`
}

// SetDefaults registers default values on a viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", ".audiobook-curator")
	v.SetDefault("recursive", true)
	v.SetDefault("extensions", []string{".mp3", ".m4a", ".m4b", ".aac", ".ogg", ".opus", ".flac", ".wma"})
	v.SetDefault("match_concurrency", 4)
	v.SetDefault("watch_enabled", false)
	v.SetDefault("watch_debounce_seconds", 5)
	v.SetDefault("enable_ai_parsing", false)
	v.SetDefault("server_addr", ":8080")
	v.SetDefault("basic_auth_enabled", false)
	v.SetDefault("api_rate_limit_per_minute", 300)
	v.SetDefault("log_level", "info")
}

// FromViper materializes a Config from a viper instance.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		RootDir:               v.GetString("root_dir"),
		DataDir:               v.GetString("data_dir"),
		PlaylistDir:           v.GetString("playlist_dir"),
		Recursive:             v.GetBool("recursive"),
		Extensions:            v.GetStringSlice("extensions"),
		MatchConcurrency:      v.GetInt("match_concurrency"),
		WatchEnabled:          v.GetBool("watch_enabled"),
		WatchDebounceSeconds:  v.GetInt("watch_debounce_seconds"),
		GoogleBooksAPIKey:     v.GetString("google_books_api_key"),
		OpenAIAPIKey:          v.GetString("openai_api_key"),
		EnableAIParsing:       v.GetBool("enable_ai_parsing"),
		ServerAddr:            v.GetString("server_addr"),
		BasicAuthEnabled:      v.GetBool("basic_auth_enabled"),
		BasicAuthUsername:     v.GetString("basic_auth_username"),
		BasicAuthPasswordHash: v.GetString("basic_auth_password_hash"),
		APIRateLimitPerMinute: v.GetInt("api_rate_limit_per_minute"),
		LogLevel:              v.GetString("log_level"),
	}
}

// LibraryPath is where the library document lives.
func (c *Config) LibraryPath() string {
	return filepath.Join(c.DataDir, "library.json")
}

// CachePath is where the metadata cache document lives.
func (c *Config) CachePath() string {
	return filepath.Join(c.DataDir, "metadata-cache.json")
}

// EffectivePlaylistDir falls back to the data dir when unset.
func (c *Config) EffectivePlaylistDir() string {
	if c.PlaylistDir != "" {
		return c.PlaylistDir
	}
	return filepath.Join(c.DataDir, "playlists")
}
