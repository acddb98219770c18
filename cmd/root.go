// file: cmd/root.go
// version: 2.0.0
// guid: 3f2a1b0c-9d8e-4f7a-b6c5-d4e3f2a1b0c9

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/audiobook-curator/audiobook-curator/internal/ai"
	"github.com/audiobook-curator/audiobook-curator/internal/cache"
	"github.com/audiobook-curator/audiobook-curator/internal/config"
	"github.com/audiobook-curator/audiobook-curator/internal/events"
	"github.com/audiobook-curator/audiobook-curator/internal/library"
	"github.com/audiobook-curator/audiobook-curator/internal/matcher"
	"github.com/audiobook-curator/audiobook-curator/internal/metadata"
	"github.com/audiobook-curator/audiobook-curator/internal/playlist"
	"github.com/audiobook-curator/audiobook-curator/internal/scanner"
	"github.com/audiobook-curator/audiobook-curator/internal/server"
	"github.com/audiobook-curator/audiobook-curator/internal/server/middleware"
	"github.com/audiobook-curator/audiobook-curator/internal/watcher"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "audiobook-curator",
	Short: "Scan, identify and enrich an audiobook library",
	Long: `Audiobook Curator scans directories of audiobook files, groups multi-part
works into collections, and resolves metadata from online providers with
a local lookup cache. It can also generate playlists and serve the
library over an HTTP API.`,
}

var scanCmd = &cobra.Command{
	Use:   "scan [dir]",
	Short: "Scan a directory tree for audiobook files",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		root := cfg.RootDir
		if len(args) > 0 {
			root = args[0]
		}
		if root == "" {
			return fmt.Errorf("no directory given: pass an argument or set --dir")
		}

		lib, err := openLibrary(cfg, events.NewHub())
		if err != nil {
			return err
		}

		sc := scanner.New(cfg.Extensions...)
		fmt.Printf("Scanning %s...\n", root)
		result, err := sc.Scan(cmd.Context(), root, cfg.Recursive)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		if err := lib.ApplyScan(root, result.Files, result.Collections); err != nil {
			return fmt.Errorf("failed to update library: %w", err)
		}

		fmt.Printf("Found %d standalone files and %d collections\n", len(result.Files), len(result.Collections))
		return nil
	},
}

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Look up metadata for unmatched library entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if n, _ := cmd.Flags().GetInt("concurrency"); n > 0 {
			cfg.MatchConcurrency = n
		}

		lib, err := openLibrary(cfg, events.NewHub())
		if err != nil {
			return err
		}

		store := cache.New(cfg.CachePath(), cache.DefaultFlushDelay)
		defer store.Close()

		m := matcher.New(store, buildProviders(cfg), ai.NewParser(cfg.OpenAIAPIKey, cfg.EnableAIParsing))

		pending := lib.NeedsMetadata()
		pendingColls := lib.CollectionsNeedingMetadata()
		if len(pending) == 0 && len(pendingColls) == 0 {
			fmt.Println("Everything already has metadata")
			return nil
		}

		matched := 0
		if len(pending) > 0 {
			bar := progressbar.Default(int64(len(pending)), "matching")
			m.MatchAll(cmd.Context(), pending, cfg.MatchConcurrency, func(done, total int) {
				_ = bar.Set(done)
			})
			_ = bar.Finish()

			for _, f := range pending {
				if f.Metadata == nil {
					continue
				}
				if err := lib.ApplyFileMetadata(f.Path, f.Metadata); err != nil {
					fmt.Printf("Warning: could not store metadata for %s: %v\n", f.Path, err)
					continue
				}
				matched++
			}
		}

		for _, coll := range pendingColls {
			meta, err := m.MatchCollection(cmd.Context(), coll)
			if err != nil || meta == nil {
				continue
			}
			if err := lib.ApplyCollectionMetadata(coll.ID, meta); err == nil {
				matched++
			}
		}

		fmt.Printf("Matched %d of %d pending entries\n", matched, len(pending)+len(pendingColls))
		return nil
	},
}

var playlistCmd = &cobra.Command{
	Use:   "playlist",
	Short: "Generate M3U and iTunes playlists for collections",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		lib, err := openLibrary(cfg, events.NewHub())
		if err != nil {
			return err
		}

		colls := lib.Collections()
		if len(colls) == 0 {
			fmt.Println("No collections in library; run scan first")
			return nil
		}

		dir := cfg.EffectivePlaylistDir()
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create playlist directory: %w", err)
		}

		written := 0
		for _, coll := range colls {
			items := playlist.ItemsFromCollection(coll)
			if len(items) == 0 {
				continue
			}
			if _, err := playlist.WriteM3U(dir, coll.Title, items); err != nil {
				fmt.Printf("Warning: m3u playlist for %s: %v\n", coll.Title, err)
				continue
			}
			if _, err := playlist.WriteITunesXML(dir, coll.Title, items); err != nil {
				fmt.Printf("Warning: iTunes playlist for %s: %v\n", coll.Title, err)
				continue
			}
			written++
		}

		fmt.Printf("Wrote playlists for %d collections to %s\n", written, dir)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.ServerAddr = addr
		}
		if watch, _ := cmd.Flags().GetBool("watch"); watch {
			cfg.WatchEnabled = true
		}

		hub := events.NewHub()
		lib, err := openLibrary(cfg, hub)
		if err != nil {
			return err
		}

		store := cache.New(cfg.CachePath(), cache.DefaultFlushDelay)
		defer store.Close()

		sc := scanner.New(cfg.Extensions...)
		m := matcher.New(store, buildProviders(cfg), ai.NewParser(cfg.OpenAIAPIKey, cfg.EnableAIParsing))

		if cfg.WatchEnabled && cfg.RootDir != "" {
			debounce := time.Duration(cfg.WatchDebounceSeconds) * time.Second
			w := watcher.New(func(rootDir string) {
				result, err := sc.Scan(context.Background(), rootDir, cfg.Recursive)
				if err != nil {
					log.Printf("[ERROR] watch rescan failed: %v", err)
					return
				}
				if err := lib.ApplyScan(rootDir, result.Files, result.Collections); err != nil {
					log.Printf("[ERROR] watch rescan could not update library: %v", err)
				}
			}, debounce, hub, cfg.Extensions)
			if err := w.Start(cfg.RootDir); err != nil {
				return fmt.Errorf("failed to start watcher: %w", err)
			}
			defer w.Stop()
		}

		return server.New(cfg, lib, sc, m, store, hub).Run()
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Metadata cache maintenance",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all cached metadata lookups",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store := cache.New(cfg.CachePath(), cache.DefaultFlushDelay)
		defer store.Close()

		n := store.Len()
		if err := store.Clear(); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		fmt.Printf("Removed %d cached entries\n", n)
		return nil
	},
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password <password>",
	Short: "Hash a password for basic auth configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := middleware.HashPassword(args[0])
		if err != nil {
			return err
		}
		fmt.Println(hash)
		return nil
	},
}

func loadConfig() *config.Config {
	cfg := config.FromViper(viper.GetViper())
	if err := cfg.LoadFromFile(); err != nil {
		fmt.Printf("Warning: %v\n", err)
	}
	return cfg
}

func openLibrary(cfg *config.Config, hub *events.Hub) (*library.Library, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	lib := library.New(cfg.LibraryPath(), hub)
	if err := lib.Load(); err != nil {
		return nil, fmt.Errorf("failed to load library: %w", err)
	}
	return lib, nil
}

// buildProviders returns the metadata sources in lookup priority order.
func buildProviders(cfg *config.Config) []metadata.Provider {
	return []metadata.Provider{
		metadata.NewGoogleBooksClient(cfg.GoogleBooksAPIKey),
		metadata.NewOpenLibraryClient(),
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.audiobook-curator.yaml)")
	rootCmd.PersistentFlags().String("dir", "", "root directory containing audiobooks")
	rootCmd.PersistentFlags().String("data-dir", ".audiobook-curator", "directory for library, cache and settings")
	rootCmd.PersistentFlags().String("playlists", "", "directory to store generated playlists")
	rootCmd.PersistentFlags().Bool("recursive", true, "descend into subdirectories when scanning")

	viper.BindPFlag("root_dir", rootCmd.PersistentFlags().Lookup("dir"))
	viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag("playlist_dir", rootCmd.PersistentFlags().Lookup("playlists"))
	viper.BindPFlag("recursive", rootCmd.PersistentFlags().Lookup("recursive"))

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(playlistCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(hashPasswordCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	matchCmd.Flags().Int("concurrency", 0, "parallel metadata lookups (overrides match_concurrency)")
	serveCmd.Flags().String("addr", "", "listen address (overrides server_addr)")
	serveCmd.Flags().Bool("watch", false, "rescan automatically when files change")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".audiobook-curator")
	}

	viper.SetEnvPrefix("AUDIOBOOK_CURATOR")
	viper.AutomaticEnv()
	config.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}
