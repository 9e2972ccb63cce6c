// Package main provides the entry point for the readalong CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/dgnsrekt/readalong/internal/audio"
	"github.com/dgnsrekt/readalong/internal/bus"
	"github.com/dgnsrekt/readalong/internal/cache"
	"github.com/dgnsrekt/readalong/internal/content"
	"github.com/dgnsrekt/readalong/internal/glossary"
	"github.com/dgnsrekt/readalong/internal/playback"
	"github.com/dgnsrekt/readalong/internal/popup"
	"github.com/dgnsrekt/readalong/internal/prefs"
	"github.com/dgnsrekt/readalong/internal/queue"
	"github.com/dgnsrekt/readalong/internal/reader"
	"github.com/dgnsrekt/readalong/internal/telemetry"
	"github.com/dgnsrekt/readalong/ui"
	"github.com/dgnsrekt/readalong/utils"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	style      string
	width      uint
	mouse      bool
	startPage  int

	rootCmd = &cobra.Command{
		Use:   "readalong [BOOK]",
		Short: "Read textbooks aloud in the terminal",
		Long: paragraph(
			fmt.Sprintf("\nRead textbooks aloud, %s as they are spoken.", keyword("word by word")),
		),
		Example: paragraph("readalong ./biology\nreadalong --lang es --easy-read https://books.example.com/biology"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveFilterDirs
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

// validateStyle checks if the style is a default style, if not, checks that
// the custom style exists.
func validateStyle(style string) error {
	if style != "auto" && styles.DefaultStyles[style] == nil {
		style = utils.ExpandPath(style)
		if _, err := os.Stat(style); errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("specified style does not exist: %s", style)
		} else if err != nil {
			return fmt.Errorf("unable to stat file: %w", err)
		}
	}
	return nil
}

func validateOptions(cmd *cobra.Command) error {
	// grab config values from Viper
	width = viper.GetUint("width")
	mouse = viper.GetBool("mouse")

	if viper.IsSet("speed") {
		if err := audio.ValidateSpeed(viper.GetFloat64("speed")); err != nil {
			return fmt.Errorf("invalid speed: %w", err)
		}
	}

	// validate the glamour style
	style = viper.GetString("style")
	if err := validateStyle(style); err != nil {
		return err
	}

	isTerminal := term.IsTerminal(int(os.Stdout.Fd()))
	// We want to use a special no-TTY style, when stdout is not a terminal
	// and there was no specific style passed by arg
	if !isTerminal && !cmd.Flags().Changed("style") {
		style = "notty"
	}

	// Detect terminal width
	if !cmd.Flags().Changed("width") { //nolint:nestif
		if isTerminal && width == 0 {
			w, _, err := term.GetSize(int(os.Stdout.Fd()))
			if err == nil {
				width = uint(w) //nolint:gosec
			}

			if width > 120 {
				width = 120
			}
		}
		if width == 0 {
			width = 80
		}
	}
	return nil
}

func bookArg(args []string) (string, error) {
	arg := ""
	if len(args) > 0 {
		arg = args[0]
	}
	loc, err := utils.ResolveBook(arg)
	if err != nil {
		return "", fmt.Errorf("unable to resolve book: %w", err)
	}
	return loc, nil
}

func cacheConfig() cache.Config {
	cfg := cache.DefaultConfig()
	if v := viper.GetString("cache.dir"); v != "" {
		cfg.DiskPath = utils.ExpandPath(v)
	}
	if v := viper.GetInt64("cache.memory_mb"); v > 0 {
		cfg.MemoryCapacity = v * 1024 * 1024
	}
	if v := viper.GetInt64("cache.disk_mb"); v > 0 {
		cfg.DiskCapacity = v * 1024 * 1024
	}
	if viper.IsSet("cache.compression") {
		cfg.CompressionLevel = viper.GetInt("cache.compression")
	}
	if v := viper.GetDuration("cache.max_age"); v > 0 {
		cfg.MaxAge = v
	}
	return cfg
}

// openBundle opens the book at loc. Remote books read through a cache,
// which is returned so the caller can close it; it is nil for local
// books.
func openBundle(ctx context.Context, loc string) (*content.Bundle, *cache.Manager, error) {
	if !content.IsRemote(loc) {
		b, err := content.OpenSource(ctx, content.DirSource{Root: loc})
		if err != nil {
			return nil, nil, fmt.Errorf("unable to open book: %w", err)
		}
		return b, nil, nil
	}

	c, err := cache.NewManager(cacheConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("unable to open cache: %w", err)
	}
	src, err := content.NewHTTPSource(loc, content.HTTPConfig{
		RequestsPerMinute: viper.GetInt("http.requests_per_minute"),
		Timeout:           viper.GetDuration("http.timeout"),
		Cache:             c,
	})
	if err != nil {
		_ = c.Close()
		return nil, nil, err
	}
	b, err := content.OpenSource(ctx, src)
	if err != nil {
		_ = c.Close()
		return nil, nil, fmt.Errorf("unable to open book: %w", err)
	}
	return b, c, nil
}

// readingModes merges the modes saved for a book with the command line.
// Flags always win; config file values only apply to a book that has
// nothing saved yet.
func readingModes(cmd *cobra.Command, saved prefs.Modes) prefs.Modes {
	m := saved
	fresh := saved == prefs.DefaultModes()
	override := func(name string) bool {
		return cmd.Flags().Changed(name) || (fresh && viper.IsSet(name))
	}

	if override("lang") {
		m.Language = viper.GetString("lang")
	}
	if override("speed") {
		m.Speed = viper.GetFloat64("speed")
	}
	if override("easy-read") {
		m.EasyRead = viper.GetBool("easy-read")
	}
	if override("describe-images") {
		m.DescribeImages = viper.GetBool("describe-images")
	}
	if override("autoplay") {
		m.Autoplay = viper.GetBool("autoplay")
	}
	return m
}

func queueConfig() queue.Config {
	cfg := queue.DefaultConfig()
	if v := viper.GetInt("queue.lookahead"); v > 0 {
		cfg.Lookahead = v
	}
	if v := viper.GetInt("queue.workers"); v > 0 {
		cfg.Workers = v
	}
	if v := viper.GetInt64("queue.memory_mb"); v > 0 {
		cfg.MemoryLimit = v * 1024 * 1024
	}
	return cfg
}

func playerConfig() audio.PlayerConfig {
	cfg := audio.DefaultPlayerConfig()
	if v := viper.GetInt("audio.sample_rate"); v > 0 {
		cfg.SampleRate = v
	}
	if v := viper.GetInt("audio.buffer_size"); v > 0 {
		cfg.BufferSize = v
	}
	return cfg
}

func execute(cmd *cobra.Command, args []string) error {
	loc, err := bookArg(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	book, c, err := openBundle(ctx, loc)
	if err != nil {
		return err
	}
	if c != nil {
		defer c.Close() //nolint:errcheck
	}

	// Read environment to get debugging stuff
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}

	// use style set in env, or the flag if unset or invalid
	if cfg.GlamourStyle == "" || validateStyle(cfg.GlamourStyle) != nil {
		cfg.GlamourStyle = style
	}
	cfg.Path = loc
	cfg.MaxWidth = width
	cfg.EnableMouse = mouse
	cfg.StartPage = startPage - 1

	q := queue.NewAudioQueue(book.ReadAudio, queueConfig())
	defer q.Close() //nolint:errcheck

	backend, err := audio.NewOtoBackend(playerConfig(), q.Load)
	if err != nil {
		return fmt.Errorf("unable to open audio device: %w", err)
	}

	store, err := openPrefs(ctx)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	if err := store.BeginSession(ctx, book.Location()); err != nil {
		log.Warn("unable to record session", "error", err)
	}
	saved, err := store.Modes(ctx, book.Location())
	if err != nil {
		log.Warn("unable to load reading modes", "error", err)
		saved = prefs.DefaultModes()
	}

	popCfg := popup.DefaultConfig()
	popCfg.FadeIn = cfg.PopupFade
	popCfg.FadeOut = cfg.PopupFade

	session, err := reader.New(ctx, reader.Options{
		Bundle:   book,
		Backend:  backend,
		Queue:    q,
		Prefs:    store,
		Modes:    readingModes(cmd, saved),
		Playback: playback.DefaultConfig(),
		Popup:    popCfg,
	})
	if err != nil {
		return err
	}
	defer session.Close()

	shutdown, err := startObservers(ctx, session, q, store.Session())
	if err != nil {
		return err
	}
	defer shutdown()

	// Run Bubble Tea program
	if _, err := ui.NewProgram(cfg, session).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

func openPrefs(ctx context.Context) (*prefs.Store, error) {
	path, err := prefs.DefaultPath()
	if err != nil {
		log.Warn("reading modes will not be remembered", "error", err)
		path = ""
	}
	store, err := prefs.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("unable to open preferences: %w", err)
	}
	return store, nil
}

// startObservers hooks metrics and the event bus up to the session when
// they are configured.
func startObservers(ctx context.Context, s *reader.Session, q *queue.AudioQueue, sessionID string) (func(), error) {
	var stops []func()
	stop := func() {
		for i := len(stops) - 1; i >= 0; i-- {
			stops[i]()
		}
	}

	if addr := viper.GetString("metrics.addr"); addr != "" {
		rec, err := telemetry.New()
		if err != nil {
			return nil, err
		}
		s.Sequencer().Subscribe(rec.Observe)
		s.Synchronizer().OnFallback(rec.Fallback)
		s.OnDefinition(func(e *glossary.Entry) { rec.GlossaryOpened(e.Term) })
		if err := rec.Gauge("readalong_queue_ready_bytes", "Clip bytes prefetched and ready.", func() int64 {
			return q.GetStats().ReadyBytes
		}); err != nil {
			log.Warn("unable to register queue gauge", "error", err)
		}

		srvCtx, cancel := context.WithCancel(ctx)
		go func() {
			if err := rec.Serve(srvCtx, addr); err != nil {
				log.Error("metrics stopped", "error", err)
			}
		}()
		stops = append(stops, func() {
			cancel()
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			_ = rec.Shutdown(shutdownCtx)
		})
	}

	busCfg := busConfig()
	if viper.GetBool("bus.embedded") {
		srv, err := bus.StartEmbedded("127.0.0.1", viper.GetInt("bus.port"))
		if err != nil {
			stop()
			return nil, err
		}
		stops = append(stops, srv.Shutdown)
		busCfg.URL = srv.URL()
	}
	if busCfg.URL != "" {
		pub, err := bus.Connect(busCfg, s.Book(), sessionID)
		if err != nil {
			// reading works without the bus
			log.Warn("playback events will not be published", "error", err)
		} else {
			unsubscribe := s.Sequencer().Subscribe(pub.Publish)
			stops = append(stops, func() {
				unsubscribe()
				pub.Close()
			})
		}
	}
	return stop, nil
}

func busConfig() bus.Config {
	cfg := bus.DefaultConfig()
	cfg.URL = viper.GetString("bus.url")
	if v := viper.GetString("bus.subject"); v != "" {
		cfg.Subject = v
	}
	return cfg
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.Flags().StringVarP(&style, "style", "s", styles.AutoStyle, "style name or JSON path for definitions")
	rootCmd.Flags().UintVarP(&width, "width", "w", 0, "word-wrap at width (set to 0 to fit the terminal)")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "click a paragraph to hear it")
	rootCmd.Flags().IntVarP(&startPage, "page", "p", 0, "open this page (1-based) instead of resuming")
	rootCmd.Flags().String("lang", "", "language to read in")
	rootCmd.Flags().Float64("speed", 1, "playback speed (0.5, 1, 1.5 or 2)")
	rootCmd.Flags().BoolP("easy-read", "e", false, "read the simplified text")
	rootCmd.Flags().BoolP("describe-images", "i", false, "read image descriptions")
	rootCmd.Flags().BoolP("autoplay", "a", false, "start reading after the first key press")

	// Config bindings
	for _, name := range []string{"style", "width", "mouse", "lang", "speed", "easy-read", "describe-images", "autoplay"} {
		_ = viper.BindPFlag(name, rootCmd.Flags().Lookup(name))
	}

	viper.SetDefault("style", styles.AutoStyle)
	viper.SetDefault("width", 0)
	viper.SetDefault("bus.port", 4222)

	rootCmd.AddCommand(configCmd, manCmd, checkCmd, cacheCmd, glossaryCmd, followCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "readalong")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "readalong")}, dirs...)
	}

	if c := os.Getenv("READALONG_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("readalong")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("readalong")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "readalong.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
