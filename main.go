// Package main provides the entry point for the handguide CLI application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/dgnsrekt/handguide/internal/config"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	plain      bool
	noSpeak    bool
	width      uint
	mouse      bool
	debug      bool

	// cfg is loaded before any command that narrates or reads the archive.
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "handguide [IMAGE]",
		Short: "A tour guide in your pocket",
		Long: paragraph(
			fmt.Sprintf("\nDescribe a photo or answer a question %s, sentence by sentence.", keyword("out loud")),
		),
		Example: paragraph("handguide gate.jpg\nhandguide ask 경복궁은 언제 지어졌나요?\nhandguide watch ~/Pictures/Camera"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return []string{"jpg", "jpeg", "png", "webp", "gif"}, cobra.ShellCompDirectiveFilterFileExt
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

func validateOptions(cmd *cobra.Command) error {
	if debug || viper.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}

	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}
	if noSpeak {
		viper.Set("speech.enabled", false)
	}

	var err error
	if cfg, err = config.Load(viper.GetViper()); err != nil {
		return err //nolint:wrapcheck
	}

	width = viper.GetUint("width")
	mouse = viper.GetBool("mouse")
	plain = viper.GetBool("plain")

	isTerminal := term.IsTerminal(int(os.Stdout.Fd()))
	if !isTerminal {
		plain = true
	}

	// Detect terminal width
	if !cmd.Flags().Changed("width") { //nolint:nestif
		if isTerminal && width == 0 {
			w, _, err := term.GetSize(int(os.Stdout.Fd()))
			if err == nil {
				width = uint(w) //nolint:gosec
			}

			if width > 100 {
				width = 100
			}
		}
		if width == 0 {
			width = 80
		}
	}

	log.Debug("Options",
		"provider", cfg.AI.Provider,
		"language", cfg.AI.Language,
		"engine", cfg.Speech.Engine,
		"speak", cfg.Speech.Enabled,
		"plain", plain,
		"width", width)
	return nil
}

func execute(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return runAsk(cmd, nil)
	}

	src, err := loadImage(args[0])
	if err != nil {
		return err
	}
	return narrate(cmd.Context(), src)
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err = rootCmd.ExecuteContext(ctx)
	stop()
	_ = closer()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	if err := config.LoadEnv(); err != nil {
		log.Warn("Could not load .env file", "error", err)
	}
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

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	flags.String("engine", "", "speech engine: gtts, piper or mock")
	flags.String("provider", "", "AI provider: openai or gemini")
	flags.String("model", "", "AI model name")
	flags.StringP("lang", "L", "", "narration language, e.g. ko or en")
	flags.Float64("speed", 0, "speaking rate (0.5 to 2.0)")
	flags.BoolVar(&noSpeak, "no-speak", false, "show the narration without speaking it")
	flags.BoolVar(&plain, "plain", false, "print sentences instead of running the TUI")
	flags.UintVarP(&width, "width", "w", 0, "word-wrap at width (set to 0 to detect)")
	flags.BoolVarP(&mouse, "mouse", "m", false, "enable mouse wheel (TUI-mode only)")
	flags.BoolVar(&debug, "debug", false, "write debug logs")
	_ = flags.MarkHidden("mouse")

	// Config bindings
	_ = viper.BindPFlag("speech.engine", flags.Lookup("engine"))
	_ = viper.BindPFlag("ai.provider", flags.Lookup("provider"))
	_ = viper.BindPFlag("ai.model", flags.Lookup("model"))
	_ = viper.BindPFlag("ai.language", flags.Lookup("lang"))
	_ = viper.BindPFlag("speech.speed", flags.Lookup("speed"))
	_ = viper.BindPFlag("plain", flags.Lookup("plain"))
	_ = viper.BindPFlag("width", flags.Lookup("width"))
	_ = viper.BindPFlag("mouse", flags.Lookup("mouse"))
	_ = viper.BindPFlag("debug", flags.Lookup("debug"))

	viper.SetDefault("width", 0)
	viper.SetDefault("plain", false)
	viper.SetDefault("mouse", false)
	config.SetDefaults(viper.GetViper())

	rootCmd.AddCommand(askCmd, watchCmd, archiveCmd, cacheCmd, configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, config.AppName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, config.AppName)}, dirs...)
	}

	if c := os.Getenv("HANDGUIDE_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(config.AppName)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix(config.AppName)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
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
		configFile = filepath.Join(dirs[0], config.AppName+".yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
