package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	cookie    string
	userAgent string
	sdkPath   string
	enterURL  string
	pushURL   string
	verbose   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dmcli",
	Short: "Watch Douyin live-room chat from the terminal",
	Long: `dmcli connects directly to a Douyin live room and prints its chat
stream to the terminal. It resolves the public room handle, opens a
signed websocket connection, and renders chat messages as they arrive.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cookie, "cookie", os.Getenv("DANMAKU_COOKIE"), "Douyin session cookie (defaults to $DANMAKU_COOKIE)")
	rootCmd.PersistentFlags().StringVar(&userAgent, "user-agent", "", "browser user agent (empty uses a Chrome default)")
	rootCmd.PersistentFlags().StringVar(&sdkPath, "sdk", "sdk.js", "path to the signature JS bundle")
	rootCmd.PersistentFlags().StringVar(&enterURL, "enter-url", "", "room-info endpoint override")
	rootCmd.PersistentFlags().StringVar(&pushURL, "push-url", "", "websocket push endpoint override")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// newLogger builds the CLI logger. Without -v only warnings reach the
// terminal so chat output stays readable.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func requireCookie() error {
	if cookie == "" {
		return fmt.Errorf("a cookie is required: pass --cookie or set DANMAKU_COOKIE")
	}
	return nil
}
