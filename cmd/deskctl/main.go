package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/text/language"

	"agentdesk/internal/event"
	"agentdesk/internal/logger"
	"agentdesk/internal/model"
	"agentdesk/internal/platform"
	"agentdesk/internal/service"
)

var rootCmd = &cobra.Command{
	Use:   "deskctl",
	Short: "Operator CLI for the agent desk",
	Long: `deskctl talks to the platform API directly.
- agents/escorts list: print a list in display order.
- agents/escorts delete: delete one record with the same undo window as the desk.
- console: interactive view of every list with undo.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(viper.GetString("platform-url")) == "" {
			return fmt.Errorf("platform URL is required (--platform-url or DESKCTL_PLATFORM_URL)")
		}
		if _, err := language.Parse(viper.GetString("collation")); err != nil {
			return fmt.Errorf("invalid --collation: %w", err)
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("DESKCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.String("platform-url", "", "platform API base URL")
	flags.String("platform-token", "", "platform API bearer token")
	flags.Duration("timeout", 15*time.Second, "platform request timeout")
	flags.Bool("json", false, "output JSON")
	flags.String("collation", "en", "language tag used to order names")
	flags.Int("undo-window", 20, "seconds to undo a deletion")
	flags.String("operator", os.Getenv("USER"), "operator name recorded on deletions")
	flags.Bool("verbose", false, "log desk activity to stderr")
	for _, name := range []string{"platform-url", "platform-token", "timeout", "json", "collation", "undo-window", "operator", "verbose"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(resourceCmd("agents", "Manage support agents"))
	rootCmd.AddCommand(resourceCmd("escorts", "Manage escort profiles"))
	rootCmd.AddCommand(consoleCmd())
}

func platformClient() *platform.Client {
	return platform.New(viper.GetString("platform-url"), viper.GetString("platform-token"), viper.GetDuration("timeout"))
}

func collation() language.Tag {
	return language.Make(viper.GetString("collation"))
}

func actor() model.Actor {
	return model.Actor{Username: viper.GetString("operator"), Role: model.RoleAdmin}
}

// cliLogger keeps desk logs off the terminal unless --verbose.
func cliLogger() *slog.Logger {
	if !viper.GetBool("verbose") {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(logger.NewPrettyHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newDesk(resources []string, bus event.Bus) (*service.DeskService, error) {
	return service.NewDeskService(platformClient(), service.DeskOptions{
		Resources:     resources,
		Window:        viper.GetInt("undo-window"),
		RemoteTimeout: viper.GetDuration("timeout"),
		Collation:     collation(),
		Bus:           bus,
		Logger:        cliLogger(),
	})
}
