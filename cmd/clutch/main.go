package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/clutchchat/clutch/internal/config"
	"github.com/clutchchat/clutch/internal/rest"
	"github.com/clutchchat/clutch/internal/store"
)

var (
	flagConfig   string
	flagEmail    string
	flagPassword string
	flagUsername string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "clutch",
	Short: "Terminal client for the clutch gaming chat",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return err
		}
		setupLogging(cfg)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file (default clutch.toml)")

	loginCmd.Flags().StringVar(&flagEmail, "email", "", "account email")
	loginCmd.Flags().StringVar(&flagPassword, "password", "", "account password")
	registerCmd.Flags().StringVar(&flagUsername, "username", "", "account username")
	registerCmd.Flags().StringVar(&flagEmail, "email", "", "account email")
	registerCmd.Flags().StringVar(&flagPassword, "password", "", "account password")

	serversCmd.AddCommand(serversCreateCmd)
	rootCmd.AddCommand(loginCmd, registerCmd, serversCmd, channelsCmd, sendCmd, historyCmd, tailCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute command")
	}
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Log.Format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func openCache() (*store.Cache, error) {
	return store.Open(cfg.Cache.Path)
}

// newClient builds a REST client carrying the credential: CLUTCH_TOKEN if
// set, otherwise the persisted login token.
func newClient(cache *store.Cache) (*rest.Client, error) {
	token := cfg.API.Token
	if token == "" {
		var err error
		token, err = cache.GetPreference("token")
		if err != nil {
			return nil, fmt.Errorf("read credential: %w", err)
		}
	}
	return rest.New(cfg.API.BaseURL, cfg.API.AuthURL, rest.WithToken(token)), nil
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate and persist the session credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagEmail == "" || flagPassword == "" {
			return fmt.Errorf("--email and --password are required")
		}
		cache, err := openCache()
		if err != nil {
			return err
		}
		defer cache.Close()

		client := rest.New(cfg.API.BaseURL, cfg.API.AuthURL)
		resp, err := client.Login(cmd.Context(), flagEmail, flagPassword)
		if err != nil {
			return err
		}
		if err := cache.SetPreference("token", resp.Token); err != nil {
			return fmt.Errorf("persist credential: %w", err)
		}
		if err := cache.SetPreference("user_id", resp.User.ID); err != nil {
			return fmt.Errorf("persist user: %w", err)
		}
		log.Info().Str("user", resp.User.Username).Msg("logged in")
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagUsername == "" || flagEmail == "" || flagPassword == "" {
			return fmt.Errorf("--username, --email and --password are required")
		}
		client := rest.New(cfg.API.BaseURL, cfg.API.AuthURL)
		if err := client.Register(cmd.Context(), flagUsername, flagEmail, flagPassword); err != nil {
			return err
		}
		log.Info().Str("user", flagUsername).Msg("registered; run clutch login")
		return nil
	},
}

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "List your servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := openCache()
		if err != nil {
			return err
		}
		defer cache.Close()
		client, err := newClient(cache)
		if err != nil {
			return err
		}
		servers, err := client.ListServers(cmd.Context())
		if err != nil {
			return err
		}
		for _, s := range servers {
			fmt.Printf("%s  %s (invite %s)\n", s.ID, s.Name, s.InviteCode)
		}
		return nil
	},
}

var serversCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := openCache()
		if err != nil {
			return err
		}
		defer cache.Close()
		client, err := newClient(cache)
		if err != nil {
			return err
		}
		srv, err := client.CreateServer(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s  %s (invite %s)\n", srv.ID, srv.Name, srv.InviteCode)
		return nil
	},
}

var channelsCmd = &cobra.Command{
	Use:   "channels SERVER_ID",
	Short: "List a server's channels",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := openCache()
		if err != nil {
			return err
		}
		defer cache.Close()
		client, err := newClient(cache)
		if err != nil {
			return err
		}
		channels, err := client.ListChannels(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, ch := range channels {
			topic := ""
			if ch.Topic != "" {
				topic = "  - " + ch.Topic
			}
			fmt.Printf("%s  #%s [%s]%s\n", ch.ID, ch.Name, ch.ChannelType, topic)
		}
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send CHANNEL_ID TEXT...",
	Short: "Post a message to a channel",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := openCache()
		if err != nil {
			return err
		}
		defer cache.Close()
		client, err := newClient(cache)
		if err != nil {
			return err
		}
		msg, err := client.PostMessage(cmd.Context(), args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		log.Info().Str("message", msg.ID).Msg("sent")
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history CHANNEL_ID",
	Short: "Show locally cached messages for a channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := openCache()
		if err != nil {
			return err
		}
		defer cache.Close()
		messages, err := cache.Recent(args[0], cfg.Chat.HistoryLimit)
		if err != nil {
			return err
		}
		for _, m := range messages {
			fmt.Println(formatMessage(m))
		}
		return nil
	},
}
