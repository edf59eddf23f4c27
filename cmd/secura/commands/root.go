package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/4abishai/secura/internal/app"
	"github.com/4abishai/secura/internal/domain"
)

var (
	home       string
	passphrase string
	serverURL  string
	directory  string
	username   string
	logLevel   string

	wired *app.Wire
)

// Execute runs the root command.
func Execute() error {
	root := &cobra.Command{
		Use:          "secura",
		Short:        "End-to-end encrypted messaging CLI",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := app.DefaultHome()
				if err != nil {
					return err
				}
				home = dir
			}
			cfg, err := app.LoadConfig(home)
			if err != nil {
				return err
			}
			applyFlags(cmd, &cfg)

			log, err := cfg.Logger()
			if err != nil {
				return err
			}
			wired, err = app.NewWire(cfg, log)
			return err
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&home, "home", "", "config dir (default ~/.secura)")
	pf.StringVarP(&passphrase, "passphrase", "p", "", "passphrase to protect the identity key")
	pf.StringVar(&serverURL, "server", "", "message hub URL (e.g. ws://127.0.0.1:8080/chat)")
	pf.StringVar(&directory, "directory", "", "key directory base URL (e.g. http://127.0.0.1:8080)")
	pf.StringVarP(&username, "username", "u", "", "local username")
	pf.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		initCmd(),
		fingerprintCmd(),
		registerCmd(),
		sendCmd(),
		listenCmd(),
		historyCmd(),
		conversationsCmd(),
		retryCmd(),
		resetCmd(),
	)
	err := root.Execute()
	if wired != nil {
		if cerr := wired.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// applyFlags overrides cfg with the flags set on the command line.
func applyFlags(cmd *cobra.Command, cfg *app.Config) {
	cfg.Passphrase = passphrase
	set := func(name string, dst *string, v string) {
		if cmd.Flags().Changed(name) {
			*dst = v
		}
	}
	set("server", &cfg.ServerURL, serverURL)
	set("directory", &cfg.DirectoryURL, directory)
	set("username", &cfg.Username, username)
	set("log-level", &cfg.Log.Level, logLevel)
}

// currentUser returns the configured username or an error naming the flag.
func currentUser() (domain.Username, error) {
	if wired.Config.Username == "" {
		return "", fmt.Errorf("username required (--username or config.yaml)")
	}
	return domain.Username(wired.Config.Username), nil
}

// withSession connects a session, runs fn, then disconnects.
func withSession(ctx context.Context, fn func(*app.Session) error) error {
	s, err := app.NewSession(wired)
	if err != nil {
		return err
	}
	if err := s.Start(ctx); err != nil {
		return err
	}
	defer s.Stop()
	if err := waitReady(ctx, s, 5*time.Second); err != nil {
		return err
	}
	return fn(s)
}

// waitReady blocks until the hub has confirmed registration.
func waitReady(ctx context.Context, s *app.Session, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for !s.Ready() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("hub not reachable: %w", domain.ErrTransportUnavailable)
		case <-tick.C:
		}
	}
	return nil
}

func logger() logrus.FieldLogger { return wired.Log }
