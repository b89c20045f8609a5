package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/gammadia/jeeves/client/log"
	"github.com/gammadia/jeeves/g5k"
	"github.com/gammadia/jeeves/reservation"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// Versioning information set at build time
var version, commit = "dev", "n/a"

var g5kClient *g5k.Client
var controller *reservation.Controller

var verbose bool

var jeevesCmd = &cobra.Command{
	Use:   "jeeves",
	Short: "Jeeves reserves and deploys compute nodes on the grid.",

	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
		if err = log.Init(verbose); err != nil {
			return err
		}
		if cmd == versionCmd {
			return nil
		}

		endpoint := viper.GetString("api-url")
		username := viper.GetString("api-user")
		if username == "" {
			return fmt.Errorf("no API user configured (--api-user or JEEVES_API_USER)")
		}

		password := viper.GetString("api-password")
		if password == "" {
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				return fmt.Errorf("no API password configured (JEEVES_API_PASSWORD) and stdin is not a terminal")
			}
			cmd.PrintErrf("Password for %s@%s: ", username, endpoint)
			buf, err := term.ReadPassword(int(os.Stdin.Fd()))
			cmd.PrintErrln()
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			password = string(buf)
		}

		g5kClient, err = g5k.NewClient(g5k.Config{
			Endpoint: endpoint,
			Username: username,
			Password: password,
			Logger:   log.Base,
		})
		if err != nil {
			return fmt.Errorf("failed to create API client: %w", err)
		}

		controller = reservation.NewController(g5kClient, log.Base)
		return nil
	},
}

func init() {
	jeevesCmd.AddCommand(clustersCmd)
	jeevesCmd.AddCommand(demoCmd)
	jeevesCmd.AddCommand(deployCmd)
	jeevesCmd.AddCommand(releaseCmd)
	jeevesCmd.AddCommand(reserveCmd)
	jeevesCmd.AddCommand(sitesCmd)
	jeevesCmd.AddCommand(statusCmd)
	jeevesCmd.AddCommand(versionCmd)

	jeevesCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	jeevesCmd.PersistentFlags().String("api-url", "https://api.grid5000.fr/stable", "the API endpoint")
	jeevesCmd.PersistentFlags().String("api-user", "", "the API username")
	jeevesCmd.PersistentFlags().String("log-format", "text", "log format (json, text)")
	jeevesCmd.PersistentFlags().String("log-level", "INFO", "minimum log level")

	viper.SetEnvPrefix("jeeves")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	lo.Must0(viper.BindPFlags(jeevesCmd.PersistentFlags()))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jeevesCmd.SetOut(os.Stdout)
	if err := jeevesCmd.ExecuteContext(ctx); err != nil {
		lo.Must(fmt.Fprintln(os.Stderr, color.HiRedString(fmt.Sprint(err))))
		os.Exit(1)
	}
}
