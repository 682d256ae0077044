package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"intralu-bot/internal/components/telemetry"
	"intralu-bot/internal/portal"
	"intralu-bot/internal/setup"
	"intralu-bot/lib/configutil"
	"intralu-bot/lib/serviceutil"
	libtelemetry "intralu-bot/lib/telemetry"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// cliChat is the chat every cli invocation pretends to be.
const cliChat portal.ChatID = 0

var (
	configPath *string
	verbose    *bool
	headed     *bool
	dumpDir    *string
)

var rootCmd = &cobra.Command{
	Use:   "intralu-cli",
	Short: "intralu-cli scrapes the INTRALU portal once from the terminal.",
}

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "config.json5", "The config file, searched for in parent directories as well.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log every browser step.")
	headed = rootCmd.PersistentFlags().Bool("headed", false, "Show the chrome window regardless of the config.")
	dumpDir = rootCmd.PersistentFlags().String("dump", "", "Write the html of every scraped page into this directory.")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		libtelemetry.InitSlog(*verbose)
	}
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func readConfig() setup.Config {
	cfg, err := configutil.ReadRecursively[setup.Config](*configPath)
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	if *headed {
		headless := false
		cfg.Browser.Headless = &headless
	}
	if *dumpDir != "" {
		cfg.Debug.DumpDir = *dumpDir
	}
	return cfg
}

func promptSecret() (string, error) {
	fmt.Fprint(os.Stderr, "Contraseña DIRCE: ")
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(secret)), nil
}

// session is a portal service with the cli's credentials registered. The
// returned func closes every browser the command opened.
func session(cfg setup.Config) (*portal.Service, portal.Credentials, func()) {
	creds := portal.Credentials{
		Identifier: strings.TrimSpace(cfg.Cli.Identifier),
		Secret:     cfg.Cli.Secret,
	}
	if creds.Identifier == "" {
		serviceutil.Fatal("missing credentials", fmt.Errorf("cli.identifier is not set in %s", *configPath))
	}
	if creds.Secret == "" {
		secret, err := promptSecret()
		if err != nil {
			serviceutil.Fatal("failed to read password", err)
		}
		creds.Secret = secret
	}

	service, err := setup.NewService(cfg, telemetry.SlogAPI{})
	if err != nil {
		serviceutil.Fatal("failed to create portal service", err)
	}
	service.SetCredentials(cliChat, creds)

	return service, creds, func() {
		err := service.Shutdown()
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to close browser:", err)
		}
	}
}
