// Package setup turns a Config into the running pieces shared by the bot and
// the cli.
package setup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"intralu-bot/internal/browser"
	"intralu-bot/internal/components/chrono"
	"intralu-bot/internal/components/telemetry"
	"intralu-bot/internal/portal"
	"intralu-bot/lib/dumputil"
	"intralu-bot/lib/paramstore"
)

const TokenEnv = "BOT_TOKEN"

var ErrNoToken = errors.New("no bot token configured")

type ParamLoader func(ctx context.Context) (paramstore.Getter, error)

// LoadParamstore is the ParamLoader used outside of tests.
func LoadParamstore(ctx context.Context) (paramstore.Getter, error) {
	return paramstore.Load(ctx)
}

// ResolveToken picks the bot token from, in order, the BOT_TOKEN variable,
// telegram.token and the SSM parameter named by telegram.token_parameter.
func ResolveToken(ctx context.Context, cfg TelegramConfig, getenv func(string) string, load ParamLoader) (string, error) {
	if token := strings.TrimSpace(getenv(TokenEnv)); token != "" {
		return token, nil
	}
	if token := strings.TrimSpace(cfg.Token); token != "" {
		return token, nil
	}
	if strings.TrimSpace(cfg.TokenParameter) == "" {
		return "", ErrNoToken
	}

	store, err := load(ctx)
	if err != nil {
		return "", err
	}
	token, err := store.Get(ctx, cfg.TokenParameter)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", fmt.Errorf("%w: parameter %s is empty", ErrNoToken, cfg.TokenParameter)
	}
	return token, nil
}

// NewService wires the portal core on top of a rod driven chrome.
func NewService(cfg Config, tel telemetry.API) (*portal.Service, error) {
	opts := cfg.PortalOptions()
	err := opts.Validate()
	if err != nil {
		return nil, err
	}

	clock, err := chrono.NewStandardImpl()
	if err != nil {
		return nil, fmt.Errorf("load portal timezone: %w", err)
	}

	driver := browser.NewRodDriver(cfg.RodOptions(), tel)
	prober := portal.NewRestyProber(opts, tel)
	navigator := portal.NewNavigator(driver, prober, clock, opts, tel)
	scraper := portal.NewScraper(clock, opts, tel)
	if cfg.Debug.DumpDir != "" {
		dump, err := dumputil.NewFilesystemOutput(cfg.Debug.DumpDir)
		if err != nil {
			return nil, fmt.Errorf("prepare dump dir: %w", err)
		}
		scraper = scraper.WithDump(dump)
	}
	sessions := portal.NewSessionManager(navigator, cfg.Portal.LoginRatePerMinute, tel)

	return portal.NewService(navigator, scraper, sessions, tel), nil
}
