package setup

import (
	"time"

	"intralu-bot/internal/browser"
	"intralu-bot/internal/portal"
	"intralu-bot/lib/telemetry"
)

type TelegramConfig struct {
	Token string `json:"token"`
	// TokenParameter is an SSM parameter name holding the token, read
	// only when neither BOT_TOKEN nor Token is set.
	TokenParameter     string `json:"token_parameter"`
	PollTimeoutSeconds int    `json:"poll_timeout_seconds"`
}

type PortalConfig struct {
	BaseUrl               string  `json:"base_url"`
	CourseNavigation      string  `json:"course_navigation"`
	InterstitialDetection string  `json:"interstitial_detection"`
	LoginRatePerMinute    float64 `json:"login_rate_per_minute"`
}

type BrowserConfig struct {
	Bin         string   `json:"bin"`
	Headless    *bool    `json:"headless"`
	LaunchFlags []string `json:"launch_flags"`
	ControlUrl  string   `json:"control_url"`
}

// TimeoutsConfig is in milliseconds, zero keeps the default.
type TimeoutsConfig struct {
	Navigation         int `json:"navigation"`
	LoginField         int `json:"login_field"`
	LoginLanding       int `json:"login_landing"`
	MenuStep           int `json:"menu_step"`
	CourseList         int `json:"course_list"`
	TableWait          int `json:"table_wait"`
	InterstitialProbe  int `json:"interstitial_probe"`
	LoginSettle        int `json:"login_settle"`
	PageSettle         int `json:"page_settle"`
	InterstitialSettle int `json:"interstitial_settle"`
}

type CliConfig struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

type DebugConfig struct {
	// DumpDir receives the html of every page the scraper parses, it is
	// emptied on startup.
	DumpDir string `json:"dump_dir"`
}

type Config struct {
	Telegram  TelegramConfig   `json:"telegram"`
	Portal    PortalConfig     `json:"portal"`
	Browser   BrowserConfig    `json:"browser"`
	Timeouts  TimeoutsConfig   `json:"timeouts"`
	Telemetry telemetry.Config `json:"telemetry"`
	Cli       CliConfig        `json:"cli"`
	Debug     DebugConfig      `json:"debug"`
}

const defaultPollTimeoutSeconds = 60

func (c TelegramConfig) PollTimeout() int {
	if c.PollTimeoutSeconds <= 0 {
		return defaultPollTimeoutSeconds
	}
	return c.PollTimeoutSeconds
}

func ms(v int) time.Duration {
	if v <= 0 {
		return 0
	}
	return time.Duration(v) * time.Millisecond
}

func (c TimeoutsConfig) Timeouts() portal.Timeouts {
	return portal.Timeouts{
		Navigation:         ms(c.Navigation),
		LoginField:         ms(c.LoginField),
		LoginLanding:       ms(c.LoginLanding),
		MenuStep:           ms(c.MenuStep),
		CourseList:         ms(c.CourseList),
		TableWait:          ms(c.TableWait),
		InterstitialProbe:  ms(c.InterstitialProbe),
		LoginSettle:        ms(c.LoginSettle),
		PageSettle:         ms(c.PageSettle),
		InterstitialSettle: ms(c.InterstitialSettle),
	}
}

func (c Config) PortalOptions() portal.Options {
	return portal.Options{
		BaseURL:               c.Portal.BaseUrl,
		CourseNavigation:      portal.CourseNavigation(c.Portal.CourseNavigation),
		InterstitialDetection: portal.InterstitialDetection(c.Portal.InterstitialDetection),
		Timeouts:              c.Timeouts.Timeouts(),
	}
}

// RodOptions defaults to headless when the config leaves it out.
func (c Config) RodOptions() browser.RodOptions {
	headless := true
	if c.Browser.Headless != nil {
		headless = *c.Browser.Headless
	}
	return browser.RodOptions{
		Bin:        c.Browser.Bin,
		Headless:   headless,
		Flags:      c.Browser.LaunchFlags,
		ControlURL: c.Browser.ControlUrl,
	}
}
