package portal

import (
	"context"
	"fmt"
	"time"

	"intralu-bot/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
)

// Prober reports whether the portal is worth launching a browser for.
type Prober interface {
	Probe(ctx context.Context) error
}

// RestyProber fetches the login page over plain http. Chrome takes seconds to
// start, a down portal is detected in milliseconds this way.
type RestyProber struct {
	client   *resty.Client
	loginURL string
}

func NewRestyProber(opts Options, tel telemetry.API) RestyProber {
	opts = opts.withDefaults()

	client := resty.New()
	client.SetTimeout(time.Second * 10)
	client.SetHeader("user-agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36")
	telemetry.InstrumentResty(client, telemetry.NewScopedAPI("portal_probe", tel))

	return RestyProber{
		client:   client,
		loginURL: opts.url(loginPath),
	}
}

func (p RestyProber) Probe(ctx context.Context) error {
	res, err := p.client.R().
		SetContext(ctx).
		Get(p.loginURL)
	if err != nil {
		return fmt.Errorf("portal unreachable: %w", err)
	}
	if res.StatusCode() >= 500 {
		return fmt.Errorf("portal unavailable: %s", res.Status())
	}
	return nil
}
