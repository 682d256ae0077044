package portal

import (
	"context"
	"errors"
	"fmt"

	"intralu-bot/internal/browser"
)

type InterstitialState int

const (
	InterstitialAbsent InterstitialState = iota
	InterstitialDismissed
	// InterstitialDetectionFailed means the page could not be inspected, the
	// questionnaire may or may not be covering it.
	InterstitialDetectionFailed
	// InterstitialDismissFailed means the questionnaire was seen and is
	// possibly still open.
	InterstitialDismissFailed
)

func (s InterstitialState) String() string {
	switch s {
	case InterstitialAbsent:
		return "absent"
	case InterstitialDismissed:
		return "dismissed"
	case InterstitialDetectionFailed:
		return "detection-failed"
	case InterstitialDismissFailed:
		return "dismiss-failed"
	}
	return fmt.Sprintf("InterstitialState(%d)", int(s))
}

// InterstitialResult is the outcome of a dismissal attempt. None of the
// states are fatal to the caller.
type InterstitialResult struct {
	State InterstitialState
	Err   error
}

var errInterstitialPersisted = errors.New("questionnaire still visible after dismissal")

func (n Navigator) interstitialLocator() browser.Locator {
	if n.opts.InterstitialDetection == DetectText {
		return browser.Text("Resolver Cuestionario")
	}
	return browser.Role("dialog", "cuestionario")
}

func (n Navigator) countInterstitial(ctx context.Context, page browser.Page) (int, error) {
	var count int
	err := withTimeout(ctx, n.opts.Timeouts.InterstitialProbe, func(ctx context.Context) error {
		var err error
		count, err = page.Count(ctx, n.interstitialLocator())
		return err
	})
	return count, err
}

// DismissInterstitial closes the questionnaire modal when present by clicking
// outside of it and pressing escape.
func (n Navigator) DismissInterstitial(ctx context.Context, page browser.Page) InterstitialResult {
	count, err := n.countInterstitial(ctx, page)
	if err != nil {
		return InterstitialResult{State: InterstitialDetectionFailed, Err: err}
	}
	if count == 0 {
		return InterstitialResult{State: InterstitialAbsent}
	}

	errlist := []error{}
	err = page.ClickAt(ctx, 10, 10)
	if err != nil {
		errlist = append(errlist, err)
	}
	err = page.PressEscape(ctx)
	if err != nil {
		errlist = append(errlist, err)
	}
	err = n.clock.Sleep(ctx, n.opts.Timeouts.InterstitialSettle)
	if err != nil {
		errlist = append(errlist, err)
	}
	if len(errlist) > 0 {
		return InterstitialResult{State: InterstitialDismissFailed, Err: errors.Join(errlist...)}
	}

	count, err = n.countInterstitial(ctx, page)
	if err != nil {
		return InterstitialResult{State: InterstitialDismissFailed, Err: err}
	}
	if count > 0 {
		return InterstitialResult{State: InterstitialDismissFailed, Err: errInterstitialPersisted}
	}
	return InterstitialResult{State: InterstitialDismissed}
}
