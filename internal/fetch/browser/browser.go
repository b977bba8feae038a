// Package browser runs a single headless-Chrome navigation per call. Unlike
// the teacher's long-lived, recycling browser.Manager, this package launches
// a fresh browser, context, and page for every RenderOnce call and closes
// all three on every exit path — including cancellation — rather than
// pooling them, per the "never reused across fetches" isolation contract.
package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Config configures a single headless-browser render.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance. Empty
	// launches a local Chrome via launcher.
	RemoteURL string
	// ResourceBlocking lists resource types to block (images, fonts,
	// media, stylesheets) to speed up navigation.
	ResourceBlocking []string
	// UserAgent overrides the page's navigator.userAgent.
	UserAgent string
}

// RenderOnce launches a browser, opens a stealth page, navigates to url,
// waits for the page load event, and returns the serialized document plus
// the non-fatal setup failures it hit (user-agent override, resource
// blocking). The page's own console messages and uncaught page errors are
// not captured and never appear in consoleErrors. The browser, its
// context, and the page are closed before returning on every path,
// mirroring domwatch/internal/browser.Manager/Tab's close chains.
func RenderOnce(ctx context.Context, url string, cfg Config) (html []byte, consoleErrors []string, err error) {
	b, lnch, launchErr := launch(cfg)
	if launchErr != nil {
		return nil, nil, launchErr
	}
	defer func() {
		b.Close()
		if lnch != nil {
			lnch.Cleanup()
		}
	}()

	page, pageErr := stealth.Page(b)
	if pageErr != nil {
		return nil, nil, fmt.Errorf("browser: create page: %w", pageErr)
	}
	defer page.Close()

	if cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: cfg.UserAgent}); err != nil {
			// Non-fatal: proceed with the default UA.
			consoleErrors = append(consoleErrors, fmt.Sprintf("set user agent failed: %v", err))
		}
	}

	if len(cfg.ResourceBlocking) > 0 {
		if berr := applyResourceBlocking(page, cfg.ResourceBlocking); berr != nil {
			consoleErrors = append(consoleErrors, fmt.Sprintf("resource blocking unavailable: %v", berr))
		}
	}

	navPage := page.Context(ctx)
	if navErr := navPage.Navigate(url); navErr != nil {
		return nil, consoleErrors, fmt.Errorf("browser: navigate %s: %w", url, navErr)
	}
	if loadErr := navPage.WaitLoad(); loadErr != nil {
		return nil, consoleErrors, fmt.Errorf("browser: wait load %s: %w", url, loadErr)
	}

	res, evalErr := navPage.Eval(`() => document.documentElement.outerHTML`)
	if evalErr != nil {
		return nil, consoleErrors, fmt.Errorf("browser: serialize dom: %w", evalErr)
	}

	return []byte(res.Value.Str()), consoleErrors, nil
}

func launch(cfg Config) (*rod.Browser, *launcher.Launcher, error) {
	var wsURL string
	var lnch *launcher.Launcher

	if cfg.RemoteURL != "" {
		wsURL = cfg.RemoteURL
	} else {
		l := launcher.New().Headless(true).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		lnch = l
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if lnch != nil {
			lnch.Cleanup()
		}
		return nil, nil, fmt.Errorf("browser: connect: %w", err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		// Non-fatal: rendering still proceeds, just noisier on bad certs.
		_ = err
	}

	return b, lnch, nil
}
