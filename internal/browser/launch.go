package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sirupsen/logrus"
)

// LaunchOptions controls how the browser process is obtained.
type LaunchOptions struct {
	// Bin is the browser executable. Empty means launcher.LookPath.
	Bin string
	// Headless runs the browser without a window.
	Headless bool
	// ControlURL connects to an already running browser instead of launching one.
	ControlURL string
	// NavigationTimeout bounds each navigation.
	NavigationTimeout time.Duration
}

// Credentials are the login form values.
type Credentials struct {
	Email    string
	Password string
}

// LoginOptions describes the login form.
type LoginOptions struct {
	URL              string
	EmailSelector    string
	PasswordSelector string
	Timeout          time.Duration
}

// Browser owns the browser process for the lifetime of one command.
type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	opts     LaunchOptions
	log      logrus.FieldLogger
}

// Launch starts (or connects to) a browser.
// The caller must Close it, also on error paths.
func Launch(opts LaunchOptions, logger logrus.FieldLogger) (*Browser, error) {
	log := logger.WithField("component", "browser")
	b := &Browser{opts: opts, log: log}

	controlURL := opts.ControlURL
	if controlURL == "" {
		path := opts.Bin
		if path == "" {
			var exists bool
			path, exists = launcher.LookPath()
			if !exists {
				log.Error("Cannot find browser executable for rod")
				return nil, errors.New("rod browser dependency not found")
			}
		}
		b.launcher = launcher.New().
			Bin(path).
			Headless(opts.Headless).
			NoSandbox(true).
			Set("disable-dev-shm-usage")
		u, err := b.launcher.Launch()
		if err != nil {
			log.WithError(err).Error("Failed to launch browser")
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		controlURL = u
	}

	// Not bound to the command context so Close still works after an interrupt.
	b.browser = rod.New().ControlURL(controlURL)
	if err := b.browser.Connect(); err != nil {
		log.WithError(err).Error("Failed to connect to rod browser")
		b.cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	log.WithField("headless", opts.Headless).Info("Browser ready")
	return b, nil
}

// NewPage opens a blank tab and wraps it as a Page.
func (b *Browser) NewPage(ctx context.Context) (*RodPage, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		b.log.WithError(err).Error("Failed to create rod page")
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	timeout := b.opts.NavigationTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return NewRodPage(page.Context(ctx), timeout, b.log), nil
}

// Close shuts the browser down and removes the launcher's profile directory.
func (b *Browser) Close() error {
	b.log.Info("Closing browser...")
	err := b.browser.Close()
	if err != nil {
		b.log.WithError(err).Error("Error closing rod browser instance")
	}
	b.cleanup()
	if err != nil {
		return fmt.Errorf("error closing browser: %w", err)
	}
	b.log.Info("Browser closed.")
	return nil
}

func (b *Browser) cleanup() {
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher.Cleanup()
	}
}
