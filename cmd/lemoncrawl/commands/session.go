package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"lemoncrawl/internal/browser"
	"lemoncrawl/internal/browser/fixture"
	"lemoncrawl/internal/config"
	"lemoncrawl/internal/storage"
)

// openPage returns a logged-in page and a func that releases it. With --replay
// the page is served from saved snapshots and no browser is started.
func openPage(ctx context.Context) (browser.Page, func(), error) {
	if replayDir != "" {
		site, err := fixture.LoadSite(replayDir)
		if err != nil {
			return nil, nil, err
		}
		log.WithField("dir", replayDir).Info("Replaying saved snapshots")
		return fixture.New(site), func() {}, nil
	}

	creds, err := credentials(cfg, os.Stdin, os.Stderr, readPassword)
	if err != nil {
		return nil, nil, err
	}

	b, err := browser.Launch(browser.LaunchOptions{
		Bin:        cfg.ChromeBin,
		Headless:   cfg.Headless,
		ControlURL: cfg.ControlURL,
	}, log)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		if err := b.Close(); err != nil {
			log.WithError(err).Error("Error closing browser")
		}
	}

	page, err := b.NewPage(ctx)
	if err != nil {
		release()
		return nil, nil, err
	}
	err = page.Login(ctx, creds, browser.LoginOptions{
		URL:              cfg.Resolve(cfg.LoginURL),
		EmailSelector:    cfg.Selectors.LoginEmail,
		PasswordSelector: cfg.Selectors.LoginPassword,
		Timeout:          cfg.WaitTimeout,
	})
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("login failed: %w", err)
	}
	return page, release, nil
}

func openLedger() (*storage.BadgerLedger, error) {
	return storage.NewBadgerLedger(cfg.LedgerPath, log)
}

type passwordReader func() (string, error)

func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("LEMONBASE_PASSWORD is not set and stdin is not a terminal")
	}
	raw, err := term.ReadPassword(fd)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(raw), nil
}

// credentials takes the login from configuration and prompts for whatever is missing.
func credentials(c config.Config, in io.Reader, out io.Writer, password passwordReader) (browser.Credentials, error) {
	creds := browser.Credentials{Email: c.Email, Password: c.Password}
	if creds.Email == "" {
		fmt.Fprint(out, "Lemonbase email: ")
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return creds, fmt.Errorf("failed to read email: %w", err)
		}
		creds.Email = strings.TrimSpace(line)
	}
	if creds.Password == "" {
		fmt.Fprint(out, "Lemonbase password: ")
		pw, err := password()
		fmt.Fprintln(out)
		if err != nil {
			return creds, err
		}
		creds.Password = pw
	}
	if creds.Email == "" || creds.Password == "" {
		return creds, errors.New("email and password are required")
	}
	return creds, nil
}
