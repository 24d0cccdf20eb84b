// Package secrets keeps the remote scraper API token in the OS keychain.
package secrets

import (
	"errors"
	"net/url"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	KeyringService  = "jobscout"
	EnvScraperToken = "SCRAPER_API_TOKEN"
)

var ErrNoToken = errors.New("scraper API token not found (set it in keychain or via SCRAPER_API_TOKEN)")

// ScraperToken is the keychain entry for one scraper endpoint. The env var
// is only consulted when the keychain has nothing.
type ScraperToken struct {
	Account string
	Getenv  func(string) string
}

// ScraperAccount names the keychain entry for a scraper base URL.
func ScraperAccount(remoteURL string) string {
	host := strings.TrimSpace(remoteURL)
	if u, err := url.Parse(remoteURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return "jobscout:scraper:" + strings.ToLower(host)
}

func NewScraperToken(remoteURL string) ScraperToken {
	return ScraperToken{Account: ScraperAccount(remoteURL), Getenv: os.Getenv}
}

func (t ScraperToken) Get() (string, error) {
	if tok, err := keyring.Get(KeyringService, t.Account); err == nil && strings.TrimSpace(tok) != "" {
		return tok, nil
	}
	if t.Getenv != nil {
		if tok := strings.TrimSpace(t.Getenv(EnvScraperToken)); tok != "" {
			return tok, nil
		}
	}
	return "", ErrNoToken
}

func (t ScraperToken) Set(token string) error {
	if strings.TrimSpace(t.Account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(token) == "" {
		return errors.New("token is empty")
	}
	return keyring.Set(KeyringService, t.Account, token)
}

func (t ScraperToken) Delete() error {
	if strings.TrimSpace(t.Account) == "" {
		return errors.New("keyring account name is empty")
	}
	if err := keyring.Delete(KeyringService, t.Account); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}
