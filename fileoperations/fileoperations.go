package fileoperations

import (
	"errors"
	"io/fs"
	"os"
)

// ErrWalletExists is returned when the sealed wallet file would be overwritten.
var ErrWalletExists = errors.New("sealed wallet file already exists")

// Config holds the location and the passphrase of the federator sealed wallet.
type Config struct {
	WalletPath   string `yaml:"wallet_path"`   // path to the sealed wallet file
	WalletPasswd string `yaml:"wallet_passwd"` // passphrase sealing the wallet file, overridden by FEDERATION_WALLET_PASSWD
}

// Helper reads and writes the federator wallet sealed with the passphrase.
type Helper struct {
	s   Sealer
	cfg Config
}

// New creates new Helper.
func New(cfg Config, s Sealer) Helper {
	return Helper{
		cfg: cfg,
		s:   s,
	}
}

// WalletExists checks if the sealed wallet file is already present.
func (h Helper) WalletExists() (bool, error) {
	if h.cfg.WalletPath == "" {
		return false, ErrNoWalletPath
	}
	_, err := os.Stat(h.cfg.WalletPath)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}
