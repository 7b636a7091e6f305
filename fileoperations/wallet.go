package fileoperations

import (
	"errors"
	"os"

	"github.com/bartossh/Federation/wallet"
)

// ErrNoWalletPath is returned when wallet path is not configured.
var ErrNoWalletPath = errors.New("wallet path is not configured")

// Sealer offers behaviour to seal and open the bytes with a passphrase.
type Sealer interface {
	Seal(passphrase, data []byte) ([]byte, error)
	Open(passphrase, data []byte) ([]byte, error)
}

// ReadWallet reads wallet from the sealed file.
func (h Helper) ReadWallet() (wallet.Wallet, error) {
	if h.cfg.WalletPath == "" {
		return wallet.Wallet{}, ErrNoWalletPath
	}
	raw, err := os.ReadFile(h.cfg.WalletPath)
	if err != nil {
		return wallet.Wallet{}, err
	}

	opened, err := h.s.Open([]byte(h.cfg.WalletPasswd), raw)
	if err != nil {
		return wallet.Wallet{}, err
	}

	return wallet.DecodeGOBWallet(opened)
}

// SaveWallet saves wallet to the sealed file.
func (h Helper) SaveWallet(w *wallet.Wallet) error {
	if h.cfg.WalletPath == "" {
		return ErrNoWalletPath
	}
	raw, err := w.EncodeGOB()
	if err != nil {
		return err
	}

	closed, err := h.s.Seal([]byte(h.cfg.WalletPasswd), raw)
	if err != nil {
		return err
	}

	return os.WriteFile(h.cfg.WalletPath, closed, 0600)
}
