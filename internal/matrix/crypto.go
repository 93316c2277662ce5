// ABOUTME: End-to-end encryption setup for the Matrix transport
// ABOUTME: Opens the mautrix crypto store, resetting it when the device ID changed

package matrix

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/crypto/cryptohelper"
)

// cryptoManager owns the olm machine for one bot account.
type cryptoManager struct {
	helper *cryptohelper.CryptoHelper
	logger *slog.Logger
}

// setupCrypto enables encryption on client. client.DeviceID must be set.
func setupCrypto(ctx context.Context, client *mautrix.Client, recoveryKey, dataDir string, logger *slog.Logger) (*cryptoManager, error) {
	if client.DeviceID == "" {
		return nil, errors.New("encryption needs a device id; the access token has none")
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating crypto directory: %w", err)
	}

	userID := client.UserID.String()
	dbPath := filepath.Join(dataDir, fmt.Sprintf("script-crypto-%s.db", slugify(userID)))
	logger.Info("setting up encryption", "db", dbPath)

	if stale, err := deviceChanged(dbPath, client.DeviceID.String()); err != nil {
		logger.Debug("could not read stored device id", "error", err)
	} else if stale {
		logger.Warn("device id changed, discarding crypto store")
		for _, suffix := range []string{"", "-wal", "-shm"} {
			if err := os.Remove(dbPath + suffix); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("removing crypto store: %w", err)
			}
		}
	}

	helper, err := cryptohelper.NewCryptoHelper(client, storeKey(userID), dbPath)
	if err != nil {
		return nil, fmt.Errorf("creating crypto helper: %w", err)
	}
	if err := helper.Init(ctx); err != nil {
		return nil, fmt.Errorf("initializing crypto helper: %w", err)
	}
	client.Crypto = helper

	cm := &cryptoManager{helper: helper, logger: logger}
	if recoveryKey == "" {
		logger.Info("encryption enabled without cross-signing")
		return cm, nil
	}

	if err := helper.Machine().VerifyWithRecoveryKey(ctx, recoveryKey); err != nil {
		logger.Warn("recovery key verification failed, continuing unverified", "error", err)
	} else {
		logger.Info("device verified with recovery key")
	}
	return cm, nil
}

func (cm *cryptoManager) Close() error {
	if cm == nil || cm.helper == nil {
		return nil
	}
	return cm.helper.Close()
}

// slugify makes a user ID safe for a file name: @bot:example.org -> bot_example.org
func slugify(userID string) string {
	s := strings.TrimPrefix(userID, "@")
	var b strings.Builder
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '.', c == '-', c == '_':
			b.WriteRune(c)
		case c == ':':
			b.WriteByte('_')
		}
	}
	return b.String()
}

// storeKey derives the crypto store pickle key from the user ID.
func storeKey(userID string) []byte {
	h := sha256.Sum256([]byte("coven-script-crypto:" + userID))
	return h[:]
}

// deviceChanged reports whether an existing crypto store belongs to another
// device. A missing store or empty account table is not a change.
func deviceChanged(dbPath, deviceID string) (bool, error) {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return false, nil
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return false, err
	}
	defer db.Close()

	var stored string
	err = db.QueryRow("SELECT device_id FROM crypto_account LIMIT 1").Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return stored != deviceID, nil
}
