package mdxblog

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const saltSetting = "visitor_salt"

// VisitorSalt loads the per-installation salt used to hash visitor IPs,
// generating and persisting one on first use.
func (s *Store) VisitorSalt(ctx context.Context) (string, error) {
	var salt string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, saltSetting).Scan(&salt)
	if err == nil {
		return salt, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("read visitor salt: %w", err)
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate visitor salt: %w", err)
	}
	// Another process may have won the insert; read back whatever is stored.
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`, saltSetting, hex.EncodeToString(b)); err != nil {
		return "", fmt.Errorf("store visitor salt: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, saltSetting).Scan(&salt); err != nil {
		return "", fmt.Errorf("read visitor salt: %w", err)
	}
	return salt, nil
}

// VisitorHash derives a stable anonymous visitor id from the client IP and
// the installation salt. Raw IPs are never stored.
func VisitorHash(ip, salt string) string {
	sum := sha256.Sum256([]byte(salt + ip))
	return hex.EncodeToString(sum[:])[:16]
}

var botMarkers = []string{
	"bot", "crawler", "spider", "crawl", "slurp", "scrape",
	"yandex", "baidu", "facebookexternalhit", "headless",
}

// IsBot reports whether a User-Agent looks like a crawler. An empty agent
// counts as a bot.
func IsBot(ua string) bool {
	ua = strings.ToLower(strings.TrimSpace(ua))
	if ua == "" {
		return true
	}
	for _, m := range botMarkers {
		if strings.Contains(ua, m) {
			return true
		}
	}
	return false
}
