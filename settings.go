package pagestash

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/pagestash/pagestash/mirror"
	"github.com/pagestash/pagestash/model"
)

// settingsKeyCurrent holds the structured privacy/app configuration.
const settingsKeyCurrent = "current"

// GetSetting reads a typed setting. The second return value reports whether
// the key exists.
func GetSetting[T any](ctx context.Context, s *Store, key string) (T, bool, error) {
	var zero T
	eng, err := s.engineHandle()
	if err != nil {
		return zero, false, err
	}

	var raw []byte
	err = eng.DB().QueryRowContext(ctx,
		"SELECT value FROM settings WHERE key = ?", key).Scan(&raw)
	if err == sql.ErrNoRows {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, translateError(err)
	}

	var v T
	if err := s.codec.Unmarshal(raw, &v); err != nil {
		return zero, false, fmt.Errorf("pagestash: decode setting %q: %w", key, err)
	}
	return v, true, nil
}

// SetSetting writes a typed setting.
func SetSetting[T any](ctx context.Context, s *Store, key string, value T) error {
	eng, err := s.engineHandle()
	if err != nil {
		return err
	}
	raw, err := s.codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("pagestash: encode setting %q: %w", key, err)
	}
	_, err = eng.DB().ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, raw)
	return translateError(err)
}

// Settings returns the structured configuration. If none has been persisted
// yet, defaults are synthesized, persisted, and returned (first-read-wins
// initialization; there is no separate "initialized" flag).
func (s *Store) Settings(ctx context.Context) (model.Settings, error) {
	st, ok, err := GetSetting[model.Settings](ctx, s, settingsKeyCurrent)
	if err != nil {
		return model.Settings{}, err
	}
	if ok {
		return st, nil
	}
	st = defaultSettings()
	if err := SetSetting(ctx, s, settingsKeyCurrent, st); err != nil {
		return model.Settings{}, err
	}
	return st, nil
}

// UpdateSettings merges the patch over the current settings (shallow merge:
// slice fields are replaced wholesale, never unioned), persists the result,
// and writes the privacy-relevant subset through to the mirror. Returns the
// merged settings.
func (s *Store) UpdateSettings(ctx context.Context, patch model.SettingsPatch) (model.Settings, error) {
	st, err := s.Settings(ctx)
	if err != nil {
		return model.Settings{}, err
	}

	if patch.ModelVersion != nil {
		st.ModelVersion = patch.ModelVersion
	}
	if patch.Paused != nil {
		st.Paused = *patch.Paused
	}
	if patch.DomainAllowlist != nil {
		st.DomainAllowlist = patch.DomainAllowlist
	}
	if patch.DomainDenylist != nil {
		st.DomainDenylist = patch.DomainDenylist
	}
	if patch.LastIndexPersistAt != nil {
		st.LastIndexPersistAt = *patch.LastIndexPersistAt
	}

	if err := SetSetting(ctx, s, settingsKeyCurrent, st); err != nil {
		return model.Settings{}, err
	}
	if err := s.mirrorSettings(ctx, st); err != nil {
		return model.Settings{}, err
	}
	return st, nil
}

// mirrorSettings writes the privacy subset through to the low-latency
// mirror. The mirror write follows the engine write; a crash between the
// two leaves the mirror one update behind (accepted staleness window, the
// sequence number lets readers detect it).
func (s *Store) mirrorSettings(ctx context.Context, st model.Settings) error {
	if s.mirror == nil {
		return nil
	}
	_, err := s.mirror.Put(ctx, mirror.Snapshot{
		Paused:          st.Paused,
		DomainAllowlist: st.DomainAllowlist,
		DomainDenylist:  st.DomainDenylist,
	})
	return err
}

func defaultSettings() model.Settings {
	return model.Settings{
		ModelVersion:    nil,
		Paused:          false,
		DomainAllowlist: []string{},
		DomainDenylist:  []string{},
	}
}

// NormalizeHostname canonicalizes a hostname for comparison: lowercased,
// trimmed, trailing dot removed, and host extracted when a full URL is
// passed. Comparisons are therefore case- and scheme-insensitive.
func NormalizeHostname(hostname string) string {
	h := strings.ToLower(strings.TrimSpace(hostname))
	if strings.Contains(h, "://") {
		if u, err := url.Parse(h); err == nil && u.Hostname() != "" {
			h = u.Hostname()
		}
	}
	return strings.TrimSuffix(h, ".")
}

// IsHostBlocked decides whether crawling rawURL is blocked under the given
// settings snapshot. Pure logic, no side effects. Blocked when paused, when
// a non-empty allowlist does not contain the host, or when the denylist
// does. Malformed URLs fail closed: this sits on a security-relevant path
// where silently allowing an unparseable URL would be worse than
// over-blocking.
func IsHostBlocked(rawURL string, st model.Settings) bool {
	if st.Paused {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return true
	}
	host := NormalizeHostname(u.Hostname())

	if len(st.DomainAllowlist) > 0 && !containsHost(st.DomainAllowlist, host) {
		return true
	}
	return containsHost(st.DomainDenylist, host)
}

func containsHost(domains []string, host string) bool {
	for _, d := range domains {
		if NormalizeHostname(d) == host {
			return true
		}
	}
	return false
}
