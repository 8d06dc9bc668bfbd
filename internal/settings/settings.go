// Package settings reads and writes runtime toggles kept in the settings
// table, with a short read-through cache that may be shared between
// instances.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"promptmarket/internal/models"
)

const (
	KeyApprovalEnabled      = "user_approval_enabled"
	KeyApprovalNotification = "approval_notification_email"
)

var ErrInvalidValue = errors.New("invalid setting value")

type Store interface {
	GetSetting(ctx context.Context, key string) (models.Setting, bool, error)
	UpsertSetting(ctx context.Context, st models.Setting) error
	ListAdminEmails(ctx context.Context) ([]string, error)
}

type Options struct {
	Cache                  Cache
	DefaultApprovalEnabled bool
	DefaultNotify          []string
	Logger                 *slog.Logger
}

type Service struct {
	store           Store
	cache           Cache
	defaultApproval bool
	defaultNotify   []string
	log             *slog.Logger
}

func New(store Store, opts Options) *Service {
	if opts.Cache == nil {
		opts.Cache = NopCache{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		store:           store,
		cache:           opts.Cache,
		defaultApproval: opts.DefaultApprovalEnabled,
		defaultNotify:   append([]string(nil), opts.DefaultNotify...),
		log:             opts.Logger,
	}
}

// Lookup returns the raw row, bypassing the cache.
func (s *Service) Lookup(ctx context.Context, key string) (models.Setting, bool, error) {
	return s.store.GetSetting(ctx, key)
}

// Get returns the stored value or def when the key is absent.
func (s *Service) Get(ctx context.Context, key, def string) (string, error) {
	if e, ok := s.cache.Get(ctx, key); ok {
		if !e.Found {
			return def, nil
		}
		return e.Value, nil
	}
	st, found, err := s.store.GetSetting(ctx, key)
	if err != nil {
		return def, fmt.Errorf("read setting %s: %w", key, err)
	}
	s.cache.Set(ctx, key, Entry{Value: st.Value, Found: found})
	if !found {
		return def, nil
	}
	return st.Value, nil
}

func (s *Service) Bool(ctx context.Context, key string, def bool) (bool, error) {
	raw, err := s.Get(ctx, key, "")
	if err != nil {
		return def, err
	}
	return ParseBool(raw, def), nil
}

// Set validates well-known keys, writes the row and drops the cached value.
func (s *Service) Set(ctx context.Context, key, value, description string, updatedBy *string) error {
	key = strings.TrimSpace(key)
	if err := validation.Validate(key, validation.Required, validation.Length(1, 128)); err != nil {
		return fmt.Errorf("%w: key %v", ErrInvalidValue, err)
	}
	value = strings.TrimSpace(value)
	switch key {
	case KeyApprovalEnabled:
		if !isBoolish(value) {
			return fmt.Errorf("%w: %s expects a boolean", ErrInvalidValue, key)
		}
	case KeyApprovalNotification:
		if value != "" {
			if _, err := parseAddresses(value); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidValue, err)
			}
		}
	}
	if err := s.store.UpsertSetting(ctx, models.Setting{
		Key:         key,
		Value:       value,
		Description: description,
		UpdatedBy:   updatedBy,
		UpdatedAt:   time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("write setting %s: %w", key, err)
	}
	s.cache.Delete(ctx, key)
	return nil
}

func (s *Service) ApprovalEnabled(ctx context.Context) (bool, error) {
	return s.Bool(ctx, KeyApprovalEnabled, s.defaultApproval)
}

// NotificationAddresses resolves reviewer recipients: the stored setting,
// then the configured default list, then every admin's email.
func (s *Service) NotificationAddresses(ctx context.Context) ([]string, error) {
	raw, err := s.Get(ctx, KeyApprovalNotification, "")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw) != "" {
		addrs, perr := parseAddresses(raw)
		if perr == nil && len(addrs) > 0 {
			return addrs, nil
		}
		s.log.Warn("ignoring malformed notification setting", "key", KeyApprovalNotification, "error", perr)
	}
	if len(s.defaultNotify) > 0 {
		return append([]string(nil), s.defaultNotify...), nil
	}
	admins, err := s.store.ListAdminEmails(ctx)
	if err != nil {
		return nil, fmt.Errorf("list admin emails: %w", err)
	}
	return admins, nil
}

// ParseBool treats true/1/yes/on as true; an empty value yields def.
func ParseBool(raw string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return def
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

func isBoolish(raw string) bool {
	switch strings.ToLower(raw) {
	case "true", "1", "yes", "on", "false", "0", "no", "off":
		return true
	}
	return false
}

// parseAddresses accepts a single address, a comma separated list or a JSON
// array of strings.
func parseAddresses(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	var items []string
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return nil, fmt.Errorf("decode address list: %w", err)
		}
	} else {
		items = strings.Split(raw, ",")
	}
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		addr := strings.ToLower(strings.TrimSpace(it))
		if addr == "" {
			continue
		}
		if err := validation.Validate(addr, is.EmailFormat); err != nil {
			return nil, fmt.Errorf("address %q: %v", addr, err)
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out, nil
}
