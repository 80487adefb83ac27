package forum

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	// SettingNewbieLimitTime is the newbie window in seconds. Zero or
	// absent disables the restriction.
	SettingNewbieLimitTime = "newbie_limit_time"
	// SettingBanReasons holds the coded ban reasons, one per line.
	SettingBanReasons = "ban_reasons"
	SettingBoardTitle = "board_title"
)

const DefaultBoardTitle = "tforum"

// Settings reads runtime configuration from the store on every call so
// that admin changes apply to the next request.
type Settings struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
	authz  Authorizer
}

func (s *Settings) get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.store.GetSetting(ctx, key)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return v, true, nil
}

// Policy loads the authorization tunables for the current request.
func (s *Settings) Policy(ctx context.Context) (Policy, error) {
	p := Policy{Now: s.now()}

	raw, ok, err := s.get(ctx, SettingNewbieLimitTime)
	if err != nil {
		return Policy{}, err
	}
	if !ok {
		return p, nil
	}

	secs, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	// rows written outside ValidateSetting may be out of range; a huge
	// value would overflow time.Duration
	if err != nil || secs < 0 || secs > MaxNewbieLimitTime {
		s.logger.WarnContext(ctx, "ignoring malformed setting",
			slog.String("key", SettingNewbieLimitTime),
			slog.String("value", raw))
		return p, nil
	}
	p.NewbieWindow = time.Duration(secs) * time.Second
	return p, nil
}

// BanReasons returns the configured coded reasons in display order.
func (s *Settings) BanReasons(ctx context.Context) ([]string, error) {
	raw, _, err := s.get(ctx, SettingBanReasons)
	if err != nil {
		return nil, err
	}

	var reasons []string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			reasons = append(reasons, line)
		}
	}
	return reasons, nil
}

func (s *Settings) BoardTitle(ctx context.Context) (string, error) {
	v, ok, err := s.get(ctx, SettingBoardTitle)
	if err != nil || !ok {
		return DefaultBoardTitle, err
	}
	return v, nil
}

// All returns every stored setting for the admin page.
func (s *Settings) All(ctx context.Context, actor Actor) ([]Setting, error) {
	p, err := s.Policy(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(actor, OpConfigure, nil, p).Err(); err != nil {
		return nil, err
	}
	return s.store.ListSettings(ctx)
}

// Set stores one setting on behalf of an admin.
func (s *Settings) Set(ctx context.Context, actor Actor, key, value string) error {
	p, err := s.Policy(ctx)
	if err != nil {
		return err
	}
	if err := s.authz.Authorize(actor, OpConfigure, nil, p).Err(); err != nil {
		return err
	}

	value = strings.TrimSpace(value)
	if err := ValidateSetting(key, value); err != nil {
		return err
	}

	if err := s.store.UpsertSetting(ctx, UpsertSettingParams{Key: key, Value: value}); err != nil {
		return fmt.Errorf("store setting %s: %w", key, err)
	}
	s.logger.InfoContext(ctx, "setting updated",
		slog.String("key", key),
		slog.Int64("admin_id", actor.ID))
	return nil
}

// BlockMember marks a member blocked on behalf of an admin.
func (s *Settings) BlockMember(ctx context.Context, actor Actor, memberID int64) error {
	p, err := s.Policy(ctx)
	if err != nil {
		return err
	}
	if err := s.authz.Authorize(actor, OpConfigure, nil, p).Err(); err != nil {
		return err
	}

	n, err := s.store.BlockMember(ctx, memberID)
	if err != nil {
		return fmt.Errorf("block member %d: %w", memberID, err)
	}
	if n == 0 {
		return &NotFoundError{Kind: "member", ID: memberID}
	}
	return nil
}
