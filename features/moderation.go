package features

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"stream-lab/contract"
	"stream-lab/directory"
	"stream-lab/domain"
	"stream-lab/domain/event"
	"stream-lab/errors"
	"time"
)

var (
	moderationNames      = []string{"timeout", "untimeout", "ban", "unban", "warn"}
	moderationAdminNames = []string{"vip", "unvip"}
)

type ModerationConfig struct {
	DefaultTimeout time.Duration
	MaxTimeout     time.Duration
	WarnThreshold  int
	AutoTimeout    time.Duration
	// WarnOnBannedWord turns guard banned-word rejections into automatic warnings.
	WarnOnBannedWord bool
}

func DefaultModerationConfig() ModerationConfig {
	return ModerationConfig{
		DefaultTimeout:   5 * time.Minute,
		MaxTimeout:       24 * time.Hour,
		WarnThreshold:    3,
		AutoTimeout:      10 * time.Minute,
		WarnOnBannedWord: true,
	}
}

// Moderation acts on viewer flags. Nobody can act on an equal or higher role.
type Moderation struct {
	cfg   ModerationConfig
	dir   *directory.Directory
	pub   contract.Publisher
	names nameSet
	log   *slog.Logger
	now   func() time.Time
}

func NewModeration(cfg ModerationConfig, dir *directory.Directory, pub contract.Publisher, log *slog.Logger) *Moderation {
	return &Moderation{
		cfg:   cfg,
		dir:   dir,
		pub:   pub,
		names: newNameSet(moderationNames, moderationAdminNames),
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (m *Moderation) Routes() []Route {
	return []Route{
		{Handler: m, MinRole: domain.RoleModerator, Names: moderationNames},
		{Handler: m, MinRole: domain.RoleAdmin, Names: moderationAdminNames},
	}
}

func (m *Moderation) CanHandle(name string) bool { return m.names.has(name) }

func (m *Moderation) Handle(_ context.Context, inv domain.Invocation, _ contract.Publisher) (contract.Result, error) {
	if inv.Arg(0) == "" {
		return contract.Result{}, fmt.Errorf("usage: !%s @viewer: %w", inv.Name, errors.ErrInvalidArgument)
	}
	target, ok := m.dir.FindByName(inv.Arg(0))
	if !ok {
		return contract.Result{}, fmt.Errorf("viewer %s: %w", inv.Arg(0), errors.ErrNotFound)
	}
	if target.ID == inv.Issuer.ID || target.Role() >= inv.Issuer.Role() {
		return contract.Result{}, fmt.Errorf("cannot act on %s: %w", target.Name(), errors.ErrForbidden)
	}

	action := event.ModerationAction{Action: inv.Name, Target: target.ID, Name: target.Name(), By: inv.Issuer.ID}
	var mutate func(v *domain.Viewer) error
	var message string

	switch inv.Name {
	case "timeout":
		d, err := m.duration(inv.Arg(1))
		if err != nil {
			return contract.Result{}, err
		}
		action.Until = m.now().Add(d)
		mutate = func(v *domain.Viewer) error { v.TimedOutUntil = action.Until; return nil }
		message = fmt.Sprintf("⏳ %s timed out for %s", target.Name(), d)
	case "untimeout":
		mutate = func(v *domain.Viewer) error { v.TimedOutUntil = time.Time{}; return nil }
		message = fmt.Sprintf("✅ %s can talk again", target.Name())
	case "ban":
		mutate = func(v *domain.Viewer) error { v.Banned = true; return nil }
		message = fmt.Sprintf("🚫 %s banned", target.Name())
	case "unban":
		mutate = func(v *domain.Viewer) error { v.Banned = false; return nil }
		message = fmt.Sprintf("✅ %s unbanned", target.Name())
	case "vip":
		mutate = func(v *domain.Viewer) error { v.VIP = true; return nil }
		message = fmt.Sprintf("⭐ %s is now VIP", target.Name())
	case "unvip":
		mutate = func(v *domain.Viewer) error { v.VIP = false; return nil }
		message = fmt.Sprintf("%s is no longer VIP", target.Name())
	case "warn":
		v, auto, err := m.Warn(target.ID, inv.Issuer.ID)
		if err != nil {
			return contract.Result{}, err
		}
		if auto {
			return contract.Result{Message: fmt.Sprintf("⏳ %s reached %d warnings and was timed out", v.Name(), m.cfg.WarnThreshold)}, nil
		}
		return contract.Result{Message: fmt.Sprintf("⚠️ %s warned (%d/%d)", v.Name(), v.Warnings, m.cfg.WarnThreshold)}, nil
	default:
		return contract.Result{}, errors.ErrUnknownCommand
	}

	if _, err := m.dir.Update(target.ID, mutate); err != nil {
		return contract.Result{}, err
	}
	m.pub.Publish(event.NewDelta(event.TopicViewerFlagged, action))
	return contract.Result{Message: message}, nil
}

// Warn adds a warning. Reaching the threshold resets the counter and times the viewer out.
func (m *Moderation) Warn(target, by domain.ViewerID) (domain.Viewer, bool, error) {
	auto := false
	until := m.now().Add(m.cfg.AutoTimeout)
	v, err := m.dir.Update(target, func(v *domain.Viewer) error {
		v.Warnings++
		if m.cfg.WarnThreshold > 0 && v.Warnings >= m.cfg.WarnThreshold {
			v.Warnings = 0
			v.TimedOutUntil = until
			auto = true
		}
		return nil
	})
	if err != nil {
		return v, false, err
	}
	m.pub.Publish(event.NewDelta(event.TopicViewerFlagged, event.ModerationAction{
		Action: "warn", Target: v.ID, Name: v.Name(), By: by, Warnings: v.Warnings, Automatic: by == "",
	}))
	if auto {
		m.log.Info("Automatic timeout", "viewer_id", v.ID, "until", until)
		m.pub.Publish(event.NewDelta(event.TopicAutoTimeout, event.ModerationAction{
			Action: "timeout", Target: v.ID, Name: v.Name(), By: by, Until: until, Automatic: true,
		}))
	}
	return v, auto, nil
}

func (m *Moderation) duration(arg string) (time.Duration, error) {
	if arg == "" {
		return m.cfg.DefaultTimeout, nil
	}
	secs, err := strconv.Atoi(arg)
	if err != nil || secs <= 0 {
		return 0, fmt.Errorf("duration must be a positive number of seconds: %w", errors.ErrInvalidArgument)
	}
	d := time.Duration(secs) * time.Second
	if d > m.cfg.MaxTimeout {
		d = m.cfg.MaxTimeout
	}
	return d, nil
}

// Consume turns banned-word rejections into automatic warnings.
func (m *Moderation) Consume(_ context.Context, evt event.Event) error {
	if !m.cfg.WarnOnBannedWord {
		return nil
	}
	res, ok := evt.Result()
	if !ok || res.Status != event.StatusRejected || res.Reason != event.ReasonBannedWord || evt.ViewerID == "" {
		return nil
	}
	v, found := m.dir.Get(evt.ViewerID)
	if !found || v.Role() >= domain.RoleModerator {
		return nil
	}
	_, _, err := m.Warn(evt.ViewerID, "")
	return err
}
