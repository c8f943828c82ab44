package features

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"stream-lab/contract"
	"stream-lab/directory"
	"stream-lab/domain"
	"stream-lab/domain/event"
	"stream-lab/errors"
	"stream-lab/ledger"
	"sync"

	"github.com/samber/lo"
)

var (
	economyNames      = []string{"points", "give", "buy", "구매", "shop", "top"}
	economyAdminNames = []string{"addpoints"}
)

type EconomyConfig struct {
	ChatPoints   int64
	ChatXP       int64
	FollowPoints int64
	GiftPerUnit  int64
	LikePoints   int64
	MaxLikeUnits int
	TopSize      int
	MaxTransfer  int64
	ShopCatalog  map[string]domain.ShopItem
}

func DefaultEconomyConfig() EconomyConfig {
	return EconomyConfig{
		ChatPoints:   1,
		ChatXP:       5,
		FollowPoints: 50,
		GiftPerUnit:  10,
		LikePoints:   1,
		MaxLikeUnits: 10,
		TopSize:      5,
		MaxTransfer:  100_000,
		ShopCatalog:  domain.DefaultCatalog().Shop,
	}
}

// Economy is the only code path changing point balances.
// The ledger entry is written under the viewer lock before the balance moves.
type Economy struct {
	cfg    EconomyConfig
	dir    *directory.Directory
	ledger *ledger.Ledger
	pub    contract.Publisher
	names  nameSet
	log    *slog.Logger

	mu   sync.RWMutex
	shop map[string]domain.ShopItem
}

func NewEconomy(cfg EconomyConfig, dir *directory.Directory, l *ledger.Ledger, pub contract.Publisher, log *slog.Logger) *Economy {
	shop := make(map[string]domain.ShopItem, len(cfg.ShopCatalog))
	for k, v := range cfg.ShopCatalog {
		shop[strings.ToLower(k)] = v
	}
	return &Economy{
		cfg:    cfg,
		dir:    dir,
		ledger: l,
		pub:    pub,
		names:  newNameSet(economyNames, economyAdminNames),
		log:    log,
		shop:   shop,
	}
}

func (e *Economy) Routes() []Route {
	return []Route{
		{Handler: e, MinRole: domain.RoleAnyone, Names: economyNames},
		{Handler: e, MinRole: domain.RoleAdmin, Names: economyAdminNames},
	}
}

func (e *Economy) CanHandle(name string) bool { return e.names.has(name) }

func (e *Economy) Handle(_ context.Context, inv domain.Invocation, _ contract.Publisher) (contract.Result, error) {
	switch inv.Name {
	case "points":
		v, ok := e.dir.Get(inv.Issuer.ID)
		if !ok {
			return contract.Result{}, fmt.Errorf("viewer %s: %w", inv.Issuer.ID, errors.ErrNotFound)
		}
		return contract.Result{Message: fmt.Sprintf("💰 %s: %d points (level %d)", v.Name(), v.Points, v.Level)}, nil
	case "give":
		return e.give(inv)
	case "buy", "구매":
		return e.buy(inv)
	case "shop":
		return contract.Result{Message: e.describeShop()}, nil
	case "top":
		return contract.Result{Message: e.describeTop()}, nil
	case "addpoints":
		return e.grant(inv)
	}
	return contract.Result{}, errors.ErrUnknownCommand
}

// Credit adds (or with a negative delta, spends) points atomically.
func (e *Economy) Credit(id domain.ViewerID, delta int64, reason string, seq uint64) (domain.Viewer, error) {
	var entry domain.LedgerEntry
	v, err := e.dir.Update(id, func(v *domain.Viewer) error {
		if v.Points+delta < 0 {
			return fmt.Errorf("%d points needed, %d held: %w", -delta, v.Points, errors.ErrInsufficientPoints)
		}
		entry = e.ledger.Append(domain.LedgerEntry{ViewerID: id, Delta: delta, Reason: reason, Seq: seq})
		v.Points += delta
		return nil
	})
	if err != nil {
		return v, err
	}
	e.pub.Publish(event.NewDelta(event.TopicPointsChanged, event.PointsChanged{Entry: entry, Balance: v.Points}))
	return v, nil
}

// Wager settles a double-or-nothing bet in one step. The stake must be held even when winning.
func (e *Economy) Wager(id domain.ViewerID, stake int64, win bool, seq uint64) (domain.Viewer, error) {
	if stake <= 0 {
		return domain.Viewer{}, fmt.Errorf("stake must be positive: %w", errors.ErrInvalidArgument)
	}
	delta, reason := -stake, "roulette:lost"
	if win {
		delta, reason = stake, "roulette:won"
	}
	var entry domain.LedgerEntry
	v, err := e.dir.Update(id, func(v *domain.Viewer) error {
		if v.Points < stake {
			return fmt.Errorf("%d points needed, %d held: %w", stake, v.Points, errors.ErrInsufficientPoints)
		}
		entry = e.ledger.Append(domain.LedgerEntry{ViewerID: id, Delta: delta, Reason: reason, Seq: seq})
		v.Points += delta
		return nil
	})
	if err != nil {
		return v, err
	}
	e.pub.Publish(event.NewDelta(event.TopicPointsChanged, event.PointsChanged{Entry: entry, Balance: v.Points}))
	return v, nil
}

// Transfer moves points between two viewers, both or neither side changes.
func (e *Economy) Transfer(from, to domain.ViewerID, amount int64, seq uint64) (domain.Viewer, domain.Viewer, error) {
	if amount <= 0 {
		return domain.Viewer{}, domain.Viewer{}, fmt.Errorf("amount must be positive: %w", errors.ErrInvalidArgument)
	}
	var out, in domain.LedgerEntry
	a, b, err := e.dir.UpdatePair(from, to, func(a, b *domain.Viewer) error {
		if a.Points < amount {
			return fmt.Errorf("%d points needed, %d held: %w", amount, a.Points, errors.ErrInsufficientPoints)
		}
		out = e.ledger.Append(domain.LedgerEntry{ViewerID: a.ID, Delta: -amount, Reason: "give:" + string(b.ID), Seq: seq})
		in = e.ledger.Append(domain.LedgerEntry{ViewerID: b.ID, Delta: amount, Reason: "gift_from:" + string(a.ID), Seq: seq})
		a.Points -= amount
		b.Points += amount
		return nil
	})
	if err != nil {
		return a, b, err
	}
	e.pub.Publish(event.NewDelta(event.TopicPointsChanged, event.PointsChanged{Entry: out, Balance: a.Points}))
	e.pub.Publish(event.NewDelta(event.TopicPointsChanged, event.PointsChanged{Entry: in, Balance: b.Points}))
	return a, b, nil
}

// Reconcile checks the balance against the ledger. On mismatch the ledger wins.
func (e *Economy) Reconcile(id domain.ViewerID) error {
	var mismatch error
	_, err := e.dir.Update(id, func(v *domain.Viewer) error {
		sum := e.ledger.Sum(id)
		if v.Points != sum {
			mismatch = fmt.Errorf("viewer %s holds %d points but ledger sums to %d: %w", id, v.Points, sum, errors.ErrInternal)
			v.Points = sum
		}
		return nil
	})
	if err != nil {
		return err
	}
	if mismatch != nil {
		e.log.Error("Balance restored from ledger", "viewer_id", id, "error", mismatch)
	}
	return mismatch
}

func (e *Economy) give(inv domain.Invocation) (contract.Result, error) {
	target, amount, err := e.targetAndAmount(inv)
	if err != nil {
		return contract.Result{}, err
	}
	if amount > e.cfg.MaxTransfer {
		return contract.Result{}, fmt.Errorf("at most %d points per transfer: %w", e.cfg.MaxTransfer, errors.ErrInvalidArgument)
	}
	if target.ID == inv.Issuer.ID {
		return contract.Result{}, fmt.Errorf("cannot give to yourself: %w", errors.ErrInvalidArgument)
	}
	a, _, err := e.Transfer(inv.Issuer.ID, target.ID, amount, inv.Seq)
	if err != nil {
		return contract.Result{}, err
	}
	return contract.Result{Message: fmt.Sprintf("🎁 %s gave %d points to %s (%d left)", a.Name(), amount, target.Name(), a.Points)}, nil
}

func (e *Economy) grant(inv domain.Invocation) (contract.Result, error) {
	target, amount, err := e.targetAndAmount(inv)
	if err != nil {
		return contract.Result{}, err
	}
	v, err := e.Credit(target.ID, amount, "admin:"+string(inv.Issuer.ID), inv.Seq)
	if err != nil {
		return contract.Result{}, err
	}
	return contract.Result{Message: fmt.Sprintf("💰 %s now has %d points", v.Name(), v.Points)}, nil
}

func (e *Economy) targetAndAmount(inv domain.Invocation) (domain.Viewer, int64, error) {
	if len(inv.Args) < 2 {
		return domain.Viewer{}, 0, fmt.Errorf("usage: !%s @viewer amount: %w", inv.Name, errors.ErrInvalidArgument)
	}
	amount, err := strconv.ParseInt(inv.Args[1], 10, 64)
	if err != nil || amount <= 0 {
		return domain.Viewer{}, 0, fmt.Errorf("amount must be a positive number: %w", errors.ErrInvalidArgument)
	}
	target, ok := e.dir.FindByName(inv.Args[0])
	if !ok {
		return domain.Viewer{}, 0, fmt.Errorf("viewer %s: %w", inv.Args[0], errors.ErrNotFound)
	}
	return target, amount, nil
}

func (e *Economy) buy(inv domain.Invocation) (contract.Result, error) {
	key := strings.ToLower(strings.TrimSpace(inv.Rest))
	if key == "" {
		return contract.Result{}, fmt.Errorf("usage: !%s <item>: %w", inv.Name, errors.ErrInvalidArgument)
	}
	e.mu.RLock()
	item, ok := e.shop[key]
	e.mu.RUnlock()
	if !ok {
		return contract.Result{}, fmt.Errorf("no item %q in the shop: %w", key, errors.ErrNotFound)
	}
	v, err := e.Credit(inv.Issuer.ID, -item.Cost, "buy:"+key, inv.Seq)
	if err != nil {
		return contract.Result{}, err
	}
	e.pub.Publish(event.NewDelta(event.TopicItemPurchased, event.Purchase{ViewerID: v.ID, Name: v.Name(), Item: item}))
	return contract.Result{Message: fmt.Sprintf("🛒 %s bought %s (%d points left)", v.Name(), item.Name, v.Points)}, nil
}

func (e *Economy) describeShop() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	keys := lo.Keys(e.shop)
	sort.Strings(keys)
	parts := lo.Map(keys, func(k string, _ int) string {
		return fmt.Sprintf("%s (%d)", k, e.shop[k].Cost)
	})
	return "🛒 " + strings.Join(parts, ", ")
}

func (e *Economy) describeTop() string {
	all := e.dir.All()
	sort.SliceStable(all, func(i, j int) bool { return all[i].Points > all[j].Points })
	all = lo.Filter(all, func(v domain.Viewer, _ int) bool { return v.Points > 0 })
	if len(all) > e.cfg.TopSize {
		all = all[:e.cfg.TopSize]
	}
	if len(all) == 0 {
		return "🏆 Nobody has points yet"
	}
	parts := lo.Map(all, func(v domain.Viewer, i int) string {
		return fmt.Sprintf("%d. %s %d", i+1, v.Name(), v.Points)
	})
	return "🏆 " + strings.Join(parts, " | ")
}

// Consume credits passive earnings: admitted chat, follows, gifts and likes.
func (e *Economy) Consume(_ context.Context, evt event.Event) error {
	switch p := evt.Payload.(type) {
	case event.Gift:
		e.observe(evt)
		units := int64(lo.Max([]int{p.Count, 1}))
		return e.earn(evt, e.cfg.GiftPerUnit*units, "gift:"+p.Name, 0)
	case event.Follow:
		e.observe(evt)
		return e.earn(evt, e.cfg.FollowPoints, "follow", 0)
	case event.Like:
		e.observe(evt)
		units := int64(lo.Clamp(p.Count, 1, e.cfg.MaxLikeUnits))
		return e.earn(evt, e.cfg.LikePoints*units, "like", 0)
	case event.StateDelta:
		if p.Topic != event.TopicChatMessage || evt.ViewerID == "" {
			return nil
		}
		return e.earn(evt, e.cfg.ChatPoints, "chat", e.cfg.ChatXP)
	}
	return nil
}

// observe makes sure the viewer exists, raw events may reach this sink before the dispatch lane.
func (e *Economy) observe(evt event.Event) {
	if evt.ViewerID != "" {
		e.dir.Observe(evt.ViewerID, evt.DisplayName, evt.At, directory.Hints{})
	}
}

func (e *Economy) earn(evt event.Event, points int64, reason string, xp int64) error {
	if evt.ViewerID == "" || points <= 0 {
		return nil
	}
	var entry domain.LedgerEntry
	v, err := e.dir.Update(evt.ViewerID, func(v *domain.Viewer) error {
		entry = e.ledger.Append(domain.LedgerEntry{ViewerID: v.ID, Delta: points, Reason: reason, Seq: evt.Seq})
		v.Points += points
		if xp > 0 {
			v.AddExperience(xp)
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.pub.Publish(event.NewDelta(event.TopicPointsChanged, event.PointsChanged{Entry: entry, Balance: v.Points}))
	return nil
}

// SetShop replaces the shop catalog, used when the catalog file is reloaded.
func (e *Economy) SetShop(items map[string]domain.ShopItem) {
	shop := make(map[string]domain.ShopItem, len(items))
	for k, v := range items {
		shop[strings.ToLower(k)] = v
	}
	e.mu.Lock()
	e.shop = shop
	e.mu.Unlock()
}
