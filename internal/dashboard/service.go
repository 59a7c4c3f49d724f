// Package dashboard computes the console's landing statistics. Every section
// is loaded concurrently through the query cache; a failing section is
// reported without hiding the others.
package dashboard

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"trash4cash/internal/gateway"
	"trash4cash/internal/notify"
	"trash4cash/internal/querycache"
	"trash4cash/internal/resource"
	"trash4cash/internal/resource/format"
	"trash4cash/internal/resource/models"
	"trash4cash/internal/resource/normalize"
)

const (
	// ActivityWindow bounds "active users" and "recent dropoffs".
	ActivityWindow = 30 * 24 * time.Hour
	// RecentLimit is the number of recent transactions and dropoffs shown.
	RecentLimit = 4
	RecentSort  = "createdAt:desc"
	NoWasteType = "None"
	avatarURL   = "https://i.pravatar.cc/150?u="
)

// Section names used in Stats.Failed.
const (
	SectionUsers              = "users"
	SectionDropoffs           = "dropoffs"
	SectionTransactions       = "transactions"
	SectionWaste              = "waste"
	SectionRecentTransactions = "recentTransactions"
	SectionRecentDropoffs     = "recentDropoffs"
)

// Lister reads collections from the backend.
type Lister interface {
	List(ctx context.Context, resource string, q gateway.ListQuery) (*gateway.ListResponse, error)
}

type Service struct {
	lister   Lister
	cache    *querycache.Cache
	notifier notify.Notifier
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(lister Lister, cache *querycache.Cache, notifier notify.Notifier, opts ...Option) *Service {
	if notifier == nil {
		notifier = notify.Nop
	}
	s := &Service{
		lister:   lister,
		cache:    cache,
		notifier: notifier,
		now:      time.Now,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// collectionKey is the unpaged query for a whole collection.
func collectionKey(kind models.Kind) querycache.Key {
	return querycache.ListKey(kind, 0, 0, "", "")
}

func recentKey(kind models.Kind) querycache.Key {
	return querycache.ListKey(kind, 1, RecentLimit, "", "").WithSort(RecentSort)
}

// Stats loads every section. It never fails as a whole.
func (s *Service) Stats(ctx context.Context) *Stats {
	now := s.now()
	out := &Stats{
		RecentTransactions: []RecentTransaction{},
		RecentDropoffs:     []RecentDropoff{},
	}

	var (
		g      errgroup.Group
		mu     sync.Mutex
		failed = map[string]bool{}
	)
	section := func(name, title string, load func() error) {
		g.Go(func() error {
			if err := load(); err != nil {
				s.logger.WarnContext(ctx, "dashboard section failed", "section", name, "error", err)
				s.notifier.Notify(ctx, notify.Failure(title, gateway.Describe(err)))
				mu.Lock()
				failed[name] = true
				mu.Unlock()
			}
			return nil
		})
	}

	section(SectionUsers, "Failed to fetch user statistics", func() error {
		users, err := s.users(ctx)
		if err != nil {
			return err
		}
		out.Users = userStats(users, now)
		return nil
	})
	section(SectionDropoffs, "Failed to fetch dropoff statistics", func() error {
		page, err := fetchPage(ctx, s, resource.Dropoffs, collectionKey(models.KindDropoff))
		if err != nil {
			return err
		}
		out.Dropoffs = dropoffStats(page, now)
		return nil
	})
	section(SectionTransactions, "Failed to fetch transaction statistics", func() error {
		page, err := fetchPage(ctx, s, resource.Transactions, collectionKey(models.KindTransaction))
		if err != nil {
			return err
		}
		out.Transactions = transactionStats(page)
		return nil
	})
	section(SectionWaste, "Failed to fetch waste statistics", func() error {
		page, err := fetchPage(ctx, s, resource.WasteTypes, collectionKey(models.KindWasteType))
		if err != nil {
			return err
		}
		out.Waste = wasteStats(page.Items)
		return nil
	})
	section(SectionRecentTransactions, "Failed to fetch recent transactions", func() error {
		page, err := fetchPage(ctx, s, resource.Transactions, recentKey(models.KindTransaction))
		if err != nil {
			return err
		}
		out.RecentTransactions = recentTransactions(page.Items, now)
		return nil
	})
	section(SectionRecentDropoffs, "Failed to fetch recent dropoffs", func() error {
		page, err := fetchPage(ctx, s, resource.Dropoffs, recentKey(models.KindDropoff))
		if err != nil {
			return err
		}
		out.RecentDropoffs = recentDropoffs(page.Items, now)
		return nil
	})

	_ = g.Wait()

	for name := range failed {
		out.Failed = append(out.Failed, name)
	}
	sort.Strings(out.Failed)
	out.IsError = len(out.Failed) > 0
	return out
}

func fetchPage[T resource.Record[T]](ctx context.Context, s *Service, desc resource.Descriptor[T], key querycache.Key) (resource.Page[T], error) {
	return querycache.Fetch(ctx, s.cache, key, func(ctx context.Context) (resource.Page[T], error) {
		resp, err := s.lister.List(ctx, key.Resource.String(), listQuery(key))
		if err != nil {
			return resource.Page[T]{}, err
		}
		page, skipped := desc.PageFrom(resp, key.Limit)
		if skipped > 0 {
			s.logger.WarnContext(ctx, "skipped records without id", "resource", key.Resource.String(), "count", skipped)
		}
		return page, nil
	})
}

func (s *Service) users(ctx context.Context) ([]models.User, error) {
	key := collectionKey(models.KindUser)
	return querycache.Fetch(ctx, s.cache, key, func(ctx context.Context) ([]models.User, error) {
		resp, err := s.lister.List(ctx, key.Resource.String(), listQuery(key))
		if err != nil {
			return nil, err
		}
		users := make([]models.User, 0, len(resp.Data))
		for _, raw := range resp.Data {
			u, err := normalize.User(raw)
			if err != nil {
				continue
			}
			users = append(users, u)
		}
		return users, nil
	})
}

func listQuery(key querycache.Key) gateway.ListQuery {
	return gateway.ListQuery{Page: key.Page, Limit: key.Limit, Sort: key.Sort}
}

func userStats(users []models.User, now time.Time) *UserStats {
	since := now.Add(-ActivityWindow)
	active := 0
	for _, u := range users {
		if u.LastActive.After(since) {
			active++
		}
	}
	return &UserStats{Count: len(users), ActiveUsers: active}
}

func dropoffStats(page resource.Page[models.Dropoff], now time.Time) *DropoffStats {
	since := now.Add(-ActivityWindow)
	recent := 0
	for _, d := range page.Items {
		if d.CreatedAt.After(since) {
			recent++
		}
	}
	return &DropoffStats{Count: page.Total, RecentDropoffs: recent}
}

func transactionStats(page resource.Page[models.Transaction]) *TransactionStats {
	total := 0.0
	for _, t := range page.Items {
		total += t.Amount
	}
	return &TransactionStats{Count: page.Total, TotalAmount: total, Formatted: format.Currency(total)}
}

// wasteStats picks the waste type with the largest collected amount. Ties
// go to the first in backend order.
func wasteStats(types []models.WasteType) *WasteStats {
	out := &WasteStats{Count: len(types), TopWasteType: NoWasteType}
	top := 0.0
	for _, wt := range types {
		out.TotalWeight += wt.CollectedAmount
		if wt.CollectedAmount > top {
			top = wt.CollectedAmount
			out.TopWasteType = wt.Name
		}
	}
	if out.TotalWeight > 0 {
		out.TopWastePercentage = int(math.Round(top / out.TotalWeight * 100))
	}
	return out
}

func person(o models.Owner) Person {
	p := Person{Name: o.Name, Image: o.ProfileImage}
	if p.Image == "" {
		p.Image = avatarURL + o.ID
	}
	return p
}

func recentTransactions(items []models.Transaction, now time.Time) []RecentTransaction {
	out := make([]RecentTransaction, 0, len(items))
	for _, t := range items {
		out = append(out, RecentTransaction{
			ID:     t.ID,
			User:   person(t.Owner),
			Amount: format.Currency(t.Amount),
			Status: t.Status,
			Type:   t.Type,
			Date:   format.Relative(t.CreatedAt, now),
		})
	}
	return out
}

func recentDropoffs(items []models.Dropoff, now time.Time) []RecentDropoff {
	out := make([]RecentDropoff, 0, len(items))
	for _, d := range items {
		out = append(out, RecentDropoff{
			ID:        d.ID,
			User:      person(d.Owner),
			WasteType: d.WasteType,
			Weight:    format.Weight(d.Weight),
			Points:    format.Plain(d.Points),
			Status:    d.Status,
			Date:      format.Relative(d.CreatedAt, now),
		})
	}
	return out
}
