package listing

import (
	"context"
	"log/slog"

	"trash4cash/internal/gateway"
	"trash4cash/internal/notify"
	"trash4cash/internal/querycache"
	"trash4cash/internal/resource"
	"trash4cash/internal/resource/models"
	dErrors "trash4cash/pkg/domain-errors"
)

// OwnerLoader fetches every dropoff of one user.
type OwnerLoader interface {
	ListUserDropoffs(ctx context.Context, userID string) ([]gateway.RawRecord, error)
}

// OwnerView lists the dropoffs of a single user. The result is cached as a
// one-page list of the dropoffs resource, so dropoff mutations invalidate it
// and optimistic status changes patch it like any other page.
type OwnerView struct {
	loader   OwnerLoader
	cache    *querycache.Cache
	notifier notify.Notifier
	logger   *slog.Logger
}

// NewOwnerView accepts the list Options; only the notifier and logger apply.
func NewOwnerView(loader OwnerLoader, cache *querycache.Cache, opts ...Option) *OwnerView {
	o := options{notifier: notify.Nop, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return &OwnerView{loader: loader, cache: cache, notifier: o.notifier, logger: o.logger}
}

// Dropoffs returns every dropoff of userID.
func (v *OwnerView) Dropoffs(ctx context.Context, userID string) ([]models.Dropoff, error) {
	if userID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "user id is required")
	}
	key := querycache.OwnerKey(models.KindDropoff, userID)
	page, err := querycache.Fetch(ctx, v.cache, key, func(ctx context.Context) (resource.Page[models.Dropoff], error) {
		recs, err := v.loader.ListUserDropoffs(ctx, userID)
		if err != nil {
			return resource.Page[models.Dropoff]{}, err
		}
		page, skipped := resource.Dropoffs.PageFrom(&gateway.ListResponse{Data: recs}, len(recs))
		if skipped > 0 {
			v.logger.WarnContext(ctx, "skipped records without id", "resource", key.String(), "count", skipped)
		}
		return page, nil
	})
	if err != nil {
		v.logger.WarnContext(ctx, "user dropoffs fetch failed", "user_id", userID, "error", err)
		v.notifier.Notify(ctx, notify.Failure("Error fetching user dropoffs", gateway.Describe(err)))
		return nil, dErrors.Reclassify(err, dErrors.CodeFetchFailed, "failed to fetch user dropoffs")
	}
	if page.Items == nil {
		return []models.Dropoff{}, nil
	}
	return page.Items, nil
}
