// Package aggregator builds a RewardContext for a customer by fetching only
// the backend data the query's intents need.
package aggregator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/soyeahso/rewardbot/internal/backend"
	"github.com/soyeahso/rewardbot/internal/cache"
	"github.com/soyeahso/rewardbot/internal/domain"
	"github.com/soyeahso/rewardbot/internal/intent"
	"github.com/soyeahso/rewardbot/internal/logging"
	"github.com/soyeahso/rewardbot/internal/metrics"
	"github.com/soyeahso/rewardbot/internal/resilience"
	"github.com/soyeahso/rewardbot/internal/telemetry"
)

// Guards holds one resilience guard per backend service.
type Guards struct {
	Rewards    *resilience.Guard
	Customer   *resilience.Guard
	Redemption *resilience.Guard
}

// Config wires the aggregator's collaborators.
type Config struct {
	Rewards    backend.RewardsProvider
	Cashback   backend.CashbackProvider
	Redemption backend.RedemptionProvider
	Guards     Guards
	// Cache stores merged contexts. Nil disables context caching.
	Cache cache.Cache
	TTL   time.Duration
}

// Aggregator merges backend data into a RewardContext. It never returns an
// error: unrecoverable failures produce domain.DegradedContext.
type Aggregator struct {
	cfg   Config
	group singleflight.Group
	log   *logging.Logger
}

// New creates an Aggregator.
func New(cfg Config, log *logging.Logger) *Aggregator {
	return &Aggregator{cfg: cfg, log: log.Sub("aggregator")}
}

// CacheKey is the context cache key for a customer and intent set.
func CacheKey(customerID string, intents intent.Set) string {
	return "ctx:" + customerID + ":" + intents.Key()
}

type fetchResult struct {
	rc *domain.RewardContext
	// complete is false when any lookup failed. Such results are not cached
	// so the next query retries the missing data.
	complete bool
}

// Aggregate returns the merged context for customerID. Identical concurrent
// requests share one fetch.
func (a *Aggregator) Aggregate(ctx context.Context, customerID string, intents intent.Set) *domain.RewardContext {
	ctx, span := telemetry.Tracer("rewardbot/aggregator").Start(ctx, "aggregate")
	defer span.End()
	span.SetAttributes(attribute.String("intents", intents.Key()))

	key := CacheKey(customerID, intents)
	if a.cfg.Cache != nil {
		if rc, ok := cache.GetJSON[*domain.RewardContext](ctx, a.cfg.Cache, key); ok && rc != nil {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return rc
		}
	}

	v, err, _ := a.group.Do(key, func() (any, error) {
		res, err := a.fetch(ctx, customerID, intents)
		if err != nil {
			return nil, err
		}
		if res.complete && a.cfg.Cache != nil {
			cache.SetJSON(ctx, a.cfg.Cache, key, res.rc, a.cfg.TTL)
		}
		return res, nil
	})
	if err != nil && ctx.Err() == nil {
		// The shared fetch was abandoned by another caller; run our own.
		var res fetchResult
		res, err = a.fetch(ctx, customerID, intents)
		v = res
	}
	if err != nil {
		span.SetStatus(codes.Error, "abandoned")
		return domain.DegradedContext()
	}

	res := v.(fetchResult)
	if res.rc.Degraded {
		metrics.RecordDegradedContext()
		span.SetAttributes(attribute.Bool("degraded", true))
	}
	return res.rc
}

// fetch runs the required lookups in parallel and merges them. It returns an
// error only when ctx is done before the lookups finish.
func (a *Aggregator) fetch(ctx context.Context, customerID string, intents intent.Set) (fetchResult, error) {
	var (
		balance  *backend.Balance
		cashback *backend.Cashback
		options  []backend.RedemptionOption
		lots     []backend.ExpiringLot

		balanceErr, cashbackErr, optionsErr, lotsErr error
	)

	// Goroutines report through their own variables and always return nil,
	// so one failed lookup never cancels the others.
	var g errgroup.Group

	g.Go(func() error {
		balance, balanceErr = resilience.Call(ctx, a.cfg.Guards.Rewards, "balance:"+customerID,
			func(ctx context.Context) (*backend.Balance, error) {
				return a.cfg.Rewards.Balance(ctx, customerID)
			})
		return nil
	})

	if intents.Any(intent.Cashback, intent.Balance) {
		g.Go(func() error {
			cashback, cashbackErr = resilience.Call(ctx, a.cfg.Guards.Customer, "cashback:"+customerID,
				func(ctx context.Context) (*backend.Cashback, error) {
					return a.cfg.Cashback.Cashback(ctx, customerID)
				})
			return nil
		})
	}

	if intents.Has(intent.Redeem) {
		g.Go(func() error {
			options, optionsErr = resilience.Call(ctx, a.cfg.Guards.Redemption, "options:"+customerID,
				func(ctx context.Context) ([]backend.RedemptionOption, error) {
					return a.cfg.Redemption.Options(ctx, customerID)
				})
			return nil
		})
	}

	if intents.Has(intent.Expiry) {
		g.Go(func() error {
			lots, lotsErr = resilience.Call(ctx, a.cfg.Guards.Rewards, "expiring:"+customerID,
				func(ctx context.Context) ([]backend.ExpiringLot, error) {
					return a.cfg.Rewards.ExpiringPoints(ctx, customerID)
				})
			return nil
		})
	}

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return fetchResult{}, err
	}

	log := a.log.Zerolog().With().
		Str("customerId", customerID).
		Str("intents", intents.Key()).
		Logger()

	if balanceErr != nil {
		log.Warn().Err(balanceErr).Msg("balance unavailable, using degraded context")
		return fetchResult{rc: domain.DegradedContext()}, nil
	}

	rc := &domain.RewardContext{
		TotalPoints:     domain.Int64(balance.TotalPoints),
		AvailablePoints: domain.Int64(balance.AvailablePoints),
		ExpiredPoints:   domain.Int64(balance.ExpiredPoints),
		NextExpiryDate:  balance.NextExpiryDate,
	}
	complete := true

	switch {
	case cashbackErr != nil:
		log.Warn().Err(cashbackErr).Msg("cashback lookup failed")
		complete = false
	case cashback != nil:
		amount := cashback.Balance
		rc.CashbackBalance = &amount
		rc.CashbackCurrency = cashback.Currency
	}

	if optionsErr != nil {
		log.Warn().Err(optionsErr).Msg("redemption options lookup failed")
		complete = false
	} else if options != nil {
		rc.RedemptionOptions = mapOptions(options)
	}

	if lotsErr != nil {
		log.Warn().Err(lotsErr).Msg("expiring points lookup failed")
		complete = false
	} else if lots != nil {
		rc.ExpiringPoints = mapLots(lots)
	}

	rc.Partial = !complete
	return fetchResult{rc: rc, complete: complete}, nil
}

func mapOptions(in []backend.RedemptionOption) []domain.RedemptionOption {
	out := make([]domain.RedemptionOption, 0, len(in))
	for _, o := range in {
		out = append(out, domain.RedemptionOption{
			Name:           o.Name,
			Description:    o.Description,
			PointsRequired: o.PointsRequired,
			Category:       o.Category,
			CashValue:      o.CashValue,
			Available:      o.Available,
		})
	}
	return out
}

func mapLots(in []backend.ExpiringLot) []domain.ExpiryDetail {
	out := make([]domain.ExpiryDetail, 0, len(in))
	for _, l := range in {
		out = append(out, domain.ExpiryDetail{
			Points:     l.Points,
			ExpiryDate: l.ExpiryDate,
			Source:     l.Source,
		})
	}
	return out
}
