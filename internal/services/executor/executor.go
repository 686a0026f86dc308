// Package executor drives a rebalancing round end to end: cancel pre-pass,
// valuation, planning, and supervised order submission.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantfell/parita/internal/domain"
	"github.com/quantfell/parita/internal/journal"
	"github.com/quantfell/parita/internal/services/balancer"
)

const (
	defaultMaxAttempts  = 3
	defaultOrderTimeout = 30 * time.Second
	defaultBackoffMin   = 500 * time.Millisecond
	defaultBackoffMax   = 8 * time.Second
	backoffFactor       = 2
)

type venue interface {
	Name() string
	Books(ctx context.Context, assets []string) (map[string]domain.BookTicker, error)
	Fees(ctx context.Context) (domain.FeeSchedule, error)
	SubmitOrder(ctx context.Context, order domain.Order) error
	CancelOpenOrders(ctx context.Context, assets []string) ([]string, error)
}

type valuer interface {
	Snapshot(ctx context.Context) (*domain.Portfolio, error)
}

type intentJournal interface {
	Prepare(order domain.Order) error
	MarkDone(id string) error
	MarkFailed(id string, cause error) error
	Pending() []journal.Intent
}

// Options tunes one rebalancing round.
type Options struct {
	// Trade submits orders to the venue. False keeps the round a dry run.
	Trade bool
	// Force plans even when the portfolio is within the threshold.
	Force bool
	// CancelOpen cancels resting orders on the traded markets before
	// valuation. Failures are warnings, never fatal.
	CancelOpen bool
	// OrderTimeout bounds a single submission attempt.
	OrderTimeout time.Duration
	// MaxAttempts bounds submission attempts per order. Only transient
	// failures are retried.
	MaxAttempts int
	// BackoffMin and BackoffMax bound the exponential retry delay.
	BackoffMin time.Duration
	BackoffMax time.Duration
}

func (o Options) withDefaults() Options {
	if o.OrderTimeout <= 0 {
		o.OrderTimeout = defaultOrderTimeout
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.BackoffMin <= 0 {
		o.BackoffMin = defaultBackoffMin
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = defaultBackoffMax
	}

	return o
}

// Executor supervises rebalancing rounds for one portfolio.
type Executor struct {
	name    string
	quote   string
	targets domain.Weights
	venue   venue
	valuer  valuer
	planner *balancer.Planner
	journal intentJournal
	logger  *zap.Logger
	opts    Options
}

// New returns a configured executor. The journal may be nil for runs that
// must not leave a submission trail, dry runs in particular.
func New(name, quote string, targets domain.Weights, vn venue, vl valuer, planner *balancer.Planner,
	jrnl intentJournal, logger *zap.Logger, opts Options) *Executor {

	return &Executor{
		name:    name,
		quote:   quote,
		targets: targets.Clone(),
		venue:   vn,
		valuer:  vl,
		planner: planner,
		journal: jrnl,
		logger:  logger,
		opts:    opts.withDefaults(),
	}
}

// Run performs one rebalancing round and reports its outcome. Order-level
// failures land in the result, an error return means the round could not
// proceed at all.
func (e *Executor) Run(ctx context.Context) (*domain.ExecutionResult, error) {
	result := &domain.ExecutionResult{
		Name:     e.name,
		TotalFee: decimal.Zero,
		DryRun:   !e.opts.Trade,
	}

	if e.opts.CancelOpen {
		cancelled, err := e.venue.CancelOpenOrders(ctx, e.tradeAssets())
		if err != nil {
			e.logger.Warn("failed to cancel open orders", zap.Error(err))
		} else {
			result.Cancelled = cancelled
			if len(cancelled) > 0 {
				e.logger.Info("cancelled open orders", zap.Int("count", len(cancelled)))
			}
		}
	}

	if e.journal != nil {
		for _, intent := range e.journal.Pending() {
			e.logger.Warn("pending order intent from a previous run",
				zap.String("intent", intent.ID),
				zap.String("side", intent.Side),
				zap.String("asset", intent.Asset),
				zap.String("amount", intent.Amount.String()))
		}
	}

	pf, err := e.valuer.Snapshot(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "value portfolio %s", e.name)
	}
	result.Initial = pf

	if !pf.NeedsBalancing() && !e.opts.Force {
		e.logger.Info("portfolio within threshold",
			zap.String("max_error", pf.MaxError().StringFixed(4)),
			zap.String("threshold", pf.Threshold().String()))
		return result, nil
	}

	fees, err := e.venue.Fees(ctx)
	if err != nil {
		return nil, &domain.VenueUnavailableError{Venue: e.venue.Name(), Err: err}
	}

	books, err := e.venue.Books(ctx, e.tradeAssets())
	if err != nil {
		return nil, &domain.VenueUnavailableError{Venue: e.venue.Name(), Err: err}
	}

	plan, err := e.planner.Plan(pf, fees, books)
	if err != nil {
		return nil, errors.Wrapf(err, "plan portfolio %s", e.name)
	}

	result.Orders = plan.Orders
	result.Proposed = plan.Proposed
	result.TotalFee = plan.TotalFee
	result.Partial = plan.Partial

	if plan.Degenerate() {
		e.logger.Info("no improving plan",
			zap.String("max_error", pf.MaxError().StringFixed(4)))
		return result, nil
	}

	e.logger.Info("plan ready",
		zap.Int("orders", len(plan.Orders)),
		zap.String("total_fee", plan.TotalFee.String()),
		zap.Bool("partial", plan.Partial))

	if !e.opts.Trade {
		e.logger.Info("dry run, orders not submitted")
		return result, nil
	}

	e.submit(ctx, result)

	return result, ctx.Err()
}

func (e *Executor) submit(ctx context.Context, result *domain.ExecutionResult) {
	failed := make(map[string]bool)

	for i := range result.Orders {
		if ctx.Err() != nil {
			return
		}

		order := result.Orders[i]

		if order.DependsOn != "" && failed[order.DependsOn] {
			cause := &domain.SubmitError{Err: fmt.Errorf("dependency failed: funding sell %s was not filled", order.DependsOn)}
			order.State = domain.OrderSubmitError
			failed[order.ID] = true
			result.Failures = append(result.Failures, domain.OrderOutcome{Order: order, Err: cause})
			e.logger.Warn("skipping buy, funding sell failed",
				zap.String("order", order.ID),
				zap.String("depends_on", order.DependsOn))
			continue
		}

		if e.journal != nil {
			if err := e.journal.Prepare(order); err != nil {
				cause := errors.Wrap(err, "journal order intent")
				order.State = domain.OrderSubmitError
				failed[order.ID] = true
				result.Failures = append(result.Failures, domain.OrderOutcome{Order: order, Err: cause})
				e.logger.Error("refusing to submit without a journaled intent", zap.Error(err))
				continue
			}
		}

		outcome := e.submitOne(ctx, order)

		if outcome.Order.State == domain.OrderFilled {
			if e.journal != nil {
				if err := e.journal.MarkDone(outcome.Order.ID); err != nil {
					e.logger.Warn("failed to journal fill", zap.Error(err))
				}
			}
			result.Successes = append(result.Successes, outcome)
			continue
		}

		failed[outcome.Order.ID] = true
		if e.journal != nil {
			if err := e.journal.MarkFailed(outcome.Order.ID, outcome.Err); err != nil {
				e.logger.Warn("failed to journal failure", zap.Error(err))
			}
		}
		result.Failures = append(result.Failures, outcome)
	}
}

// submitOne pushes a single order through its state machine. Transient
// failures are retried with exponential backoff, rejections are terminal
// on first response.
func (e *Executor) submitOne(ctx context.Context, order domain.Order) domain.OrderOutcome {
	if err := order.Advance(domain.OrderSubmitting); err != nil {
		return domain.OrderOutcome{Order: order, Err: err}
	}

	delay := &backoff.Backoff{
		Min:    e.opts.BackoffMin,
		Max:    e.opts.BackoffMax,
		Factor: backoffFactor,
	}

	var lastErr error
	attempts := 0

	for attempts < e.opts.MaxAttempts {
		attempts++

		octx, cancel := context.WithTimeout(ctx, e.opts.OrderTimeout)
		err := e.venue.SubmitOrder(octx, order)
		cancel()

		if err == nil {
			_ = order.Advance(domain.OrderFilled)
			e.logger.Info("order filled",
				zap.String("order", order.ID),
				zap.String("side", order.Side.String()),
				zap.String("asset", order.Asset),
				zap.String("amount", order.Amount.String()),
				zap.Int("attempts", attempts))
			return domain.OrderOutcome{Order: order, Attempts: attempts}
		}
		lastErr = err

		if domain.IsRejected(err) {
			_ = order.Advance(domain.OrderRejected)
			e.logger.Warn("order rejected by venue",
				zap.String("order", order.ID),
				zap.Error(err))
			return domain.OrderOutcome{Order: order, Attempts: attempts, Err: err}
		}

		e.logger.Warn("order submission failed",
			zap.String("order", order.ID),
			zap.Int("attempt", attempts),
			zap.Error(err))

		if attempts >= e.opts.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			_ = order.Advance(domain.OrderSubmitError)
			return domain.OrderOutcome{Order: order, Attempts: attempts, Err: lastErr}
		case <-time.After(delay.Duration()):
		}
	}

	_ = order.Advance(domain.OrderSubmitError)

	return domain.OrderOutcome{Order: order, Attempts: attempts, Err: lastErr}
}

func (e *Executor) tradeAssets() []string {
	assets := make([]string, 0, len(e.targets))
	for _, asset := range e.targets.Assets() {
		if asset != e.quote {
			assets = append(assets, asset)
		}
	}

	return assets
}
