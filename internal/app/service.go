package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"tradealerter/config"
	"tradealerter/internal/alert"
	"tradealerter/internal/domain"
	"tradealerter/internal/ledger"
	"tradealerter/internal/ports"
)

// Service is the poll loop: it periodically pulls filled orders from every
// configured brokerage adapter, routes unseen fills through the deduplicator
// and the ledger, and publishes one alert per newly observed fill to the
// outbound channel. It is the single logical writer of the ledger and the
// seen set.
type Service struct {
	cfg     *config.Config
	logger  ports.Logger
	brokers []ports.Brokerage
	ledger  *ledger.Ledger
	seen    ports.SeenStore
	journal ports.FillJournal
	alerts  chan domain.Alert

	errorCount atomic.Int64
}

// NewService creates the poll-loop service.
func NewService(
	cfg *config.Config,
	logger ports.Logger,
	brokers []ports.Brokerage,
	ldg *ledger.Ledger,
	seen ports.SeenStore,
	journal ports.FillJournal,
) (*Service, error) {
	if cfg == nil || logger == nil || ldg == nil || seen == nil || journal == nil {
		return nil, fmt.Errorf("missing required dependencies for Service")
	}
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one brokerage adapter is required")
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("configuration PollInterval must be positive")
	}
	if cfg.AlertQueueSize <= 0 {
		return nil, fmt.Errorf("configuration AlertQueueSize must be positive")
	}
	return &Service{
		cfg:     cfg,
		logger:  logger,
		brokers: brokers,
		ledger:  ldg,
		seen:    seen,
		journal: journal,
		alerts:  make(chan domain.Alert, cfg.AlertQueueSize),
	}, nil
}

// Alerts exposes the outbound channel. The channel is bounded; publishing
// blocks when consumers fall behind, so an alert is never dropped silently.
func (s *Service) Alerts() <-chan domain.Alert { return s.alerts }

// Ledger exposes the position ledger for external consumers (snapshot reads,
// sent-counter increments).
func (s *Service) Ledger() *ledger.Ledger { return s.ledger }

// ErrorCount reports how many recoverable faults the loop has absorbed.
func (s *Service) ErrorCount() int64 { return s.errorCount.Load() }

// Start runs the poll loop until the context is cancelled or an interrupt
// signal arrives. Poll failures are recoverable: logged, counted and retried
// on the next tick; the loop never terminates on them.
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting order check loop", map[string]interface{}{
		"interval": s.cfg.PollInterval.String(), "brokers": len(s.brokers), "alerting": s.cfg.AlertsEnabled,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	s.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Order check loop stopped", map[string]interface{}{"errors": s.ErrorCount()})
			close(s.alerts)
			return nil
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle polls every adapter once and processes the discovered fills
// oldest first. The seen set is flushed once per cycle, after the batch.
func (s *Service) runCycle(ctx context.Context) {
	newFills := 0
	for _, broker := range s.brokers {
		if ctx.Err() != nil {
			break
		}
		orders, err := broker.GetFilledOrders(ctx)
		if err != nil {
			s.countError(ctx, err, "Polling brokerage failed", map[string]interface{}{"broker": broker.Name()})
			continue
		}
		// Adapters return newest first; iterate in reverse to apply fills
		// chronologically.
		for i := len(orders) - 1; i >= 0; i-- {
			if ctx.Err() != nil {
				break
			}
			order := orders[i]
			if s.seen.Seen(order.OrderID) {
				continue
			}
			if s.processOrder(ctx, order) {
				newFills++
			}
		}
	}
	if newFills > 0 {
		if err := s.seen.Flush(); err != nil {
			s.countError(ctx, err, "Persisting seen-order set failed", nil)
		}
	}
}

// processOrder applies one unseen fill end to end. It reports whether the
// order was marked seen; orders left unseen (working orders, transient
// persistence failures) are re-attempted on a later cycle.
func (s *Service) processOrder(ctx context.Context, order domain.Order) bool {
	delta, err := s.ledger.Apply(ctx, order)

	switch {
	case err == nil:
		if delta.Kind == ledger.DeltaSkipped {
			// Not executed yet; it becomes processable once the broker
			// reports it filled, so it must not enter the seen set.
			return false
		}
	case errors.Is(err, ports.ErrOrphanExit):
		// Distinct fault: no ledger mutation, but the fill is consumed and
		// alerted with a nil position ref so the consumer skips dispatch.
		s.countError(ctx, err, "Orphan exit fill", map[string]interface{}{"orderID": order.OrderID})
	case errors.Is(err, ports.ErrPositionNotFilled):
		// Data-consistency fault: surfaced, consumed, never re-attempted.
		s.countError(ctx, err, "Averaging entry rejected", map[string]interface{}{"orderID": order.OrderID})
	default:
		// Persistence or unexpected failure: leave the fill unseen so the
		// next cycle re-attempts it.
		s.countError(ctx, err, "Ledger apply failed", map[string]interface{}{"orderID": order.OrderID})
		return false
	}

	s.recordJournal(ctx, order, delta)

	if s.cfg.AlertsEnabled && !errors.Is(err, ports.ErrPositionNotFilled) {
		s.publishAlert(ctx, order, delta)
	}

	s.seen.MarkSeen(order.OrderID)
	return true
}

func (s *Service) recordJournal(ctx context.Context, order domain.Order, delta ledger.Delta) {
	entry := &domain.JournalEntry{
		OrderID:        order.OrderID,
		Broker:         order.Broker,
		Symbol:         order.Symbol,
		Action:         order.Action,
		Status:         order.Status,
		Quantity:       order.Quantity,
		FilledQuantity: order.FilledQuantity,
		Price:          order.Price,
		CloseTime:      order.CloseTime,
		Outcome:        domain.JournalOutcome(delta.Kind),
	}
	if delta.HasRef {
		ref := delta.Ref
		entry.PositionRef = &ref
	}
	if _, err := s.journal.Record(ctx, entry); err != nil {
		// The journal is an audit aid, not the ledger of record; a failed
		// write must not stall the loop.
		s.countError(ctx, err, "Recording fill journal entry failed", map[string]interface{}{"orderID": order.OrderID})
	}
}

func (s *Service) publishAlert(ctx context.Context, order domain.Order, delta ledger.Delta) {
	text, err := alert.Render(order)
	if err != nil {
		// Formatting fault: the ledger effect stands, no alert is emitted.
		s.countError(ctx, err, "Alert formatting failed", map[string]interface{}{"orderID": order.OrderID, "symbol": order.Symbol})
		return
	}
	out := domain.Alert{Text: text, FilledAt: order.CloseTime}
	if delta.HasRef {
		ref := delta.Ref
		out.PositionRef = &ref
	}
	select {
	case s.alerts <- out:
	case <-ctx.Done():
		s.logger.Warn(ctx, "Alert dropped during shutdown", map[string]interface{}{"orderID": order.OrderID, "alert": text})
	}
}

func (s *Service) countError(ctx context.Context, err error, msg string, fields map[string]interface{}) {
	n := s.errorCount.Add(1)
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["errorCount"] = n
	s.logger.Error(ctx, err, msg, fields)
}
