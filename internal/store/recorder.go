package store

import (
	"context"

	"ordex/internal/events"
	"ordex/internal/logger"
	"ordex/internal/store/model"
)

// Recorder folds bus events into the relational store. It runs on its own
// goroutine off a bus subscription so persistence never blocks execution.
type Recorder struct {
	store Store
}

func NewRecorder(s Store) *Recorder {
	return &Recorder{store: s}
}

// Run consumes the event channel until the context ends or the channel
// closes.
func (r *Recorder) Run(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := r.record(ctx, evt); err != nil {
				logger.Errorf("recorder: persist %s failed: %v", evt.Kind, err)
			}
		}
	}
}

func (r *Recorder) record(ctx context.Context, evt events.Event) error {
	uow, err := r.store.Begin(ctx)
	if err != nil {
		return err
	}
	switch p := evt.Payload.(type) {
	case events.TradeEvent:
		err = uow.Trades().Save(ctx, &model.TradeResultModel{
			TradeID:        p.TradeID,
			InstrumentIn:   p.InstrumentIn,
			InstrumentOut:  p.InstrumentOut,
			AmountIn:       p.AmountIn,
			AmountOut:      p.AmountOut,
			Status:         p.Status,
			Strategy:       p.Strategy,
			Chunks:         p.Chunks,
			ExecutedAtUnix: evt.At.Unix(),
		})
	case events.OrderEvent:
		status := "triggered"
		if evt.Kind == events.KindOrderExpired {
			status = "expired"
		}
		err = uow.Orders().SaveConditional(ctx, &model.ConditionalOrderModel{
			OrderID:         p.OrderID,
			Kind:            p.OrderKind,
			Instrument:      p.Instrument,
			Settlement:      p.Settlement,
			Amount:          p.Amount,
			TriggerPrice:    p.TriggerPrice,
			Status:          status,
			TriggeredAtUnix: evt.At.Unix(),
		})
	case events.LimitOrderEvent:
		status := "filled"
		if evt.Kind == events.KindLimitOrderExpired {
			status = "expired"
		}
		m := &model.LimitOrderModel{
			OrderID:    p.OrderID,
			Side:       p.Side,
			Instrument: p.Instrument,
			Settlement: p.Settlement,
			Amount:     p.Amount,
			LimitPrice: p.LimitPrice,
			Status:     status,
		}
		if status == "filled" {
			m.FilledPrice = p.MarketPrice
			m.FilledAmount = p.Amount
			m.FilledAtUnix = evt.At.Unix()
		}
		err = uow.Orders().SaveLimit(ctx, m)
	default:
		// Kinds without a relational shape live only in the journal.
		return uow.Rollback()
	}
	if err != nil {
		_ = uow.Rollback()
		return err
	}
	return uow.Commit()
}
