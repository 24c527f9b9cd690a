// internal/storage/subscriber.go
package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Musing-io/musing-protocol/internal/events"
	"github.com/Musing-io/musing-protocol/internal/storage/models"
)

// Subscribe persists committed engine events. The returned subscriptions
// stop persistence when unsubscribed.
func Subscribe(bus *events.Bus, store Storage, logger *zap.Logger) []events.Subscription {
	logger = logger.Named("storage_subscriber")

	onCreated := func(ctx context.Context, e events.Event) error {
		ev, ok := e.(events.EconomyCreatedEvent)
		if !ok {
			return fmt.Errorf("unexpected event %T", e)
		}
		rec := EconomyRecordFromEvent(ev)
		if err := store.SaveEconomy(ctx, rec); err != nil {
			logger.Error("Failed to persist economy", zap.String("token", rec.Token), zap.Error(err))
			return err
		}
		return nil
	}

	onTrade := func(ctx context.Context, e events.Event) error {
		ev, ok := e.(events.TradeEvent)
		if !ok {
			return fmt.Errorf("unexpected event %T", e)
		}
		rec := TradeRecordFromEvent(ev)
		if err := store.SaveTrade(ctx, rec); err != nil {
			logger.Error("Failed to persist trade",
				zap.String("token", rec.Token),
				zap.String("side", rec.Side),
				zap.Error(err))
			return err
		}
		return nil
	}

	onSnapshot := func(ctx context.Context, e events.Event) error {
		ev, ok := e.(events.SnapshotEvent)
		if !ok {
			return fmt.Errorf("unexpected event %T", e)
		}
		return store.SavePriceSnapshot(ctx, &models.PriceSnapshot{
			Token:    ev.Token.String(),
			Reserve:  ev.Reserve.String(),
			Supply:   ev.Supply.String(),
			PricePPM: ev.PricePPM.String(),
			TakenAt:  ev.Timestamp(),
		})
	}

	return []events.Subscription{
		bus.SubscribeFunc(events.EconomyCreated, onCreated),
		bus.SubscribeFunc(events.TokensBought, onTrade),
		bus.SubscribeFunc(events.TokensSold, onTrade),
		bus.SubscribeFunc(events.SnapshotTaken, onSnapshot),
	}
}

// EconomyRecordFromEvent maps a creation event to its record.
func EconomyRecordFromEvent(ev events.EconomyCreatedEvent) *models.EconomyRecord {
	return &models.EconomyRecord{
		Token:          ev.Token.String(),
		Name:           ev.Name,
		Symbol:         ev.Symbol,
		Creator:        ev.Creator.String(),
		WeightPPM:      ev.WeightPPM,
		MaxSupply:      ev.MaxSupply.String(),
		InitialSupply:  ev.Supply.String(),
		InitialReserve: ev.Reserve.String(),
		InitialPrice:   ev.PricePPM.String(),
	}
}

// TradeRecordFromEvent maps a trade event to its record.
func TradeRecordFromEvent(ev events.TradeEvent) *models.TradeRecord {
	return &models.TradeRecord{
		Token:        ev.Token.String(),
		Account:      ev.Account.String(),
		Side:         ev.Side(),
		AmountIn:     ev.AmountIn.String(),
		AmountOut:    ev.AmountOut.String(),
		Fee:          ev.Fee.String(),
		FeeRecipient: ev.FeeRecipient.String(),
		Referrer:     ev.Referrer.String(),
		ReserveAfter: ev.ReserveAfter.String(),
		SupplyAfter:  ev.SupplyAfter.String(),
		PricePPM:     ev.PricePPM.String(),
		ExecutedAt:   ev.Timestamp(),
	}
}
