package main

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/QTuan97/HC-API-Plat/control-plane/logger"
	"github.com/QTuan97/HC-API-Plat/control-plane/storage"

	"go.uber.org/zap"
)

// RuleDistributor watches rule changes and pushes the enabled rule set to
// connected mock engines.
type RuleDistributor struct {
	store      storage.IRuleStore
	currentSet atomic.Value // latest enabled rule set as a JSON string

	mu      sync.RWMutex
	clients map[chan string]struct{}
}

// NewRuleDistributor creates a distributor and starts its watch loop, which
// stops when ctx is canceled.
func NewRuleDistributor(ctx context.Context, store storage.IRuleStore) *RuleDistributor {
	distributor := &RuleDistributor{
		store:   store,
		clients: make(map[chan string]struct{}),
	}

	// Subscribe before the first snapshot so no change falls in between
	events := store.WatchWithContext(ctx)
	distributor.updateAndBroadcast()

	go distributor.watchForChanges(ctx, events)

	return distributor
}

// watchForChanges rebuilds the rule set on every store event. A watch
// channel closed while ctx is still live is replaced by a new subscription.
func (d *RuleDistributor) watchForChanges(ctx context.Context, events <-chan storage.WatchEvent) {
	log := logger.WithComponent("distributor")
	for {
		for event := range events {
			var ruleID int64
			if event.Rule != nil {
				ruleID = event.Rule.ID
			}
			log.Debug("Rule change detected",
				zap.String("type", string(event.Type)),
				zap.Int64("rule_id", ruleID))
			d.updateAndBroadcast()
		}

		if ctx.Err() != nil {
			return
		}
		log.Warn("Rule watch closed, resubscribing")
		events = d.store.WatchWithContext(ctx)
		d.updateAndBroadcast()
	}
}

// updateAndBroadcast snapshots the enabled rules and sends them to every client.
func (d *RuleDistributor) updateAndBroadcast() {
	log := logger.WithComponent("distributor")

	enabled := make([]*storage.Rule, 0)
	for _, rule := range d.store.ListRules(0) {
		if rule.Enabled {
			enabled = append(enabled, rule)
		}
	}

	data, err := json.Marshal(enabled)
	if err != nil {
		log.Error("Failed to marshal rule set", zap.Error(err))
		return
	}

	ruleSet := string(data)
	d.currentSet.Store(ruleSet)

	log.Info("Broadcasting rule set", zap.Int("enabled_rules", len(enabled)))
	d.broadcast(ruleSet)
}

// broadcast sends the rule set without blocking; a full client misses the
// update and picks up the next one.
func (d *RuleDistributor) broadcast(ruleSet string) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for clientChan := range d.clients {
		select {
		case clientChan <- ruleSet:
		default:
		}
	}
}

// RegisterClient adds a client to the broadcast list.
func (d *RuleDistributor) RegisterClient(clientChan chan string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clients[clientChan] = struct{}{}
	logger.WithComponent("distributor").Info("Client registered", zap.Int("clients", len(d.clients)))
}

// UnregisterClient removes a client from the broadcast list.
func (d *RuleDistributor) UnregisterClient(clientChan chan string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.clients[clientChan]; ok {
		close(clientChan)
		delete(d.clients, clientChan)
		logger.WithComponent("distributor").Info("Client unregistered", zap.Int("clients", len(d.clients)))
	}
}

// CurrentRuleSet returns the latest enabled rule set as JSON.
func (d *RuleDistributor) CurrentRuleSet() string {
	ruleSet := d.currentSet.Load()
	if ruleSet == nil {
		return "[]"
	}
	return ruleSet.(string)
}
