package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/table-orders/utils"
)

const DefaultAuditInterval = 5 * time.Minute

// OccupancyMonitor periodically audits every restaurant's tables and flags the
// ones whose occupancy disagrees with live orders and requests. It never
// changes availability itself. A mismatch must be seen on two consecutive
// sweeps before it is flagged, so an order saga caught between its reserve
// and insert steps is left alone.
type OccupancyMonitor struct {
	Registry *TableRegistry
	Interval time.Duration
	StopChan chan struct{}

	seen map[uint]string // table id -> problem from the previous sweep
}

func NewOccupancyMonitor(registry *TableRegistry) *OccupancyMonitor {
	return &OccupancyMonitor{
		Registry: registry,
		Interval: DefaultAuditInterval,
		StopChan: make(chan struct{}),
		seen:     make(map[uint]string),
	}
}

func (m *OccupancyMonitor) Start() {
	go func() {
		ticker := time.NewTicker(m.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.Sweep(context.Background())
			case <-m.StopChan:
				return
			}
		}
	}()
}

func (m *OccupancyMonitor) Stop() {
	close(m.StopChan)
}

// Sweep runs one audit pass and returns how many tables it flagged.
func (m *OccupancyMonitor) Sweep(ctx context.Context) int {
	tables, err := m.Registry.stores.Tables.List(ctx, "")
	if err != nil {
		utils.ErrorLogger.Printf("occupancy audit: listing tables failed: %v", err)
		return 0
	}
	flagged := make(map[uint]bool)
	restaurants := make(map[string]bool)
	for _, t := range tables {
		restaurants[t.RestaurantID] = true
		if t.NeedsAttention {
			flagged[t.ID] = true
		}
	}

	current := make(map[uint]string)
	n := 0
	for restaurantID := range restaurants {
		mismatches, err := m.Registry.Audit(ctx, restaurantID)
		if err != nil {
			utils.ErrorLogger.WithField("restaurant_id", restaurantID).Errorf("occupancy audit failed: %v", err)
			continue
		}
		for _, mm := range mismatches {
			current[mm.TableID] = mm.Problem
			if flagged[mm.TableID] || m.seen[mm.TableID] != mm.Problem {
				continue
			}
			utils.InfoLogger.WithFields(logrus.Fields{
				"restaurant_id": restaurantID,
				"table_id":      mm.TableID,
				"bindings":      mm.Bindings,
			}).Info("occupancy mismatch persisted across sweeps")
			m.Registry.Flag(ctx, mm.TableID, "audit: "+mm.Problem)
			n++
		}
	}
	m.seen = current
	return n
}
