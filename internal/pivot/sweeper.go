package pivot

import (
	"context"
	"time"
)

// Start launches the expiry sweeper. Lazy expiry already guarantees a
// lapsed proposal is never acted on; the sweeper additionally guarantees it
// cannot sit in the store as "proposed" forever when nobody touches it.
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.sweepLoop()
}

// Stop terminates the sweeper and waits for it to exit. Safe to call more
// than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

func (m *Manager) sweepLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			if _, err := m.SweepExpired(context.Background()); err != nil {
				m.logger.Error("expiry sweep failed", "error", err)
			}
		}
	}
}

// SweepExpired expires every proposed pivot whose deadline has passed and
// returns how many it closed. Each pivot is expired under its slot lock so
// the sweep cannot race a concurrent accept or reject.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	due, err := m.store.ListExpiredProposed(ctx, m.now().Unix())
	if err != nil {
		return 0, err
	}

	var swept int
	for i := range due {
		lock := m.slotLock(due[i].TripID, due[i].SlotID)
		lock.Lock()
		pivot, err := m.store.GetPivot(ctx, due[i].ID)
		if err != nil {
			lock.Unlock()
			return swept, err
		}
		expired, err := m.expireIfDueLocked(ctx, pivot)
		lock.Unlock()
		if err != nil {
			return swept, err
		}
		if expired {
			swept++
		}
	}

	if swept > 0 {
		m.logger.Info("expired lapsed pivots", "count", swept)
	}
	return swept, nil
}
