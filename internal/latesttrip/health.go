package latesttrip

import "fleetops/internal/reconcile"

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusStopped  = "stopped"
)

type Health struct {
	Status           string          `json:"status"`
	Queue            reconcile.Stats `json:"queue"`
	CacheEntries     int             `json:"cacheEntries"`
	BatchAdmissions  int             `json:"batchAdmissions"`
	DetachedInFlight int64           `json:"detachedInFlight"`
}

// Health reports degraded while the reconcile queue is saturated, since new
// failures would be dropped.
func (e *Engine) Health() Health {
	h := Health{
		Status:           StatusOK,
		Queue:            e.queue.Stats(),
		CacheEntries:     e.cache.Len(),
		BatchAdmissions:  e.limiter.Count(batchOp),
		DetachedInFlight: e.inFlight.Load(),
	}
	switch {
	case e.closed.Load():
		h.Status = StatusStopped
	case h.Queue.Active >= h.Queue.Capacity:
		h.Status = StatusDegraded
	}
	return h
}
