package queue

import (
	"container/heap"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jmcale/go-incident-dispatch/internal/models"
)

// Queue holds incidents that are not yet fully resolved and is the sole
// authority over incident status transitions. Dispatch order is severity
// descending, then reported timestamp ascending, then ID.
//
// All state lives behind one short-lived mutex: every operation is a bounded
// in-memory heap/map manipulation and nothing is ever held across I/O.
type Queue struct {
	mu      sync.Mutex
	byID    map[string]*entry
	ordered entryHeap
}

type entry struct {
	inc   models.Incident
	index int // position in the heap, -1 once removed
}

func New() *Queue {
	return &Queue{
		byID: make(map[string]*entry),
	}
}

// Enqueue admits a new OPEN incident. Unknown severities are rejected and
// never enter the queue.
func (q *Queue) Enqueue(inc models.Incident) error {
	if inc.ID == "" {
		return fmt.Errorf("incident id is required")
	}
	if !inc.Severity.Valid() {
		return fmt.Errorf("%w: incident %s severity %d", models.ErrInvalidSeverity, inc.ID, int(inc.Severity))
	}
	if inc.Status == "" {
		inc.Status = models.IncidentOpen
	}
	if inc.Status != models.IncidentOpen {
		return fmt.Errorf("%w: incident %s enqueued as %s", models.ErrInvalidTransition, inc.ID, inc.Status)
	}
	if inc.ReportedAt.IsZero() {
		inc.ReportedAt = time.Now()
	}
	if inc.CreatedAt.IsZero() {
		inc.CreatedAt = time.Now()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.byID[inc.ID]; ok {
		return fmt.Errorf("%w: incident %s", models.ErrDuplicateID, inc.ID)
	}
	e := &entry{inc: inc}
	q.byID[inc.ID] = e
	heap.Push(&q.ordered, e)
	return nil
}

// PeekHighestPriority returns the next incident to dispatch without
// removing it.
func (q *Queue) PeekHighestPriority() (models.Incident, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ordered.Len() == 0 {
		return models.Incident{}, false
	}
	return q.ordered[0].inc, true
}

// DequeueForAssignment transitions an incident OPEN -> ASSIGNED and removes
// it from the dispatch order. A stale attempt (incident cancelled or already
// assigned) fails with ErrAlreadyHandled.
func (q *Queue) DequeueForAssignment(id string) (models.Incident, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.byID[id]
	if !ok {
		return models.Incident{}, fmt.Errorf("%w: incident %s", models.ErrNotFound, id)
	}
	if e.inc.Status != models.IncidentOpen {
		return models.Incident{}, fmt.Errorf("%w: incident %s is %s", models.ErrAlreadyHandled, id, e.inc.Status)
	}
	e.inc.Status = models.IncidentAssigned
	heap.Remove(&q.ordered, e.index)
	return e.inc, nil
}

// Escalate raises an OPEN incident's severity and re-evaluates its dispatch
// order under the same identity.
func (q *Queue) Escalate(id string, severity models.Severity) error {
	if !severity.Valid() {
		return fmt.Errorf("%w: severity %d", models.ErrInvalidSeverity, int(severity))
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.byID[id]
	if !ok {
		return fmt.Errorf("%w: incident %s", models.ErrNotFound, id)
	}
	if e.inc.Status != models.IncidentOpen {
		return fmt.Errorf("%w: incident %s is %s", models.ErrAlreadyHandled, id, e.inc.Status)
	}
	if severity <= e.inc.Severity {
		return fmt.Errorf("incident %s already at %s, cannot escalate to %s", id, e.inc.Severity, severity)
	}
	e.inc.Severity = severity
	heap.Fix(&q.ordered, e.index)
	return nil
}

// Resolve closes an ASSIGNED incident.
func (q *Queue) Resolve(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.byID[id]
	if !ok {
		return fmt.Errorf("%w: incident %s", models.ErrNotFound, id)
	}
	return e.inc.Transition(models.IncidentResolved)
}

// Cancel transitions an OPEN or ASSIGNED incident to CANCELLED and reports
// the status it held before, so the caller can release any bound unit.
func (q *Queue) Cancel(id string) (models.IncidentStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.byID[id]
	if !ok {
		return "", fmt.Errorf("%w: incident %s", models.ErrNotFound, id)
	}
	prev := e.inc.Status
	if err := e.inc.Transition(models.IncidentCancelled); err != nil {
		return prev, err
	}
	if prev == models.IncidentOpen {
		heap.Remove(&q.ordered, e.index)
	}
	return prev, nil
}

func (q *Queue) Get(id string) (models.Incident, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.byID[id]
	if !ok {
		return models.Incident{}, fmt.Errorf("%w: incident %s", models.ErrNotFound, id)
	}
	return e.inc, nil
}

// OpenIncidents returns a snapshot of OPEN incidents in dispatch order.
func (q *Queue) OpenIncidents() []models.Incident {
	q.mu.Lock()
	snapshot := make([]models.Incident, 0, q.ordered.Len())
	for _, e := range q.ordered {
		snapshot = append(snapshot, e.inc)
	}
	q.mu.Unlock()

	// The heap slice is only partially ordered; sort the copy.
	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].PriorityBefore(&snapshot[j])
	})
	return snapshot
}

// Depths reports the number of OPEN incidents per severity.
func (q *Queue) Depths() map[models.Severity]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	depths := make(map[models.Severity]int, 4)
	for _, e := range q.ordered {
		depths[e.inc.Severity]++
	}
	return depths
}

// entryHeap implements heap.Interface over dispatch priority.
type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	return h[i].inc.PriorityBefore(&h[j].inc)
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
