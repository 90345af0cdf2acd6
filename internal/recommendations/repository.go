package recommendations

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository persists recommendations and their feedback.
type Repository interface {
	// InsertBatch stores every rec or none of them, filling in ID and CreatedAt.
	InsertBatch(ctx context.Context, recs []Recommendation) error
	Get(ctx context.Context, id string) (*Recommendation, error)
	// Pending returns recommendations without a user action, newest first.
	Pending(ctx context.Context, sessionID string) ([]Recommendation, error)
	// SetAction records feedback. Re-setting overwrites the earlier action.
	SetAction(ctx context.Context, id string, action UserAction) (*Recommendation, error)
}

// InMemoryRepository keeps recommendations in process memory.
type InMemoryRepository struct {
	mu   sync.RWMutex
	recs map[string]*Recommendation
	seq  map[string]int
	next int
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		recs: make(map[string]*Recommendation),
		seq:  make(map[string]int),
	}
}

// InsertBatch validates the whole batch against the same constraints as the
// field_recommendations table before storing any of it.
func (r *InMemoryRepository) InsertBatch(ctx context.Context, recs []Recommendation) error {
	for i := range recs {
		if err := checkRow(&recs[i]); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range recs {
		if _, exists := r.recs[recs[i].ID]; exists && recs[i].ID != "" {
			return fmt.Errorf("%w: duplicate id %s", ErrInvalidRecommendation, recs[i].ID)
		}
	}
	now := time.Now().UTC()
	for i := range recs {
		rec := &recs[i]
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		stored := *rec
		r.recs[rec.ID] = &stored
		r.next++
		r.seq[rec.ID] = r.next
	}
	return nil
}

func checkRow(rec *Recommendation) error {
	switch {
	case rec.SessionID == "":
		return fmt.Errorf("%w: missing session id", ErrInvalidRecommendation)
	case !rec.Type.Valid():
		return fmt.Errorf("%w: type %q", ErrInvalidRecommendation, rec.Type)
	case rec.Confidence < 0 || rec.Confidence > 1:
		return fmt.Errorf("%w: confidence %v", ErrInvalidRecommendation, rec.Confidence)
	}
	return nil
}

// Get returns a copy of the stored recommendation.
func (r *InMemoryRepository) Get(ctx context.Context, id string) (*Recommendation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.recs[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *rec
	return &out, nil
}

// Pending returns unactioned recommendations for a session, newest first,
// breaking timestamp ties by insertion order.
func (r *InMemoryRepository) Pending(ctx context.Context, sessionID string) ([]Recommendation, error) {
	r.mu.RLock()
	out := []Recommendation{}
	for _, rec := range r.recs {
		if rec.SessionID == sessionID && rec.Pending() {
			out = append(out, *rec)
		}
	}
	seq := make(map[string]int, len(out))
	for _, rec := range out {
		seq[rec.ID] = r.seq[rec.ID]
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return seq[out[i].ID] > seq[out[j].ID]
	})
	return out, nil
}

// SetAction records the user's feedback and stamps actioned_at.
func (r *InMemoryRepository) SetAction(ctx context.Context, id string, action UserAction) (*Recommendation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[id]
	if !ok {
		return nil, ErrNotFound
	}
	now := time.Now().UTC()
	a := action
	rec.UserAction = &a
	rec.ActionedAt = &now
	out := *rec
	return &out, nil
}
