package transform

import (
	"sync"
	"time"

	"github.com/dunamismax/imaginify/internal/debounce"
	"github.com/dunamismax/imaginify/internal/domain"
)

// DefaultQuietWindow is how long field edits must pause before they are
// written into the pending set.
const DefaultQuietWindow = time.Second

type leafPath struct {
	kind  domain.TransformationType
	param string
}

type stagedEdit struct {
	seq   uint64
	value string
}

// Reconciler accumulates edits to one transformation kind and merges them
// into the committed configuration on Apply.
//
// Field edits are staged per leaf with a sequence number and written into the
// pending set by a debounced flush. Seeding the pending set also takes a
// sequence number; staged edits older than the latest seed are discarded, so
// ordering is decided by sequence and never by timer delivery. Apply flushes
// whatever is still staged before merging.
type Reconciler struct {
	kind     domain.TransformationType
	debounce *debounce.Debouncer

	mu        sync.Mutex
	pending   domain.Transformations
	committed *domain.Transformations
	staged    map[leafPath]stagedEdit
	seq       uint64
	seededAt  uint64
}

func NewReconciler(kind domain.TransformationType, committed *domain.Transformations, quiet time.Duration) *Reconciler {
	r := &Reconciler{
		kind:     kind,
		debounce: debounce.New(quiet),
		staged:   make(map[leafPath]stagedEdit),
	}
	if committed != nil {
		c := committed.Clone()
		r.committed = &c
	}
	return r
}

func (r *Reconciler) Kind() domain.TransformationType {
	return r.kind
}

// UpdateField stages a keystroke-level edit. The path is checked against the
// schema immediately; the write itself lands after the quiet window.
func (r *Reconciler) UpdateField(field, value string) error {
	path := leafPath{kind: KindForField(r.kind, field), param: ParamForField(field)}
	var scratch domain.Transformations
	if err := SetParam(&scratch, path.kind, path.param, value); err != nil {
		return err
	}

	r.mu.Lock()
	r.seq++
	r.staged[path] = stagedEdit{seq: r.seq, value: value}
	r.mu.Unlock()

	r.debounce.Do(r.flushStaged)
	return nil
}

// SelectAspectRatio resolves key against the aspect ratio table and seeds the
// pending set with the kind's full default configuration.
func (r *Reconciler) SelectAspectRatio(key string) (domain.AspectRatioOption, error) {
	opt, err := domain.LookupAspectRatio(key)
	if err != nil {
		return domain.AspectRatioOption{}, err
	}
	r.SeedDefaults()
	return opt, nil
}

// SeedDefaults replaces the pending set with the kind's default
// configuration.
func (r *Reconciler) SeedDefaults() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	r.seededAt = r.seq
	r.pending = r.kind.DefaultConfig()
	clear(r.staged)
}

// Apply merges the pending set into the committed configuration, clears the
// pending set and returns the new committed configuration.
func (r *Reconciler) Apply() domain.Transformations {
	merged, _ := r.ApplyIf(nil)
	return merged
}

// ApplyIf is Apply guarded by accept. accept sees the merged configuration
// before it is committed; when it returns an error the committed
// configuration is unchanged and the pending set keeps every edit, staged
// ones included.
func (r *Reconciler) ApplyIf(accept func(domain.Transformations) error) (domain.Transformations, error) {
	r.debounce.Cancel()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.flushStagedLocked()
	merged := Merge(r.pending, r.committed)
	if accept != nil {
		if err := accept(merged.Clone()); err != nil {
			return domain.Transformations{}, err
		}
	}
	r.committed = &merged
	r.pending = domain.Transformations{}
	return merged.Clone(), nil
}

func (r *Reconciler) Pending() domain.Transformations {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending.Clone()
}

// Committed returns the committed configuration, or nil before the first
// Apply when none was loaded.
func (r *Reconciler) Committed() *domain.Transformations {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.committed == nil {
		return nil
	}
	c := r.committed.Clone()
	return &c
}

// HasStaged reports whether edits are waiting for the quiet window.
func (r *Reconciler) HasStaged() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.staged) > 0
}

func (r *Reconciler) Close() {
	r.debounce.Stop()
}

func (r *Reconciler) flushStaged() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushStagedLocked()
}

func (r *Reconciler) flushStagedLocked() {
	for path, edit := range r.staged {
		if edit.seq < r.seededAt {
			continue
		}
		// Paths were validated when staged.
		_ = SetParam(&r.pending, path.kind, path.param, edit.value)
	}
	clear(r.staged)
}
