// internal/engine/helpers_test.go
package engine_test

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/dangerclosesec/rbacsync/internal/backend"
	"github.com/dangerclosesec/rbacsync/internal/model"
)

// fakeEntity lets resolver tests construct dependency shapes the real
// entity model cannot produce, e.g. cycles.
type fakeEntity struct {
	kind model.Kind
	key  string
	deps []model.Ref
}

func (f fakeEntity) Kind() model.Kind             { return f.kind }
func (f fakeEntity) IdentityKey() string          { return f.key }
func (f fakeEntity) Ref() model.Ref               { return model.Ref{Kind: f.kind, Key: f.key} }
func (f fakeEntity) DependencyRefs() []model.Ref  { return f.deps }
func (f fakeEntity) Attributes() map[string]any   { return nil }

// fakeAdapter is an in-memory backend with scripted failures. It
// records every mutation in order so tests can assert execution
// order.
type fakeAdapter struct {
	mu        sync.Mutex
	state     map[model.Kind]map[string]model.Entity
	executed  []string
	transient map[string]int
	permanent map[string]error
	fetchErr  map[model.Kind]error
}

func newFakeAdapter(seed ...model.Entity) *fakeAdapter {
	f := &fakeAdapter{
		state:     make(map[model.Kind]map[string]model.Entity),
		transient: make(map[string]int),
		permanent: make(map[string]error),
		fetchErr:  make(map[model.Kind]error),
	}
	for _, e := range seed {
		f.put(e)
	}
	return f
}

func (f *fakeAdapter) put(e model.Entity) {
	if f.state[e.Kind()] == nil {
		f.state[e.Kind()] = make(map[string]model.Entity)
	}
	f.state[e.Kind()][e.IdentityKey()] = e
}

// failTransient makes the next n attempts of the given operation fail
// with a retryable error.
func (f *fakeAdapter) failTransient(opKey string, n int) {
	f.transient[opKey] = n
}

// failPermanent makes every attempt of the given operation fail with
// a non-retryable error.
func (f *fakeAdapter) failPermanent(opKey string, err error) {
	f.permanent[opKey] = backend.Permanent(opKey, err)
}

func (f *fakeAdapter) failFetch(kind model.Kind, err error) {
	f.fetchErr[kind] = err
}

func (f *fakeAdapter) fail(opKey string) error {
	if err, ok := f.permanent[opKey]; ok {
		return err
	}
	if n := f.transient[opKey]; n > 0 {
		f.transient[opKey] = n - 1
		return backend.Transient(opKey, errors.New("connection timed out"))
	}
	return nil
}

func (f *fakeAdapter) FetchAll(_ context.Context, kind model.Kind) ([]model.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fetchErr[kind]; err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(f.state[kind]))
	for key := range f.state[kind] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]model.Entity, 0, len(keys))
	for _, key := range keys {
		out = append(out, f.state[kind][key])
	}
	return out, nil
}

func (f *fakeAdapter) Create(_ context.Context, e model.Entity) (model.Entity, error) {
	opKey := "create " + e.Ref().String()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = append(f.executed, opKey)
	if err := f.fail(opKey); err != nil {
		return nil, err
	}
	f.put(e)
	return e, nil
}

func (f *fakeAdapter) Update(_ context.Context, e model.Entity) error {
	opKey := "update " + e.Ref().String()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = append(f.executed, opKey)
	if err := f.fail(opKey); err != nil {
		return err
	}
	f.put(e)
	return nil
}

func (f *fakeAdapter) Delete(_ context.Context, ref model.Ref) error {
	opKey := "delete " + ref.String()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = append(f.executed, opKey)
	if err := f.fail(opKey); err != nil {
		return err
	}
	delete(f.state[ref.Kind], ref.Key)
	return nil
}

// indexOf returns the position of an executed operation, or -1.
func (f *fakeAdapter) indexOf(opKey string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, got := range f.executed {
		if got == opKey {
			return i
		}
	}
	return -1
}

func (f *fakeAdapter) executedOps() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.executed))
	copy(out, f.executed)
	return out
}
