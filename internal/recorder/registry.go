package recorder

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps camera IDs to their managed process. The supervisor
// goroutine is the only writer; the lock lets other goroutines take
// consistent snapshots.
type Registry struct {
	mu sync.RWMutex
	m  map[string]*ManagedProcess
}

func NewRegistry() *Registry {
	return &Registry{m: make(map[string]*ManagedProcess)}
}

// Put registers mp. Camera IDs are unique.
func (r *Registry) Put(mp *ManagedProcess) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[mp.CameraID]; ok {
		return fmt.Errorf("camera %s already registered", mp.CameraID)
	}
	r.m[mp.CameraID] = mp
	return nil
}

func (r *Registry) Get(cameraID string) (*ManagedProcess, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mp, ok := r.m[cameraID]
	return mp, ok
}

// Remove drops the entry. Callers only remove reaped processes.
func (r *Registry) Remove(cameraID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[cameraID]; !ok {
		return false
	}
	delete(r.m, cameraID)
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.m)
}

// List returns the entries sorted by camera ID.
func (r *Registry) List() []*ManagedProcess {
	r.mu.RLock()
	out := make([]*ManagedProcess, 0, len(r.m))
	for _, mp := range r.m {
		out = append(out, mp)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CameraID < out[j].CameraID })
	return out
}
