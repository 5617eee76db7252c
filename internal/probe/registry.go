package probe

import (
	"context"
	"sync"
)

// Registry holds every known probe, keyed by ID.
type Registry struct {
	probes map[string]Probe
	mu     sync.RWMutex
}

// NewRegistry returns a registry pre-populated with every built-in probe.
func NewRegistry() *Registry {
	r := &Registry{probes: make(map[string]Probe)}

	r.Register(NewCPUInfoProbe())
	r.Register(NewCPUUsageProbe())
	r.Register(NewMemoryProbe())
	r.Register(NewDiskUsageProbe("/"))
	r.Register(NewNetworkInterfacesProbe())
	r.Register(NewTopProcessesProbe())
	r.Register(NewHostInfoProbe())
	r.Register(NewSensorsProbe())
	r.Register(NewPackagesProbe())
	r.Register(NewServiceStatusProbe())
	r.Register(NewWifiProbe())
	r.Register(NewUSBProbe())
	r.Register(NewBluetoothProbe())
	r.Register(NewInstalledToolProbe())
	r.Register(NewStorageDevicesProbe())
	r.Register(NewFilesystemsProbe())

	return r
}

// Register adds or replaces a probe by its ID.
func (r *Registry) Register(p Probe) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.probes[p.ID()] = p
}

// Get returns the probe registered under id, if any.
func (r *Registry) Get(id string) (Probe, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.probes[id]
	return p, ok
}

// RunOne runs a single probe by ID. It returns OutcomeUnavailable if no
// probe is registered under that ID.
func (r *Registry) RunOne(ctx context.Context, id string) Result {
	p, ok := r.Get(id)
	if !ok {
		return Result{ProbeID: id, Outcome: OutcomeUnavailable, Err: ErrUnknownProbe}
	}
	return runWithTimeout(ctx, id, p.Timeout(), p.Run)
}

// RunMany runs each named probe concurrently and returns one Result per ID,
// in the same order as ids. Each probe call is independent: a slow or
// timed-out probe never blocks the others.
func (r *Registry) RunMany(ctx context.Context, ids []string) []Result {
	results := make([]Result, len(ids))

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			results[i] = r.RunOne(ctx, id)
		}(i, id)
	}
	wg.Wait()

	return results
}

// ErrUnknownProbe is returned when RunOne is asked for an unregistered ID.
var ErrUnknownProbe = errUnknownProbe{}

type errUnknownProbe struct{}

func (errUnknownProbe) Error() string { return "probe: unknown probe id" }
