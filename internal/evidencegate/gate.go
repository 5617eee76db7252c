// Package evidencegate enforces the rule that Anna never answers from
// thin air: before any formatter (deterministic or specialist) runs, the
// gate confirms every probe a query class depends on actually produced
// evidence, triggering a synchronous on-demand domain refresh when it
// hasn't, and refusing to paper over a still-missing probe with a guess.
package evidencegate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/annaproj/annad/internal/domain"
	"github.com/annaproj/annad/internal/probe"
	"github.com/annaproj/annad/internal/router"
)

// probeDomain maps a spine probe ID to the refresh domain that produces
// it, for probes the domain engine caches. Probes absent from this map
// (process.top, net.wifi, tool.presence) are never domain-cached — the
// gate always re-runs them live since they carry no staleness concept.
var probeDomain = map[string]domain.Domain{
	"cpu.info":              domain.HwStatic,
	"memory.info":           domain.HwStatic,
	"host.info":             domain.HwStatic,
	"sensors.temperature":   domain.HwDynamic,
	"cpu.usage":             domain.HwDynamic,
	"packages.list":         domain.SwPackages,
	"service.status":        domain.SwServices,
	"net.interfaces":        domain.NetInterfaces,
	"peripherals.usb":       domain.PeripheralsUsb,
	"peripherals.bluetooth": domain.PeripheralsBt,
	"storage.devices":       domain.StorageDevices,
	"storage.filesystems":   domain.StorageFilesystems,
}

// Gate checks and, where possible, freshens the evidence a query class
// requires before any formatter is allowed to run.
type Gate struct {
	Registry *probe.Registry
	Engine   *domain.Engine
}

// New builds a Gate wired to a probe registry and the domain engine that
// backs on-demand refreshes.
func New(registry *probe.Registry, engine *domain.Engine) *Gate {
	return &Gate{Registry: registry, Engine: engine}
}

// Result is the outcome of one evidence check.
type Result struct {
	Satisfied                  bool
	CanAnswerDeterministically bool
	MissingProbes              []string
	ProbeResults               map[string]probe.Result
	InsufficientDataMsg        string
}

// Check verifies every spine probe required by class has fresh, non-error
// evidence, attempting a synchronous on-demand refresh for any that
// don't. target names the query's specific subject — a tool name for
// InstalledToolCheck, a unit name for ServiceStatus — and is ignored by
// every other class.
func (g *Gate) Check(ctx context.Context, class router.QueryClass, deadline time.Duration, target string) Result {
	cap := router.CapabilityFor(class)

	res := Result{
		CanAnswerDeterministically: cap.CanAnswerDeterministically,
		ProbeResults:               make(map[string]probe.Result),
	}

	if !cap.EvidenceRequired {
		res.Satisfied = true
		return res
	}

	spineProbes := cap.SpineProbes
	if class == router.InstalledToolCheck {
		spineProbes = router.SpineProbesForToolCheck(target)
	}
	if len(spineProbes) == 0 && class != router.GpuInfo {
		// GpuInfo intentionally has no probe backing it; every other empty
		// spine list here means the caller didn't supply what it needed to
		// (e.g. no tool name for InstalledToolCheck).
		res.Satisfied = false
		res.InsufficientDataMsg = insufficientDataMessage(class, nil)
		return res
	}

	deadlineAt := time.Now().Add(deadline)
	var missing []string

	for _, probeID := range spineProbes {
		result := g.runProbe(ctx, class, probeID, target)
		res.ProbeResults[probeID] = result
		if !result.OK() {
			missing = append(missing, probeID)
		}
	}

	if len(missing) > 0 {
		g.refreshMissing(ctx, missing, deadlineAt)
		var stillMissing []string
		for _, probeID := range missing {
			result := g.runProbe(ctx, class, probeID, target)
			res.ProbeResults[probeID] = result
			if !result.OK() {
				stillMissing = append(stillMissing, probeID)
			}
		}
		missing = stillMissing
	}

	if len(missing) > 0 {
		res.Satisfied = false
		res.MissingProbes = missing
		res.InsufficientDataMsg = insufficientDataMessage(class, missing)
		return res
	}

	res.Satisfied = true
	return res
}

// runProbe runs a single probe. The tool-presence and service-status
// probes are constructed fresh per query, parameterized on target, since
// the registry's registered instances carry no unit/tool name of their
// own (service.status with no units is a deliberate no-op per
// internal/probe/exec.go).
func (g *Gate) runProbe(ctx context.Context, class router.QueryClass, probeID, target string) probe.Result {
	if probeID == "tool.presence" || strings.HasPrefix(probeID, "tool.presence:") {
		return probe.NewInstalledToolProbe(target).Run(ctx)
	}
	if probeID == "service.status" && target != "" && (class == router.ServiceStatus) {
		return probe.NewServiceStatusProbe(target).Run(ctx)
	}
	return g.Registry.RunOne(ctx, probeID)
}

// refreshMissing triggers a synchronous on-demand domain refresh for
// every missing probe that a domain actually caches, bounded by
// deadlineAt. Probes with no backing domain (process.top, net.wifi) are
// simply re-run live by the caller on the next pass — there is nothing
// to refresh.
func (g *Gate) refreshMissing(ctx context.Context, missingProbes []string, deadlineAt time.Time) {
	if g.Engine == nil {
		return
	}

	domainSet := map[domain.Domain]bool{}
	for _, probeID := range missingProbes {
		if d, ok := probeDomain[probeID]; ok {
			domainSet[d] = true
		}
	}
	if len(domainSet) == 0 {
		return
	}

	var domains []domain.Domain
	for d := range domainSet {
		domains = append(domains, d)
	}
	sort.Slice(domains, func(i, j int) bool { return domains[i] < domains[j] })

	remaining := time.Until(deadlineAt)
	if remaining <= 0 {
		return
	}

	req := domain.NewRefreshRequest(0, "evidencegate.refresh", "", domains, remaining)
	g.Engine.HandleRequest(ctx, req)
}

// insufficientDataMessage builds the truthful "insufficient data" answer
// named in the spec: it names exactly the probes that are missing, never
// a guess at the underlying value.
func insufficientDataMessage(class router.QueryClass, missingProbes []string) string {
	subject := classSubject(class)
	if len(missingProbes) == 0 {
		return fmt.Sprintf("insufficient data to report %s (no evidence source available)", subject)
	}
	return fmt.Sprintf("insufficient data to report %s (%s unavailable)", subject, strings.Join(missingProbes, ", "))
}

// classSubject renders a human-readable subject phrase for a class, used
// only inside insufficient-data messages.
func classSubject(class router.QueryClass) string {
	switch class {
	case router.CpuTemp:
		return "CPU temperature"
	case router.GpuInfo:
		return "GPU information"
	case router.HardwareAudio:
		return "audio hardware"
	case router.InstalledToolCheck:
		return "tool installation status"
	default:
		return strings.ReplaceAll(string(class), "_", " ")
	}
}
