package probe

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strconv"
	"strings"
	"time"

	ghost "github.com/shirou/gopsutil/v3/host"
)

// runCommand executes name with args and returns combined stdout. A
// missing binary is reported as OutcomeUnavailable, never as an empty
// result — callers must not confuse "tool absent" with "tool ran, no
// rows".
func runCommand(ctx context.Context, probeID, source, name string, args ...string) ([]byte, *Result) {
	path, err := exec.LookPath(name)
	if err != nil {
		return nil, &Result{ProbeID: probeID, Outcome: OutcomeUnavailable, Source: source, Err: err}
	}

	cmd := exec.CommandContext(ctx, path, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, &Result{ProbeID: probeID, Outcome: OutcomeTimeout, Source: source, Err: ctx.Err()}
		}
		return nil, &Result{ProbeID: probeID, Outcome: OutcomeUnavailable, Source: source, Err: err}
	}
	return out.Bytes(), nil
}

// SensorsProbe reports hardware temperature sensors. It prefers gopsutil's
// in-process sysfs/hwmon walk over shelling out to lm-sensors so a missing
// "sensors" binary never masks a readable thermal zone.
type SensorsProbe struct{}

func NewSensorsProbe() *SensorsProbe { return &SensorsProbe{} }

func (p *SensorsProbe) ID() string             { return "sensors.temperature" }
func (p *SensorsProbe) Timeout() time.Duration { return 3 * time.Second }

func (p *SensorsProbe) Run(ctx context.Context) Result {
	temps, err := ghost.SensorsTemperaturesWithContext(ctx)
	if err != nil && len(temps) == 0 {
		return Result{ProbeID: p.ID(), Outcome: OutcomeUnavailable, Source: "gopsutil/host (sysfs hwmon)", Err: err}
	}
	readings := make([]SensorReading, 0, len(temps))
	for _, t := range temps {
		if t.Temperature == 0 {
			readings = append(readings, SensorReading{SensorKey: t.SensorKey})
			continue
		}
		c := t.Temperature
		readings = append(readings, SensorReading{SensorKey: t.SensorKey, CelsiusC: &c})
	}
	if len(readings) == 0 {
		return Result{ProbeID: p.ID(), Outcome: OutcomeUnavailable, Source: "gopsutil/host (sysfs hwmon)"}
	}
	return Result{ProbeID: p.ID(), Outcome: OutcomeOK, Source: "gopsutil/host (sysfs hwmon)", Data: readings}
}

// PackagesProbe lists installed pacman packages with their versions by
// parsing `pacman -Q` output (one "name version" pair per line).
type PackagesProbe struct{}

func NewPackagesProbe() *PackagesProbe { return &PackagesProbe{} }

func (p *PackagesProbe) ID() string             { return "packages.list" }
func (p *PackagesProbe) Timeout() time.Duration { return 10 * time.Second }

func (p *PackagesProbe) Run(ctx context.Context) Result {
	out, failed := runCommand(ctx, p.ID(), "pacman -Q", "pacman", "-Q")
	if failed != nil {
		return *failed
	}

	var pkgs []PackageEntry
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			continue
		}
		pkgs = append(pkgs, PackageEntry{Name: fields[0], Version: fields[1]})
	}
	if len(pkgs) == 0 {
		return Result{ProbeID: p.ID(), Outcome: OutcomeParseError, Source: "pacman -Q", Err: errors.New("no package lines parsed")}
	}
	return Result{ProbeID: p.ID(), Outcome: OutcomeOK, Source: "pacman -Q", Data: pkgs}
}

// ServiceStatusProbe reports systemd unit active/enabled state via
// `systemctl is-active` / `is-enabled`. It never infers a desired state —
// the caller passes the unit name.
type ServiceStatusProbe struct {
	units     []string
	userScope bool
}

func NewServiceStatusProbe(units ...string) *ServiceStatusProbe {
	return &ServiceStatusProbe{units: units}
}

func (p *ServiceStatusProbe) ID() string             { return "service.status" }
func (p *ServiceStatusProbe) Timeout() time.Duration { return 5 * time.Second }

func (p *ServiceStatusProbe) Run(ctx context.Context) Result {
	if len(p.units) == 0 {
		return Result{ProbeID: p.ID(), Outcome: OutcomeOK, Source: "systemctl", Data: []ServiceState{}}
	}

	states := make([]ServiceState, 0, len(p.units))
	for _, unit := range p.units {
		args := []string{"is-active", unit}
		if p.userScope {
			args = append([]string{"--user"}, args...)
		}
		activeOut, failed := runCommand(ctx, p.ID(), "systemctl is-active", "systemctl", args...)
		if failed != nil && failed.Outcome == OutcomeTimeout {
			return *failed
		}
		active := failed == nil && strings.TrimSpace(string(activeOut)) == "active"

		enabledArgs := []string{"is-enabled", unit}
		if p.userScope {
			enabledArgs = append([]string{"--user"}, enabledArgs...)
		}
		enabledOut, _ := runCommand(ctx, p.ID(), "systemctl is-enabled", "systemctl", enabledArgs...)
		enabled := enabledOut != nil && strings.TrimSpace(string(enabledOut)) == "enabled"

		states = append(states, ServiceState{Name: unit, Active: active, Enabled: enabled, UserScope: p.userScope})
	}
	return Result{ProbeID: p.ID(), Outcome: OutcomeOK, Source: "systemctl", Data: states}
}

// WifiProbe reports wireless interface SSID and signal strength via
// `iw dev <iface> link`. A driver that does not report signal leaves
// SignalDBM nil rather than synthesizing a value.
type WifiProbe struct{}

func NewWifiProbe() *WifiProbe { return &WifiProbe{} }

func (p *WifiProbe) ID() string             { return "net.wifi" }
func (p *WifiProbe) Timeout() time.Duration { return 5 * time.Second }

func (p *WifiProbe) Run(ctx context.Context) Result {
	listOut, failed := runCommand(ctx, p.ID(), "iw dev", "iw", "dev")
	if failed != nil {
		return *failed
	}

	var ifaces []string
	scanner := bufio.NewScanner(bytes.NewReader(listOut))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "Interface ") {
			ifaces = append(ifaces, strings.TrimPrefix(line, "Interface "))
		}
	}
	if len(ifaces) == 0 {
		return Result{ProbeID: p.ID(), Outcome: OutcomeOK, Source: "iw dev", Data: []WifiInterface{}}
	}

	out := make([]WifiInterface, 0, len(ifaces))
	for _, iface := range ifaces {
		linkOut, failed := runCommand(ctx, p.ID(), "iw dev link", "iw", "dev", iface, "link")
		wi := WifiInterface{Name: iface}
		if failed == nil {
			wi.SSID = parseIWField(string(linkOut), "SSID: ")
			if sig := parseIWField(string(linkOut), "signal: "); sig != nil {
				if dbm, err := strconv.Atoi(strings.Fields(*sig)[0]); err == nil {
					wi.SignalDBM = &dbm
				}
			}
		}
		out = append(out, wi)
	}
	return Result{ProbeID: p.ID(), Outcome: OutcomeOK, Source: "iw dev", Data: out}
}

func parseIWField(output, prefix string) *string {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, prefix) {
			v := strings.TrimPrefix(line, prefix)
			return &v
		}
	}
	return nil
}

// USBProbe enumerates connected USB devices via `lsusb`.
type USBProbe struct{}

func NewUSBProbe() *USBProbe { return &USBProbe{} }

func (p *USBProbe) ID() string             { return "peripherals.usb" }
func (p *USBProbe) Timeout() time.Duration { return 5 * time.Second }

func (p *USBProbe) Run(ctx context.Context) Result {
	out, failed := runCommand(ctx, p.ID(), "lsusb", "lsusb")
	if failed != nil {
		return *failed
	}

	var devices []USBDevice
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		idIdx := strings.Index(line, "ID ")
		if idIdx < 0 || idIdx+3+9 > len(line) {
			continue
		}
		idPair := line[idIdx+3 : idIdx+3+9]
		parts := strings.SplitN(idPair, ":", 2)
		if len(parts) != 2 {
			continue
		}
		desc := strings.TrimSpace(line[idIdx+3+9:])
		devices = append(devices, USBDevice{VendorID: parts[0], ProductID: parts[1], Descriptor: desc})
	}
	return Result{ProbeID: p.ID(), Outcome: OutcomeOK, Source: "lsusb", Data: devices}
}

// BluetoothProbe enumerates paired/visible Bluetooth devices via
// `bluetoothctl devices`.
type BluetoothProbe struct{}

func NewBluetoothProbe() *BluetoothProbe { return &BluetoothProbe{} }

func (p *BluetoothProbe) ID() string             { return "peripherals.bluetooth" }
func (p *BluetoothProbe) Timeout() time.Duration { return 5 * time.Second }

func (p *BluetoothProbe) Run(ctx context.Context) Result {
	out, failed := runCommand(ctx, p.ID(), "bluetoothctl devices", "bluetoothctl", "devices")
	if failed != nil {
		return *failed
	}

	var devices []BluetoothDevice
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.SplitN(scanner.Text(), " ", 3)
		if len(fields) != 3 || fields[0] != "Device" {
			continue
		}
		devices = append(devices, BluetoothDevice{Address: fields[1], Name: fields[2], Paired: true})
	}
	return Result{ProbeID: p.ID(), Outcome: OutcomeOK, Source: "bluetoothctl devices", Data: devices}
}

// StorageDevicesProbe enumerates block devices via `lsblk -P`, which emits
// one line of quoted key="value" pairs per device — easier to parse
// reliably than the default column output.
type StorageDevicesProbe struct{}

func NewStorageDevicesProbe() *StorageDevicesProbe { return &StorageDevicesProbe{} }

func (p *StorageDevicesProbe) ID() string             { return "storage.devices" }
func (p *StorageDevicesProbe) Timeout() time.Duration { return 5 * time.Second }

func (p *StorageDevicesProbe) Run(ctx context.Context) Result {
	out, failed := runCommand(ctx, p.ID(), "lsblk -P", "lsblk", "-b", "-P", "-o", "NAME,SIZE,TYPE,MOUNTPOINT,FSTYPE")
	if failed != nil {
		return *failed
	}

	var devices []BlockDevice
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := parseLsblkPairs(scanner.Text())
		if fields["NAME"] == "" {
			continue
		}
		sizeBytes, _ := strconv.ParseUint(fields["SIZE"], 10, 64)
		devices = append(devices, BlockDevice{
			Name:       fields["NAME"],
			SizeBytes:  sizeBytes,
			Type:       fields["TYPE"],
			Mountpoint: fields["MOUNTPOINT"],
			FSType:     fields["FSTYPE"],
		})
	}
	if len(devices) == 0 {
		return Result{ProbeID: p.ID(), Outcome: OutcomeParseError, Source: "lsblk -P", Err: errors.New("no block devices parsed")}
	}
	return Result{ProbeID: p.ID(), Outcome: OutcomeOK, Source: "lsblk -P", Data: devices}
}

// parseLsblkPairs parses a line of `KEY="value" KEY2="value2"` pairs as
// emitted by `lsblk -P`.
func parseLsblkPairs(line string) map[string]string {
	out := make(map[string]string)
	for len(line) > 0 {
		eq := strings.Index(line, "=")
		if eq < 0 {
			break
		}
		key := strings.TrimSpace(line[:eq])
		rest := line[eq+1:]
		if len(rest) == 0 || rest[0] != '"' {
			break
		}
		rest = rest[1:]
		end := strings.Index(rest, "\"")
		if end < 0 {
			break
		}
		out[key] = rest[:end]
		line = strings.TrimSpace(rest[end+1:])
	}
	return out
}

// InstalledToolProbe checks whether a named binary exists on PATH. It is
// parameterized per query rather than registered once — the router
// constructs one per installed-tool-check query with the tool name filled
// in.
type InstalledToolProbe struct {
	tool string
}

func NewInstalledToolProbe(tool ...string) *InstalledToolProbe {
	t := ""
	if len(tool) > 0 {
		t = tool[0]
	}
	return &InstalledToolProbe{tool: t}
}

func (p *InstalledToolProbe) ID() string             { return "tool.presence" }
func (p *InstalledToolProbe) Timeout() time.Duration { return 2 * time.Second }

func (p *InstalledToolProbe) Run(ctx context.Context) Result {
	if p.tool == "" {
		return Result{ProbeID: p.ID(), Outcome: OutcomeParseError, Source: "exec.LookPath", Err: errors.New("no tool name supplied")}
	}
	path, err := exec.LookPath(p.tool)
	if err != nil {
		return Result{ProbeID: p.ID(), Outcome: OutcomeOK, Source: "exec.LookPath", Data: ToolPresence{Tool: p.tool, Present: false}}
	}
	return Result{ProbeID: p.ID(), Outcome: OutcomeOK, Source: "exec.LookPath", Data: ToolPresence{Tool: p.tool, Present: true, Path: path}}
}
