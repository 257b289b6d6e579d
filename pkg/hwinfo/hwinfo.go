// Package hwinfo collects raw hardware signals from the running
// machine. Every probe degrades to a defined zero value when the
// underlying interface is missing, unreadable, or permission-denied;
// "missing" is data for the classifier, never an error.
package hwinfo

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Snapshot holds the raw observations for one detection pass. Fields
// are unparsed strings exactly as the OS reported them.
type Snapshot struct {
	CPUVendorID  string   // vendor_id from /proc/cpuinfo, "" if unreadable
	Controllers  []string // lspci display/3D/VGA controller lines
	PCIDevices   []string // all lspci lines
	ChassisType  string   // SMBIOS chassis type, numeric code or name
	Manufacturer string   // DMI sys_vendor
	ProductName  string   // DMI product_name
	HasBattery   bool
	Locale       string   // $LC_ALL / $LANG, "" if unset
	InputDevices string   // /proc/bus/input/devices contents
	USBDevices   []string // lsusb output lines
	FanInterface bool     // vendor fan-control kernel interface present
}

// Runner executes an external probe command and returns its combined
// output. Injectable so tests feed canned data.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Collector reads hardware signals from sysfs, procfs, and probe
// commands. The zero value is not usable; call New.
type Collector struct {
	root    string // prefix for absolute paths, "" in production
	run     Runner
	getenv  func(string) string
	timeout time.Duration
}

// Option adjusts a Collector, primarily for tests.
type Option func(*Collector)

// WithRoot prefixes every filesystem probe with dir, letting tests
// point the collector at a fixture tree.
func WithRoot(dir string) Option {
	return func(c *Collector) { c.root = dir }
}

// WithRunner substitutes the command runner.
func WithRunner(r Runner) Option {
	return func(c *Collector) { c.run = r }
}

// WithEnv substitutes the environment lookup.
func WithEnv(getenv func(string) string) Option {
	return func(c *Collector) { c.getenv = getenv }
}

// New returns a Collector probing the live system unless options
// redirect it.
func New(opts ...Option) *Collector {
	c := &Collector{
		run:     execRunner,
		getenv:  os.Getenv,
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect gathers every signal. Individual probe failures leave the
// corresponding field at its zero value; Collect itself never fails.
func (c *Collector) Collect(ctx context.Context) Snapshot {
	pci := c.PCIDevices(ctx)
	return Snapshot{
		CPUVendorID:  c.CPUVendorID(),
		Controllers:  FilterDisplayControllers(pci),
		PCIDevices:   pci,
		ChassisType:  c.ChassisType(),
		Manufacturer: c.SystemManufacturer(),
		ProductName:  c.SystemProductName(),
		HasBattery:   c.HasBattery(),
		Locale:       c.Locale(),
		InputDevices: c.InputDevices(),
		USBDevices:   c.USBDevices(ctx),
		FanInterface: c.HasFanInterface(),
	}
}

// CPUVendorID returns the vendor_id of the first core listed in
// /proc/cpuinfo, or "" if the file is unreadable or has no such line.
func (c *Collector) CPUVendorID() string {
	data, err := os.ReadFile(c.path("/proc/cpuinfo"))
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if strings.TrimSpace(key) == "vendor_id" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// PCIDevices returns every lspci output line. Empty on any failure.
func (c *Collector) PCIDevices(ctx context.Context) []string {
	out, err := c.probe(ctx, "lspci")
	if err != nil {
		return nil
	}
	var devices []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			devices = append(devices, line)
		}
	}
	return devices
}

// FilterDisplayControllers selects the PCI lines describing VGA, 3D,
// and display controllers.
func FilterDisplayControllers(pci []string) []string {
	var controllers []string
	for _, line := range pci {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "vga compatible controller") ||
			strings.Contains(lower, "3d controller") ||
			strings.Contains(lower, "display controller") {
			controllers = append(controllers, line)
		}
	}
	return controllers
}

// ChassisType reads the SMBIOS chassis type. Depending on kernel and
// firmware this is a numeric code; hostnamectl-style names are also
// seen when the value comes from other tooling.
func (c *Collector) ChassisType() string {
	return c.readSysFile("/sys/class/dmi/id/chassis_type")
}

// SystemManufacturer reads the DMI system vendor string.
func (c *Collector) SystemManufacturer() string {
	return c.readSysFile("/sys/class/dmi/id/sys_vendor")
}

// SystemProductName reads the DMI product name string.
func (c *Collector) SystemProductName() string {
	return c.readSysFile("/sys/class/dmi/id/product_name")
}

// HasBattery reports whether any BAT* power supply is registered. Used
// as the platform fallback when chassis reporting is absent.
func (c *Collector) HasBattery() bool {
	entries, err := os.ReadDir(c.path("/sys/class/power_supply"))
	if err != nil {
		return false
	}
	for _, e := range entries {
		if strings.HasPrefix(strings.ToUpper(e.Name()), "BAT") {
			return true
		}
	}
	return false
}

// Locale returns the best-effort region hint from the environment.
func (c *Collector) Locale() string {
	if v := c.getenv("LC_ALL"); v != "" {
		return v
	}
	return c.getenv("LANG")
}

// InputDevices returns the raw contents of /proc/bus/input/devices.
func (c *Collector) InputDevices() string {
	data, err := os.ReadFile(c.path("/proc/bus/input/devices"))
	if err != nil {
		return ""
	}
	return string(data)
}

// USBDevices returns lsusb output lines, empty on failure.
func (c *Collector) USBDevices(ctx context.Context) []string {
	out, err := c.probe(ctx, "lsusb")
	if err != nil {
		return nil
	}
	var devices []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			devices = append(devices, line)
		}
	}
	return devices
}

// HasFanInterface reports whether the thinkpad_acpi fan control file
// is present.
func (c *Collector) HasFanInterface() bool {
	_, err := os.Stat(c.path("/proc/acpi/ibm/fan"))
	return err == nil
}

func (c *Collector) probe(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.run(ctx, name, args...)
}

func (c *Collector) readSysFile(p string) string {
	data, err := os.ReadFile(c.path(p))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (c *Collector) path(p string) string {
	if c.root == "" {
		return p
	}
	return filepath.Join(c.root, p)
}
