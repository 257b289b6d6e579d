package hwinfo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFixture(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const cpuinfoFixture = `processor	: 0
vendor_id	: GenuineIntel
cpu family	: 6
model name	: Intel(R) Core(TM) i7-2640M CPU @ 2.80GHz
processor	: 1
vendor_id	: GenuineIntel
`

func TestCPUVendorID(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "proc/cpuinfo", cpuinfoFixture)

	c := New(WithRoot(root))
	if got := c.CPUVendorID(); got != "GenuineIntel" {
		t.Fatalf("CPUVendorID() = %q, want GenuineIntel", got)
	}
}

func TestCPUVendorIDUnreadable(t *testing.T) {
	c := New(WithRoot(t.TempDir()))
	if got := c.CPUVendorID(); got != "" {
		t.Fatalf("CPUVendorID() = %q, want empty", got)
	}
}

func TestDMIReads(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "sys/class/dmi/id/chassis_type", "10\n")
	writeFixture(t, root, "sys/class/dmi/id/sys_vendor", "LENOVO\n")
	writeFixture(t, root, "sys/class/dmi/id/product_name", "ThinkPad T420s\n")

	c := New(WithRoot(root))
	if got := c.ChassisType(); got != "10" {
		t.Errorf("ChassisType() = %q", got)
	}
	if got := c.SystemManufacturer(); got != "LENOVO" {
		t.Errorf("SystemManufacturer() = %q", got)
	}
	if got := c.SystemProductName(); got != "ThinkPad T420s" {
		t.Errorf("SystemProductName() = %q", got)
	}
}

func TestHasBattery(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "sys/class/power_supply/AC/type", "Mains\n")
	c := New(WithRoot(root))
	if c.HasBattery() {
		t.Fatal("no battery expected")
	}

	writeFixture(t, root, "sys/class/power_supply/BAT0/type", "Battery\n")
	if !c.HasBattery() {
		t.Fatal("battery expected")
	}
}

const lspciFixture = `00:00.0 Host bridge: Intel Corporation 2nd Generation Core Processor Family DRAM Controller
00:02.0 VGA compatible controller: Intel Corporation 2nd Generation Core Processor Family Integrated Graphics Controller
01:00.0 3D controller: NVIDIA Corporation GF119M [NVS 4200M]
03:00.0 System peripheral: Intel Corporation Thunderbolt Controller
`

func TestPCIDevicesAndControllers(t *testing.T) {
	run := func(_ context.Context, name string, args ...string) ([]byte, error) {
		if name != "lspci" {
			return nil, errors.New("unexpected command " + name)
		}
		return []byte(lspciFixture), nil
	}
	c := New(WithRunner(run))
	pci := c.PCIDevices(context.Background())
	if len(pci) != 4 {
		t.Fatalf("PCIDevices() returned %d lines", len(pci))
	}

	controllers := FilterDisplayControllers(pci)
	want := []string{
		"00:02.0 VGA compatible controller: Intel Corporation 2nd Generation Core Processor Family Integrated Graphics Controller",
		"01:00.0 3D controller: NVIDIA Corporation GF119M [NVS 4200M]",
	}
	if !reflect.DeepEqual(controllers, want) {
		t.Fatalf("controllers = %v, want %v", controllers, want)
	}
}

func TestLocalePrecedence(t *testing.T) {
	env := map[string]string{"LC_ALL": "de_DE.UTF-8", "LANG": "en_US.UTF-8"}
	c := New(WithEnv(func(k string) string { return env[k] }))
	if got := c.Locale(); got != "de_DE.UTF-8" {
		t.Fatalf("Locale() = %q", got)
	}

	delete(env, "LC_ALL")
	if got := c.Locale(); got != "en_US.UTF-8" {
		t.Fatalf("Locale() = %q", got)
	}
}

func TestCollectDegradesGracefully(t *testing.T) {
	failing := func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("probe unavailable")
	}
	c := New(
		WithRoot(t.TempDir()),
		WithRunner(failing),
		WithEnv(func(string) string { return "" }),
	)
	s := c.Collect(context.Background())

	// Missing is data, not an error: every field holds its zero value.
	want := Snapshot{}
	if !reflect.DeepEqual(s, want) {
		t.Fatalf("Collect() = %+v, want zero snapshot", s)
	}
}

func TestFanInterface(t *testing.T) {
	root := t.TempDir()
	c := New(WithRoot(root))
	if c.HasFanInterface() {
		t.Fatal("fan interface not expected")
	}
	writeFixture(t, root, "proc/acpi/ibm/fan", "status: enabled\n")
	if !c.HasFanInterface() {
		t.Fatal("fan interface expected")
	}
}
