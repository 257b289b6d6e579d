// Package pkgset composes the ordered set of package groups to install
// for a classified machine and resolves group keys against a flat-file
// package-group store.
package pkgset

import (
	"context"
	"fmt"

	"github.com/lvnafir/agnosis-arch/pkg/profile"
)

// GroupKey names one package group in the store.
type GroupKey string

// Group keys composed by Resolve.
const (
	GroupBase              GroupKey = "base"
	GroupKernelStable      GroupKey = "kernel:stable"
	GroupKernelPerformance GroupKey = "kernel:performance"
	GroupCPUIntel          GroupKey = "cpu:intel"
	GroupCPUAMD            GroupKey = "cpu:amd"
	GroupGPUIntel          GroupKey = "gpu:intel"
	GroupGPUAMD            GroupKey = "gpu:amd"
	GroupGPUNvidia         GroupKey = "gpu:nvidia"
	GroupPlatformLaptop    GroupKey = "platform:laptop"
)

// KernelChoice selects the kernel variant group; the one
// operator-overridable axis of resolution.
type KernelChoice string

const (
	KernelStable      KernelChoice = "stable"
	KernelPerformance KernelChoice = "performance"
)

// ParseKernelChoice validates operator input for the kernel axis.
func ParseKernelChoice(s string) (KernelChoice, error) {
	switch KernelChoice(s) {
	case KernelStable, KernelPerformance:
		return KernelChoice(s), nil
	default:
		return "", fmt.Errorf("unknown kernel choice %q (want %q or %q)", s, KernelStable, KernelPerformance)
	}
}

// Group returns the package group key for the choice.
func (k KernelChoice) Group() GroupKey {
	if k == KernelPerformance {
		return GroupKernelPerformance
	}
	return GroupKernelStable
}

// Marker packages used to detect an already-installed kernel variant.
var kernelMarkers = map[KernelChoice]string{
	KernelStable:      "linux-lts",
	KernelPerformance: "linux-zen",
}

// InstalledFunc reports whether a package is already present locally.
type InstalledFunc func(ctx context.Context, pkg string) bool

// SelectKernel picks the kernel variant for this run. An explicit
// operator choice always wins. Without one, an already-installed
// variant's kernel package keeps that variant without prompting, so
// repeated runs stay idempotent; only when neither applies does
// choose() supply the preference.
func SelectKernel(ctx context.Context, explicit KernelChoice, installed InstalledFunc, choose func() KernelChoice) KernelChoice {
	if explicit != "" {
		return explicit
	}
	if installed != nil {
		for _, k := range []KernelChoice{KernelStable, KernelPerformance} {
			if installed(ctx, kernelMarkers[k]) {
				return k
			}
		}
	}
	return choose()
}

// Resolve composes the ordered group list for a profile. Composition
// is additive only, with no subtraction step, and the same profile and
// kernel choice always yields the same sequence.
func Resolve(p profile.Profile, kernel KernelChoice) []GroupKey {
	keys := []GroupKey{GroupBase, kernel.Group()}

	// No generic fallback group exists for an unknown CPU.
	switch p.CPUVendor {
	case profile.CPUIntel:
		keys = append(keys, GroupCPUIntel)
	case profile.CPUAMD:
		keys = append(keys, GroupCPUAMD)
	}

	// Hybrid configurations install the discrete vendor's drivers.
	switch p.GPUConfig.DiscreteVendor() {
	case profile.GPUIntel:
		keys = append(keys, GroupGPUIntel)
	case profile.GPUAMD:
		keys = append(keys, GroupGPUAMD)
	case profile.GPUNvidia:
		keys = append(keys, GroupGPUNvidia)
	}

	if p.Platform == profile.PlatformLaptop {
		keys = append(keys, GroupPlatformLaptop)
	}

	if p.OEMFamily != profile.OEMGeneric {
		keys = append(keys, OEMGroup(p.OEMFamily))
	}
	return keys
}

// OEMGroup returns the group key for a recognized OEM family.
func OEMGroup(f profile.OEMFamily) GroupKey {
	return GroupKey("oem:" + string(f))
}
