package provision

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lvnafir/agnosis-arch/pkg/profile"
	"github.com/lvnafir/agnosis-arch/pkg/render"
)

func TestSysfilePredicateMatches(t *testing.T) {
	hybrid := profile.Profile{
		CPUVendor: profile.CPUIntel,
		GPUConfig: profile.GPUHybridIntelNvidia,
		Platform:  profile.PlatformLaptop,
		OEMFamily: profile.OEMThinkPad,
		Features:  map[string]bool{profile.FeatureFanControl: true},
	}
	desktop := profile.Profile{
		CPUVendor: profile.CPUAMD,
		GPUConfig: profile.GPUAMD,
		Platform:  profile.PlatformDesktop,
		OEMFamily: profile.OEMGeneric,
	}

	tests := []struct {
		name string
		pred SysfilePredicate
		prof profile.Profile
		want bool
	}{
		{"empty matches anything", SysfilePredicate{}, desktop, true},
		{"gpu exact", SysfilePredicate{GPU: "amd"}, desktop, true},
		{"gpu mismatch", SysfilePredicate{GPU: "nvidia"}, desktop, false},
		{"gpu matches hybrid discrete vendor", SysfilePredicate{GPU: "nvidia"}, hybrid, true},
		{"intel condition skips hybrid", SysfilePredicate{GPU: "intel"}, hybrid, false},
		{"oem", SysfilePredicate{OEM: "thinkpad"}, hybrid, true},
		{"oem mismatch", SysfilePredicate{OEM: "thinkpad"}, desktop, false},
		{"platform", SysfilePredicate{Platform: "laptop"}, hybrid, true},
		{"feature", SysfilePredicate{Feature: profile.FeatureFanControl}, hybrid, true},
		{"feature absent", SysfilePredicate{Feature: profile.FeatureFanControl}, desktop, false},
		{"all fields must match", SysfilePredicate{GPU: "nvidia", Platform: "desktop"}, hybrid, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.pred.Matches(tt.prof))
		})
	}
}

func TestLoadSystemFilesEmbedded(t *testing.T) {
	files, err := LoadSystemFiles("")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	byName := map[string]SystemFile{}
	for _, f := range files {
		byName[f.Name] = f
		require.Equal(t, os.FileMode(0o644), os.FileMode(f.Mode), "%s: default mode", f.Name)
	}
	require.Contains(t, byName, "nvidia-drm")
	require.True(t, byName["nvidia-drm"].KernelModule)
	require.Equal(t, "nvidia", byName["nvidia-drm"].When.GPU)
	require.Contains(t, byName, "tlp-laptop")
	require.False(t, byName["tlp-laptop"].KernelModule)
	require.Equal(t, "laptop", byName["tlp-laptop"].When.Platform)
}

func TestLoadSystemFilesFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sysfiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
files:
  - name: custom
    template: amdgpu.conf.tmpl
    dest: /etc/modprobe.d/custom.conf
    mode: 0o600
    when: { gpu: amd }
`), 0o644))

	files, err := LoadSystemFiles(path)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "custom", files[0].Name)
	require.Equal(t, os.FileMode(0o600), os.FileMode(files[0].Mode))
}

// sysfilesEnv builds an Env whose Exec records command lines, plus a
// manifest rooted in a temp directory.
func sysfilesEnv(t *testing.T, calls *[]string) (*Env, []SystemFile, string) {
	t.Helper()
	env := testEnv(t)
	eng, err := render.New()
	require.NoError(t, err)
	env.Render = eng
	env.Exec = func(_ context.Context, name string, args ...string) ([]byte, error) {
		*calls = append(*calls, strings.Join(append([]string{name}, args...), " "))
		return nil, nil
	}

	dir := t.TempDir()
	files := []SystemFile{
		{
			Name:         "nvidia-drm",
			Template:     "nvidia-drm.conf.tmpl",
			Dest:         filepath.Join(dir, "agnosis-nvidia.conf"),
			Mode:         0o644,
			KernelModule: true,
			When:         SysfilePredicate{GPU: "nvidia"},
		},
		{
			Name:         "nvidia-blacklist",
			Template:     "nvidia-blacklist.conf.tmpl",
			Dest:         filepath.Join(dir, "agnosis-nouveau-blacklist.conf"),
			Mode:         0o644,
			KernelModule: true,
			When:         SysfilePredicate{GPU: "nvidia"},
		},
		{
			Name:         "amdgpu",
			Template:     "amdgpu.conf.tmpl",
			Dest:         filepath.Join(dir, "agnosis-amdgpu.conf"),
			Mode:         0o644,
			KernelModule: true,
			When:         SysfilePredicate{GPU: "amd"},
		},
		{
			Name:     "tlp-laptop",
			Template: "tlp-laptop.conf.tmpl",
			Dest:     filepath.Join(dir, "10-agnosis.conf"),
			Mode:     0o644,
			When:     SysfilePredicate{Platform: "laptop"},
		},
	}
	return env, files, dir
}

func countInitramfs(calls []string) int {
	n := 0
	for _, c := range calls {
		if strings.Contains(c, "mkinitcpio") {
			n++
		}
	}
	return n
}

func TestInstallSystemFilesGatesOnProfile(t *testing.T) {
	var calls []string
	env, files, dir := sysfilesEnv(t, &calls)

	prof := profile.Profile{
		GPUConfig: profile.GPUHybridIntelNvidia,
		Platform:  profile.PlatformLaptop,
		OEMFamily: profile.OEMGeneric,
	}
	rec := &Recorder{env: env}
	require.NoError(t, env.installSystemFiles(context.Background(), rec, files, prof))
	require.Empty(t, rec.warnings)

	for _, name := range []string{"agnosis-nvidia.conf", "agnosis-nouveau-blacklist.conf", "10-agnosis.conf"} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, "%s should be installed", name)
	}
	_, err := os.Stat(filepath.Join(dir, "agnosis-amdgpu.conf"))
	require.True(t, os.IsNotExist(err), "amd fragment must never land on an nvidia machine")

	require.Equal(t, 1, countInitramfs(calls),
		"two kernel-module fragments still mean one initramfs regeneration")
}

func TestInstallSystemFilesNoKernelModuleNoInitramfs(t *testing.T) {
	var calls []string
	env, files, dir := sysfilesEnv(t, &calls)

	prof := profile.Profile{
		GPUConfig: profile.GPUUnknown,
		Platform:  profile.PlatformLaptop,
		OEMFamily: profile.OEMGeneric,
	}
	rec := &Recorder{env: env}
	require.NoError(t, env.installSystemFiles(context.Background(), rec, files, prof))

	_, err := os.Stat(filepath.Join(dir, "10-agnosis.conf"))
	require.NoError(t, err)
	require.Equal(t, 0, countInitramfs(calls))
}

func TestInstallSystemFilesIdempotent(t *testing.T) {
	var calls []string
	env, files, dir := sysfilesEnv(t, &calls)
	prof := profile.Profile{
		GPUConfig: profile.GPUNvidia,
		Platform:  profile.PlatformDesktop,
		OEMFamily: profile.OEMGeneric,
	}

	rec := &Recorder{env: env}
	require.NoError(t, env.installSystemFiles(context.Background(), rec, files, prof))
	require.Equal(t, 1, countInitramfs(calls))

	// Second run: content identical, so no rewrite, no backup, and no
	// further initramfs regeneration.
	calls = calls[:0]
	rec = &Recorder{env: env}
	require.NoError(t, env.installSystemFiles(context.Background(), rec, files, prof))
	require.Equal(t, 0, countInitramfs(calls))

	backups, err := filepath.Glob(filepath.Join(dir, "*.bak-*"))
	require.NoError(t, err)
	require.Empty(t, backups)
}

func TestInstallSystemFilesBacksUpDiffering(t *testing.T) {
	var calls []string
	env, files, dir := sysfilesEnv(t, &calls)
	prof := profile.Profile{
		GPUConfig: profile.GPUNvidia,
		Platform:  profile.PlatformDesktop,
		OEMFamily: profile.OEMGeneric,
	}

	dest := filepath.Join(dir, "agnosis-nvidia.conf")
	require.NoError(t, os.WriteFile(dest, []byte("hand-edited\n"), 0o644))

	rec := &Recorder{env: env}
	require.NoError(t, env.installSystemFiles(context.Background(), rec, files, prof))

	backup, err := os.ReadFile(dest + ".bak-" + env.runStamp)
	require.NoError(t, err)
	require.Equal(t, "hand-edited\n", string(backup))

	current, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.NotEqual(t, "hand-edited\n", string(current))
}
