package pkgset

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadStoreEmbeddedDefault(t *testing.T) {
	store, err := LoadStore("")
	if err != nil {
		t.Fatalf("LoadStore: %v", err)
	}
	for _, key := range []GroupKey{
		GroupBase, GroupKernelStable, GroupKernelPerformance,
		GroupCPUIntel, GroupCPUAMD, GroupGPUIntel, GroupGPUAMD,
		GroupGPUNvidia, GroupPlatformLaptop, "oem:thinkpad",
	} {
		if _, ok := store.Packages(key); !ok {
			t.Errorf("embedded manifest is missing group %s", key)
		}
	}
}

func TestLoadStoreFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "groups.yaml")
	content := "groups:\n  base:\n    - hyprland\n    - waybar\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := LoadStore(path)
	if err != nil {
		t.Fatalf("LoadStore: %v", err)
	}
	pkgs, ok := store.Packages(GroupBase)
	if !ok {
		t.Fatal("base group not found")
	}
	if len(pkgs) != 2 || pkgs[0] != "hyprland" || pkgs[1] != "waybar" {
		t.Fatalf("unexpected packages %v", pkgs)
	}
}

func TestExpandReportsMissingGroups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "groups.yaml")
	if err := os.WriteFile(path, []byte("groups:\n  base: [hyprland]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := LoadStore(path)
	if err != nil {
		t.Fatal(err)
	}
	pkgs, missing := store.Expand([]GroupKey{GroupBase, GroupGPUNvidia})
	if len(pkgs) != 1 || pkgs[0] != "hyprland" {
		t.Fatalf("unexpected packages %v", pkgs)
	}
	if len(missing) != 1 || missing[0] != GroupGPUNvidia {
		t.Fatalf("unexpected missing groups %v", missing)
	}
}

func TestLoadStoreBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "groups.yaml")
	if err := os.WriteFile(path, []byte("groups: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadStore(path); err == nil {
		t.Fatal("expected parse error")
	}
}
