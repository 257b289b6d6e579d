package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lvnafir/agnosis-arch/pkg/classify"
	"github.com/lvnafir/agnosis-arch/pkg/hwinfo"
	"github.com/lvnafir/agnosis-arch/pkg/pacman"
	"github.com/lvnafir/agnosis-arch/pkg/pkgset"
	"github.com/lvnafir/agnosis-arch/pkg/profile"
	"github.com/lvnafir/agnosis-arch/pkg/telemetry"
	"github.com/lvnafir/agnosis-arch/services/provision"
)

var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "agnosis",
		Short:         "Hardware-adaptive Arch Linux desktop provisioning",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newDetectCommand())
	cmd.AddCommand(newResolveCommand())
	cmd.AddCommand(newProvisionCommand())
	cmd.AddCommand(newVersionCommand())
	return cmd
}

func newDetectCommand() *cobra.Command {
	var (
		output string
		yes    bool
	)

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Detect hardware, classify it, and persist the profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			snapshot := hwinfo.New().Collect(ctx)
			p := classify.Classify(snapshot)
			fmt.Printf("Detected: %s\n", p)

			prompter := newPrompter(yes)
			if !prompter.Confirm("Use this hardware configuration?") {
				// Operator rejection falls back to the generic profile
				// rather than a manual entry loop.
				p = profile.Default()
				fmt.Printf("Using generic configuration; edit %s if needed.\n", output)
			}
			if err := p.WriteEnvFile(output); err != nil {
				return err
			}
			fmt.Printf("Profile written to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVar(&output, "output", profile.DefaultEnvPath, "Where to persist the classification")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Accept the detected configuration without prompting")
	return cmd
}

func newResolveCommand() *cobra.Command {
	var (
		profilePath string
		kernelFlag  string
		groupsPath  string
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show the package groups a profile resolves to",
		RunE: func(cmd *cobra.Command, args []string) error {
			kernel, err := pkgset.ParseKernelChoice(kernelFlag)
			if err != nil {
				return err
			}
			p, ignored, err := profile.LoadEnvFile(profilePath)
			if err != nil {
				return fmt.Errorf("load profile (run `agnosis detect` first): %w", err)
			}
			for _, key := range ignored {
				fmt.Fprintf(os.Stderr, "ignoring unrecognized profile key %s\n", key)
			}

			store, err := pkgset.LoadStore(groupsPath)
			if err != nil {
				return err
			}
			for _, key := range pkgset.Resolve(p, kernel) {
				pkgs, ok := store.Packages(key)
				if !ok {
					fmt.Printf("%-20s (no package list)\n", key)
					continue
				}
				fmt.Printf("%-20s %v\n", key, pkgs)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&profilePath, "profile", profile.DefaultEnvPath, "Persisted classification file")
	cmd.Flags().StringVar(&kernelFlag, "kernel", string(pkgset.KernelStable), "Kernel variant (stable or performance)")
	cmd.Flags().StringVar(&groupsPath, "groups", "", "Package-group manifest (default: embedded)")
	return cmd
}

func newProvisionCommand() *cobra.Command {
	var (
		yes         bool
		kernelFlag  string
		repoRoot    string
		profilePath string
		groupsPath  string
		sysfiles    string
	)

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Run the full provisioning pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := provision.LoadConfig()
			if err != nil {
				return err
			}
			if repoRoot != "" {
				cfg.RepoRoot = repoRoot
			}
			if profilePath != "" {
				cfg.ProfilePath = profilePath
			}
			if groupsPath != "" {
				cfg.GroupsManifest = groupsPath
			}
			if sysfiles != "" {
				cfg.SysfilesManifest = sysfiles
			}
			cfg.AssumeYes = cfg.AssumeYes || yes

			log := telemetry.NewLogger("provision", cfg.LogPath())
			defer log.Close()
			prompter := newPrompter(cfg.AssumeYes)

			// Reuse an existing classification so a re-run provisions
			// the same machine category; detect fresh otherwise.
			p, _, err := profile.LoadEnvFile(cfg.ProfilePath)
			if err != nil {
				log.Infof("no usable persisted profile (%v); detecting", err)
				p = classify.Classify(hwinfo.New().Collect(ctx))
				fmt.Printf("Detected: %s\n", p)
				if !prompter.Confirm("Use this hardware configuration?") {
					p = profile.Default()
				}
				if err := p.WriteEnvFile(cfg.ProfilePath); err != nil {
					return err
				}
			}

			var explicitKernel pkgset.KernelChoice
			if kernelFlag != "" {
				explicitKernel, err = pkgset.ParseKernelChoice(kernelFlag)
				if err != nil {
					return err
				}
			}

			pac := pacman.New()
			kernel := pkgset.SelectKernel(ctx, explicitKernel, pac.Installed, func() pkgset.KernelChoice {
				if prompter.Confirm("Use the performance kernel (linux-zen) instead of linux-lts?") {
					return pkgset.KernelPerformance
				}
				return pkgset.KernelStable
			})
			cfg.Kernel = kernel
			groups := pkgset.Resolve(p, kernel)
			log.Infof("resolved groups: %v", groups)

			env, err := provision.NewEnv(cfg, log, p, groups)
			if err != nil {
				return err
			}

			report := provision.NewPipeline(env).Run(ctx, prompter)
			report.Print(os.Stdout)
			if err := report.Write(cfg.ReportPath()); err != nil {
				log.Warnf("%v", err)
			}
			if cfg.MetricsPath != "" {
				if err := telemetry.WriteMetricsTextfile(cfg.MetricsPath, report.Metrics()); err != nil {
					log.Warnf("%v", err)
				}
			}
			if !report.Clean() {
				return fmt.Errorf("%d step(s) did not fully succeed", countFailed(report))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Run every step without prompting")
	cmd.Flags().StringVar(&kernelFlag, "kernel", "", "Kernel variant (stable or performance); wins over an installed variant, prompted if unset")
	cmd.Flags().StringVar(&repoRoot, "repo", "", "Repository root containing the config tree")
	cmd.Flags().StringVar(&profilePath, "profile", "", "Persisted classification file")
	cmd.Flags().StringVar(&groupsPath, "groups", "", "Package-group manifest (default: embedded)")
	cmd.Flags().StringVar(&sysfiles, "sysfiles", "", "System-file manifest (default: embedded)")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the agnosis version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}

func newPrompter(assumeYes bool) provision.Prompter {
	if assumeYes {
		return provision.AutoConfirm{}
	}
	return &provision.StdioPrompter{In: os.Stdin, Out: os.Stdout}
}

func countFailed(r *provision.Report) int {
	_, _, failed := r.Counts()
	return failed
}
