// Command launchd launches a single Linux container described by command
// line flags, observes it to completion, and reports its exit status. It
// is the thin CLI entrypoint around the launch package; a full daemon
// would drive launch.Launcher from an RPC surface instead (spec §1 scope).
package main

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/nsbox/launchd/internal/config"
	"github.com/nsbox/launchd/launch"
	"github.com/nsbox/launchd/pkg/cgroup"
	"github.com/nsbox/launchd/pkg/cred"
	"github.com/nsbox/launchd/pkg/rlimit"
)

func main() {
	// Reexec must run before any flag parsing or logging setup: when
	// os.Args[1] names one of the reexec targets, this process is the
	// intermediate or init stage of a launch already in progress, and
	// Reexec never returns.
	launch.Reexec()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "launchd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath   string
		root         string
		rootRdOnly   bool
		userSpec     string
		groupSpec    string
		hostname     string
		cwd          string
		createCwd    bool
		cgroupRoot   string
		cgroupLeaf   string
		subsystems   []string
		binds        []string
		networkFlag  bool
		timeLimitSec uint
		memLimitMB   uint
	)

	flags := pflag.NewFlagSet("launchd", pflag.ContinueOnError)
	flags.StringVar(&configPath, "config", "/etc/launchd/launchd.yaml", "path to the launchd YAML config")
	flags.StringVar(&root, "root", "/", "container rootfs directory, or \"/\" to share the host filesystem")
	flags.BoolVar(&rootRdOnly, "root-ro", false, "mount the rootfs read-only")
	flags.StringVar(&userSpec, "user", "root", "user to run the command as (name or numeric uid)")
	flags.StringVar(&groupSpec, "group", "", "group to run the command as (name or numeric gid, defaults to user's primary group)")
	flags.StringVar(&hostname, "hostname", "", "hostname to set inside a new UTS namespace")
	flags.StringVar(&cwd, "cwd", "/", "working directory inside the container")
	flags.BoolVar(&createCwd, "create-cwd", false, "create cwd under container.tmp_dir if it doesn't exist")
	flags.StringVar(&cgroupRoot, "cgroup-root", "/sys/fs/cgroup", "cgroupfs mount root")
	flags.StringVar(&cgroupLeaf, "cgroup-leaf", "", "leaf cgroup path to attach every configured subsystem to")
	flags.StringSliceVar(&subsystems, "cgroup-subsystem", nil, "cgroup subsystem to attach (repeatable)")
	flags.StringArrayVar(&binds, "bind", nil, "bind mount SRC:DST[:ro] into the container (repeatable)")
	flags.BoolVar(&networkFlag, "net", false, "create a network namespace (overridden by network.enabled=false)")
	flags.UintVar(&timeLimitSec, "cpu-limit", 0, "RLIMIT_CPU in seconds, 0 for unlimited")
	flags.UintVar(&memLimitMB, "mem-limit", 0, "RLIMIT_AS in MiB, 0 for unlimited")
	flags.BoolP("help", "h", false, "show this help")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if help, _ := flags.GetBool("help"); help {
		flags.PrintDefaults()
		return nil
	}

	args := flags.Args()
	if len(args) == 0 {
		return fmt.Errorf("no command given; usage: launchd [flags] -- command args...")
	}

	cfg, err := loadConfigOrDefault(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	// cfg is narrowed to launch.ConfigAccessor here, the same interface
	// boundary launch itself would consume if it needed these options
	// directly (spec §6).
	var accessor launch.ConfigAccessor = cfg

	networkEnabled, err := accessor.GetBool("network.enabled")
	if err != nil {
		networkEnabled = networkFlag
	}

	bindMaps, err := parseBinds(binds)
	if err != nil {
		return err
	}

	resolved, err := cred.Resolve(userSpec, groupSpec)
	if err != nil {
		return fmt.Errorf("resolve credentials: %w", err)
	}

	if createCwd {
		tmpDir, _ := accessor.Get("container.tmp_dir")
		cwd = joinTmpDir(tmpDir, cwd)
	}

	leafCgroups := map[string]string{}
	for _, s := range subsystems {
		if cgroupLeaf != "" {
			leafCgroups[s] = cgroupLeaf
		}
	}

	env := &launch.TaskEnv{
		Command:        strings.Join(args, " "),
		Cwd:            cwd,
		CreateCwd:      createCwd,
		Root:           root,
		RootRdOnly:     rootRdOnly,
		UID:            resolved.UID,
		GID:            resolved.GID,
		GroupList:      resolved.Groups,
		Environ:        os.Environ(),
		StdinPath:      "/dev/stdin",
		StdoutPath:     "/dev/stdout",
		StderrPath:     "/dev/stderr",
		Isolate:        root != "/",
		NewMountNs:     root != "/",
		Hostname:       hostname,
		BindMap:        bindMaps,
		BindDns:        root != "/",
		NetworkEnabled: networkEnabled,
		NetCfg:         launch.NetCfg{NewNetNs: networkEnabled && networkFlag},
		Rlimit:         rlimitsFrom(timeLimitSec, memLimitMB),
		LeafCgroups:    leafCgroups,
	}

	placer := cgroup.NewFSPlacer(cgroupRoot, subsystems)
	launcher := launch.NewLauncher(placer, cgroupRoot, subsystems)

	logger.Info("starting container", zap.String("root", root), zap.String("command", env.Command))

	handle, err := launcher.Start(env)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}

	status, err := waitExit(handle.GetPid())
	if err != nil {
		return fmt.Errorf("wait: %w", err)
	}
	handle.Exit(status)
	logger.Info("container exited", zap.Int("pid", handle.GetPid()), zap.Int("status", status))

	if status != 0 {
		os.Exit(status)
	}
	return nil
}

func loadConfigOrDefault(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &config.Config{}, nil
	}
	return config.Load(path)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	verbose, _ := cfg.GetBool("log.verbose")
	if verbose {
		return zap.NewDevelopmentConfig().Build()
	}
	return zap.NewProductionConfig().Build()
}

func parseBinds(specs []string) ([]launch.BindMap, error) {
	out := make([]launch.BindMap, 0, len(specs))
	for _, s := range specs {
		parts := strings.SplitN(s, ":", 3)
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid --bind %q, want SRC:DST[:ro]", s)
		}
		b := launch.BindMap{Source: parts[0], Dest: parts[1]}
		if len(parts) == 3 && parts[2] == "ro" {
			b.Rdonly = true
		}
		out = append(out, b)
	}
	return out, nil
}

func joinTmpDir(tmpDir, cwd string) string {
	if tmpDir == "" {
		return cwd
	}
	if cwd == "" || cwd == "/" {
		return tmpDir
	}
	return tmpDir + cwd
}

func rlimitsFrom(cpuSec, memMB uint) rlimit.Limits {
	limits := rlimit.Limits{}
	if cpuSec > 0 {
		limits[syscall.RLIMIT_CPU] = rlimit.Pair{Soft: uint64(cpuSec), Hard: uint64(cpuSec) + 1}
	}
	if memMB > 0 {
		bytes := uint64(memMB) * 1024 * 1024
		limits[syscall.RLIMIT_AS] = rlimit.Pair{Soft: bytes, Hard: bytes}
	}
	return limits
}

// waitExit waits for pid via wait4, the way the supervisor side of the
// teacher's master process reaps its sandboxed children.
func waitExit(pid int) (int, error) {
	var ws syscall.WaitStatus
	for {
		_, err := syscall.Wait4(pid, &ws, 0, nil)
		if err == syscall.EINTR {
			continue
		}
		if err != nil {
			return 0, err
		}
		break
	}
	if ws.Exited() {
		return ws.ExitStatus(), nil
	}
	if ws.Signaled() {
		return 128 + int(ws.Signal()), nil
	}
	return 0, fmt.Errorf("unexpected wait status %v", ws)
}
