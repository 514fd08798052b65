// Package launch implements the three-process container launch
// choreography: a supervisor forks an intermediate, which attaches to
// cgroups, enters the requested namespaces, and clones the container init,
// which completes in-container setup and execs the user command (spec §4.1).
package launch

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/nsbox/launchd/launch/errkind"
	"github.com/nsbox/launchd/pkg/capability"
	"github.com/nsbox/launchd/pkg/cgroup"
	"github.com/nsbox/launchd/pkg/cred"
	"github.com/nsbox/launchd/pkg/netbuild"
	"github.com/nsbox/launchd/pkg/nsfd"
	"github.com/nsbox/launchd/pkg/rlimit"
	"github.com/nsbox/launchd/pkg/rootfs"
	"github.com/nsbox/launchd/pkg/shellword"
)

const (
	reexecIntermediate = "launchd-intermediate"
	reexecInit         = "launchd-init"
)

var subreaperOnce sync.Once

// Launcher runs in the supervisor. One Launcher is shared across every
// Start call; it carries the cgroup accessor needed both to attach new
// tasks and to let TaskHandle repair drift later.
type Launcher struct {
	Placer           *cgroup.Placer
	CgroupFSRoot     string
	CgroupSubsystems []string
}

// NewLauncher builds a Launcher and installs this process as a child
// subreaper, so an init orphaned by its intermediate's exit reparents
// directly here instead of to system init(1) (spec §4.1, "Problem
// Solving" on getppid tracking).
func NewLauncher(placer *cgroup.Placer, cgroupFSRoot string, subsystems []string) *Launcher {
	subreaperOnce.Do(func() {
		_ = unix.Prctl(unix.PR_SET_CHILD_SUBREAPER, 1, 0, 0, 0)
	})
	return &Launcher{Placer: placer, CgroupFSRoot: cgroupFSRoot, CgroupSubsystems: subsystems}
}

func selfExe() string { return "/proc/self/exe" }

// Reexec dispatches to the intermediate or init entry point when this
// binary was invoked as one of those roles. It must be called at the very
// top of main, before any other setup, since a matching os.Args[1] means
// this process is not actually the daemon CLI (spec §4.1 choreography
// realized via self-reexec, grounded on the teacher's startContainer
// pattern generalized from one re-exec level to two).
func Reexec() {
	if len(os.Args) < 2 {
		return
	}
	switch os.Args[1] {
	case reexecIntermediate:
		os.Exit(runIntermediate())
	case reexecInit:
		os.Exit(runInit())
	}
}

// Start launches one container per env and blocks until the supervisor has
// received either a success signal or a structured failure (spec §4.1
// "Supervisor side of Start").
func (l *Launcher) Start(env *TaskEnv) (*TaskHandle, error) {
	if err := rootfs.ValidateBindMap(env.Root, wireBindMaps(env.BindMap)); err != nil {
		return nil, &errkind.Error{Kind: errkind.InvalidValue, Message: err.Error()}
	}

	statusR, statusW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("launch: status pipe: %w", err)
	}
	specR, specW, err := os.Pipe()
	if err != nil {
		statusR.Close()
		statusW.Close()
		return nil, fmt.Errorf("launch: spec pipe: %w", err)
	}

	wire := toWire(env)
	wire.CgroupFSRoot = l.CgroupFSRoot
	wire.CgroupSubsystems = l.CgroupSubsystems
	payload, err := encodeWire(wire)
	if err != nil {
		specR.Close()
		specW.Close()
		statusR.Close()
		statusW.Close()
		return nil, err
	}

	extra := []*os.File{specR, statusW}
	if h, ok := env.ClientMntNs.(*nsfd.Handle); ok {
		extra = append(extra, h.File())
	}
	if snap, ok := env.ParentNs.Handles.(*nsfd.Snapshot); ok {
		for _, k := range snap.Kinds() {
			extra = append(extra, snap.Get(k).File())
		}
	}

	cmd := exec.Command(selfExe(), reexecIntermediate)
	cmd.ExtraFiles = extra
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		specR.Close()
		specW.Close()
		statusR.Close()
		statusW.Close()
		for _, f := range extra[2:] {
			f.Close()
		}
		return nil, fmt.Errorf("launch: start intermediate: %w", err)
	}

	// These are the supervisor's copies; the intermediate holds its own
	// dup'd references across the fork+exec.
	specR.Close()
	statusW.Close()
	for _, f := range extra[2:] {
		f.Close()
	}

	if _, err := specW.Write(payload); err != nil {
		specW.Close()
		statusR.Close()
		return nil, fmt.Errorf("launch: write spec: %w", err)
	}
	specW.Close()

	state, err := cmd.Process.Wait()
	if err != nil {
		statusR.Close()
		return nil, fmt.Errorf("launch: wait intermediate: %w", err)
	}

	pid, err := readStatusPid(statusR)
	if err != nil {
		statusR.Close()
		return nil, err
	}
	launchErr, err := readStatusError(statusR)
	statusR.Close()
	if err != nil {
		if pid > 0 {
			syscall.Kill(pid, syscall.SIGKILL)
		}
		return nil, err
	}
	if !launchErr.IsZero() {
		if pid > 0 {
			syscall.Kill(pid, syscall.SIGKILL)
		}
		return nil, launchErr
	}
	// The status pipe is the authoritative success/failure channel (EOF
	// before any length prefix means success), but a non-zero intermediate
	// exit with no recorded error still means setup never completed.
	if !state.Success() {
		if pid > 0 {
			syscall.Kill(pid, syscall.SIGKILL)
		}
		return nil, fmt.Errorf("launch: intermediate exited with %s and reported no error", state)
	}

	return &TaskHandle{
		state:          started,
		pid:            pid,
		leafCgroups:    env.LeafCgroups,
		networkEnabled: env.NetworkEnabled,
		placer:         l.Placer,
	}, nil
}

// runIntermediate is Intermediate duties 1-10 of spec §4.1.
func runIntermediate() int {
	specFile := os.NewFile(fdSpecR, "spec")
	statusFile := os.NewFile(fdStatusW, "status")

	payload, err := io.ReadAll(specFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "launchd-intermediate: read spec: %v\n", err)
		return 1
	}
	wire, err := decodeWire(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "launchd-intermediate: decode spec: %v\n", err)
		return 1
	}

	fail := func(e *errkind.Error) int {
		writeStatusPid(statusFile, -1)
		writeStatusError(statusFile, e)
		return 1
	}

	if _, err := unix.Setsid(); err != nil {
		return fail(errkind.Wrap(err, "setsid"))
	}
	if err := unix.Prctl(unix.PR_SET_PDEATHSIG, uintptr(unix.SIGKILL), 0, 0, 0); err != nil {
		return fail(errkind.Wrap(err, "set pdeathsig"))
	}

	if wire.CgroupFSRoot != "" {
		placer := cgroup.NewFSPlacer(wire.CgroupFSRoot, wire.CgroupSubsystems)
		if err := placer.Attach(os.Getpid(), wire.LeafCgroups); err != nil {
			return fail(errkind.Wrap(err, "cgroup attach"))
		}
	}

	extraFds := extraFdsFrom(wire.Manifest)
	next := 0
	if wire.Manifest.HasClientMntNs {
		h := nsfd.FromFD(extraFds[next], nsfd.Mount, "client-mnt-ns")
		next++
		if err := h.Enter(); err != nil {
			return fail(errkind.Wrap(err, "enter client mount namespace"))
		}
		h.Close()
	}

	if err := reopenStdio(wire); err != nil {
		return fail(errkind.Wrap(err, "reopen stdio"))
	}

	if len(wire.Manifest.ParentNsKinds) > 0 {
		fds := make(map[nsfd.Kind]uintptr, len(wire.Manifest.ParentNsKinds))
		for _, k := range wire.Manifest.ParentNsKinds {
			fds[k] = extraFds[next]
			next++
		}
		snap := nsfd.FromFDs(fds)
		if err := snap.Enter(); err != nil {
			return fail(errkind.Wrap(err, "enter parent namespace"))
		}
		snap.Close()
	}

	syncR, syncW, err := os.Pipe()
	if err != nil {
		return fail(errkind.Wrap(err, "sync pipe"))
	}

	specR2, specW2, err := os.Pipe()
	if err != nil {
		return fail(errkind.Wrap(err, "init spec pipe"))
	}
	initPayload, err := encodeWire(wire)
	if err != nil {
		return fail(errkind.Wrap(err, "re-encode spec"))
	}

	cloneFlags := cloneFlagsFor(wire)
	initCmd := exec.Command(selfExe(), reexecInit)
	initCmd.ExtraFiles = []*os.File{specR2, statusFile, syncR}
	initCmd.Stderr = os.Stderr
	initCmd.SysProcAttr = &syscall.SysProcAttr{Cloneflags: cloneFlags}

	startErr := initCmd.Start()
	pid := -1
	if startErr == nil {
		pid = initCmd.Process.Pid
	}
	if err := writeStatusPid(statusFile, pid); err != nil {
		writeStatusError(statusFile, errkind.Wrap(err, "write status pid"))
		return 1
	}
	if startErr != nil {
		writeStatusError(statusFile, errkind.Wrap(startErr, "clone init"))
		return 1
	}

	specR2.Close()
	syncR.Close()

	if _, err := specW2.Write(initPayload); err != nil {
		writeStatusError(statusFile, errkind.Wrap(err, "write init spec"))
		return 1
	}
	specW2.Close()

	if wire.NetworkEnabled && wire.NetCfg.NewNetNs {
		cfg := netbuild.Config{
			HostIface: wire.NetCfg.HostIface,
			MacVlan:   wire.NetCfg.MacVlan,
			IpVlan:    wire.NetCfg.IpVlan,
			Veth:      wire.NetCfg.Veth,
			Hostname:  wire.Hostname,
		}
		if err := netbuild.Build(cfg, pid); err != nil {
			writeStatusError(statusFile, errkind.Wrap(err, "netbuild"))
			return 1
		}
	}

	if err := writeSyncGo(syncW); err != nil {
		writeStatusError(statusFile, errkind.Wrap(err, "write sync release"))
		return 1
	}
	return 0
}

// runInit is the init's post-clone setup, run in the fresh namespaces,
// ending in execve of the user command (spec §4.1 steps following clone,
// §4.2-§4.4).
func runInit() int {
	specFile := os.NewFile(fdSpecR, "spec")
	statusFile := os.NewFile(fdStatusW, "status")
	syncFile := os.NewFile(fdSyncR, "sync")

	payload, err := io.ReadAll(specFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "launchd-init: read spec: %v\n", err)
		return 1
	}
	wire, err := decodeWire(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "launchd-init: decode spec: %v\n", err)
		return 1
	}

	fail := func(e *errkind.Error) int {
		writeStatusError(statusFile, e)
		return 1
	}

	if err := readSyncGo(syncFile); err != nil {
		return fail(errkind.Wrap(err, "sync pipe"))
	}

	if err := rlimit.Apply(wire.Rlimit); err != nil {
		return fail(errkind.Wrap(err, "apply rlimits"))
	}

	if wire.Hostname != "" && wire.Root != "/" {
		if err := unix.Sethostname([]byte(wire.Hostname)); err != nil {
			return fail(errkind.Wrap(err, "sethostname"))
		}
	}

	rootCfg := rootfs.Config{
		NewMountNs:   wire.NewMountNs,
		Isolate:      wire.Isolate,
		ParentNsRoot: wire.ParentNsRoot,
		Root:         wire.Root,
		RootRdOnly:   wire.RootRdOnly,
		Loop:         wire.Loop,
		LoopDev:      wire.LoopDev,
		BindMap:      wireBindMaps(wire.BindMap),
		BindDns:      wire.BindDns,
		Cwd:          wire.Cwd,
		CreateCwd:    wire.CreateCwd,
		UID:          wire.UID,
		GID:          wire.GID,
		NonRoot:      wire.UID != 0,
	}
	if err := rootfs.Build(rootCfg); err != nil {
		return fail(errkind.Wrap(err, "mount rootfs"))
	}

	if wire.NetworkEnabled {
		if err := netbuild.ConfigureInContainer(wireIfaceConfigs(wire.NetCfg)); err != nil {
			return fail(errkind.Wrap(err, "configure network"))
		}
	}

	if os.Geteuid() == 0 {
		if err := capability.Apply(wire.Caps); err != nil {
			return fail(errkind.Wrap(err, "apply capabilities"))
		}
	}

	resolved := cred.Resolved{UID: wire.UID, GID: wire.GID, Groups: wire.GroupList}
	if err := cred.Apply(resolved); err != nil {
		return fail(errkind.Wrap(err, "drop credentials"))
	}

	argv, err := shellword.Split(wire.Command)
	if err != nil {
		return fail(errkind.Wrap(err, "split command %q", wire.Command))
	}
	if len(argv) == 0 {
		return fail(&errkind.Error{Kind: errkind.InvalidValue, Message: "empty command"})
	}
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return fail(errkind.Wrap(err, "lookup %s", argv[0]))
	}

	// A successful exec closes the close-on-exec status fd, which the
	// supervisor reads as success; a failed exec leaves it open for the
	// error record.
	syscall.CloseOnExec(fdStatusW)
	if execErr := syscall.Exec(path, argv, wire.Environ); execErr != nil {
		writeStatusError(statusFile, errkind.Wrap(execErr, "exec %s", path))
		return 1
	}
	return 0
}

func extraFdsFrom(m fileManifest) []uintptr {
	n := len(m.ParentNsKinds)
	if m.HasClientMntNs {
		n++
	}
	fds := make([]uintptr, n)
	for i := range fds {
		fds[i] = uintptr(fdExtraBase + i)
	}
	return fds
}

func cloneFlagsFor(w wireEnv) uintptr {
	var flags uintptr
	if w.Isolate {
		flags |= unix.CLONE_NEWPID | unix.CLONE_NEWIPC
	}
	if w.NewMountNs {
		flags |= unix.CLONE_NEWNS
	}
	if w.Hostname != "" {
		flags |= unix.CLONE_NEWUTS
	}
	if w.NetCfg.NewNetNs {
		flags |= unix.CLONE_NEWNET
	}
	return flags
}

func wireBindMaps(b []BindMap) []rootfs.BindEntry {
	out := make([]rootfs.BindEntry, len(b))
	for i, e := range b {
		out[i] = rootfs.BindEntry{Source: e.Source, Dest: e.Dest, Rdonly: e.Rdonly}
	}
	return out
}

func wireIfaceConfigs(cfg NetCfg) []netbuild.IfaceConfig {
	names := make(map[string]bool, len(cfg.IpVec)+len(cfg.GwVec))
	for name := range cfg.IpVec {
		names[name] = true
	}
	for name := range cfg.GwVec {
		names[name] = true
	}
	out := make([]netbuild.IfaceConfig, 0, len(names))
	for name := range names {
		out = append(out, netbuild.IfaceConfig{
			Name:      name,
			Addresses: cfg.IpVec[name],
			Gateways:  cfg.GwVec[name],
		})
	}
	return out
}

func reopenStdio(w wireEnv) error {
	type target struct {
		path string
		flag int
		fd   int
	}
	targets := []target{
		{w.StdinPath, os.O_RDONLY | os.O_CREATE, 0},
		{w.StdoutPath, os.O_WRONLY | os.O_CREATE | os.O_APPEND, 1},
		{w.StderrPath, os.O_WRONLY | os.O_CREATE | os.O_APPEND, 2},
	}
	for _, t := range targets {
		if t.path == "" {
			continue
		}
		f, err := os.OpenFile(t.path, t.flag, 0o660)
		if err != nil {
			return fmt.Errorf("open %s: %w", t.path, err)
		}
		if err := os.Chown(t.path, int(w.UID), int(w.GID)); err != nil {
			f.Close()
			return fmt.Errorf("chown %s: %w", t.path, err)
		}
		if err := unix.Dup2(int(f.Fd()), t.fd); err != nil {
			f.Close()
			return fmt.Errorf("dup2 -> %d: %w", t.fd, err)
		}
		f.Close()
	}
	return nil
}
