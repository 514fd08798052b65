package launch

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/nsbox/launchd/pkg/nsfd"
	"github.com/nsbox/launchd/pkg/rlimit"
)

// wireEnv is the plain-data projection of TaskEnv that gob can carry across
// the spec pipe. Namespace handles travel separately as inherited fds,
// positioned per fileManifest.
type wireEnv struct {
	Command string

	Cwd       string
	CreateCwd bool

	Root       string
	RootRdOnly bool

	Loop    string
	LoopDev int

	UID       uint32
	GID       uint32
	GroupList []uint32

	Environ []string

	StdinPath  string
	StdoutPath string
	StderrPath string

	Isolate    bool
	NewMountNs bool
	Hostname   string

	BindMap []BindMap
	BindDns bool

	NetCfg NetCfg

	Caps uint64

	Rlimit rlimit.Limits

	LeafCgroups      map[string]string
	CgroupFSRoot     string
	CgroupSubsystems []string

	ParentNsRoot string

	NetworkEnabled bool

	Manifest fileManifest
}

// fileManifest records which optional fds, beyond the three fixed ones,
// ride along in ExtraFiles, and in what order — agreed implicitly by both
// ends since they are built from the same TaskEnv (spec §4.1, §6).
type fileManifest struct {
	ParentNsKinds  []nsfd.Kind
	HasClientMntNs bool
}

func toWire(env *TaskEnv) wireEnv {
	w := wireEnv{
		Command:        env.Command,
		Cwd:            env.Cwd,
		CreateCwd:      env.CreateCwd,
		Root:           env.Root,
		RootRdOnly:     env.RootRdOnly,
		Loop:           env.Loop,
		LoopDev:        env.LoopDev,
		UID:            env.UID,
		GID:            env.GID,
		GroupList:      env.GroupList,
		Environ:        env.Environ,
		StdinPath:      env.StdinPath,
		StdoutPath:     env.StdoutPath,
		StderrPath:     env.StderrPath,
		Isolate:        env.Isolate,
		NewMountNs:     env.NewMountNs,
		Hostname:       env.Hostname,
		BindMap:        env.BindMap,
		BindDns:        env.BindDns,
		NetCfg:         env.NetCfg,
		Caps:           env.Caps,
		Rlimit:         env.Rlimit,
		LeafCgroups:    env.LeafCgroups,
		ParentNsRoot:   env.ParentNs.Root,
		// CgroupFSRoot/CgroupSubsystems are filled by the Launcher itself
		// after toWire returns; see launcher.go's Start.
		NetworkEnabled: env.NetworkEnabled,
	}
	if snap, ok := env.ParentNs.Handles.(*nsfd.Snapshot); ok {
		w.Manifest.ParentNsKinds = snap.Kinds()
	}
	w.Manifest.HasClientMntNs = env.ClientMntNs != nil
	return w
}

func encodeWire(w wireEnv) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(w); err != nil {
		return nil, fmt.Errorf("launch: encode spec: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeWire(b []byte) (wireEnv, error) {
	var w wireEnv
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&w); err != nil {
		return wireEnv{}, fmt.Errorf("launch: decode spec: %w", err)
	}
	return w, nil
}
