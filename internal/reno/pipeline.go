package reno

import (
	"os"
	"os/exec"
	"strings"

	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/reno-project/reno/internal/linux"
	"github.com/reno-project/reno/internal/oci"
	"github.com/reno-project/reno/internal/ocierr"
)

// pipeline is the in-child sequence of spec.md §4.10: it runs entirely
// inside the cloned process, between the clone and execvp, synchronizing
// with the CLI through the three-phase socket barrier.
type pipeline struct {
	id     string
	bundle string
	rootfs string
	dir    string
	spec   *specs.Spec
	server *containerServer
}

// Run drives the whole child-side sequence. It never returns normally
// on success: the final step either execvp's into the user command or
// exits the process directly. A non-nil return means initialization
// failed before a message could always be delivered over the socket;
// it propagates through InitContainer and the hidden "init" command to
// main, which logs it to stderr as a last resort.
func (p *pipeline) Run() error {
	state := &specs.State{
		Version:     oci.SpecVersion,
		ID:          p.id,
		Bundle:      p.bundle,
		Pid:         os.Getpid(),
		Annotations: p.spec.Annotations,
	}

	logrus.Debugf("reno: %s declares hooks: %s", p.id, hookSummary(p.spec.Hooks))

	// Step 3: accept on container socket -- this is the barrier for the
	// "init_environment" phase; the CLI's connect is what unblocks it.
	conn, err := p.server.AwaitCLI()
	if err != nil {
		return err
	}

	state.Status = specs.StateCreating
	if err := p.initEnvironment(); err != nil {
		return p.fail(conn, specs.StateCreating, err)
	}
	if err := conn.Send(Message{Status: string(specs.StateCreating)}); err != nil {
		return err
	}

	// Barrier for the "create_container" phase.
	conn, err = p.server.AwaitCLI()
	if err != nil {
		return err
	}
	if err := p.createContainer(state); err != nil {
		return p.fail(conn, specs.StateCreating, err)
	}
	state.Status = specs.StateCreated
	if err := conn.Send(Message{Status: string(specs.StateCreated)}); err != nil {
		return err
	}

	// Barrier for the "start_container" phase. This accept blocks until
	// a later, separate "reno start" invocation reconnects.
	conn, err = p.server.AwaitCLI()
	if err != nil {
		return err
	}
	if err := p.startContainer(state); err != nil {
		return p.fail(conn, specs.StateStopped, err)
	}

	proc := p.spec.Process
	if proc == nil || len(proc.Args) == 0 {
		// spec.md §9 open question (a): the CLI's start() recognizes this
		// exact error text and treats it as a successful no-op rather than
		// a genuine failure.
		text := noProcessErrText
		err := conn.Send(Message{Status: string(specs.StateStopped), Error: &text})
		if err != nil {
			return err
		}
		os.Exit(0)
	}

	if err := conn.Send(Message{Status: string(specs.StateRunning)}); err != nil {
		return err
	}

	// execvp replaces this process image. If it returns, it failed; we
	// can no longer report over the socket (the CLI already committed
	// "running" and moved on), so this is a last-resort stderr log, and
	// the CLI will observe the exit via /proc on its next refresh.
	name, lookErr := lookPath(proc.Args[0])
	if lookErr != nil {
		logrus.Errorf("reno: exec lookup failed for %s: %v", proc.Args[0], lookErr)
		os.Exit(1)
	}
	if err := unix.Exec(name, proc.Args, os.Environ()); err != nil {
		logrus.Errorf("reno: execve(%s) failed: %v", name, err)
		os.Exit(1)
	}
	// unix.Exec never returns on success.
	return nil
}

// fail reports err over the currently held connection at the
// best-available lifecycle status, then exits non-zero (spec.md §7).
func (p *pipeline) fail(conn *phaseConn, status specs.ContainerState, err error) error {
	logrus.Errorf("reno: pipeline failed in phase %s: %v", status, err)
	_ = conn.Send(errMessage(string(status), err))
	os.Exit(1)
	return err
}

// initEnvironment is spec.md §4.10 step 4: join pre-existing namespaces,
// mount rootfs, apply per-spec mounts, create devices, set hostname.
func (p *pipeline) initEnvironment() error {
	if p.spec.Linux != nil {
		if err := linux.JoinNamespaces(p.spec.Linux.Namespaces); err != nil {
			return err
		}
	}

	if err := linux.ResetPropagation(); err != nil {
		return err
	}
	if err := linux.BindRootfs(p.rootfs); err != nil {
		return err
	}
	if err := linux.ApplyMounts(p.rootfs, p.spec.Mounts); err != nil {
		return err
	}

	var devices []specs.LinuxDevice
	if p.spec.Linux != nil {
		devices = p.spec.Linux.Devices
	}
	if err := linux.CreateDevices(p.rootfs, devices); err != nil {
		return err
	}

	if err := linux.SetHostname(p.spec.Hostname); err != nil {
		return err
	}

	return nil
}

// createContainer is spec.md §4.10 step 6: createContainer hooks run
// from inside the namespaces before pivot, then pivot_root, then sysctl.
func (p *pipeline) createContainer(state *specs.State) error {
	if err := RunCreateContainerHooks(p.spec.Hooks, state); err != nil {
		return err
	}

	readonly := p.spec.Root != nil && p.spec.Root.Readonly
	if err := linux.PivotRootfs(p.rootfs, readonly); err != nil {
		return err
	}

	if p.spec.Linux != nil {
		if err := linux.SetSysctl(p.spec.Linux.Sysctl); err != nil {
			return err
		}
	}
	return nil
}

// startContainer is spec.md §4.10 step 8: startContainer hooks, env,
// rlimits, oom_score_adj, bounding caps, then the privilege-drop
// sequence, then the remaining capability sets, then chdir.
func (p *pipeline) startContainer(state *specs.State) error {
	if err := RunStartContainerHooks(p.spec.Hooks, state); err != nil {
		return err
	}

	proc := p.spec.Process
	if proc == nil {
		return nil
	}

	if err := applyEnv(proc.Env); err != nil {
		return err
	}
	if err := linux.SetRlimits(proc.Rlimits); err != nil {
		return err
	}
	if err := linux.SetOomScoreAdj(proc.OOMScoreAdj); err != nil {
		return err
	}

	var caps *specs.LinuxCapabilities
	if proc.Capabilities != nil {
		caps = proc.Capabilities
	}
	if caps != nil {
		if err := dropBoundingOnly(caps); err != nil {
			return err
		}
	}

	// Privilege-drop ordering (spec.md §9): keepcaps, setgid, umask,
	// setgroups, setuid, keepcaps-off, cap-sets, chdir. Reordering this
	// silently breaks capability retention or filesystem ownership.
	if err := linux.SetKeepCaps(true); err != nil {
		return err
	}
	if proc.User.GID != 0 || proc.User.UID != 0 {
		if err := linux.SetGid(proc.User.GID); err != nil {
			return err
		}
	}
	linux.SetUmask(umaskPtr(proc.User))
	if err := linux.SetGroups(proc.User.AdditionalGids); err != nil {
		return err
	}
	if err := linux.SetUid(proc.User.UID); err != nil {
		return err
	}
	if err := linux.SetKeepCaps(false); err != nil {
		return err
	}

	if caps != nil {
		if err := linux.ApplyCapabilities(caps); err != nil {
			return err
		}
	}

	if proc.Cwd != "" {
		if err := unix.Chdir(proc.Cwd); err != nil {
			return ocierr.New(ocierr.ExecError, err, "chdir %s", proc.Cwd)
		}
	}

	return nil
}

func umaskPtr(user specs.User) *uint32 {
	if user.Umask == nil {
		return nil
	}
	v := *user.Umask
	return &v
}

// dropBoundingOnly applies just the bounding-set drop half of the
// capability engine; the wholesale {effective,permitted,inheritable,
// ambient} replace happens later, after setuid, per the ordering rule.
func dropBoundingOnly(caps *specs.LinuxCapabilities) error {
	return linux.ApplyBoundingOnly(caps)
}

func applyEnv(env []string) error {
	for _, kv := range env {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return ocierr.New(ocierr.ExecError, nil, "invalid environment entry %q", kv)
		}
		if err := os.Setenv(name, value); err != nil {
			return ocierr.New(ocierr.ExecError, err, "setenv %s", name)
		}
	}
	return nil
}

func lookPath(name string) (string, error) {
	if strings.Contains(name, "/") {
		return name, nil
	}
	return exec.LookPath(name)
}
