package reno

import (
	"os"
	"strings"
	"time"

	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/prometheus/procfs"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/reno-project/reno/internal/oci"
	"github.com/reno-project/reno/internal/ocierr"
)

// Create implements the "reno create" verb (spec.md §4.1): it binds the
// init socket, clones the child, waits for its readiness ping, then
// drives the init_environment and create_container phase barriers before
// returning with the container in the "created" state.
func Create(root, id, bundle string) error {
	if oci.Exists(root, id) {
		return ocierr.New(ocierr.PreconditionError, nil, "container %q already exists", id)
	}

	spec, err := oci.LoadConfig(bundle)
	if err != nil {
		return err
	}

	dir := oci.Dir(root, id)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return ocierr.New(ocierr.PreconditionError, err, "creating state directory %s", dir)
	}

	// Written before clone so a failure anywhere below still leaves a
	// debuggable record behind (spec.md §4.9: "leave state as-is").
	initial := &oci.ContainerState{
		State: specs.State{
			Version:     oci.SpecVersion,
			ID:          id,
			Status:      specs.StateCreating,
			Pid:         -1,
			Bundle:      bundle,
			Annotations: spec.Annotations,
		},
		Created: time.Now(),
		Rootfs:  oci.RootfsPath(bundle, spec),
	}
	if err := initial.Save(root, id); err != nil {
		return err
	}

	initSock, err := bindInitSocket(dir)
	if err != nil {
		return err
	}
	defer initSock.Close()

	var namespaces []specs.LinuxNamespace
	if spec.Linux != nil {
		namespaces = spec.Linux.Namespaces
	}
	cmd, err := CloneChild(id, root, bundle, namespaces)
	if err != nil {
		return err
	}

	if err := initSock.WaitReady(); err != nil {
		return err
	}
	logrus.Debugf("reno: child %d ready, driving phase barrier", cmd.Process.Pid)

	client := dialContainerSocket(dir)

	// Phase 1: init_environment. The child bound the container socket
	// before pinging the init socket and enters its first accept right
	// after the ping; this connect is what that accept returns with.
	msg, err := client.ReadPhase()
	if err != nil {
		return err
	}
	if msg.Error != nil {
		return ocierr.New(ocierr.PreconditionError, nil, "init_environment failed: %s", *msg.Error)
	}

	// The child's next accept (for phase 2) blocks until the createRuntime
	// hooks below have run and the CLI reconnects (spec.md §4.9/§5).
	runtimeState := &specs.State{
		Version: oci.SpecVersion,
		ID:      id,
		Bundle:  bundle,
		Pid:     cmd.Process.Pid,
	}
	if err := RunCreateRuntimeHooks(spec.Hooks, runtimeState); err != nil {
		return err
	}

	// Phase 2: create_container.
	msg, err = client.ReadPhase()
	if err != nil {
		return err
	}
	if msg.Error != nil {
		return ocierr.New(ocierr.PreconditionError, nil, "create_container failed: %s", *msg.Error)
	}

	rootfs := oci.RootfsPath(bundle, spec)
	state := &oci.ContainerState{
		State: specs.State{
			Version:     oci.SpecVersion,
			ID:          id,
			Status:      specs.StateCreated,
			Pid:         cmd.Process.Pid,
			Bundle:      bundle,
			Annotations: spec.Annotations,
		},
		Created: time.Now(),
		Rootfs:  rootfs,
	}
	return state.Save(root, id)
}

// Start implements the "reno start" verb: it reconnects to the container
// socket for the third time, unblocking the child's final accept so it
// can run startContainer hooks and execvp the user process.
func Start(root, id string) error {
	state, err := oci.LoadState(root, id)
	if err != nil {
		return err
	}
	if state.Status != specs.StateCreated {
		return ocierr.New(ocierr.PreconditionError, nil, "container %q is %s, not created", id, state.Status)
	}

	spec, err := oci.LoadConfig(state.Bundle)
	if err != nil {
		return err
	}

	// The child's final accept blocks until the legacy prestart hooks
	// below have run and the CLI reconnects (spec.md §4.9).
	if err := RunPrestartHooks(spec.Hooks, &state.State); err != nil {
		return err
	}

	dir := oci.Dir(root, id)
	client := dialContainerSocket(dir)

	// Phase 3: start_container.
	msg, err := client.ReadPhase()
	if err != nil {
		return err
	}
	if msg.Error != nil && *msg.Error != noProcessErrText {
		state.Status = specs.StateStopped
		_ = state.Save(root, id)
		return ocierr.New(ocierr.PreconditionError, nil, "start_container failed: %s", *msg.Error)
	}

	state.Status = specs.ContainerState(msg.Status)
	// Refresh and persist (spec.md §4.9 start): the socket message says
	// the child called execve, but by the time we observe that the
	// process may already have exited, so reconcile against /proc before
	// committing the record.
	RefreshState(state)
	if err := state.Save(root, id); err != nil {
		return err
	}

	if msg.Error != nil {
		// Compatibility shim (spec.md §9 open question (a)): no process
		// to run is a valid outcome, not a failure.
		return nil
	}

	return RunPoststartHooks(spec.Hooks, &state.State)
}

// Kill implements "reno kill": it signals the init process directly,
// mapping the handful of named signals spec.md §4.9 lists, defaulting
// to SIGKILL for anything unrecognized or empty.
func Kill(root, id, sigName string) error {
	state, err := oci.LoadState(root, id)
	if err != nil {
		return err
	}
	RefreshState(state)
	if state.Status != specs.StateRunning && state.Status != specs.StateCreated {
		return ocierr.New(ocierr.PreconditionError, nil, "container %q is %s, cannot signal", id, state.Status)
	}

	sig := signalFromName(sigName)
	if err := unix.Kill(state.Pid, sig); err != nil {
		return ocierr.New(ocierr.PreconditionError, err, "signaling container %q with %s", id, sigName)
	}

	// Refresh and persist (spec.md §4.9 kill): the signal may have just
	// killed the process, so the record needs to reflect that immediately
	// rather than waiting for the next "reno state" call.
	RefreshState(state)
	return state.Save(root, id)
}

var signalNames = map[string]unix.Signal{
	"HUP":  unix.SIGHUP,
	"INT":  unix.SIGINT,
	"TERM": unix.SIGTERM,
	"STOP": unix.SIGSTOP,
	"KILL": unix.SIGKILL,
	"USR1": unix.SIGUSR1,
	"USR2": unix.SIGUSR2,
}

func signalFromName(name string) unix.Signal {
	trimmed := strings.TrimPrefix(strings.ToUpper(name), "SIG")
	if sig, ok := signalNames[trimmed]; ok {
		return sig
	}
	return unix.SIGKILL
}

// Delete implements "reno delete" (spec.md §4.9, §3 invariant): it
// requires status stopped, removes the whole per-container state
// directory, then runs poststop hooks.
func Delete(root, id string) error {
	state, err := oci.LoadState(root, id)
	if err != nil {
		return err
	}
	RefreshState(state)
	if state.Status != specs.StateStopped {
		return ocierr.New(ocierr.PreconditionError, nil, "container %q is not in the stopped state", id)
	}

	if err := os.RemoveAll(oci.Dir(root, id)); err != nil {
		return err
	}

	spec, err := oci.LoadConfig(state.Bundle)
	if err != nil {
		// The bundle may already be gone; poststop hooks have nothing
		// left to run against, but the container is deleted regardless.
		logrus.Debugf("reno: skipping poststop hooks for %q, bundle unreadable: %v", id, err)
		return nil
	}
	return RunPoststopHooks(spec.Hooks, &state.State)
}

// State implements "reno state": it refreshes liveness from /proc,
// persists the result, and returns the record, since the child may have
// exited without the CLI being told (spec.md §4.9).
func State(root, id string) (*oci.ContainerState, error) {
	state, err := oci.LoadState(root, id)
	if err != nil {
		return nil, err
	}
	RefreshState(state)
	if err := state.Save(root, id); err != nil {
		return nil, err
	}
	return state, nil
}

// RefreshState reconciles a persisted "running" or "created" status
// against /proc/<pid>/stat: states {R,S,D} mean still running, anything
// else (or a missing /proc entry) means the process is gone and the
// recorded status moves to "stopped" (spec.md §4.9).
func RefreshState(state *oci.ContainerState) {
	if state.Status != specs.StateRunning && state.Status != specs.StateCreated {
		return
	}
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		state.Status = specs.StateStopped
		return
	}
	proc, err := fs.Proc(state.Pid)
	if err != nil {
		state.Status = specs.StateStopped
		return
	}
	stat, err := proc.Stat()
	if err != nil {
		state.Status = specs.StateStopped
		return
	}
	switch stat.State {
	case "R", "S", "D":
		// still alive
	default:
		state.Status = specs.StateStopped
	}
}
