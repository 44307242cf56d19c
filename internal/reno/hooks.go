package reno

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/sirupsen/logrus"

	"github.com/reno-project/reno/internal/ocierr"
)

// runHook spawns one OCI hook with a cleared environment, feeding it the
// serialized container state on stdin, per spec.md §4.8. This is a
// direct generalization of the teacher's Command.Run (runc's
// libcontainer/configs.Command.Run): spawn, pipe state in, wait with an
// optional timeout, kill on timeout.
func runHook(phase string, hook specs.Hook, state *specs.State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return ocierr.New(ocierr.HookError, err, "marshaling state for %s hook", phase)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.Cmd{
		Path: hook.Path,
		Args: hookArgs(hook),
		// Cleared environment (spec.md §4.8 step 1): start from a non-nil
		// empty slice rather than hook.Env directly, since exec.Cmd treats
		// a nil Env as "inherit the parent's environment", not "empty".
		Env:    append([]string{}, hook.Env...),
		Stdin:  bytes.NewReader(payload),
		Stdout: &stdout,
		Stderr: &stderr,
	}

	if err := cmd.Start(); err != nil {
		return ocierr.New(ocierr.HookError, err, "spawning %s hook %s", phase, hook.Path)
	}

	errC := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		if err != nil {
			err = fmt.Errorf("%w (stdout: %s, stderr: %s)", err, stdout.String(), stderr.String())
		}
		errC <- err
	}()

	var timerCh <-chan time.Time
	if hook.Timeout != nil {
		timer := time.NewTimer(time.Duration(*hook.Timeout) * time.Second)
		defer timer.Stop()
		timerCh = timer.C
	}

	select {
	case err := <-errC:
		if err != nil {
			return ocierr.New(ocierr.HookError, err, "%s hook %s exited non-zero", phase, hook.Path)
		}
		return nil
	case <-timerCh:
		_ = cmd.Process.Kill()
		<-errC
		return ocierr.New(ocierr.HookError, nil, "%s hook %s ran past its %ds timeout", phase, hook.Path, *hook.Timeout)
	}
}

func hookArgs(hook specs.Hook) []string {
	if len(hook.Args) > 0 {
		return hook.Args
	}
	return []string{hook.Path}
}

// runHooks runs every hook in list, in order, stopping at the first
// failure.
func runHooks(phase string, list []specs.Hook, state *specs.State) error {
	if len(list) == 0 {
		logrus.Debugf("reno: no %s hooks declared", phase)
		return nil
	}
	for i, h := range list {
		logrus.Debugf("reno: running %s hook #%d: %s", phase, i, h.Path)
		if err := runHook(phase, h, state); err != nil {
			return err
		}
	}
	return nil
}

// RunCreateRuntimeHooks, RunCreateContainerHooks, etc. are the five
// named slots plus the legacy prestart alias (spec.md §4.8/§4.9); each
// is invoked from the side of the process boundary the OCI spec
// mandates (createRuntime/prestart/poststart/poststop from the CLI,
// createContainer/startContainer from inside the container namespaces).

func RunPrestartHooks(hooks *specs.Hooks, state *specs.State) error {
	if hooks == nil {
		return nil
	}
	return runHooks("prestart", hooks.Prestart, state)
}

func RunCreateRuntimeHooks(hooks *specs.Hooks, state *specs.State) error {
	if hooks == nil {
		return nil
	}
	return runHooks("createRuntime", hooks.CreateRuntime, state)
}

func RunCreateContainerHooks(hooks *specs.Hooks, state *specs.State) error {
	if hooks == nil {
		return nil
	}
	return runHooks("createContainer", hooks.CreateContainer, state)
}

func RunStartContainerHooks(hooks *specs.Hooks, state *specs.State) error {
	if hooks == nil {
		return nil
	}
	return runHooks("startContainer", hooks.StartContainer, state)
}

func RunPoststartHooks(hooks *specs.Hooks, state *specs.State) error {
	if hooks == nil {
		return nil
	}
	return runHooks("poststart", hooks.Poststart, state)
}

func RunPoststopHooks(hooks *specs.Hooks, state *specs.State) error {
	if hooks == nil {
		return nil
	}
	return runHooks("poststop", hooks.Poststop, state)
}

// hookSummary lists which of the six hook slots a bundle declares,
// logged once per pipeline run for debugging.
func hookSummary(hooks *specs.Hooks) string {
	if hooks == nil {
		return "none"
	}
	var names []string
	if len(hooks.Prestart) > 0 {
		names = append(names, "prestart")
	}
	if len(hooks.CreateRuntime) > 0 {
		names = append(names, "createRuntime")
	}
	if len(hooks.CreateContainer) > 0 {
		names = append(names, "createContainer")
	}
	if len(hooks.StartContainer) > 0 {
		names = append(names, "startContainer")
	}
	if len(hooks.Poststart) > 0 {
		names = append(names, "poststart")
	}
	if len(hooks.Poststop) > 0 {
		names = append(names, "poststop")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}
