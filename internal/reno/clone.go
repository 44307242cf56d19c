package reno

import (
	"os"
	"os/exec"
	"syscall"

	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/reno-project/reno/internal/linux"
	"github.com/reno-project/reno/internal/ocierr"
)

// Environment variables the CLI sets for the re-exec'd child; read back
// in init.go. Named after the teacher's own _LIBCONTAINER_* convention.
const (
	envContainerID = "_RENO_CONTAINER_ID"
	envRoot        = "_RENO_ROOT"
	envBundle      = "_RENO_BUNDLE"
)

// CloneChild implements spec.md §4.2: it computes the clone flag word
// from every namespace entry with an empty Path and re-execs
// /proc/self/exe into the hidden "init" subcommand with those flags set
// on SysProcAttr.Cloneflags. Using os/exec's fork+exec instead of a raw
// clone(2) syscall keeps the multi-threaded Go runtime safe across the
// fork, the same tradeoff kornnellio-runc-Go and other pure-Go
// reimplementations in the retrieval pack make.
func CloneChild(id, root, bundle string, namespaces []specs.LinuxNamespace) (*exec.Cmd, error) {
	if err := linux.ValidateUnique(namespaces); err != nil {
		return nil, err
	}
	flags, err := linux.CloneFlags(namespaces)
	if err != nil {
		return nil, err
	}

	self, err := os.Executable()
	if err != nil {
		return nil, ocierr.New(ocierr.CloneError, err, "resolving self executable path")
	}

	cmd := exec.Command(self, "init")
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), envContainerID+"="+id, envRoot+"="+root, envBundle+"="+bundle)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: uintptr(flags),
		Pdeathsig:  unix.SIGKILL,
	}

	logrus.Debugf("reno: cloning child for %q with flags 0x%x", id, flags)
	if err := cmd.Start(); err != nil {
		return nil, ocierr.New(ocierr.CloneError, err, "cloning child for %q", id)
	}
	return cmd, nil
}
