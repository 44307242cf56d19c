package reno

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/reno-project/reno/internal/oci"
	"github.com/reno-project/reno/internal/ocierr"
)

// InitContainer is the entrypoint for the hidden "reno init" subcommand:
// CloneChild re-execs into this, inside the new namespaces, with the
// container identity passed through the environment rather than argv
// (spec.md §4.2, following the teacher's own re-exec convention).
func InitContainer() error {
	id := os.Getenv(envContainerID)
	root := os.Getenv(envRoot)
	bundle := os.Getenv(envBundle)
	if id == "" || root == "" || bundle == "" {
		return ocierr.New(ocierr.PreconditionError, nil, "missing %s/%s/%s in init environment", envContainerID, envRoot, envBundle)
	}

	spec, err := oci.LoadConfig(bundle)
	if err != nil {
		return err
	}
	rootfs := oci.RootfsPath(bundle, spec)
	dir := oci.Dir(root, id)

	server, err := bindContainerSocket(dir)
	if err != nil {
		return err
	}
	defer server.Close()

	// Step 3 of spec.md §4.2: ping the init socket once, so the CLI's
	// blocking WaitReady returns and it can start driving the phase
	// barrier on the container socket just bound above.
	if err := connectInitSocket(dir); err != nil {
		return err
	}
	logrus.Debugf("reno: init socket pinged for %q, entering pipeline", id)

	p := &pipeline{
		id:     id,
		bundle: bundle,
		rootfs: rootfs,
		dir:    dir,
		spec:   spec,
		server: server,
	}
	return p.Run()
}
