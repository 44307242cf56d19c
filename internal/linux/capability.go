package linux

import (
	"strings"

	"github.com/syndtr/gocapability/capability"

	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/reno-project/reno/internal/ocierr"
)

// capFromString maps an OCI capability name (e.g. "CAP_NET_RAW") to the
// kernel constant gocapability uses, a total enumeration of the 43 OCI
// capability names (spec.md §4.6).
func capFromString(name string) (capability.Cap, error) {
	c := capability.Cap(-1)
	trimmed := strings.TrimPrefix(name, "CAP_")
	for _, known := range capability.List() {
		if strings.EqualFold(known.String(), trimmed) {
			c = known
			break
		}
	}
	if c == capability.Cap(-1) {
		return 0, ocierr.New(ocierr.CapabilityError, nil, "unknown capability %q", name)
	}
	return c, nil
}

func toCaps(names []string) ([]capability.Cap, error) {
	caps := make([]capability.Cap, 0, len(names))
	for _, n := range names {
		c, err := capFromString(n)
		if err != nil {
			return nil, err
		}
		caps = append(caps, c)
	}
	return caps, nil
}

// ApplyBoundingOnly performs just the bounding-set drop half of the
// capability engine (spec.md §4.10 step 8 applies bounding before the
// privilege-drop sequence; the other four sets are applied afterwards
// via ApplyCapabilities).
func ApplyBoundingOnly(caps *specs.LinuxCapabilities) error {
	if caps == nil {
		caps = &specs.LinuxCapabilities{}
	}
	c, err := capability.NewPid2(0)
	if err != nil {
		return ocierr.New(ocierr.CapabilityError, err, "reading process capabilities")
	}
	if err := c.Load(); err != nil {
		return ocierr.New(ocierr.CapabilityError, err, "loading current capability sets")
	}
	return dropBounding(c, caps.Bounding)
}

// ApplyCapabilities implements the set-replacing half of spec.md §4.6:
// the effective, permitted, inheritable and ambient sets are wholesale
// replaced with the desired ones. The bounding set is not touched here;
// ApplyBoundingOnly drops it separately.
func ApplyCapabilities(caps *specs.LinuxCapabilities) error {
	if caps == nil {
		caps = &specs.LinuxCapabilities{}
	}

	c, err := capability.NewPid2(0)
	if err != nil {
		return ocierr.New(ocierr.CapabilityError, err, "reading process capabilities")
	}
	if err := c.Load(); err != nil {
		return ocierr.New(ocierr.CapabilityError, err, "loading current capability sets")
	}

	effective, err := toCaps(caps.Effective)
	if err != nil {
		return err
	}
	permitted, err := toCaps(caps.Permitted)
	if err != nil {
		return err
	}
	inheritable, err := toCaps(caps.Inheritable)
	if err != nil {
		return err
	}
	ambient, err := toCaps(caps.Ambient)
	if err != nil {
		return err
	}

	c.Clear(capability.EFFECTIVE | capability.PERMITTED | capability.INHERITABLE | capability.AMBIENT)
	c.Set(capability.EFFECTIVE, effective...)
	c.Set(capability.PERMITTED, permitted...)
	c.Set(capability.INHERITABLE, inheritable...)
	c.Set(capability.AMBIENT, ambient...)

	if err := c.Apply(capability.EFFECTIVE | capability.PERMITTED | capability.INHERITABLE | capability.AMBIENT); err != nil {
		return ocierr.New(ocierr.CapabilityError, err, "applying capability sets")
	}
	return nil
}

// dropBounding drops every bounding-set bit not present in the desired
// set: the kernel only allows the bounding set to shrink, never grow.
func dropBounding(c capability.Capabilities, desired []string) error {
	keep, err := toCaps(desired)
	if err != nil {
		return err
	}
	keepSet := make(map[capability.Cap]bool, len(keep))
	for _, k := range keep {
		keepSet[k] = true
	}

	for _, cap := range capability.List() {
		if keepSet[cap] {
			continue
		}
		if !c.Get(capability.BOUNDING, cap) {
			continue
		}
		c.Unset(capability.BOUNDING, cap)
	}
	if err := c.Apply(capability.BOUNDING); err != nil {
		return ocierr.New(ocierr.CapabilityError, err, "dropping bounding capabilities")
	}
	return nil
}
