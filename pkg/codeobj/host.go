package codeobj

import "github.com/chazu/bcasm/pkg/isa"

// Host is a runtime that can load code objects for execution.
type Host interface {
	// Descriptor returns the instruction set the host executes.
	Descriptor() *isa.Descriptor
	// Load makes c available to the host.
	Load(c *CodeObject) error
}

// Bind hands c to h after checking that c was built for the instruction set
// h executes. Incompatible code is rejected before h sees it.
func (c *CodeObject) Bind(h Host) error {
	hostDesc := h.Descriptor()
	if hostDesc == nil {
		return ErrNoDescriptor
	}
	if c.Fingerprint != hostDesc.Fingerprint() {
		log.Infof("refusing to bind %s: built for %s, host runs %s", c.displayName(), c.ISA, hostDesc.Name())
		return &CompatibilityError{Unit: c.ISA, Host: hostDesc.Name()}
	}
	return h.Load(c)
}
