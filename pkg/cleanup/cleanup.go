// Package cleanup tracks the temporary paths an install operation has
// materialized so an interrupt can remove them all and exit 130, using a
// simple register/remove-all shape with a single success/interrupt fork
// (no debug/preserve flags).
package cleanup

import (
	"sync"

	"github.com/flanksource/commons/logger"

	"github.com/chaifeng/ghri-go/pkg/host"
)

// Context accumulates paths registered during a single operation. Call
// Register as each temp file/dir/target dir is created; call Unregister
// once the operation commits successfully. If RemoveAll is invoked first
// (by the interrupt handler), every still-registered path is removed
// best-effort.
type Context struct {
	mu    sync.Mutex
	host  host.Host
	paths []string
}

// New returns a Context backed by h.
func New(h host.Host) *Context {
	return &Context{host: h}
}

// Register records path for cleanup. Empty paths are ignored.
func (c *Context) Register(path string) {
	if path == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths = append(c.paths, path)
}

// Unregister drops path from the cleanup set, called once the install that
// created it has committed (its version directory and links now belong to
// the repository, not to this operation's temp state).
func (c *Context) Unregister(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.paths[:0]
	for _, p := range c.paths {
		if p != path {
			out = append(out, p)
		}
	}
	c.paths = out
}

// RemoveAll removes every still-registered path, best-effort, logging but
// not failing on individual errors, then clears the set. Intended to run
// from the interrupt signal handler immediately before the process exits
// with the conventional interrupt code.
func (c *Context) RemoveAll() {
	c.mu.Lock()
	paths := c.paths
	c.paths = nil
	c.mu.Unlock()

	for _, p := range paths {
		if err := c.host.RemoveAll(p); err != nil {
			logger.Debugf("cleanup: failed to remove %s: %v", p, err)
		}
	}
}
