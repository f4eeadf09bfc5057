// Package gpuhandle defines the opaque handle type shared by every backend-
// owned object in the render frontend: buffers, images, image views,
// pipelines, parameter sets, parameter-set layouts, frame-lifetime
// allocators, surfaces, passes, and code modules all flow through the
// engines as Handle values rather than concrete backend pointers.
package gpuhandle

import "sync/atomic"

// Handle is an opaque reference to a backend-owned object. The zero value
// is Invalid and is distinguished from every handle ever minted.
type Handle uint64

// Invalid is the distinguished zero-equivalent handle value.
const Invalid Handle = 0

// Valid reports whether h refers to a live backend object.
func (h Handle) Valid() bool {
	return h != Invalid
}

// source mints sequential, process-unique handle values. It backs every
// handle kind minted through Next; a single global counter keeps handles unique across
// kinds so that logging a raw Handle value is still useful for spotting
// cross-kind misuse during debugging.
var source uint64

// Next mints a fresh, never-repeating handle. Kind-specific pools
// (descarena, paramset, pipelinestore,...) call this rather than
// maintaining their own counters.
func Next() Handle {
	return Handle(atomic.AddUint64(&source, 1))
}
