// Package operation mounts named RPC operations on echo behind a fixed
// decorator chain.
//
// The chain is always
//
//	outer... -> auth -> inner... -> handler
//
// Outer decorators observe every call, including denied ones. Inner
// decorators and the handler only run for authorized callers.
package operation

import (
	"github.com/labstack/echo/v4"
)

// ContextKey is the echo context key holding the operation name.
const ContextKey = "operation"

// Decorator wraps the handler of the named operation.
type Decorator func(operation string, next echo.HandlerFunc) echo.HandlerFunc

// Operation is one logical RPC entry point. Name is stable and independent
// of the transport path.
type Operation struct {
	Name    string
	Method  string
	Path    string
	Handler echo.HandlerFunc
}

// Router is the subset of echo used to mount operations.
type Router interface {
	Add(method, path string, handler echo.HandlerFunc, middleware ...echo.MiddlewareFunc) *echo.Route
}

// Pipeline composes decorators around operation handlers.
type Pipeline struct {
	outer []Decorator
	auth  Decorator
	inner []Decorator
}

// NewPipeline creates a pipeline around the given authorization decorator.
// A pipeline always authorizes, so auth must not be nil.
func NewPipeline(auth Decorator) *Pipeline {
	if auth == nil {
		panic("operation: nil authorization decorator")
	}
	return &Pipeline{auth: auth}
}

// Outer appends decorators that run before authorization. The first one
// added is the outermost.
func (p *Pipeline) Outer(decorators ...Decorator) *Pipeline {
	p.outer = append(p.outer, decorators...)
	return p
}

// Inner appends decorators that run after authorization. The first one
// added is closest to authorization.
func (p *Pipeline) Inner(decorators ...Decorator) *Pipeline {
	p.inner = append(p.inner, decorators...)
	return p
}

// Wrap builds the decorated handler for one operation.
func (p *Pipeline) Wrap(name string, handler echo.HandlerFunc) echo.HandlerFunc {
	wrapped := handler
	for i := len(p.inner) - 1; i >= 0; i-- {
		wrapped = p.inner[i](name, wrapped)
	}
	wrapped = p.auth(name, wrapped)
	for i := len(p.outer) - 1; i >= 0; i-- {
		wrapped = p.outer[i](name, wrapped)
	}

	return func(c echo.Context) error {
		c.Set(ContextKey, name)
		return wrapped(c)
	}
}

// Register mounts every operation on the router.
func (p *Pipeline) Register(router Router, operations ...Operation) {
	for _, op := range operations {
		router.Add(op.Method, op.Path, p.Wrap(op.Name, op.Handler))
	}
}

// Name returns the operation name stored on the context, if any.
func Name(c echo.Context) string {
	name, _ := c.Get(ContextKey).(string)
	return name
}
