package srv

import "context"

// cleanup adapts a close function into a Service so resource teardown
// rides the same shutdown ordering as long-running services.
type cleanup struct {
	name string
	fn   func() error
}

func (c *cleanup) Start(context.Context) error { return nil }

func (c *cleanup) Shutdown(context.Context) error {
	if c.fn == nil {
		return nil
	}
	return c.fn()
}

func (c *cleanup) String() string { return "cleanup:" + c.name }

func NewCleanup(name string, fn func() error) Service {
	return &cleanup{name: name, fn: fn}
}
