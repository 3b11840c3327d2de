package shatter

// Client is a same-process caller mirroring a descriptor's path table. It is
// a generic proxy keyed by path string: no reflection-synthesized attribute
// table, just the registry's own view of what may be called.
type Client struct {
	mapping  *BoundMapping
	registry *Registry
}

// NewClient binds the implementation and returns a client over its mapping.
func NewClient(impl *Implementation) (*Client, error) {
	mapping, err := impl.Bind()
	if err != nil {
		return nil, err
	}
	reg, err := impl.desc.Registry()
	if err != nil {
		return nil, err
	}
	return &Client{mapping: mapping, registry: reg}, nil
}

// Call dispatches a request to the named path.
func (c *Client) Call(path string, req *RequestCtx) (*Response, error) {
	if _, ok := c.registry.Lookup(path); !ok {
		return nil, &PathNotFoundError{Path: path}
	}
	return c.mapping.Dispatch(path, req)
}

// Paths returns every callable path in registration order.
func (c *Client) Paths() []string {
	return c.registry.Paths()
}

// Describe returns the declared response set for a path.
func (c *Client) Describe(path string) ([]ResponseInfo, error) {
	w, ok := c.registry.Lookup(path)
	if !ok {
		return nil, &PathNotFoundError{Path: path}
	}
	return w.ResponseDescriptions(), nil
}
