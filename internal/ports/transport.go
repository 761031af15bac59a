package ports

// Transport creates handles for individual beacon requests.
type Transport interface {
	// CreateTransport prepares a request. A nil handle or a non-nil error is
	// treated as a permanent failure by the caller.
	CreateTransport(method, url string) (TransportHandle, error)
}

// TransportHandle is a single fire-and-forget request.
type TransportHandle interface {
	// OnError registers the callback fired when the request fails.
	OnError(fn func(error))

	// Send transmits the payload. It must not report failure by panicking.
	Send(payload []byte)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(method, url string) (TransportHandle, error)

// CreateTransport calls f.
func (f TransportFunc) CreateTransport(method, url string) (TransportHandle, error) {
	return f(method, url)
}
