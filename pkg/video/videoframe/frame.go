package videoframe

type Dimensions struct {
	W, H int
}

// Frame is a decoded raster owned by exactly one pipeline iteration.
// DataRef exposes the backend specific buffer, type asserted by the
// backend (or detector) that understands it.
type Frame interface {
	DataRef() interface{}
	Dimensions() Dimensions
	Clone() Frame
	Close()
}

// NoCloser is a frame handed to a consumer that must not release it.
type NoCloser interface {
	DataRef() interface{}
	Dimensions() Dimensions
}
