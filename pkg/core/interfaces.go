package core

// Logger interface for human readable render progress output
type Logger interface {
	Printf(format string, args ...interface{})
}

// Occluder answers shadow queries: whether anything lies along a ray
type Occluder interface {
	Occluded(ray Ray) bool
}
