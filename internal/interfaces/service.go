package interfaces

// Service interface defines the methods that every user facing interface of
// the daemon must be compliant with.
type Service interface {
	// Start makes the interface serve requests. It must not block.
	Start() error
	// Stop gracefully stops serving requests.
	Stop()
}
