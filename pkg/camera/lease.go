package camera

import (
	"errors"
	"fmt"
	"sync"
)

// ErrBusy is returned when a camera already has an active session.
var ErrBusy = errors.New("camera: device already in use")

// Leases enforces one active capture session per camera.
type Leases struct {
	mu     sync.Mutex
	owners map[string]string
}

// NewLeases creates an empty lease registry.
func NewLeases() *Leases {
	return &Leases{owners: make(map[string]string)}
}

// Acquire claims camera for owner. The returned release func is idempotent.
func (l *Leases) Acquire(camera, owner string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cur, ok := l.owners[camera]; ok {
		return nil, fmt.Errorf("%w: %s held by %s", ErrBusy, camera, cur)
	}
	l.owners[camera] = owner

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.owners[camera] == owner {
				delete(l.owners, camera)
			}
		})
	}, nil
}

// Owner returns the session holding camera, if any.
func (l *Leases) Owner(camera string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.owners[camera]
	return o, ok
}
