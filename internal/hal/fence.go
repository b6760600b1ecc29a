package hal

import "fmt"

// Fence is a synchronization handle that signals when a buffer may be reused.
// Fences are passed by value; whoever received one last from the backend owns
// it. The zero value is NoFence, meaning the buffer is already safe.
type Fence struct {
	id uint64
}

// NoFence is the "already safe" sentinel.
var NoFence = Fence{}

// NewFence wraps a backend fence identifier. An id of zero yields NoFence.
func NewFence(id uint64) Fence {
	return Fence{id: id}
}

// Valid reports whether f refers to a real fence.
func (f Fence) Valid() bool {
	return f.id != 0
}

// ID returns the backend identifier of the fence.
func (f Fence) ID() uint64 {
	return f.id
}

func (f Fence) String() string {
	if !f.Valid() {
		return "no-fence"
	}
	return fmt.Sprintf("fence#%d", f.id)
}
