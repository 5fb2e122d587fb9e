package connection

import "sync"

// pendingTable tracks in-flight requests awaiting a correlated response.
// Each slot is resolved exactly once; late or unknown responses are
// dropped by the caller.
type pendingTable struct {
	mu    sync.Mutex
	slots map[string]chan Response
}

func newPendingTable() *pendingTable {
	return &pendingTable{
		slots: make(map[string]chan Response),
	}
}

// register creates a slot for the given request id. The returned channel
// receives at most one response.
func (p *pendingTable) register(id string) chan Response {
	ch := make(chan Response, 1)
	p.mu.Lock()
	p.slots[id] = ch
	p.mu.Unlock()
	return ch
}

// resolve delivers a response to its waiting slot. Returns false when no
// matching request is pending.
func (p *pendingTable) resolve(resp Response) bool {
	p.mu.Lock()
	ch, ok := p.slots[resp.RequestID]
	if ok {
		delete(p.slots, resp.RequestID)
	}
	p.mu.Unlock()

	if !ok {
		return false
	}
	ch <- resp
	return true
}

// remove discards a slot without delivering, used when the waiter gives
// up on its own (timeout, cancellation).
func (p *pendingTable) remove(id string) {
	p.mu.Lock()
	delete(p.slots, id)
	p.mu.Unlock()
}

// failAll resolves every pending slot with the given error message and
// empties the table.
func (p *pendingTable) failAll(message string) {
	p.mu.Lock()
	slots := p.slots
	p.slots = make(map[string]chan Response)
	p.mu.Unlock()

	for id, ch := range slots {
		ch <- Response{RequestID: id, Error: message}
	}
}

func (p *pendingTable) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}
