package octra

import "sync"

// nonceTracker remembers the last nonce this process submitted so that successive transactions keep increasing even
// when the node has not yet reflected earlier ones.
type nonceTracker struct {
	lock sync.Mutex
	last uint64
	used bool
}

// next returns the nonce for the next transaction given the account nonce reported by the node.
func (t *nonceTracker) next(nodeNonce uint64) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.used && t.last > nodeNonce {
		return t.last + 1
	}
	return nodeNonce + 1
}

// commit records a nonce that the node accepted.
func (t *nonceTracker) commit(nonce uint64) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if !t.used || nonce > t.last {
		t.last = nonce
		t.used = true
	}
}
