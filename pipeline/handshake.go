package pipeline

// handshake is a counting token. Released tokens sit in the channel's buffer, so the
// capacity must be at least the largest number of tokens that can be outstanding.
//
// A release happens before the wait that consumes it returns. That is the only thing
// ordering the writes and reads of the shared buffers.
type handshake chan struct{}

func newHandshake(capacity, initial int) handshake {
	h := make(handshake, capacity)
	h.release(initial)
	return h
}

func newHandshakes(n, capacity, initial int) []handshake {
	retVal := make([]handshake, n)
	for i := range retVal {
		retVal[i] = newHandshake(capacity, initial)
	}
	return retVal
}

// wait blocks until n tokens have been taken.
func (h handshake) wait(n int) {
	for i := 0; i < n; i++ {
		<-h
	}
}

// release hands out n tokens.
func (h handshake) release(n int) {
	for i := 0; i < n; i++ {
		h <- struct{}{}
	}
}

func releaseAll(hs []handshake) {
	for _, h := range hs {
		h.release(1)
	}
}
