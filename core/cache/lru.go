package cache

// handle indexes into an lru's node arena. nilHandle marks "no node" —
// prev/next/head/tail all use it in place of a nil pointer (§9: "implement
// via arena of nodes indexed by integer handles ... prev/next are
// handles, not raw references. This avoids ownership cycles and
// simplifies safe mutation under a single lock").
type handle int32

const nilHandle handle = -1

type node struct {
	key        string
	value      []byte // ciphertext; lru never sees plaintext
	size       int
	expireAtMs int64 // 0 means no expiry
	prev, next handle
}

// lru is one namespace's bytes-bounded doubly linked list plus its
// key -> handle index. Every method assumes the caller already holds
// the owning store's lock.
type lru struct {
	nodes []node
	free  []handle
	index map[string]handle
	head  handle
	tail  handle

	sizeBytes int64
}

func newLRU() *lru {
	return &lru{
		index: make(map[string]handle),
		head:  nilHandle,
		tail:  nilHandle,
	}
}

func (l *lru) alloc() handle {
	if n := len(l.free); n > 0 {
		h := l.free[n-1]
		l.free = l.free[:n-1]
		return h
	}
	l.nodes = append(l.nodes, node{})
	return handle(len(l.nodes) - 1)
}

func (l *lru) unlink(h handle) {
	n := &l.nodes[h]
	if n.prev != nilHandle {
		l.nodes[n.prev].next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nilHandle {
		l.nodes[n.next].prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev, n.next = nilHandle, nilHandle
}

func (l *lru) pushFront(h handle) {
	n := &l.nodes[h]
	n.prev = nilHandle
	n.next = l.head
	if l.head != nilHandle {
		l.nodes[l.head].prev = h
	}
	l.head = h
	if l.tail == nilHandle {
		l.tail = h
	}
}

func (l *lru) moveToFront(h handle) {
	if l.head == h {
		return
	}
	l.unlink(h)
	l.pushFront(h)
}

func (l *lru) removeHandle(h handle) int64 {
	n := l.nodes[h]
	l.unlink(h)
	delete(l.index, n.key)
	l.sizeBytes -= int64(n.size)
	l.nodes[h] = node{}
	l.free = append(l.free, h)
	return int64(n.size)
}

// set inserts key at the front, or replaces it in place if already
// present, and returns the net change to sizeBytes.
func (l *lru) set(key string, value []byte, size int, expireAtMs int64) int64 {
	if h, ok := l.index[key]; ok {
		old := l.nodes[h].size
		l.nodes[h].value = value
		l.nodes[h].size = size
		l.nodes[h].expireAtMs = expireAtMs
		l.moveToFront(h)
		delta := int64(size - old)
		l.sizeBytes += delta
		return delta
	}

	h := l.alloc()
	l.nodes[h] = node{key: key, value: value, size: size, expireAtMs: expireAtMs, prev: nilHandle, next: nilHandle}
	l.pushFront(h)
	l.index[key] = h
	l.sizeBytes += int64(size)
	return int64(size)
}

// get returns the entry's raw value and whether it was found. If the
// entry has expired it is removed instead, and freed reports the bytes
// released so the caller can adjust the store's global counter.
func (l *lru) get(key string, nowMs int64) (value []byte, ok bool, freed int64) {
	h, exists := l.index[key]
	if !exists {
		return nil, false, 0
	}
	n := &l.nodes[h]
	if n.expireAtMs != 0 && nowMs >= n.expireAtMs {
		freed = l.removeHandle(h)
		return nil, false, freed
	}
	l.moveToFront(h)
	return n.value, true, 0
}

func (l *lru) delete(key string) int64 {
	h, ok := l.index[key]
	if !ok {
		return 0
	}
	return l.removeHandle(h)
}

// evictTail removes the least-recently-used entry, if any exists, and
// reports the bytes freed.
func (l *lru) evictTail() int64 {
	if l.tail == nilHandle {
		return 0
	}
	return l.removeHandle(l.tail)
}

func (l *lru) has(key string) bool {
	_, ok := l.index[key]
	return ok
}

func (l *lru) size() int { return len(l.index) }

func (l *lru) keys() []string {
	out := make([]string, 0, len(l.index))
	for h := l.head; h != nilHandle; h = l.nodes[h].next {
		out = append(out, l.nodes[h].key)
	}
	return out
}

func (l *lru) paginatedKeys(page, pageSize int) []string {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	all := l.keys()
	start := (page - 1) * pageSize
	if start >= len(all) {
		return []string{}
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

func (l *lru) values() [][]byte {
	out := make([][]byte, 0, len(l.index))
	for h := l.head; h != nilHandle; h = l.nodes[h].next {
		out = append(out, l.nodes[h].value)
	}
	return out
}
