package store

import (
	"container/list"

	"github.com/llehouerou/noticed/internal/notification"
)

// orderedMap is an insertion-ordered id -> notification map with O(1)
// removal by id and from the oldest end.
type orderedMap struct {
	order *list.List
	index map[uint32]*list.Element
}

func newOrderedMap() *orderedMap {
	return &orderedMap{
		order: list.New(),
		index: make(map[uint32]*list.Element),
	}
}

func (m *orderedMap) len() int {
	return len(m.index)
}

func (m *orderedMap) has(id uint32) bool {
	_, ok := m.index[id]
	return ok
}

func (m *orderedMap) get(id uint32) (*notification.Notification, bool) {
	e, ok := m.index[id]
	if !ok {
		return nil, false
	}
	return e.Value.(*notification.Notification), true
}

// push appends n as the newest entry, dropping any previous entry for its id.
func (m *orderedMap) push(n *notification.Notification) {
	m.remove(n.ID)
	m.index[n.ID] = m.order.PushBack(n)
}

func (m *orderedMap) remove(id uint32) (*notification.Notification, bool) {
	e, ok := m.index[id]
	if !ok {
		return nil, false
	}
	delete(m.index, id)
	return m.order.Remove(e).(*notification.Notification), true
}

func (m *orderedMap) popOldest() (*notification.Notification, bool) {
	e := m.order.Front()
	if e == nil {
		return nil, false
	}
	n := m.order.Remove(e).(*notification.Notification)
	delete(m.index, n.ID)
	return n, true
}

// newestFirst calls fn for each entry from newest to oldest.
func (m *orderedMap) newestFirst(fn func(*notification.Notification)) {
	for e := m.order.Back(); e != nil; e = e.Prev() {
		fn(e.Value.(*notification.Notification))
	}
}

func (m *orderedMap) clear() {
	m.order.Init()
	clear(m.index)
}
