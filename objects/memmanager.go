package objects

import (
	"context"
	"sort"
	"sync"
)

/*
memmanager is an in-memory implementation of the Manager interface. It is
only suitable for usage in testing.
*/

////////////////////////////////////////////////////////////////////////////////

type memobject struct {
	key       string
	size      int64
	committed bool
	ranges    []StreamRange
}

type memmanager struct {
	mtx     sync.Mutex
	nextID  uint64
	objects map[uint64]*memobject
}

func NewMemManager() Manager {
	return &memmanager{
		objects: map[uint64]*memobject{},
	}
}

func (m *memmanager) Prepare(ctx context.Context) (Prepared, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.nextID++
	id := m.nextID
	key := objectKey(id)
	m.objects[id] = &memobject{key: key}
	return Prepared{ObjectID: id, Key: key}, nil
}

func (m *memmanager) Commit(ctx context.Context, req CommitRequest) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	object, ok := m.objects[req.ObjectID]
	if !ok {
		return UnknownObjectError{req.ObjectID}
	}
	if object.committed {
		return ObjectCommittedError{req.ObjectID}
	}
	object.size = req.Size
	object.ranges = append(object.ranges, req.Ranges...)
	object.committed = true
	return nil
}

func (m *memmanager) Lookup(
	ctx context.Context, streamID uint64, start, end uint64) ([]ObjectRange, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	results := []ObjectRange{}
	for _, object := range m.objects {
		if !object.committed {
			continue
		}
		for _, r := range object.ranges {
			if r.StreamID == streamID && r.StartOffset < end && r.EndOffset > start {
				results = append(results, ObjectRange{Key: object.key, StreamRange: r})
			}
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].StartOffset < results[j].StartOffset
	})
	return results, nil
}
