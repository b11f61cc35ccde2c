package world

import "github.com/annel0/voxel-engine/internal/vec"

// Request запрос на генерацию чанка
type Request struct {
	Key   vec.ChunkKey
	Coord vec.Vec3
}

// requestQueue FIFO очередь запросов без дубликатов
type requestQueue struct {
	items []Request
	index map[vec.ChunkKey]struct{}
}

func newRequestQueue() *requestQueue {
	return &requestQueue{index: make(map[vec.ChunkKey]struct{})}
}

// push добавляет запрос, если такого ключа ещё нет в очереди
func (q *requestQueue) push(coord vec.Vec3) bool {
	key := vec.PackKey(coord)
	if _, ok := q.index[key]; ok {
		return false
	}
	q.index[key] = struct{}{}
	q.items = append(q.items, Request{Key: key, Coord: coord})
	return true
}

func (q *requestQueue) contains(key vec.ChunkKey) bool {
	_, ok := q.index[key]
	return ok
}

// popN снимает до n запросов из головы очереди
func (q *requestQueue) popN(n int) []Request {
	if n > len(q.items) {
		n = len(q.items)
	}
	out := make([]Request, n)
	copy(out, q.items[:n])
	q.items = append(q.items[:0], q.items[n:]...)
	for _, r := range out {
		delete(q.index, r.Key)
	}
	return out
}

// removeIf удаляет запросы, для которых drop вернул true. Возвращает число удалённых.
func (q *requestQueue) removeIf(drop func(Request) bool) int {
	kept := q.items[:0]
	removed := 0
	for _, r := range q.items {
		if drop(r) {
			delete(q.index, r.Key)
			removed++
			continue
		}
		kept = append(kept, r)
	}
	q.items = kept
	return removed
}

func (q *requestQueue) len() int {
	return len(q.items)
}
