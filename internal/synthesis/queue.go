package synthesis

import (
	"container/heap"
	"time"

	"github.com/ordervox/ordervox/pkg/platform"
	"github.com/ordervox/ordervox/pkg/types"
)

// request is one queued speech request. Chunked speak calls produce one
// request per chunk, sharing the caller-visible id.
type request struct {
	id       string
	text     string // processed (tone-rendered, tag-stripped) chunk text
	utter    platform.Utterance
	tone     types.Tone
	priority types.Priority
	cache    bool
	chunked  bool // continuation chunk: pause before speaking
	enqueued time.Time

	// seq keeps insertion order among equal priorities.
	seq uint64

	// group aggregates chunk completions into the caller's handle.
	group *group
}

// requestQueue is a max-heap over priority with FIFO order inside each
// priority tier. Not safe for concurrent use; the engine locks around it.
type requestQueue []*request

var _ heap.Interface = (*requestQueue)(nil)

func (q requestQueue) Len() int { return len(q) }

func (q requestQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority > q[j].priority
	}
	return q[i].seq < q[j].seq
}

func (q requestQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *requestQueue) Push(x any) { *q = append(*q, x.(*request)) }

func (q *requestQueue) Pop() any {
	old := *q
	n := len(old)
	r := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return r
}
