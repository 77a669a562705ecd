package store

// resultRing keeps the most recent execution results in memory so
// recent-activity queries don't hit the durable backend.
//
// Not safe for concurrent use; the owning Store serializes access.
type resultRing struct {
	buf  []ExecutionResult
	next int
	full bool
}

func newResultRing(capacity int) *resultRing {
	if capacity <= 0 {
		capacity = 1000
	}
	return &resultRing{buf: make([]ExecutionResult, capacity)}
}

func (r *resultRing) append(res ExecutionResult) {
	r.buf[r.next] = res
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

// recent returns up to n results, newest first. An empty jobID matches all jobs.
func (r *resultRing) recent(jobID string, n int) []ExecutionResult {
	if n <= 0 {
		return nil
	}
	size := r.next
	if r.full {
		size = len(r.buf)
	}
	out := make([]ExecutionResult, 0, n)
	for i := 0; i < size && len(out) < n; i++ {
		idx := r.next - 1 - i
		if idx < 0 {
			idx += len(r.buf)
		}
		res := r.buf[idx]
		if jobID != "" && res.JobID != jobID {
			continue
		}
		out = append(out, res)
	}
	return out
}

func (r *resultRing) len() int {
	if r.full {
		return len(r.buf)
	}
	return r.next
}
