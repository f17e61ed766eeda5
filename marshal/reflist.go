package marshal

import (
	stderrors "errors"
	"sync"

	"github.com/wippyai/embed-runtime/ownership"
)

// RefList tracks the cross-boundary references created while converting
// one value, so a failed conversion can release all of them.
type RefList struct {
	refs []*ownership.Ref
}

var refListPool = sync.Pool{
	New: func() any {
		return &RefList{refs: make([]*ownership.Ref, 0, 8)}
	},
}

// NewRefList takes a list from the pool.
func NewRefList() *RefList {
	return refListPool.Get().(*RefList)
}

const maxPooledRefCapacity = 128

// Release returns the list to the pool without releasing what it tracks.
// The list is invalid afterwards.
func (l *RefList) Release() {
	if cap(l.refs) > maxPooledRefCapacity {
		return
	}
	l.Reset()
	refListPool.Put(l)
}

// Add tracks r.
func (l *RefList) Add(r *ownership.Ref) {
	l.refs = append(l.refs, r)
}

// ReleaseAll releases every tracked reference, newest first, and clears
// the list.
func (l *RefList) ReleaseAll() error {
	var errs []error
	for i := len(l.refs) - 1; i >= 0; i-- {
		if err := l.refs[i].Release(); err != nil {
			errs = append(errs, err)
		}
	}
	l.Reset()
	return stderrors.Join(errs...)
}

func (l *RefList) Reset() {
	clear(l.refs)
	l.refs = l.refs[:0]
}

func (l *RefList) Count() int {
	return len(l.refs)
}
