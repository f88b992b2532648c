// Package buffers provides a reusable byte-buffer pool for streaming reads
// during blob uploads, avoiding a fresh allocation per file.
package buffers

import (
	"sync"

	"github.com/pinesagetechnology/filemonitor/internal/constants"
)

// pool holds UploadChunkSize buffers for reuse across upload streams.
var pool = &sync.Pool{
	New: func() interface{} {
		buf := make([]byte, constants.UploadChunkSize)
		return &buf
	},
}

// Get retrieves a chunk buffer from the pool. The buffer must be returned
// via Put when the caller is done with it.
//
//	buf := buffers.Get()
//	defer buffers.Put(buf)
//	n, err := r.Read(*buf)
func Get() *[]byte {
	return pool.Get().(*[]byte)
}

// Put returns a buffer to the pool for reuse. Buffers of an unexpected size
// are dropped rather than pooled.
func Put(buf *[]byte) {
	if buf != nil && len(*buf) == constants.UploadChunkSize {
		pool.Put(buf)
	}
}
