package buffers

import (
	"testing"

	"github.com/pinesagetechnology/filemonitor/internal/constants"
)

func TestGetReturnsCorrectSize(t *testing.T) {
	buf := Get()
	if buf == nil {
		t.Fatal("Get returned nil")
	}
	if len(*buf) != constants.UploadChunkSize {
		t.Errorf("buffer size = %d, want %d", len(*buf), constants.UploadChunkSize)
	}
	Put(buf)
}

func TestPutWrongSizeIsDropped(t *testing.T) {
	wrongSize := make([]byte, 1024)
	Put(&wrongSize) // must not panic, and must not be pooled
}

func TestPutNilIsNoop(t *testing.T) {
	Put(nil)
}

func TestConcurrentGetPut(t *testing.T) {
	const goroutines = 10
	const iterations = 100

	done := make(chan struct{}, goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			for j := 0; j < iterations; j++ {
				buf := Get()
				(*buf)[0] = byte(j)
				Put(buf)
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < goroutines; i++ {
		<-done
	}
}
