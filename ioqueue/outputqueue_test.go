package ioqueue

import (
	"bytes"
	"sync"
	"testing"

	"github.com/jsl-go/collider/api"
	"github.com/jsl-go/collider/control"
)

func TestAddDataSingleWriter(t *testing.T) {
	q, err := NewOutputQueue(false, 64)
	if err != nil {
		t.Fatalf("NewOutputQueue: %v", err)
	}

	n, err := q.AddData([]byte("hello"))
	if err != nil {
		t.Fatalf("AddData: %v", err)
	}
	if n != 5 {
		t.Fatalf("newly readable = %d, want 5", n)
	}

	iov := make([][]byte, 4)
	got := q.GetData(iov, 5)
	if got != 5 {
		t.Fatalf("GetData returned %d, want 5", got)
	}
	if !bytes.Equal(iov[0], []byte("hello")) {
		t.Fatalf("iov[0] = %q", iov[0])
	}
	q.RemoveData(0, 5)
}

func TestAddDataSpansMultipleBlocks(t *testing.T) {
	q, err := NewOutputQueue(false, 8)
	if err != nil {
		t.Fatalf("NewOutputQueue: %v", err)
	}

	payload := bytes.Repeat([]byte("x"), 20)
	n, err := q.AddData(payload)
	if err != nil {
		t.Fatalf("AddData: %v", err)
	}
	if n != 20 {
		t.Fatalf("newly readable = %d, want 20", n)
	}

	iov := make([][]byte, 8)
	got := q.GetData(iov, 20)
	if got != 20 {
		t.Fatalf("GetData returned %d, want 20", got)
	}
}

func TestConcurrentWritersReportPlausibleDeltas(t *testing.T) {
	q, err := NewOutputQueue(false, 4096)
	if err != nil {
		t.Fatalf("NewOutputQueue: %v", err)
	}

	const writers = 6
	const perWriter = 100
	var wg sync.WaitGroup
	var total int64
	var mu sync.Mutex

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				n, err := q.AddData([]byte("ab"))
				if err != nil {
					t.Errorf("AddData: %v", err)
					return
				}
				mu.Lock()
				total += n
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if total != int64(writers*perWriter*2) {
		t.Fatalf("sum of deltas = %d, want %d", total, writers*perWriter*2)
	}
}

func TestAddDataEmptyIsNoop(t *testing.T) {
	q, err := NewOutputQueue(false, 64)
	if err != nil {
		t.Fatalf("NewOutputQueue: %v", err)
	}
	n, err := q.AddData(nil)
	if err != nil || n != 0 {
		t.Fatalf("AddData(nil) = (%d, %v), want (0, nil)", n, err)
	}
}

func TestCheckWriteSizeRejectsOversizedCall(t *testing.T) {
	if err := checkWriteSize(offsMask + 1); err != api.ErrWriteTooLarge {
		t.Fatalf("err = %v, want ErrWriteTooLarge", err)
	}
	if err := checkWriteSize(offsMask); err != nil {
		t.Fatalf("err = %v, want nil at the boundary", err)
	}
}

func TestStatsPublishesToMetricsRegistry(t *testing.T) {
	metrics := control.NewMetricsRegistry()
	q, err := NewOutputQueue(false, 8, WithOutputMetrics("output_queue_test", metrics))
	if err != nil {
		t.Fatalf("NewOutputQueue: %v", err)
	}

	if _, err := q.AddData(bytes.Repeat([]byte("z"), 20)); err != nil {
		t.Fatalf("AddData: %v", err)
	}

	stats := q.Stats()
	if got := stats["bytes_written"]; got != int64(20) {
		t.Fatalf("bytes_written = %v, want 20", got)
	}
	if got := metrics.GetSnapshot()["output_queue_test.bytes_written"]; got != int64(20) {
		t.Fatalf("registry bytes_written = %v, want 20", got)
	}
}

func TestBlockSizeClamped(t *testing.T) {
	q, err := NewOutputQueue(false, maxBlockSize+1000)
	if err != nil {
		t.Fatalf("NewOutputQueue: %v", err)
	}
	if q.blockSize != maxBlockSize {
		t.Fatalf("blockSize = %d, want %d", q.blockSize, maxBlockSize)
	}
}
