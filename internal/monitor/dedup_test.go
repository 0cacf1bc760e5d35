package monitor

import (
	"fmt"
	"sync"
	"testing"
)

func TestDedupAdmitOnce(t *testing.T) {
	d := NewDedupStore(0)

	if !d.Admit("book", "fp1") {
		t.Error("first Admit should return true")
	}
	if d.Admit("book", "fp1") {
		t.Error("second Admit of the same pair should return false")
	}
	if !d.Admit("book", "fp2") {
		t.Error("new fingerprint should be admitted")
	}
	if !d.Admit("other", "fp1") {
		t.Error("same fingerprint in another conversation should be admitted")
	}
}

func TestDedupAdmitConcurrent(t *testing.T) {
	d := NewDedupStore(0)

	const workers = 16
	var wg sync.WaitGroup
	admitted := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d.Admit("book", "same-fp") {
				admitted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(admitted)

	n := 0
	for range admitted {
		n++
	}
	if n != 1 {
		t.Errorf("%d goroutines admitted the same fingerprint, want exactly 1", n)
	}
}

func TestDedupEviction(t *testing.T) {
	d := NewDedupStore(10)

	for i := 0; i < 11; i++ {
		d.Admit("book", fmt.Sprintf("fp%02d", i))
	}
	// Crossing the cap evicts the oldest half.
	if got := d.Len("book"); got != 6 {
		t.Fatalf("Len after eviction = %d, want 6", got)
	}
	// Evicted entries may be admitted again; retained ones may not.
	if !d.Admit("book", "fp00") {
		t.Error("evicted fingerprint should be re-admissible")
	}
	if d.Admit("book", "fp10") {
		t.Error("retained fingerprint should stay rejected")
	}
}

func TestDedupDrop(t *testing.T) {
	d := NewDedupStore(0)
	d.Admit("book", "fp1")
	d.Drop("book")

	if got := d.Len("book"); got != 0 {
		t.Errorf("Len after Drop = %d, want 0", got)
	}
	if !d.Admit("book", "fp1") {
		t.Error("dropped conversation should start fresh")
	}
}
