package utils

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNextAlertIDUnique(t *testing.T) {
	g, err := NewIDGenerator(7)
	if err != nil {
		t.Fatal(err)
	}

	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				id := g.NextAlertID(at)
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != 4000 {
		t.Fatalf("generated %d unique ids, want 4000", len(seen))
	}
	for id := range seen {
		if !strings.HasPrefix(id, "ALT-2026-") {
			t.Fatalf("unexpected id format %q", id)
		}
		break
	}
}

func TestNewIDGeneratorRejectsBadNode(t *testing.T) {
	if _, err := NewIDGenerator(5000); err == nil {
		t.Fatal("expected error for node id out of range")
	}
}
