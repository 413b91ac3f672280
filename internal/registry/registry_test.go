package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/modmail-service/internal/domain"
	util "github.com/spec-kit/modmail-service/pkg/util"
)

func TestReserveConcurrentSingleWinner(t *testing.T) {
	r := NewRegistry()
	const attempts = 64

	var wg sync.WaitGroup
	var mu sync.Mutex
	var winners []*OpenTicket
	var conflicts int

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticket, err := r.Reserve("user-1", false)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if !util.HasCode(err, util.CodeAlreadyOpen) {
					t.Errorf("unexpected error code: %v", err)
				}
				conflicts++
				return
			}
			winners = append(winners, ticket)
		}()
	}
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("expected exactly one successful reserve, got %d", len(winners))
	}
	if conflicts != attempts-1 {
		t.Fatalf("expected %d conflicts, got %d", attempts-1, conflicts)
	}
	if r.Count() != 1 {
		t.Fatalf("expected count 1, got %d", r.Count())
	}
}

func TestReleaseAllowsReopen(t *testing.T) {
	r := NewRegistry()
	first, err := r.Reserve("user-1", false)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	r.Release(first.ID())

	if _, ok := r.Lookup("user-1"); ok {
		t.Fatal("lookup should miss after release")
	}
	if _, err := r.Reserve("user-1", false); err != nil {
		t.Fatalf("reserve after release: %v", err)
	}
	// releasing twice is a no-op
	r.Release(first.ID())
	if r.Count() != 1 {
		t.Fatalf("expected count 1, got %d", r.Count())
	}
}

func TestAppendPreservesOrder(t *testing.T) {
	r := NewRegistry()
	ticket, err := r.Reserve("user-1", false)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	bodies := []string{"first", "second", "third", "fourth"}
	for _, body := range bodies {
		if _, err := ticket.Append(domain.TranscriptEntry{AuthorRole: domain.AuthorRoleUser, Body: body}); err != nil {
			t.Fatalf("append %q: %v", body, err)
		}
	}

	entries := ticket.Entries()
	if len(entries) != len(bodies) {
		t.Fatalf("expected %d entries, got %d", len(bodies), len(entries))
	}
	for i, entry := range entries {
		if entry.Seq != i {
			t.Errorf("entry %d has seq %d", i, entry.Seq)
		}
		if entry.Body != bodies[i] {
			t.Errorf("entry %d body %q, want %q", i, entry.Body, bodies[i])
		}
	}
}

func TestAppendRejectedAfterClose(t *testing.T) {
	r := NewRegistry()
	ticket, err := r.Reserve("user-1", false)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := ticket.BeginClose(); err != nil {
		t.Fatalf("begin close: %v", err)
	}

	if _, err := ticket.Append(domain.TranscriptEntry{Body: "late"}); !util.HasCode(err, util.CodeTicketClosed) {
		t.Fatalf("expected TICKET_CLOSED while closing, got %v", err)
	}

	ticket.FinishClose(time.Now())
	if _, err := ticket.Append(domain.TranscriptEntry{Body: "later"}); !util.HasCode(err, util.CodeTicketClosed) {
		t.Fatalf("expected TICKET_CLOSED after close, got %v", err)
	}
}

func TestBeginCloseTransitions(t *testing.T) {
	r := NewRegistry()
	ticket, err := r.Reserve("user-1", false)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if err := ticket.BeginClose(); err != nil {
		t.Fatalf("open -> closing: %v", err)
	}
	if ticket.Status() != domain.TicketStatusClosing {
		t.Fatalf("status %s, want CLOSING", ticket.Status())
	}
	// retrying a failed close is allowed
	if err := ticket.BeginClose(); err != nil {
		t.Fatalf("closing -> closing: %v", err)
	}

	ticket.FinishClose(time.Now())
	if ticket.Status() != domain.TicketStatusClosed {
		t.Fatalf("status %s, want CLOSED", ticket.Status())
	}
	if err := ticket.BeginClose(); !util.HasCode(err, util.CodeTicketClosed) {
		t.Fatalf("expected TICKET_CLOSED on closed ticket, got %v", err)
	}
}

func TestFinishCloseClearsTags(t *testing.T) {
	r := NewRegistry()
	ticket, err := r.Reserve("user-1", false)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	ticket.AddTag("wave-1")
	ticket.AddTag("wave-2")
	if got := ticket.Tags(); len(got) != 2 {
		t.Fatalf("expected 2 tags, got %v", got)
	}
	ticket.RemoveTag("wave-2")
	if got := ticket.Tags(); len(got) != 1 || got[0] != "wave-1" {
		t.Fatalf("expected [wave-1], got %v", got)
	}

	if err := ticket.BeginClose(); err != nil {
		t.Fatalf("begin close: %v", err)
	}
	ticket.FinishClose(time.Now())
	if got := ticket.Tags(); len(got) != 0 {
		t.Fatalf("expected no tags after close, got %v", got)
	}
}
