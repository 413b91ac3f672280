package service

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/modmail-service/internal/domain"
	util "github.com/spec-kit/modmail-service/pkg/util"
)

type groupFixture struct {
	*ticketFixture
	repo   *fakeGroupTags
	groups *GroupService
}

func newGroupFixture(t *testing.T) *groupFixture {
	t.Helper()
	base := newTicketFixture(testDiscordConfig())
	repo := newFakeGroupTags()
	groups := NewGroupService(GroupDependencies{
		GroupTagRepo: repo,
		Registry:     base.registry,
		Threads:      base.threads,
		Tickets:      base.tickets,
		Dispatcher:   base.dispatcher,
		Logger:       zap.NewNop(),
	})
	return &groupFixture{ticketFixture: base, repo: repo, groups: groups}
}

func TestAddMemberSurvivesConcurrentDetach(t *testing.T) {
	f := newGroupFixture(t)
	ctx := context.Background()

	ticket, err := f.tickets.OpenTicket(ctx, "user-1", "alice", "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	// A detach landing mid-attach must not leave the member write a nil map.
	f.threads.ensureLabelHook = func(name string) {
		if err := f.groups.RemoveMember(ctx, name, "ghost"); err != nil {
			t.Errorf("interleaved detach: %v", err)
		}
	}
	if err := f.groups.AddMember(ctx, "wave-1", ticket.ID()); err != nil {
		t.Fatalf("add member: %v", err)
	}

	tags := f.groups.Tags()
	if len(tags) != 1 || len(tags[0].MemberIDs) != 1 || tags[0].MemberIDs[0] != ticket.ID() {
		t.Fatalf("membership lost to interleaved detach, got %+v", tags)
	}
}

func TestAddMemberRemoveMemberRace(t *testing.T) {
	f := newGroupFixture(t)
	ctx := context.Background()

	ticket, err := f.tickets.OpenTicket(ctx, "user-1", "alice", "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := f.groups.AddMember(ctx, "wave-1", ticket.ID()); err != nil {
				t.Errorf("add member: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if err := f.groups.RemoveMember(ctx, "wave-1", ticket.ID()); err != nil {
				t.Errorf("remove member: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestSendManySkipsAlreadyOpen(t *testing.T) {
	f := newGroupFixture(t)
	ctx := context.Background()

	// user-2 already has an open ticket
	if _, err := f.tickets.OpenTicket(ctx, "user-2", "bob", ""); err != nil {
		t.Fatalf("pre-open: %v", err)
	}

	results, err := f.groups.SendMany(ctx, "wave-1", "mod", []string{"user-1", "user-2", "user-3"}, "maintenance tonight")
	if err != nil {
		t.Fatalf("sendmany: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	byUser := make(map[string]BulkResult, len(results))
	for _, result := range results {
		byUser[result.UserID] = result
	}
	if !byUser["user-1"].Succeeded || !byUser["user-3"].Succeeded {
		t.Fatalf("expected user-1 and user-3 to succeed: %+v", results)
	}
	if byUser["user-2"].Succeeded || byUser["user-2"].ErrorCode != util.CodeAlreadyOpen {
		t.Fatalf("expected user-2 to fail with ALREADY_OPEN: %+v", byUser["user-2"])
	}

	tags := f.groups.Tags()
	if len(tags) != 1 || tags[0].Name != "wave-1" || len(tags[0].MemberIDs) != 2 {
		t.Fatalf("expected wave-1 with 2 members, got %+v", tags)
	}
	// user-2's pre-existing ticket stays untagged
	preexisting, _ := f.registry.Lookup("user-2")
	if got := preexisting.Tags(); len(got) != 0 {
		t.Fatalf("pre-existing ticket must not be attached, got %v", got)
	}
}

func TestBroadcastReplyDeliversToAllMembers(t *testing.T) {
	f := newGroupFixture(t)
	ctx := context.Background()

	if _, err := f.groups.SendMany(ctx, "wave-1", "mod", []string{"user-1", "user-2"}, "hello"); err != nil {
		t.Fatalf("sendmany: %v", err)
	}
	results, err := f.groups.Broadcast(ctx, "wave-1", BulkAction{Kind: BulkActionReply, StaffName: "mod", Body: "update: fixed"})
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	for _, result := range results {
		if !result.Succeeded {
			t.Fatalf("expected all deliveries to succeed: %+v", results)
		}
	}
	for _, userID := range []string{"user-1", "user-2"} {
		directs := f.threads.directs[userID]
		if len(directs) == 0 || directs[len(directs)-1] != "update: fixed" {
			t.Fatalf("user %s did not receive the broadcast: %v", userID, directs)
		}
	}
}

func TestBroadcastAnonymousReplyMarksEntries(t *testing.T) {
	f := newGroupFixture(t)
	ctx := context.Background()

	ticket, err := f.tickets.OpenTicket(ctx, "user-1", "alice", "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := f.groups.AddMember(ctx, "wave-1", ticket.ID()); err != nil {
		t.Fatalf("add member: %v", err)
	}

	if _, err := f.groups.Broadcast(ctx, "wave-1", BulkAction{Kind: BulkActionReply, StaffName: "mod", Body: "heads up", Anonymous: true}); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	entries := ticket.Entries()
	last := entries[len(entries)-1]
	if !last.Anonymized {
		t.Fatal("anonymous broadcast must mark the transcript entry")
	}
	if last.AuthorName != "mod" {
		t.Fatalf("transcript must still record the operator, got %q", last.AuthorName)
	}
}

func TestBroadcastCloseDeletesTag(t *testing.T) {
	f := newGroupFixture(t)
	ctx := context.Background()

	if _, err := f.groups.SendMany(ctx, "wave-1", "mod", []string{"user-1", "user-2"}, "hello"); err != nil {
		t.Fatalf("sendmany: %v", err)
	}
	results, err := f.groups.Broadcast(ctx, "wave-1", BulkAction{Kind: BulkActionClose, Reason: "incident over"})
	if err != nil {
		t.Fatalf("close broadcast: %v", err)
	}
	for _, result := range results {
		if !result.Succeeded {
			t.Fatalf("expected all closes to succeed: %+v", results)
		}
	}

	if f.registry.Count() != 0 {
		t.Fatalf("expected no open tickets, got %d", f.registry.Count())
	}
	if tags := f.groups.Tags(); len(tags) != 0 {
		t.Fatalf("tag must be gone once emptied, got %+v", tags)
	}
	if f.threads.hasLabel("wave-1") {
		t.Fatal("platform label must be deleted")
	}
	if rows, _ := f.repo.LoadAll(ctx); len(rows["wave-1"]) != 0 {
		t.Fatalf("durable rows must be gone, got %v", rows)
	}

	// a later broadcast against the deleted tag fails as a whole
	if _, err := f.groups.Broadcast(ctx, "wave-1", BulkAction{Kind: BulkActionReply, Body: "anyone?"}); !util.HasCode(err, util.CodeNoSuchTag) {
		t.Fatalf("expected NO_SUCH_TAG, got %v", err)
	}
}

func TestRemoveMemberDeletesEmptiedTag(t *testing.T) {
	f := newGroupFixture(t)
	ctx := context.Background()

	ticket, err := f.tickets.OpenTicket(ctx, "user-1", "alice", "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := f.groups.AddMember(ctx, "wave-1", ticket.ID()); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if err := f.groups.RemoveMember(ctx, "wave-1", ticket.ID()); err != nil {
		t.Fatalf("remove member: %v", err)
	}

	if tags := f.groups.Tags(); len(tags) != 0 {
		t.Fatalf("emptied tag must not be observable, got %+v", tags)
	}
	if got := ticket.Tags(); len(got) != 0 {
		t.Fatalf("ticket must lose the tag, got %v", got)
	}
	if err := f.groups.RemoveMember(ctx, "wave-1", ticket.ID()); err != nil {
		t.Fatalf("detach after deletion must be a no-op, got %v", err)
	}
}

func TestDetachAllIsIdempotent(t *testing.T) {
	f := newGroupFixture(t)
	ctx := context.Background()

	ticket, err := f.tickets.OpenTicket(ctx, "user-1", "alice", "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	other, err := f.tickets.OpenTicket(ctx, "user-2", "bob", "")
	if err != nil {
		t.Fatalf("open other: %v", err)
	}
	for _, id := range []string{ticket.ID(), other.ID()} {
		if err := f.groups.AddMember(ctx, "wave-1", id); err != nil {
			t.Fatalf("add member: %v", err)
		}
	}

	if err := f.groups.DetachAll(ctx, ticket.ID()); err != nil {
		t.Fatalf("detach: %v", err)
	}
	if err := f.groups.DetachAll(ctx, ticket.ID()); err != nil {
		t.Fatalf("repeat detach: %v", err)
	}

	tags := f.groups.Tags()
	if len(tags) != 1 || len(tags[0].MemberIDs) != 1 || tags[0].MemberIDs[0] != other.ID() {
		t.Fatalf("expected only the other ticket to remain, got %+v", tags)
	}
}

func TestTicketCloseDetachesFromTags(t *testing.T) {
	f := newGroupFixture(t)
	ctx := context.Background()

	ticket, err := f.tickets.OpenTicket(ctx, "user-1", "alice", "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := f.groups.AddMember(ctx, "wave-1", ticket.ID()); err != nil {
		t.Fatalf("add member: %v", err)
	}

	if err := f.tickets.CloseTicket(ctx, ticket.ID(), domain.AuthorRoleStaff, ""); err != nil {
		t.Fatalf("close: %v", err)
	}
	if tags := f.groups.Tags(); len(tags) != 0 {
		t.Fatalf("closing the only member must delete the tag, got %+v", tags)
	}
}

func TestRestorePrunesDeadTickets(t *testing.T) {
	f := newGroupFixture(t)
	ctx := context.Background()

	live, err := f.tickets.OpenTicket(ctx, "user-1", "alice", "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := f.repo.AddMember(ctx, "wave-1", live.ID()); err != nil {
		t.Fatalf("seed row: %v", err)
	}
	if err := f.repo.AddMember(ctx, "wave-1", "dead-ticket"); err != nil {
		t.Fatalf("seed row: %v", err)
	}
	if err := f.repo.AddMember(ctx, "stale", "dead-ticket"); err != nil {
		t.Fatalf("seed row: %v", err)
	}

	if err := f.groups.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}

	tags := f.groups.Tags()
	if len(tags) != 1 || tags[0].Name != "wave-1" {
		t.Fatalf("expected only wave-1 to survive, got %+v", tags)
	}
	if len(tags[0].MemberIDs) != 1 || tags[0].MemberIDs[0] != live.ID() {
		t.Fatalf("expected only the live ticket, got %+v", tags[0])
	}
}
