package identity

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/giygas/medisearch/entities"
)

// recorder collects notifications on a channel
type recorder struct {
	ch chan *entities.Identity
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan *entities.Identity, 16)}
}

func (r *recorder) listen(identity *entities.Identity) {
	r.ch <- identity
}

func (r *recorder) next(t *testing.T) *entities.Identity {
	t.Helper()
	select {
	case identity := <-r.ch:
		return identity
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for a notification")
		return nil
	}
}

func (r *recorder) none(t *testing.T) {
	t.Helper()
	select {
	case identity := <-r.ch:
		t.Fatalf("Unexpected notification %+v", identity)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestReasonOf(t *testing.T) {
	tests := []struct {
		err  error
		want Reason
	}{
		{fail("sign up", ReasonEmailInUse, nil), ReasonEmailInUse},
		{fmt.Errorf("wrapped: %w", fail("sign in", ReasonWrongPassword, nil)), ReasonWrongPassword},
		{errors.New("plain"), ReasonOther},
		{nil, ReasonOther},
	}

	for _, tt := range tests {
		if got := ReasonOf(tt.err); got != tt.want {
			t.Errorf("ReasonOf(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("disk full")
	err := fail("sign up", ReasonOther, cause)

	if err.Error() != "identity sign up: other: disk full" {
		t.Errorf("Unexpected message %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("Error should unwrap to its cause")
	}
	if fail("sign in", ReasonUserNotFound, nil).Error() != "identity sign in: userNotFound" {
		t.Error("Unexpected message without cause")
	}
}

func TestNotifierWaitsForKnownIdentity(t *testing.T) {
	n := newNotifier()
	rec := newRecorder()

	unsubscribe := n.subscribe(rec.listen)
	defer unsubscribe()
	rec.none(t)

	alice := &entities.Identity{UID: "alice"}
	n.setInitial(alice)

	if got := rec.next(t); !got.SameAs(alice) {
		t.Errorf("Expected alice, got %+v", got)
	}
}

func TestNotifierSetInitialDoesNotOverride(t *testing.T) {
	n := newNotifier()
	alice := &entities.Identity{UID: "alice"}

	n.set(alice)
	n.setInitial(nil)

	if !n.Current().SameAs(alice) {
		t.Errorf("Restored state must not replace a sign-in, got %+v", n.Current())
	}
}

func TestNotifierUnsubscribe(t *testing.T) {
	n := newNotifier()
	n.set(nil)

	rec := newRecorder()
	unsubscribe := n.subscribe(rec.listen)
	if got := rec.next(t); got != nil {
		t.Errorf("Expected nil first notification, got %+v", got)
	}

	unsubscribe()
	unsubscribe()

	n.set(&entities.Identity{UID: "bob"})
	rec.none(t)
}

func TestNotifierSubscribeThenUnsubscribeBeforeKnown(t *testing.T) {
	n := newNotifier()
	rec := newRecorder()

	n.subscribe(rec.listen)()
	n.set(&entities.Identity{UID: "carol"})
	rec.none(t)
}
