package access

import (
	"testing"

	"whiteboard/api/internal/board"
)

func TestCan(t *testing.T) {
	draft := Target{OwnerID: "owner", Status: board.StatusDraft}
	published := Target{OwnerID: "owner", Status: board.StatusPublished}

	cases := []struct {
		name   string
		caller string
		target Target
		action Action
		allow  bool
	}{
		{name: "owner reads draft", caller: "owner", target: draft, action: ActionRead, allow: true},
		{name: "owner comments on draft", caller: "owner", target: draft, action: ActionComment, allow: true},
		{name: "owner writes", caller: "owner", target: published, action: ActionWrite, allow: true},
		{name: "other reads draft", caller: "other", target: draft, action: ActionRead, allow: false},
		{name: "other reads published", caller: "other", target: published, action: ActionRead, allow: true},
		{name: "anonymous reads published", caller: "", target: published, action: ActionRead, allow: true},
		{name: "anonymous reads draft", caller: "", target: draft, action: ActionRead, allow: false},
		{name: "other comments on published", caller: "other", target: published, action: ActionComment, allow: true},
		{name: "other comments on draft", caller: "other", target: draft, action: ActionComment, allow: false},
		{name: "anonymous comments on published", caller: "", target: published, action: ActionComment, allow: false},
		{name: "other writes published", caller: "other", target: published, action: ActionWrite, allow: false},
		{name: "anonymous never matches empty owner", caller: "", target: Target{Status: board.StatusDraft}, action: ActionRead, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.caller, tc.target, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %+v, %q) = %v, want %v", tc.caller, tc.target, tc.action, got, tc.allow)
			}
		})
	}
}

func TestRequiresIdentity(t *testing.T) {
	if RequiresIdentity(ActionRead) {
		t.Fatal("read must allow anonymous callers")
	}
	if !RequiresIdentity(ActionComment) || !RequiresIdentity(ActionWrite) {
		t.Fatal("comment and write must require identity")
	}
}

func TestShareable(t *testing.T) {
	if Shareable(board.StatusDraft) {
		t.Fatal("draft must not be shareable")
	}
	if !Shareable(board.StatusPublished) {
		t.Fatal("published must be shareable")
	}
}
