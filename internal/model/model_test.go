package model

import "testing"

func TestParseRole(t *testing.T) {
	for _, value := range []string{"ADMIN", "TUTOR", "STUDENT"} {
		if _, ok := ParseRole(value); !ok {
			t.Fatalf("expected role %s to parse", value)
		}
	}
	for _, value := range []string{"", "admin", "MENTOR", "DEV"} {
		if _, ok := ParseRole(value); ok {
			t.Fatalf("expected role %q to be rejected", value)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	if StatusPending.Terminal() {
		t.Fatalf("PENDING must not be terminal")
	}
	if !StatusApproved.Terminal() || !StatusRejected.Terminal() {
		t.Fatalf("APPROVED and REJECTED must be terminal")
	}
}

func TestValidTransition(t *testing.T) {
	if !ValidTransition(StatusPending, StatusApproved) {
		t.Fatalf("expected PENDING->APPROVED to be valid")
	}
	if !ValidTransition(StatusPending, StatusRejected) {
		t.Fatalf("expected PENDING->REJECTED to be valid")
	}

	// Terminal records never move again, in either direction.
	blocked := [][2]SessionStatus{
		{StatusApproved, StatusRejected},
		{StatusRejected, StatusApproved},
		{StatusApproved, StatusPending},
		{StatusRejected, StatusPending},
		{StatusApproved, StatusApproved},
		{StatusPending, StatusPending},
	}
	for _, pair := range blocked {
		if ValidTransition(pair[0], pair[1]) {
			t.Fatalf("expected %s->%s to be invalid", pair[0], pair[1])
		}
	}
}
