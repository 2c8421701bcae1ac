package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mmynk/tripledger/pkg/api"
)

func TestPrintTrips(t *testing.T) {
	var buf bytes.Buffer
	printTrips(&buf, []*api.Trip{
		{ID: "t1", GroupID: "g1", Name: "Goa", StartDate: "2024-03-01", EndDate: "2024-03-05", Currencies: []string{"INR", "USD"}},
		{ID: "t2", GroupID: "local_x", Name: "Solo"},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected header and 2 rows, got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], "2024-03-01..2024-03-05") || !strings.Contains(lines[1], "INR,USD") {
		t.Errorf("Unexpected row: %q", lines[1])
	}
}

func TestPrintGroups(t *testing.T) {
	var buf bytes.Buffer
	printGroups(&buf, []api.RemoteGroup{
		{ID: "7", Name: "Goa", Members: []api.RemoteMember{{ID: "1", Name: "Asha"}, {ID: "2", Name: "Ben"}}, Tracked: true},
		{ID: "9", Name: "Flat"},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected header and 2 rows, got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], "Asha,Ben") || !strings.HasSuffix(strings.TrimSpace(lines[1]), "*") {
		t.Errorf("Unexpected row: %q", lines[1])
	}
	if strings.Contains(lines[2], "*") {
		t.Errorf("Untracked group marked: %q", lines[2])
	}
}
