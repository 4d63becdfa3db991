package logfields

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"RunID", KeyRunID, "6f1c", RunID("6f1c")},
		{"Step", KeyStep, "commit", Step("commit")},
		{"Command", KeyCommand, "git push", Command("git push")},
		{"Repository", KeyRepo, "/srv/data", Repository("/srv/data")},
		{"Image", KeyImage, "sorrydb:latest", Image("sorrydb:latest")},
		{"Tag", KeyTag, "2024-03-05", Tag("2024-03-05")},
		{"Outcome", KeyOutcome, "updated", Outcome("updated")},
		{"Schedule", KeySchedule, "0 3 * * *", Schedule("0 3 * * *")},
		{"JobID", KeyJobID, "j1", JobID("j1")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"Error", KeyError, "boom", Error(errors.New("boom"))},
		{"NilError", KeyError, "", Error(nil)},
	}
	for _, c := range cases {
		if c.attr.Key != c.attrKey {
			t.Fatalf("%s key mismatch: got %s want %s", c.name, c.attr.Key, c.attrKey)
		}
		if c.attr.Value.String() != c.attrVal {
			t.Fatalf("%s value mismatch: got %s want %s", c.name, c.attr.Value.String(), c.attrVal)
		}
	}
}

func TestNumericHelpers(t *testing.T) {
	if a := ExitCode(128); a.Key != KeyExitCode || a.Value.Int64() != 128 {
		t.Fatalf("unexpected exit code attr: %v", a)
	}
	if a := Duration(1500 * time.Microsecond); a.Key != KeyDurationMS || a.Value.Float64() != 1.5 {
		t.Fatalf("unexpected duration attr: %v", a)
	}
}
