package id_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/queueworks/governor/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"JobID", id.NewJobID, "job_"},
		{"WorkerID", id.NewWorkerID, "wkr_"},
		{"ExecutionID", id.NewExecutionID, "exec_"},
		{"AlertID", id.NewAlertID, "alert_"},
		{"NodeID", id.NewNodeID, "node_"},
		{"CronID", id.NewCronID, "cron_"},
		{"DLQID", id.NewDLQID, "dlq_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	orig := id.NewWorkerID()
	parsed, err := id.ParseWorkerID(orig.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.String() != orig.String() {
		t.Errorf("round trip mismatch: %q != %q", parsed, orig)
	}
}

func TestParseRejectsWrongPrefix(t *testing.T) {
	jobID := id.NewJobID()
	if _, err := id.ParseWorkerID(jobID.String()); err == nil {
		t.Error("expected error parsing job ID as worker ID")
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Error("expected error for empty string")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero value should be nil")
	}
	if i.String() != "" {
		t.Errorf("nil ID should stringify empty, got %q", i)
	}
	v, err := i.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	if v != nil {
		t.Errorf("nil ID should store NULL, got %v", v)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	orig := id.NewAlertID()
	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded id.ID
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.String() != orig.String() {
		t.Errorf("JSON round trip mismatch: %q != %q", decoded, orig)
	}
}

func TestScan(t *testing.T) {
	orig := id.NewJobID()

	var fromString id.ID
	if err := fromString.Scan(orig.String()); err != nil {
		t.Fatalf("scan string: %v", err)
	}
	if fromString.String() != orig.String() {
		t.Errorf("scan string mismatch: %q != %q", fromString, orig)
	}

	var fromNil id.ID
	if err := fromNil.Scan(nil); err != nil {
		t.Fatalf("scan nil: %v", err)
	}
	if !fromNil.IsNil() {
		t.Error("scanning nil should yield the Nil ID")
	}

	var fromInt id.ID
	if err := fromInt.Scan(42); err == nil {
		t.Error("expected error scanning int")
	}
}
