// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package naming

import (
	"testing"
	"time"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"demo", "demo"},
		{"Demo", "demo"},
		{"My App", "my-app"},
		{"web_api", "web-api"},
		{"--demo--", "demo"},
		{"Feature/JIRA-123", "feature-jira-123"},
		{"demo2", "demo2"},
	}

	for _, tt := range tests {
		if got := Canonicalize(tt.in); got != tt.want {
			t.Errorf("Canonicalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsCanonical(t *testing.T) {
	if !IsCanonical("demo-app") {
		t.Error("demo-app should be canonical")
	}
	if IsCanonical("Demo") {
		t.Error("Demo should not be canonical")
	}
	if IsCanonical("") {
		t.Error("empty name should not be canonical")
	}
}

func TestNames(t *testing.T) {
	if got := ContainerName("demo", "main"); got != "pgbranch-demo-main" {
		t.Errorf("ContainerName = %q", got)
	}
	if got := DatasetName("demo", "dev"); got != "demo-dev" {
		t.Errorf("DatasetName = %q", got)
	}
	if got := DatasetPath("tank", "pgbranch", "demo", "main"); got != "tank/pgbranch/demo-main" {
		t.Errorf("DatasetPath = %q", got)
	}
	if got := SnapshotRef("tank/pgbranch/demo-main", "2024-11-02T10-00-00"); got != "tank/pgbranch/demo-main@2024-11-02T10-00-00" {
		t.Errorf("SnapshotRef = %q", got)
	}
}

func TestSnapshotName(t *testing.T) {
	ts := time.Date(2024, 11, 2, 10, 30, 5, 0, time.UTC)

	if got := SnapshotName(ts, ""); got != "2024-11-02T10-30-05" {
		t.Errorf("SnapshotName = %q", got)
	}
	if got := SnapshotName(ts, "before migration"); got != "2024-11-02T10-30-05-before-migration" {
		t.Errorf("SnapshotName with label = %q", got)
	}
}

func TestSnapshotNamesSortable(t *testing.T) {
	a := SnapshotName(time.Date(2024, 11, 2, 9, 59, 59, 0, time.UTC), "")
	b := SnapshotName(time.Date(2024, 11, 2, 10, 0, 0, 0, time.UTC), "")
	if !(a < b) {
		t.Errorf("expected %q < %q", a, b)
	}
}

func TestSplitNamespace(t *testing.T) {
	project, branch, err := SplitNamespace("demo/dev")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if project != "demo" || branch != "dev" {
		t.Errorf("got %q/%q", project, branch)
	}

	for _, bad := range []string{"demo", "demo/", "/dev", "a/b/c", ""} {
		if _, _, err := SplitNamespace(bad); err == nil {
			t.Errorf("SplitNamespace(%q) should fail", bad)
		}
	}
}
