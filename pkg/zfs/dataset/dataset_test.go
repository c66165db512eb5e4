// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package dataset

import (
	"context"
	"strings"
	"testing"

	"github.com/stratastor/pgbranch/pkg/errors"
	"github.com/stratastor/pgbranch/pkg/zfs/command"
)

// stubExecutor records the commands it is asked to run and replays
// canned responses.
type stubExecutor struct {
	calls []string
	out   []byte
	err   error
}

func (s *stubExecutor) Execute(ctx context.Context, opts command.CommandOptions, cmd string, args ...string) ([]byte, error) {
	s.calls = append(s.calls, cmd+" "+strings.Join(args, " "))
	return s.out, s.err
}

func TestCreateFilesystemArgs(t *testing.T) {
	stub := &stubExecutor{}
	mgr := NewManager(stub)

	err := mgr.CreateFilesystem(context.Background(), FilesystemConfig{
		NameConfig: NameConfig{Name: "tank/pgbranch/demo-main"},
		Properties: map[string]string{"compression": "lz4"},
		Parents:    true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(stub.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(stub.calls))
	}
	call := stub.calls[0]
	for _, want := range []string{"zfs create", "-p", "compression=lz4", "tank/pgbranch/demo-main"} {
		if !strings.Contains(call, want) {
			t.Errorf("call %q missing %q", call, want)
		}
	}
}

func TestCreateFilesystemRejectsInvalidName(t *testing.T) {
	stub := &stubExecutor{}
	mgr := NewManager(stub)

	err := mgr.CreateFilesystem(context.Background(), FilesystemConfig{
		NameConfig: NameConfig{Name: "tank/demo@oops"},
	})
	if err == nil {
		t.Fatal("expected error for invalid name")
	}
	if len(stub.calls) != 0 {
		t.Errorf("executor should not be called on invalid input")
	}
}

func TestSnapshotAndClone(t *testing.T) {
	stub := &stubExecutor{}
	mgr := NewManager(stub)

	err := mgr.CreateSnapshot(context.Background(), SnapshotConfig{
		NameConfig: NameConfig{Name: "tank/pgbranch/demo-main"},
		SnapName:   "2024-11-02T10-00-00",
	})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	err = mgr.Clone(context.Background(), CloneConfig{
		NameConfig: NameConfig{Name: "tank/pgbranch/demo-main@2024-11-02T10-00-00"},
		CloneName:  "tank/pgbranch/demo-dev",
	})
	if err != nil {
		t.Fatalf("clone: %v", err)
	}

	if !strings.Contains(stub.calls[0], "tank/pgbranch/demo-main@2024-11-02T10-00-00") {
		t.Errorf("snapshot call malformed: %q", stub.calls[0])
	}
	if !strings.Contains(stub.calls[1], "tank/pgbranch/demo-dev") {
		t.Errorf("clone call malformed: %q", stub.calls[1])
	}
}

func TestExistsClassifiesAbsent(t *testing.T) {
	stub := &stubExecutor{
		err: errors.NewCommandError("zfs list", 1, "cannot open 'tank/pgbranch/nope': dataset does not exist"),
	}
	mgr := NewManager(stub)

	exists, err := mgr.Exists(context.Background(), "tank/pgbranch/nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists {
		t.Error("expected exists=false")
	}
}

func TestGetPropertyBytes(t *testing.T) {
	stub := &stubExecutor{out: []byte("1441792\n")}
	mgr := NewManager(stub)

	n, err := mgr.GetPropertyBytes(context.Background(), "tank/pgbranch/demo-main", "used")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1441792 {
		t.Errorf("got %d, want 1441792", n)
	}
}

func TestGetMountpointRejectsLegacy(t *testing.T) {
	stub := &stubExecutor{out: []byte("legacy\n")}
	mgr := NewManager(stub)

	if _, err := mgr.GetMountpoint(context.Background(), "tank/pgbranch/demo-main"); err == nil {
		t.Fatal("expected error for legacy mountpoint")
	}
}
