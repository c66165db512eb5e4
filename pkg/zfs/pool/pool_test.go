// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package pool

import (
	"context"
	"strings"
	"testing"

	"github.com/stratastor/pgbranch/pkg/errors"
	"github.com/stratastor/pgbranch/pkg/zfs/command"
)

type stubExecutor struct {
	out []byte
	err error
}

func (s *stubExecutor) Execute(ctx context.Context, opts command.CommandOptions, cmd string, args ...string) ([]byte, error) {
	return s.out, s.err
}

func TestList(t *testing.T) {
	mgr := NewManager(&stubExecutor{out: []byte("tank\nrpool\n")})

	pools, err := mgr.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pools) != 2 || pools[0] != "tank" || pools[1] != "rpool" {
		t.Errorf("unexpected pools: %v", pools)
	}
}

func TestListNoPools(t *testing.T) {
	mgr := NewManager(&stubExecutor{
		err: errors.NewCommandError("zpool list", 1, "no pools available"),
	})

	pools, err := mgr.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pools) != 0 {
		t.Errorf("expected no pools, got %v", pools)
	}
}

func TestStatus(t *testing.T) {
	mgr := NewManager(&stubExecutor{
		out: []byte("tank\tONLINE\t10737418240\t2147483648\t8589934592\n"),
	})

	st, err := mgr.Status(context.Background(), "tank")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Name != "tank" || st.Health != "ONLINE" {
		t.Errorf("unexpected status: %+v", st)
	}
	if st.Size != 10737418240 || st.Allocated != 2147483648 || st.Free != 8589934592 {
		t.Errorf("unexpected capacity numbers: %+v", st)
	}
}

func TestStatusNoSuchPool(t *testing.T) {
	mgr := NewManager(&stubExecutor{
		err: errors.NewCommandError("zpool list", 1, "cannot open 'nope': no such pool"),
	})

	_, err := mgr.Status(context.Background(), "nope")
	if err == nil {
		t.Fatal("expected error")
	}
	if code, _ := errors.GetCode(err); code != errors.ZFSPoolNotFound {
		t.Errorf("expected ZFSPoolNotFound, got %v", err)
	}
}

func TestStatusParseError(t *testing.T) {
	mgr := NewManager(&stubExecutor{out: []byte("garbage\n")})

	_, err := mgr.Status(context.Background(), "tank")
	if err == nil || !strings.Contains(err.Error(), "parse") && !strings.Contains(err.Error(), "output") {
		t.Fatalf("expected parse error, got %v", err)
	}
}
