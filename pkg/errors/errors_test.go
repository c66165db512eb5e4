// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestNewCarriesDefinition(t *testing.T) {
	err := New(StateBranchNotFound, "demo/dev")

	if err.Domain != DomainState {
		t.Errorf("domain = %q", err.Domain)
	}
	if err.Kind != KindNotFound {
		t.Errorf("kind = %q", err.Kind)
	}
	if !strings.Contains(err.Error(), "demo/dev") {
		t.Errorf("details missing from Error(): %q", err.Error())
	}
}

func TestWrapPreservesMetadata(t *testing.T) {
	inner := NewCommandError("zfs destroy tank/fs", 1, "dataset is busy")
	wrapped := Wrap(inner, ZFSDatasetBusy)

	if wrapped.Code != ZFSDatasetBusy {
		t.Errorf("code = %d", wrapped.Code)
	}
	if wrapped.Metadata["stderr"] != "dataset is busy" {
		t.Errorf("stderr metadata lost: %v", wrapped.Metadata)
	}
	if wrapped.Kind != KindStorageBusy {
		t.Errorf("kind = %q", wrapped.Kind)
	}
}

func TestGetKindForeignError(t *testing.T) {
	if GetKind(fmt.Errorf("plain")) != KindDriver {
		t.Error("foreign errors classify as driver failures")
	}
	if GetKind(nil) != "" {
		t.Error("nil has no kind")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitOK},
		{New(EngineInvalidInput, "bad flag"), ExitUserError},
		{New(EngineNotFound, "missing"), ExitUserError},
		{New(EngineHasDependents, "children"), ExitUserError},
		{New(EngineUnhealthy, "probe"), ExitOperational},
		{New(EngineDriverFailure, "zfs"), ExitOperational},
		{New(EngineInconsistent, "drift"), ExitOperational},
		{fmt.Errorf("plain"), ExitOperational},
	}

	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestStderrHelper(t *testing.T) {
	err := NewCommandError("zfs list", 1, "does not exist")
	if Stderr(err) != "does not exist" {
		t.Errorf("Stderr() = %q", Stderr(err))
	}
	if Stderr(fmt.Errorf("plain")) != "" {
		t.Error("foreign errors have no stderr")
	}
}
