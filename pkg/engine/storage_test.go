// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"testing"

	"github.com/stratastor/pgbranch/pkg/errors"
)

func TestClassifyStorageErr(t *testing.T) {
	tests := []struct {
		stderr string
		kind   errors.Kind
	}{
		{"cannot create 'tank/pgbranch/demo-main': dataset already exists", errors.KindAlreadyExists},
		{"cannot destroy 'tank/pgbranch/demo-main@snap': snapshot has dependent clones", errors.KindStorageBusy},
		{"cannot destroy 'tank/pgbranch/demo-main': dataset is busy", errors.KindStorageBusy},
		{"cannot open 'tank/pgbranch/ghost': dataset does not exist", errors.KindNotFound},
	}

	for _, tt := range tests {
		err := classifyStorageErr(errors.NewCommandError("zfs", 1, tt.stderr))
		if got := errors.GetKind(err); got != tt.kind {
			t.Errorf("stderr %q classified as %q, want %q", tt.stderr, got, tt.kind)
		}
	}

	if classifyStorageErr(nil) != nil {
		t.Error("nil must classify to nil")
	}

	// Unrecognized failures pass through unchanged.
	orig := errors.NewCommandError("zfs", 1, "I/O error")
	if got := classifyStorageErr(orig); got != orig {
		t.Errorf("unclassified error must pass through, got %v", got)
	}
}
