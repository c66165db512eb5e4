// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"testing"

	"github.com/stratastor/logger"
)

func newTestExecutor() *CommandExecutor {
	return NewCommandExecutor(false, logger.Config{LogLevel: "error"})
}

func TestBuildCommandArgs(t *testing.T) {
	e := newTestExecutor()

	args := e.buildCommandArgs("zfs list", CommandOptions{Flags: FlagNoHeaders}, "-t", "snapshot", "tank/fs")
	want := []string{BinZFS, "list", "-H", "-t", "snapshot", "tank/fs"}
	if len(args) != len(want) {
		t.Fatalf("got %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("arg %d: got %q, want %q", i, args[i], want[i])
		}
	}
}

func TestBuildCommandArgsSudo(t *testing.T) {
	e := NewCommandExecutor(true, logger.Config{LogLevel: "error"})

	args := e.buildCommandArgs("zfs destroy", CommandOptions{}, "tank/fs")
	if args[0] != "sudo" || args[1] != BinZFS {
		t.Errorf("expected sudo prefix, got %v", args)
	}

	// Read-only commands never get sudo.
	args = e.buildCommandArgs("zfs list", CommandOptions{}, "tank/fs")
	if args[0] == "sudo" {
		t.Errorf("zfs list must not use sudo, got %v", args)
	}
}

func TestValidateCommandRejectsInjection(t *testing.T) {
	e := newTestExecutor()

	if err := e.validateCommand("zfs", []string{"tank/fs; rm -rf /"}); err == nil {
		t.Error("expected rejection of shell metacharacters")
	}
	if err := e.validateCommand("rm", []string{"-rf"}); err == nil {
		t.Error("expected rejection of non-zfs command")
	}
	if err := e.validateCommand("zfs", []string{"tank/fs"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateBuiltCommand(t *testing.T) {
	e := newTestExecutor()

	if err := e.validateBuiltCommand([]string{"/bin/sh", "-c", "true"}); err == nil {
		t.Error("expected rejection of foreign binary")
	}
	if err := e.validateBuiltCommand([]string{BinZFS, "list", "tank/../other"}); err == nil {
		t.Error("expected rejection of path traversal")
	}
	if err := e.validateBuiltCommand([]string{BinZpool, "list", "-H", "tank"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
