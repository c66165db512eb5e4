/*
 * Copyright 2024-2025 Raamsri Kumar <raam@tinkershack.in>
 * Copyright 2024-2025 The StrataSTOR Authors and Contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package command

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/stratastor/logger"
	"github.com/stratastor/pgbranch/pkg/errors"
)

// Executor runs one zfs/zpool command and returns its stdout. Managers
// accept this interface so tests can substitute canned output.
type Executor interface {
	Execute(ctx context.Context, opts CommandOptions, cmd string, args ...string) ([]byte, error)
}

// CommandExecutor provides safe execution of ZFS commands
type CommandExecutor struct {
	useSudo bool          // Whether to use sudo for privileged commands
	timeout time.Duration // Default command timeout

	logger logger.Logger
}

var _ Executor = (*CommandExecutor)(nil)

// CommandFlags represents supported command flags
type CommandFlags uint8

const (
	FlagParsable  CommandFlags = 1 << iota // -p for parsable output
	FlagRecursive                          // -r for recursive operations
	FlagForce                              // -f to force operation
	FlagNoHeaders                          // -H to disable output headers
)

// CommandOptions configures command execution
type CommandOptions struct {
	Flags   CommandFlags  // Command flags to apply
	Timeout time.Duration // Command-specific timeout
}

func NewCommandExecutor(useSudo bool, logConfig logger.Config) *CommandExecutor {
	l, err := logger.NewTag(logConfig, "zfs-cmd")
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}

	return &CommandExecutor{
		useSudo: useSudo,
		timeout: DefaultTimeout,
		logger:  l,
	}
}

func (e *CommandExecutor) Execute(ctx context.Context, opts CommandOptions, cmd string, args ...string) ([]byte, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return nil, errors.New(errors.CommandNotFound, "empty command")
	}

	if err := e.validateCommand(parts[0], args); err != nil {
		return nil, err
	}

	cmdArgs := e.buildCommandArgs(cmd, opts, args...)

	if err := e.validateBuiltCommand(cmdArgs); err != nil {
		return nil, err
	}

	if opts.Timeout == 0 {
		opts.Timeout = e.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	e.logger.Debug("Executing command", "cmd", strings.Join(cmdArgs, " "))

	execCmd := exec.CommandContext(ctx, cmdArgs[0], cmdArgs[1:]...)

	// Prevent shell expansion
	execCmd.Env = []string{}

	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	if err := execCmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.New(errors.CommandTimeout, "command execution timed out").
				WithMetadata("command", strings.Join(cmdArgs, " "))
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			return stdout.Bytes(), errors.NewCommandError(
				strings.Join(cmdArgs, " "),
				exitErr.ExitCode(),
				stderr.String(),
			)
		}
		return nil, errors.Wrap(err, errors.CommandExecution).
			WithMetadata("command", strings.Join(cmdArgs, " ")).
			WithMetadata("stderr", stderr.String())
	}

	return stdout.Bytes(), nil
}

func (e *CommandExecutor) buildCommandArgs(cmd string, opts CommandOptions, args ...string) []string {
	var cmdArgs []string

	if e.useSudo && SudoRequiredCommands[cmd] {
		cmdArgs = append(cmdArgs, "sudo")
	}

	parts := strings.Fields(cmd)

	switch {
	case strings.HasPrefix(parts[0], "zfs"):
		cmdArgs = append(cmdArgs, BinZFS)
	case strings.HasPrefix(parts[0], "zpool"):
		cmdArgs = append(cmdArgs, BinZpool)
	}

	if len(parts) > 1 {
		cmdArgs = append(cmdArgs, parts[1])
	}

	if opts.Flags&FlagNoHeaders != 0 {
		cmdArgs = append(cmdArgs, "-H")
	}
	if opts.Flags&FlagParsable != 0 {
		cmdArgs = append(cmdArgs, "-p")
	}
	if opts.Flags&FlagRecursive != 0 {
		cmdArgs = append(cmdArgs, "-r")
	}
	if opts.Flags&FlagForce != 0 {
		cmdArgs = append(cmdArgs, "-f")
	}

	// Add remaining arguments, but skip the operation if it's duplicated
	for _, arg := range args {
		if len(parts) > 1 && arg == parts[1] {
			continue
		}
		cmdArgs = append(cmdArgs, arg)
	}

	return cmdArgs
}

// validateCommand checks command and args for security
func (e *CommandExecutor) validateCommand(name string, args []string) error {
	// Only allow zfs/zpool commands
	if name != "zfs" && name != "zpool" {
		return errors.New(errors.CommandNotFound,
			"only zfs and zpool commands are allowed")
	}

	// Validate args don't contain dangerous characters
	for _, arg := range args {
		if strings.ContainsAny(arg, ";&|><$`\\") {
			return errors.New(errors.CommandInvalidInput,
				"argument contains invalid characters")
		}
	}

	return nil
}

// validateBuiltCommand performs additional security checks on the final command
func (e *CommandExecutor) validateBuiltCommand(args []string) error {
	if len(args) == 0 {
		return errors.New(errors.CommandInvalidInput, "empty command")
	}

	switch args[0] {
	case "sudo":
		if len(args) < 2 {
			return errors.New(errors.CommandInvalidInput, "invalid sudo command")
		}
		if args[1] != BinZFS && args[1] != BinZpool {
			return errors.New(errors.CommandNotFound, "invalid command binary")
		}
	case BinZFS, BinZpool:
		// Direct command is okay
	default:
		return errors.New(errors.CommandNotFound, "invalid command binary")
	}

	if len(args) > maxCommandArgs {
		return errors.New(errors.CommandInvalidInput, "too many arguments")
	}

	for _, arg := range args {
		if strings.Contains(arg, "..") {
			return errors.New(errors.CommandInvalidInput, "path traversal not allowed")
		}
	}

	return nil
}
