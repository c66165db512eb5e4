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

import "time"

const (
	// Base commands
	BinZFS   = "/usr/sbin/zfs"
	BinZpool = "/usr/sbin/zpool"

	maxCommandArgs = 64

	// Default timeout for command execution
	DefaultTimeout = 30 * time.Second
)

// Commands that require sudo
var SudoRequiredCommands = map[string]bool{
	"zfs create":   true,
	"zfs destroy":  true,
	"zfs snapshot": true,
	"zfs clone":    true,
	"zfs set":      true,
	"zfs mount":    true,
	"zfs unmount":  true,
}
