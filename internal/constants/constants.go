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

package constants

const (
	PgbranchVersion     = "v0.1.0"
	PgbranchPIDFilePath = "/var/run/pgbranch.pid"

	// ToolPrefix prefixes every container name managed by this tool.
	ToolPrefix = "pgbranch"

	// config
	SystemConfigDir = "/etc/pgbranch"
	UserConfigDir   = "~/.pgbranch"
	ConfigFileName  = "pgbranch.yml"

	// on-disk state
	DataDirName   = "pgbranch"
	StateFileName = "state.json"
	StateLockName = "state.lock"
	WALArchiveDir = "wal-archive"

	// defaults
	DefaultDatasetBase = "pgbranch"
	DefaultImage       = "postgres:16-alpine"

	// PostgreSQL container layout
	PostgresPort     = "5432/tcp"
	PostgresDataDir  = "/var/lib/postgresql/data"
	PostgresWALMount = "/var/lib/postgresql/wal-archive"
)
