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

package errors

import "net/http"

const (
	DomainConfig  Domain = "CONFIG"
	DomainCommand Domain = "CMD"
	DomainZFS     Domain = "ZFS"
	DomainDocker  Domain = "DOCKER"
	DomainState   Domain = "STATE"
	DomainEngine  Domain = "ENGINE"
	DomainServer  Domain = "SERVER"
	DomainMisc    Domain = "MISC"
)

// ErrorCode represents unique error identifiers
type ErrorCode int

// Domain represents the subsystem where the error originated
type Domain string

// Kind classifies an error into the coarse failure taxonomy the CLI and
// callers branch on: user mistakes, missing entities, conflicts with prior
// runs, refusal due to dependents, probe timeouts, raw driver failures, and
// catalog/reality drift.
type Kind string

const (
	KindUser          Kind = "user"
	KindNotFound      Kind = "not_found"
	KindAlreadyExists Kind = "already_exists"
	KindStorageBusy   Kind = "storage_busy"
	KindHasDependents Kind = "has_dependents"
	KindUnhealthy     Kind = "unhealthy"
	KindBusy          Kind = "busy"
	KindDriver        Kind = "driver"
	KindInconsistent  Kind = "inconsistent"
)

type PgbError struct {
	Code       ErrorCode `json:"code"`
	Domain     Domain    `json:"domain"`
	Kind       Kind      `json:"kind"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	HTTPStatus int       `json:"-"`

	// Metadata carries structured context (command line, stderr, entity
	// names) for logging and API responses without bloating Error().
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Error code ranges:
// 1000-1099: Configuration errors
// 1300-1399: Command execution
// 2000-2199: ZFS operations
// 2500-2599: Container runtime
// 3000-3099: State store
// 3500-3599: Engine workflows
// 4000-4099: Server
const (
	// Configuration Errors (1000-1099)
	ConfigNotFound       = 1000 + iota // Config file not found
	ConfigInvalid                      // Invalid config format
	ConfigLoadFailed                   // Failed to load config
	ConfigWriteFailed                  // Failed to write config
	ConfigMarshalFailed                // Config serialization failed
	ConfigDirectoryError               // Config directory error
)

const (
	// Command execution (1300-1399)
	CommandNotFound     = 1300 + iota // Command binary not found or not allowed
	CommandExecution                  // Command exited non-zero
	CommandTimeout                    // Command timed out
	CommandPipe                       // Failed to set up output pipes
	CommandOutputParse                // Failed to parse command output
	CommandInvalidInput               // Unsafe or malformed arguments
)

const (
	// ZFS operations (2000-2199)
	ZFSCommandFailed    = 2000 + iota // ZFS command execution failed
	ZFSPoolNotFound                   // Pool not found
	ZFSPoolList                       // Failed to list pools
	ZFSPoolStatus                     // Failed to query pool status
	ZFSDatasetNotFound                // Dataset not found
	ZFSDatasetExists                  // Dataset or snapshot already present
	ZFSDatasetBusy                    // Destroy refused, dependent clones exist
	ZFSDatasetCreate                  // Create failed
	ZFSDatasetDestroy                 // Destroy failed
	ZFSDatasetList                    // List failed
	ZFSDatasetGetProperty             // Property read failed
	ZFSSnapshotFailed                 // Snapshot creation failed
	ZFSSnapshotDestroy                // Snapshot destroy failed
	ZFSCloneError                     // Clone failed
	ZFSNameInvalid                    // Invalid dataset/snapshot name
)

const (
	// Container runtime (2500-2599)
	DockerConnect           = 2500 + iota // Cannot talk to the container runtime
	DockerImagePull                       // Image pull failed
	DockerImageInspect                    // Image inspect failed
	DockerContainerCreate                 // Container create failed
	DockerContainerStart                  // Container start failed
	DockerContainerStop                   // Container stop failed
	DockerContainerRemove                 // Container remove failed
	DockerContainerNotFound               // No container with that name/id
	DockerContainerInspect                // Inspect failed
	DockerContainerList                   // List failed
	DockerUnhealthy                       // Health probe did not succeed in time
	DockerPortUnavailable                 // No host port bound for 5432
	DockerExecFailed                      // In-container command failed
)

const (
	// State store (3000-3099)
	StateLoadFailed         = 3000 + iota // Failed to read or parse the catalog
	StateSaveFailed                       // Failed to persist the catalog
	StateLockBusy                         // Another invocation holds the catalog lock
	StateAlreadyInitialized               // autoInitialize on an initialized catalog
	StateNotInitialized                   // Operation requires an initialized catalog
	StateProjectNotFound                  // Project absent
	StateBranchNotFound                   // Branch absent
	StateSnapshotNotFound                 // Snapshot absent
	StateDuplicateProject                 // Project name taken
	StateDuplicateBranch                  // Branch name taken
	StateInconsistent                     // Catalog references a missing entity
)

const (
	// Engine workflows (3500-3599)
	EngineInvalidInput      = 3500 + iota // Bad user input
	EngineNameConflict                    // Name collision with existing entity
	EngineNotFound                        // Target entity absent
	EngineAlreadyExists                   // Substrate collision from a partial prior run
	EngineStorageBusy                     // Storage refused destroy, dependents exist
	EngineHasDependents                   // Entity still has dependents
	EngineUnhealthy                       // Container never became healthy
	EnginePrimaryImmutable                // Operation not valid on a primary branch
	EngineDriverFailure                   // Unclassified driver failure
	EngineInconsistent                    // State and reality disagree
	EngineCheckpointFailed                // CHECKPOINT before snapshot failed
	EngineCompensationError               // Rollback of a partial workflow failed
)

const (
	// Server (4000-4099)
	ServerStart         = 4000 + iota // Failed to start server
	ServerShutdown                    // Error during shutdown
	ServerInternalError               // Unhandled server error
)

type errorDefinition struct {
	domain     Domain
	kind       Kind
	message    string
	httpStatus int
}

var errorDefinitions = map[ErrorCode]errorDefinition{
	ConfigNotFound:       {DomainConfig, KindNotFound, "Configuration file not found", http.StatusNotFound},
	ConfigInvalid:        {DomainConfig, KindUser, "Invalid configuration", http.StatusBadRequest},
	ConfigLoadFailed:     {DomainConfig, KindDriver, "Failed to load configuration", http.StatusInternalServerError},
	ConfigWriteFailed:    {DomainConfig, KindDriver, "Failed to write configuration", http.StatusInternalServerError},
	ConfigMarshalFailed:  {DomainConfig, KindDriver, "Failed to serialize configuration", http.StatusInternalServerError},
	ConfigDirectoryError: {DomainConfig, KindDriver, "Configuration directory error", http.StatusInternalServerError},

	CommandNotFound:     {DomainCommand, KindDriver, "Command not found", http.StatusInternalServerError},
	CommandExecution:    {DomainCommand, KindDriver, "Command execution failed", http.StatusInternalServerError},
	CommandTimeout:      {DomainCommand, KindDriver, "Command execution timed out", http.StatusGatewayTimeout},
	CommandPipe:         {DomainCommand, KindDriver, "Failed to create command pipes", http.StatusInternalServerError},
	CommandOutputParse:  {DomainCommand, KindDriver, "Failed to parse command output", http.StatusInternalServerError},
	CommandInvalidInput: {DomainCommand, KindUser, "Invalid command input", http.StatusBadRequest},

	ZFSCommandFailed:      {DomainZFS, KindDriver, "ZFS command failed", http.StatusInternalServerError},
	ZFSPoolNotFound:       {DomainZFS, KindNotFound, "ZFS pool not found", http.StatusNotFound},
	ZFSPoolList:           {DomainZFS, KindDriver, "Failed to list ZFS pools", http.StatusInternalServerError},
	ZFSPoolStatus:         {DomainZFS, KindDriver, "Failed to query pool status", http.StatusInternalServerError},
	ZFSDatasetNotFound:    {DomainZFS, KindNotFound, "Dataset not found", http.StatusNotFound},
	ZFSDatasetExists:      {DomainZFS, KindAlreadyExists, "Dataset already exists", http.StatusConflict},
	ZFSDatasetBusy:        {DomainZFS, KindStorageBusy, "Dataset has dependent clones", http.StatusConflict},
	ZFSDatasetCreate:      {DomainZFS, KindDriver, "Failed to create dataset", http.StatusInternalServerError},
	ZFSDatasetDestroy:     {DomainZFS, KindDriver, "Failed to destroy dataset", http.StatusInternalServerError},
	ZFSDatasetList:        {DomainZFS, KindDriver, "Failed to list datasets", http.StatusInternalServerError},
	ZFSDatasetGetProperty: {DomainZFS, KindDriver, "Failed to read dataset property", http.StatusInternalServerError},
	ZFSSnapshotFailed:     {DomainZFS, KindDriver, "Failed to create snapshot", http.StatusInternalServerError},
	ZFSSnapshotDestroy:    {DomainZFS, KindDriver, "Failed to destroy snapshot", http.StatusInternalServerError},
	ZFSCloneError:         {DomainZFS, KindDriver, "Failed to clone snapshot", http.StatusInternalServerError},
	ZFSNameInvalid:        {DomainZFS, KindUser, "Invalid ZFS name", http.StatusBadRequest},

	DockerConnect:           {DomainDocker, KindDriver, "Cannot connect to container runtime", http.StatusBadGateway},
	DockerImagePull:         {DomainDocker, KindDriver, "Failed to pull image", http.StatusBadGateway},
	DockerImageInspect:      {DomainDocker, KindDriver, "Failed to inspect image", http.StatusInternalServerError},
	DockerContainerCreate:   {DomainDocker, KindDriver, "Failed to create container", http.StatusInternalServerError},
	DockerContainerStart:    {DomainDocker, KindDriver, "Failed to start container", http.StatusInternalServerError},
	DockerContainerStop:     {DomainDocker, KindDriver, "Failed to stop container", http.StatusInternalServerError},
	DockerContainerRemove:   {DomainDocker, KindDriver, "Failed to remove container", http.StatusInternalServerError},
	DockerContainerNotFound: {DomainDocker, KindNotFound, "Container not found", http.StatusNotFound},
	DockerContainerInspect:  {DomainDocker, KindDriver, "Failed to inspect container", http.StatusInternalServerError},
	DockerContainerList:     {DomainDocker, KindDriver, "Failed to list containers", http.StatusInternalServerError},
	DockerUnhealthy:         {DomainDocker, KindUnhealthy, "Container did not become healthy", http.StatusGatewayTimeout},
	DockerPortUnavailable:   {DomainDocker, KindDriver, "No host port bound for PostgreSQL", http.StatusInternalServerError},
	DockerExecFailed:        {DomainDocker, KindDriver, "In-container command failed", http.StatusInternalServerError},

	StateLoadFailed:         {DomainState, KindDriver, "Failed to load catalog", http.StatusInternalServerError},
	StateSaveFailed:         {DomainState, KindDriver, "Failed to save catalog", http.StatusInternalServerError},
	StateLockBusy:           {DomainState, KindBusy, "Catalog is locked by another invocation", http.StatusConflict},
	StateAlreadyInitialized: {DomainState, KindAlreadyExists, "Catalog already initialized", http.StatusConflict},
	StateNotInitialized:     {DomainState, KindUser, "Catalog not initialized", http.StatusBadRequest},
	StateProjectNotFound:    {DomainState, KindNotFound, "Project not found", http.StatusNotFound},
	StateBranchNotFound:     {DomainState, KindNotFound, "Branch not found", http.StatusNotFound},
	StateSnapshotNotFound:   {DomainState, KindNotFound, "Snapshot not found", http.StatusNotFound},
	StateDuplicateProject:   {DomainState, KindUser, "Project already exists", http.StatusConflict},
	StateDuplicateBranch:    {DomainState, KindUser, "Branch already exists", http.StatusConflict},
	StateInconsistent:       {DomainState, KindInconsistent, "Catalog is inconsistent with reality", http.StatusInternalServerError},

	EngineInvalidInput:      {DomainEngine, KindUser, "Invalid input", http.StatusBadRequest},
	EngineNameConflict:      {DomainEngine, KindUser, "Name already in use", http.StatusConflict},
	EngineNotFound:          {DomainEngine, KindNotFound, "Not found", http.StatusNotFound},
	EngineAlreadyExists:     {DomainEngine, KindAlreadyExists, "Resource already exists", http.StatusConflict},
	EngineStorageBusy:       {DomainEngine, KindStorageBusy, "Storage is busy", http.StatusConflict},
	EngineHasDependents:     {DomainEngine, KindHasDependents, "Entity has dependents", http.StatusConflict},
	EngineUnhealthy:         {DomainEngine, KindUnhealthy, "Container did not become healthy", http.StatusGatewayTimeout},
	EnginePrimaryImmutable:  {DomainEngine, KindUser, "Operation not valid on a primary branch", http.StatusBadRequest},
	EngineDriverFailure:     {DomainEngine, KindDriver, "Driver operation failed", http.StatusInternalServerError},
	EngineInconsistent:      {DomainEngine, KindInconsistent, "State does not match reality", http.StatusInternalServerError},
	EngineCheckpointFailed:  {DomainEngine, KindDriver, "CHECKPOINT failed", http.StatusInternalServerError},
	EngineCompensationError: {DomainEngine, KindDriver, "Rollback of partial workflow failed", http.StatusInternalServerError},

	ServerStart:         {DomainServer, KindDriver, "Failed to start server", http.StatusInternalServerError},
	ServerShutdown:      {DomainServer, KindDriver, "Error during shutdown", http.StatusInternalServerError},
	ServerInternalError: {DomainServer, KindDriver, "Internal server error", http.StatusInternalServerError},
}
