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

package dataset

// NameConfig identifies a dataset by its full path.
type NameConfig struct {
	Name string `json:"name"`
}

// FilesystemConfig defines parameters for filesystem creation.
type FilesystemConfig struct {
	NameConfig
	Properties map[string]string `json:"properties,omitempty"`
	Parents    bool              `json:"parents,omitempty"`
	DoNotMount bool              `json:"do_not_mount,omitempty"`
}

// DestroyConfig defines parameters for dataset destruction.
type DestroyConfig struct {
	NameConfig
	RecursiveDestroyChildren bool `json:"recursive_destroy_children,omitempty"`
	Force                    bool `json:"force,omitempty"`
}

// SnapshotConfig defines parameters for snapshot creation.
type SnapshotConfig struct {
	NameConfig        // Dataset to snapshot
	SnapName   string `json:"snap_name"`
}

// CloneConfig defines parameters for cloning a snapshot.
type CloneConfig struct {
	NameConfig        // Full snapshot reference (dataset@snap)
	CloneName  string `json:"clone_name"` // Full path of the new dataset
	Properties map[string]string `json:"properties,omitempty"`
	Parents    bool              `json:"parents,omitempty"`
}

// PropertyConfig identifies a single property of a dataset.
type PropertyConfig struct {
	NameConfig
	Property string `json:"property"`
}
