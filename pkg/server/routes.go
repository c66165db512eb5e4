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

package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stratastor/pgbranch/pkg/engine"
	"github.com/stratastor/pgbranch/pkg/errors"
	"github.com/stratastor/pgbranch/pkg/state"
)

// registerRoutes exposes read-only catalog introspection. Mutations stay
// on the CLI; serve mode is for dashboards and health probes.
func registerRoutes(ginEngine *gin.Engine, mgr *engine.Manager) {
	v1 := ginEngine.Group("/api/v1")
	{
		v1.GET("/status", func(c *gin.Context) {
			report, err := mgr.Status(c.Request.Context())
			if err != nil {
				abortWithError(c, err)
				return
			}
			c.JSON(http.StatusOK, report)
		})

		v1.GET("/projects", func(c *gin.Context) {
			projects, err := mgr.ListProjects(c.Request.Context())
			if err != nil {
				abortWithError(c, err)
				return
			}
			c.JSON(http.StatusOK, redactProjects(projects))
		})

		v1.GET("/branches", func(c *gin.Context) {
			infos, err := mgr.ListBranches(c.Request.Context(), c.Query("project"))
			if err != nil {
				abortWithError(c, err)
				return
			}
			c.JSON(http.StatusOK, infos)
		})

		v1.GET("/snapshots", func(c *gin.Context) {
			snaps, err := mgr.ListSnapshots(c.Request.Context(), c.Query("branch"))
			if err != nil {
				abortWithError(c, err)
				return
			}
			c.JSON(http.StatusOK, snaps)
		})
	}
}

func abortWithError(c *gin.Context, err error) {
	if pgbErr, ok := err.(*errors.PgbError); ok {
		c.JSON(pgbErr.HTTPStatus, pgbErr)
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// redactProjects strips passwords before they leave the process.
func redactProjects(projects []state.Project) []state.Project {
	out := make([]state.Project, len(projects))
	copy(out, projects)
	for i := range out {
		out[i].Credentials.Password = "[REDACTED]"
	}
	return out
}
