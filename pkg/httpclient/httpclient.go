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

package httpclient

import (
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stratastor/pgbranch/internal/constants"
)

const (
	defaultTimeout       = 10 * time.Second
	defaultRetryCount    = 3
	defaultRetryWaitTime = 2 * time.Second
	defaultRetryMaxWait  = 10 * time.Second
	defaultUserAgent     = "Pgbranch-CLI"
)

// Client wraps resty.Client with additional functionality
type Client struct {
	*resty.Client
	config ClientConfig
}

// ClientConfig holds configuration values for the HTTP client
type ClientConfig struct {
	BaseURL          string
	Timeout          time.Duration
	RetryCount       int
	RetryWaitTime    time.Duration
	RetryMaxWaitTime time.Duration
	UserAgent        string
	Headers          map[string]string
	Debug            bool
	EnableTrace      bool
}

// NewClientConfig returns a ClientConfig with sensible defaults
func NewClientConfig() ClientConfig {
	return ClientConfig{
		Headers:          make(map[string]string),
		Timeout:          defaultTimeout,
		RetryCount:       defaultRetryCount,
		RetryWaitTime:    defaultRetryWaitTime,
		RetryMaxWaitTime: defaultRetryMaxWait,
		UserAgent:        defaultUserAgent + "/" + constants.PgbranchVersion,
	}
}

// NewClient creates a new Resty client with provided configuration
func NewClient(config ClientConfig) *Client {
	restyClient := resty.New()
	client := &Client{
		Client: restyClient,
		config: config,
	}

	client.applyConfig()

	return client
}

func (c *Client) applyConfig() {
	cfg := c.config

	if cfg.BaseURL != "" {
		c.SetBaseURL(cfg.BaseURL)
	}
	c.SetTimeout(cfg.Timeout)
	c.SetRetryCount(cfg.RetryCount)
	c.SetRetryWaitTime(cfg.RetryWaitTime)
	c.SetRetryMaxWaitTime(cfg.RetryMaxWaitTime)
	c.SetHeader("User-Agent", cfg.UserAgent)
	for k, v := range cfg.Headers {
		c.SetHeader(k, v)
	}
	if cfg.Debug {
		c.SetDebug(true)
	}
	if cfg.EnableTrace {
		c.EnableTrace()
	}
}
