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
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stratastor/logger"
	"github.com/stratastor/usbtrigger/pkg/errors"
)

const requestIDHeader = "X-Request-Id"

// LoggerMiddleware tags every request with an id and logs its outcome.
// Reads are logged at debug; the CLI polls them.
func LoggerMiddleware(l logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header(requestIDHeader, requestID)
		c.Set("request_id", requestID)

		c.Next()

		if path == "/health" {
			return
		}

		kv := []interface{}{
			"request_id", requestID,
			"method", c.Request.Method,
			"path", path,
			"route", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes_out", c.Writer.Size(),
			"ip", c.ClientIP(),
		}

		for _, ginErr := range c.Errors {
			if re, ok := ginErr.Err.(*errors.AppError); ok {
				kv = append(kv,
					"error_code", int(re.Code),
					"error_domain", string(re.Domain),
					"error_message", re.Message,
					"error_details", re.Details,
				)
				for k, v := range re.Metadata {
					kv = append(kv, "error_metadata_"+k, v)
				}
			} else {
				kv = append(kv, "error", ginErr.Error())
			}
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			l.Error("Server Error", kv...)
		case status >= http.StatusBadRequest:
			l.Warn("Client Error", kv...)
		case c.Request.Method == http.MethodGet:
			l.Debug("Request", kv...)
		default:
			l.Info("Request", kv...)
		}
	}
}
