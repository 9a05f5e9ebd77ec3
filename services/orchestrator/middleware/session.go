// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the docchat service.
//
// # Session Flow
//
// Web clients are identified by an opaque session cookie. The session
// middleware resolves the ID for every request and stores it in the Gin
// context for downstream handlers.
//
//	Request
//	   │
//	   ▼
//	SessionMiddleware
//	   │
//	   ├─► X-Session-ID header (API clients)
//	   │
//	   ├─► session cookie
//	   │
//	   └─► new UUID, written back as a cookie
//	           │
//	           ▼
//	       Handler (retrieves via GetSessionID)
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// =============================================================================
// Context Keys
// =============================================================================

const sessionIDKey = "docchat_session_id"

// SessionHeader lets API clients pick their session explicitly.
const SessionHeader = "X-Session-ID"

// maxSessionIDLength bounds client supplied identifiers.
const maxSessionIDLength = 128

// sessionCookieMaxAge is 30 days, in seconds.
const sessionCookieMaxAge = 30 * 24 * 60 * 60

// =============================================================================
// Context Helpers
// =============================================================================

// SetSessionID stores the session ID in the Gin context.
func SetSessionID(c *gin.Context, id string) {
	c.Set(sessionIDKey, id)
}

// GetSessionID retrieves the session ID from the Gin context.
//
// # Outputs
//
//   - string: The session ID, or "" when SessionMiddleware did not run.
func GetSessionID(c *gin.Context) string {
	value, exists := c.Get(sessionIDKey)
	if !exists {
		return ""
	}
	id, ok := value.(string)
	if !ok {
		return ""
	}
	return id
}

// =============================================================================
// Middleware
// =============================================================================

// SessionMiddleware resolves the caller's conversation session.
//
// # Description
//
// Resolution order is the X-Session-ID header, then the named cookie, then
// a freshly generated UUID. A new or header supplied ID is written back as
// an HttpOnly cookie so browsers keep the same session across requests.
// Values longer than 128 bytes or containing control characters are
// ignored.
//
// # Inputs
//
//   - cookieName: Name of the session cookie. Must not be empty.
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware that always calls c.Next().
//
// # Thread Safety
//
// Safe for concurrent use. The middleware itself is stateless.
func SessionMiddleware(cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := sanitizeSessionID(c.GetHeader(SessionHeader))
		fromCookie := false
		if id == "" {
			if cookie, err := c.Cookie(cookieName); err == nil {
				id = sanitizeSessionID(cookie)
				fromCookie = id != ""
			}
		}
		if id == "" {
			id = uuid.New().String()
		}
		if !fromCookie {
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(cookieName, id, sessionCookieMaxAge, "/", "", false, true)
		}

		SetSessionID(c, id)
		c.Next()
	}
}

func sanitizeSessionID(raw string) string {
	id := strings.TrimSpace(raw)
	if id == "" || len(id) > maxSessionIDLength {
		return ""
	}
	for _, r := range id {
		if r < 0x21 || r == 0x7f || r == ';' || r == ',' {
			return ""
		}
	}
	return id
}
