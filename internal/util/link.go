// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"errors"
	"net/url"
	"strings"
)

// allowedLinkSchemes lists the schemes a menu link may use.
var allowedLinkSchemes = map[string]bool{
	"http":   true,
	"https":  true,
	"mailto": true,
	"tel":    true,
}

// ValidateLinkURL checks a raw menu link. Relative paths, fragments and
// http(s)/mailto/tel URLs are accepted; script-capable schemes are rejected.
func ValidateLinkURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.New("URL is empty")
	}
	if strings.HasPrefix(raw, "//") {
		return errors.New("protocol-relative URLs are not allowed")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return errors.New("invalid URL format")
	}

	if u.Scheme == "" {
		return nil
	}
	if !allowedLinkSchemes[strings.ToLower(u.Scheme)] {
		return errors.New("URL scheme " + u.Scheme + " is not allowed")
	}
	if (u.Scheme == "http" || u.Scheme == "https") && u.Host == "" {
		return errors.New("URL must have a host")
	}
	return nil
}
