// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package feed

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// cursor pins a page read to one snapshot version.
type cursor struct {
	Version int64
	Offset  int
}

const cursorPrefix = "pf1"

func (c cursor) encode() string {
	raw := cursorPrefix + ":" + strconv.FormatInt(c.Version, 10) + ":" + strconv.Itoa(c.Offset)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(s string) (cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return cursor{}, fmt.Errorf("%w: not base64", ErrInvalidCursor)
	}
	parts := strings.Split(string(raw), ":")
	if len(parts) != 3 || parts[0] != cursorPrefix {
		return cursor{}, fmt.Errorf("%w: malformed", ErrInvalidCursor)
	}
	version, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || version < 1 {
		return cursor{}, fmt.Errorf("%w: bad version", ErrInvalidCursor)
	}
	offset, err := strconv.Atoi(parts[2])
	if err != nil || offset < 0 {
		return cursor{}, fmt.Errorf("%w: bad offset", ErrInvalidCursor)
	}
	return cursor{Version: version, Offset: offset}, nil
}
