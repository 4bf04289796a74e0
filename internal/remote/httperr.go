// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package remote holds resty-backed HTTP clients for the storage
// agent, the pantry helper, the host instance agent, and the service
// directory that resolves their endpoints. Every client method
// translates transport and status-code failures into the saga error
// taxonomy; callers decide whether to wrap a call in External-Call
// Retry.
package remote

import (
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/nexuscp/sagactl/internal/sagaerr"
)

// classifyHTTPError maps a resty response/error pair to the saga
// error taxonomy. op names the call for diagnostics.
func classifyHTTPError(op string, resp *resty.Response, err error) error {
	if err != nil {
		return sagaerr.Transientf(op, "request failed: %v", err)
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return sagaerr.NotFoundf(op, "%s", resp.String())
	case resp.StatusCode() == http.StatusConflict:
		return sagaerr.Conflictf(op, "%s", resp.String())
	case resp.StatusCode() == http.StatusBadRequest || resp.StatusCode() == http.StatusUnprocessableEntity:
		return sagaerr.Invalidf(op, "%s", resp.String())
	case resp.StatusCode() >= 500:
		return sagaerr.Transientf(op, "server error %d: %s", resp.StatusCode(), resp.String())
	case resp.StatusCode() >= 400:
		return sagaerr.Internalf(op, "unexpected status %d: %s", resp.StatusCode(), resp.String())
	default:
		return nil
	}
}

// isNotFound reports whether err (as returned by classifyHTTPError)
// is the delete-if-present "already gone" case.
func isNotFound(err error) bool {
	return sagaerr.KindOf(err) == sagaerr.NotFound
}

func newBaseClient(baseURL string) *resty.Client {
	c := resty.New()
	c.SetBaseURL(baseURL)
	c.SetHeader("Content-Type", "application/json")
	c.SetTimeout(30 * time.Second)
	return c
}
