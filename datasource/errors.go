package datasource

import (
	"errors"
	"fmt"

	"github.com/sevigo/gwdata/fetcher"
	"github.com/sevigo/gwdata/loaders"
	"github.com/sevigo/gwdata/parsers"
)

var (
	// ErrNoResourceURL is returned by LoadResource when no resource URL is configured.
	ErrNoResourceURL = errors.New("no resource url configured")
	// ErrDownloadInProgress is returned when a download is started while another
	// one is still running. The running attempt's state is left untouched.
	ErrDownloadInProgress = errors.New("download already in progress")
)

// Error codes stored in DownloadState.ErrorCode.
const (
	CodeFetchError   = "fetch-error"
	CodeFetchFailed  = "fetch-failed"
	CodeFileTooLarge = "file-too-large"
	CodeTransport    = "transport"
	CodeParse        = "parse"
	CodeUnknown      = "unknown"
)

// Code classifies err into one of the error codes. It returns "" for nil.
func Code(err error) string {
	var (
		statusErr    *fetcher.HTTPStatusError
		transportErr *fetcher.TransportError
		parseErr     *loaders.ParseError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &statusErr):
		return CodeFetchError
	case errors.Is(err, fetcher.ErrStreamUnavailable), errors.Is(err, loaders.ErrEmptyResult):
		return CodeFetchFailed
	case errors.Is(err, fetcher.ErrPayloadTooLarge):
		return CodeFileTooLarge
	case errors.As(err, &transportErr), errors.Is(err, fetcher.ErrEmptyURL):
		return CodeTransport
	case errors.As(err, &parseErr), errors.Is(err, parsers.ErrParserNotFound):
		return CodeParse
	default:
		return CodeUnknown
	}
}

// Message turns err into the text shown to the user. It returns "" for nil.
func Message(err error) string {
	var statusErr *fetcher.HTTPStatusError

	switch {
	case err == nil:
		return ""
	case errors.As(err, &statusErr):
		return fmt.Sprintf("fetch error: HTTP status %d", statusErr.StatusCode)
	case errors.Is(err, fetcher.ErrStreamUnavailable):
		return "fetch failed: no_stream"
	case errors.Is(err, loaders.ErrEmptyResult):
		return "fetch failed: no rows parsed"
	case errors.Is(err, fetcher.ErrPayloadTooLarge):
		return "file too large"
	default:
		return err.Error()
	}
}
