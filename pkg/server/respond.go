package server

import (
	"encoding/json"
	"iter"
	"net/http"

	"fleetwatch/pkg/log"
	"fleetwatch/pkg/models"

	"github.com/labstack/echo/v4"
)

// MIMEApplicationNDJSON is the content type of streamed responses.
const MIMEApplicationNDJSON = "application/x-ndjson"

// JSONError writes the standard error body.
func JSONError(c echo.Context, status int, message string) error {
	return c.JSON(status, models.ErrorResponse{Error: message})
}

// StreamNDJSON writes one JSON document per item and flushes after each.
// It returns when the sequence ends or the client stops reading. Errors
// after the header is sent can only end the stream.
func StreamNDJSON[T any](c echo.Context, items iter.Seq2[T, error]) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, MIMEApplicationNDJSON)
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	encoder := json.NewEncoder(res)
	for item, err := range items {
		if err != nil {
			log.Warn().Err(err).Str("uri", c.Request().RequestURI).Msg("Stream ended with error")
			return nil
		}
		if err := encoder.Encode(item); err != nil {
			log.Debug().Err(err).Msg("Stream client went away")
			return nil
		}
		res.Flush()
	}
	return nil
}
