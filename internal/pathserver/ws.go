package pathserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// handleWS answers a stream of search requests over one websocket: every
// received JSON frame produces exactly one result frame.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	for {
		var req searchRequest
		if err := conn.ReadJSON(&req); err != nil {
			if isDecodeError(err) {
				// Malformed frame: report and keep the stream alive.
				if werr := conn.WriteJSON(searchResponse{
					Status: "Error", Code: -1, Error: err.Error(),
				}); werr != nil {
					return
				}
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("websocket closed", "err", err)
			}
			return
		}

		resp := s.runSearch(r.Context(), req)
		if err := conn.WriteJSON(resp); err != nil {
			slog.Debug("websocket write failed", "err", err)
			return
		}
	}
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}
