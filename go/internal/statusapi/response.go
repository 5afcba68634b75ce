package statusapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/liveauction/go/internal/room"
	"github.com/mcdev12/liveauction/go/internal/room/roomerr"
)

const maxBodyBytes = 1 << 16

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// writeRoomError maps a room error to a status by its kind.
func writeRoomError(w http.ResponseWriter, op string, err error) {
	kind := roomerr.KindOf(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, roomerr.ErrNotJoined), errors.Is(err, roomerr.ErrNotLive):
		status = http.StatusConflict
	case errors.Is(err, roomerr.ErrConfirmationTimeout):
		status = http.StatusGatewayTimeout
	case kind == roomerr.KindValidation:
		status = http.StatusBadRequest
	case kind == roomerr.KindServerRejection:
		status = http.StatusUnprocessableEntity
	case kind == roomerr.KindStaleRoom:
		status = http.StatusConflict
	case kind == roomerr.KindConnection, kind == roomerr.KindProtocol:
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("op", op).Msg("room action failed")
	} else {
		log.Info().Err(err).Str("op", op).Msg("room action refused")
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind.String()})
}

func writeEvent(w io.Writer, st room.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: state\ndata: %s\n\n", data)
	return err
}
