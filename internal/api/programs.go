package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/seantiz/kiln/internal/handler"
)

const maxBodySize = 1 << 20 // 1 MB

// executeRequest is the optional JSON body for POST /v1/programs/{name}/execute.
type executeRequest struct {
	Args []json.RawMessage `json:"args"`
}

// acceptedResponse acknowledges a register or execute request. It never
// reports whether the request succeeded.
type acceptedResponse struct {
	Program string `json:"program"`
	Status  string `json:"status"`
}

func (s *Server) handleListPrograms(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.handler.Programs())
}

func (s *Server) handleRegisterProgram(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	text, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "program too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, "failed to read program")
		return
	}
	programUploadBytes.Observe(float64(len(text)))

	s.handler.HandleRemoteRegister(handler.RemoteRegisterInvocation{
		ProgramName: name,
		Program:     string(text),
	})
	s.writeJSON(w, http.StatusAccepted, acceptedResponse{Program: name, Status: "accepted"})
}

func (s *Server) handleExecuteProgram(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	inv := handler.RemoteExecuteInvocation{ProgramName: name}
	if len(bytes.TrimSpace(body)) > 0 {
		var req executeRequest
		if err := json.Unmarshal(body, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Args != nil {
			args, err := decodeArgs(req.Args)
			if err != nil {
				s.writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			inv.Args = args
		}
	}

	s.handler.HandleRemoteExecute(inv)
	s.writeJSON(w, http.StatusAccepted, acceptedResponse{Program: name, Status: "accepted"})
}

// decodeArgs converts JSON argument values to cty values of their implied
// types.
func decodeArgs(raw []json.RawMessage) ([]cty.Value, error) {
	args := make([]cty.Value, len(raw))
	for i, r := range raw {
		ty, err := ctyjson.ImpliedType(r)
		if err != nil {
			return nil, fmt.Errorf("invalid argument %d: %v", i, err)
		}
		v, err := ctyjson.Unmarshal(r, ty)
		if err != nil {
			return nil, fmt.Errorf("invalid argument %d: %v", i, err)
		}
		args[i] = v
	}
	return args, nil
}
