package api

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/thebeyondr/sekiva/modules/common"
	"github.com/thebeyondr/sekiva/modules/contract/ballot"
	"github.com/thebeyondr/sekiva/modules/contract/factory"
	"github.com/thebeyondr/sekiva/modules/contract/organization"
	contract_session "github.com/thebeyondr/sekiva/modules/contract/session"
	"github.com/thebeyondr/sekiva/modules/db/sekiva/event_log"
	stateEngine "github.com/thebeyondr/sekiva/modules/state-processing"
)

const (
	DEFAULT_PAGE_SIZE = 50
	MAX_PAGE_SIZE     = 500
)

var errUnknownKind = errors.New("unknown contract kind")

type errorResponse struct {
	Error string `json:"error"`
}

type statusResponse struct {
	Height    uint64 `json:"height"`
	BlockTime int64  `json:"block_time"`
	Contracts int    `json:"contracts"`
}

type contractResponse struct {
	Address common.Address `json:"address"`
	Kind    string         `json:"kind"`
	CodeId  string         `json:"code_id"`
	State   any            `json:"state"`
}

type snapshotResponse struct {
	Height    uint64 `json:"height"`
	BlockTime int64  `json:"block_time"`
	Kind      string `json:"kind"`
	CodeId    string `json:"code_id"`
	State     any    `json:"state"`
}

type nonceResponse struct {
	Address common.Address `json:"address"`
	Nonce   uint64         `json:"nonce"`
}

// Payload and args are hex, with or without 0x. A missing nonce takes the
// sender's next one.
type txRequest struct {
	Sender   common.Address `json:"sender" validate:"required"`
	Nonce    *uint64        `json:"nonce"`
	Contract common.Address `json:"contract" validate:"required"`
	Payload  string         `json:"payload" validate:"required"`
}

type secretInputRequest struct {
	Sender    common.Address `json:"sender" validate:"required"`
	Contract  common.Address `json:"contract" validate:"required"`
	Shortname uint32         `json:"shortname"`
	Args      string         `json:"args"`
	Value     int64          `json:"value"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// Decodes a contract state document into the view its kind publishes
func stateView(kind string, state []byte) (any, error) {
	switch kind {
	case factory.Contract{}.Name():
		s, err := factory.DecodeState(state)
		if err != nil {
			return nil, err
		}
		return s.View(), nil
	case organization.Contract{}.Name():
		s, err := organization.DecodeState(state)
		if err != nil {
			return nil, err
		}
		return s.View(), nil
	case ballot.Contract{}.Name():
		s, err := ballot.DecodeState(state)
		if err != nil {
			return nil, err
		}
		return s.View(), nil
	}
	return nil, fmt.Errorf("%w: %q", errUnknownKind, kind)
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return hex.DecodeString(s)
}

func pathAddress(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	addr, err := common.ParseAddress(r.PathValue("address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return common.Address{}, false
	}
	return addr, true
}

// limit defaults to DEFAULT_PAGE_SIZE and is capped at MAX_PAGE_SIZE
func pagination(r *http.Request) (offset int64, limit int64, err error) {
	limit = DEFAULT_PAGE_SIZE
	q := r.URL.Query()
	if v := q.Get("offset"); v != "" {
		offset, err = strconv.ParseInt(v, 10, 64)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("invalid offset %q", v)
		}
	}
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.ParseInt(v, 10, 64)
		if err != nil || limit <= 0 {
			return 0, 0, fmt.Errorf("invalid limit %q", v)
		}
	}
	return offset, min(limit, MAX_PAGE_SIZE), nil
}

func (s *Server) contract(w http.ResponseWriter, r *http.Request) (contract_session.ContractRecord, bool) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return contract_session.ContractRecord{}, false
	}
	rec, ok := s.node.Contract(addr)
	if !ok {
		writeError(w, http.StatusNotFound, "no contract at "+addr.String())
		return contract_session.ContractRecord{}, false
	}
	return rec, true
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Height:    s.node.Height(),
		BlockTime: s.node.BlockTime(),
		Contracts: len(s.node.Addresses()),
	})
}

func (s *Server) handleContracts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.node.Addresses())
}

func (s *Server) handleContract(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.contract(w, r)
	if !ok {
		return
	}
	view, err := stateView(rec.Kind, rec.State)
	if err != nil {
		s.log.Error("decoding state of", rec.Address, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, contractResponse{
		Address: rec.Address,
		Kind:    rec.Kind,
		CodeId:  rec.CodeId,
		State:   view,
	})
}

func (s *Server) handleBallot(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.contract(w, r)
	if !ok {
		return
	}
	if rec.Kind != (ballot.Contract{}).Name() {
		writeError(w, http.StatusNotFound, rec.Address.String()+" is not a ballot")
		return
	}
	state, err := ballot.DecodeState(rec.State)
	if err != nil {
		s.log.Error("decoding ballot", rec.Address, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state.View())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, http.StatusServiceUnavailable, "event log not configured")
		return
	}
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	offset, limit, err := pagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	records, err := s.events.ByContract(addr, offset, limit)
	if err != nil {
		s.log.Error("reading events of", addr, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []event_log.EventRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.states == nil {
		writeError(w, http.StatusServiceUnavailable, "state history not configured")
		return
	}
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	_, limit, err := pagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	records, err := s.states.History(addr, limit)
	if err != nil {
		s.log.Error("reading history of", addr, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]snapshotResponse, len(records))
	for i, rec := range records {
		view, err := stateView(rec.Kind, rec.State)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out[i] = snapshotResponse{
			Height:    rec.Height,
			BlockTime: rec.BlockTime,
			Kind:      rec.Kind,
			CodeId:    rec.CodeId,
			State:     view,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleNonce(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, nonceResponse{Address: addr, Nonce: s.node.NextNonce(addr)})
}

// Failed transactions still answer with their result; the status tells
// them apart.
func writeTxResult(w http.ResponseWriter, res stateEngine.TxResult) {
	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

func decodeBody[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var req T
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request: "+err.Error())
		return req, false
	}
	if err := common.Validate(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	return req, true
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[txRequest](w, r)
	if !ok {
		return
	}
	payload, err := decodeHex(req.Payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, "payload: "+err.Error())
		return
	}
	nonce := s.node.NextNonce(req.Sender)
	if req.Nonce != nil {
		nonce = *req.Nonce
	}
	writeTxResult(w, s.node.Submit(r.Context(), stateEngine.Transaction{
		Sender:   req.Sender,
		Nonce:    nonce,
		Contract: req.Contract,
		Payload:  payload,
	}))
}

func (s *Server) handleSecretInput(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[secretInputRequest](w, r)
	if !ok {
		return
	}
	args, err := decodeHex(req.Args)
	if err != nil {
		writeError(w, http.StatusBadRequest, "args: "+err.Error())
		return
	}
	writeTxResult(w, s.node.SubmitSecretInput(
		r.Context(),
		req.Sender,
		req.Contract,
		common.Shortname(req.Shortname),
		args,
		req.Value,
	))
}
