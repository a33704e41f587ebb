package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Freeeeeet/campus_lending/internal/model"
	"github.com/Freeeeeet/campus_lending/internal/service"
)

const maxBodyBytes = 64 << 10

type borrowRequestBody struct {
	BorrowerType     model.BorrowerKind `json:"borrower_type"`
	BorrowerID       string             `json:"borrower_id"`
	BorrowerName     string             `json:"borrower_name"`
	ItemID           *int64             `json:"item_id"`
	ScheduleRef      string             `json:"schedule_ref"`
	ClassName        string             `json:"class_name"`
	ProgramStudy     string             `json:"program_study"`
	LecturerName     string             `json:"lecturer_name"`
	PromisedReturnAt time.Time          `json:"promised_return_at"`
}

type directLendingBody struct {
	borrowRequestBody
	Barcode string `json:"barcode"`
}

type rejectBody struct {
	Reason string `json:"reason"`
	Alasan string `json:"alasan"`
}

type arriveBody struct {
	BorrowerID string `json:"borrower_id"`
}

type completeBody struct {
	Barcode string `json:"barcode"`
}

// decode reads a JSON body. An empty body leaves dst untouched.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		writeFail(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func (s *Server) submitRequest(w http.ResponseWriter, r *http.Request) {
	var body borrowRequestBody
	if !decode(w, r, &body) {
		return
	}

	tx, err := s.lending.SubmitRequest(r.Context(), service.BorrowRequest{
		BorrowerKind:     body.BorrowerType,
		BorrowerID:       body.BorrowerID,
		BorrowerName:     body.BorrowerName,
		ItemID:           body.ItemID,
		ScheduleRef:      body.ScheduleRef,
		ClassName:        body.ClassName,
		ProgramStudy:     body.ProgramStudy,
		LecturerName:     body.LecturerName,
		PromisedReturnAt: body.PromisedReturnAt,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeOK(w, http.StatusCreated, tx, "Borrow request sent, waiting for admin")
}

func (s *Server) markArrived(w http.ResponseWriter, r *http.Request) {
	var body arriveBody
	if !decode(w, r, &body) {
		return
	}

	tx, err := s.lending.MarkStudentArrived(r.Context(), r.PathValue("id"), body.BorrowerID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, tx, "Arrival recorded")
}

func (s *Server) getTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.lending.GetTransaction(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, tx, "")
}

func (s *Server) listPending(w http.ResponseWriter, r *http.Request) {
	views, err := s.lending.ListPendingRequests(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, views, "")
}

func (s *Server) acceptRequest(w http.ResponseWriter, r *http.Request) {
	tx, err := s.lending.AcceptRequest(r.Context(), r.PathValue("id"), adminID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, tx, "Request accepted")
}

func (s *Server) rejectRequest(w http.ResponseWriter, r *http.Request) {
	var body rejectBody
	if !decode(w, r, &body) {
		return
	}

	reason := strings.TrimSpace(body.Reason)
	if reason == "" {
		reason = strings.TrimSpace(body.Alasan)
	}

	tx, err := s.lending.RejectRequest(r.Context(), r.PathValue("id"), adminID(r), reason)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, tx, "Request rejected")
}

func (s *Server) scanBarcode(w http.ResponseWriter, r *http.Request) {
	item, err := s.lending.ResolveBarcode(r.Context(), r.PathValue("barcode"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, item, "")
}

func (s *Server) completeWithScan(w http.ResponseWriter, r *http.Request) {
	var body completeBody
	if !decode(w, r, &body) {
		return
	}

	tx, err := s.lending.CompleteWithScan(r.Context(), r.PathValue("id"), body.Barcode, adminID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, tx, "Item handed out")
}

func (s *Server) directLending(w http.ResponseWriter, r *http.Request) {
	var body directLendingBody
	if !decode(w, r, &body) {
		return
	}

	tx, err := s.lending.DirectAdminLending(r.Context(), service.DirectLending{
		BorrowerKind:     body.BorrowerType,
		BorrowerID:       body.BorrowerID,
		BorrowerName:     body.BorrowerName,
		Barcode:          body.Barcode,
		ScheduleRef:      body.ScheduleRef,
		ClassName:        body.ClassName,
		ProgramStudy:     body.ProgramStudy,
		LecturerName:     body.LecturerName,
		PromisedReturnAt: body.PromisedReturnAt,
	}, adminID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, tx, "Item handed out")
}

func (s *Server) returnItem(w http.ResponseWriter, r *http.Request) {
	tx, err := s.lending.ReturnItem(r.Context(), r.PathValue("id"), adminID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, tx, "Item returned")
}

func (s *Server) historyLog(w http.ResponseWriter, r *http.Request) {
	history, err := s.lending.ListHistory(r.Context(), queryInt(r, "page", 1), queryInt(r, "limit", 0))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, history, "")
}

func (s *Server) currentLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := s.lending.ListCurrentLoans(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, loans, "")
}

func (s *Server) topLendingItems(w http.ResponseWriter, r *http.Request) {
	stats, err := s.lending.TopLendingItems(r.Context(), queryInt(r, "limit", 0))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, stats, "")
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
