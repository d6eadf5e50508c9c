package handlers

import (
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/eshaffer321/ledger-reconciler/internal/adapters/ledger"
	"github.com/eshaffer321/ledger-reconciler/internal/api/dto"
	"github.com/eshaffer321/ledger-reconciler/internal/application/reconcile"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/txn"
)

// ReconcileHandler runs reconciliations from uploaded files.
type ReconcileHandler struct {
	*Base
	service *reconcile.Service
	logger  *slog.Logger
}

// NewReconcileHandler creates a new reconcile handler.
func NewReconcileHandler(service *reconcile.Service, logger *slog.Logger) *ReconcileHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileHandler{
		Base:    &Base{},
		service: service,
		logger:  logger,
	}
}

// Create handles POST /api/reconciliations.
//
// The request is multipart/form-data with an account_id field, a statement
// CSV file and a ledger JSON file. start_date, end_date, tolerance and
// min_match_rate are optional.
func (h *ReconcileHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, dto.MaxUploadBytes)
	if err := r.ParseMultipartForm(dto.MaxUploadBytes); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("request must be multipart/form-data within the upload limit"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	req, apiErr := buildRequest(r)
	if apiErr != nil {
		h.WriteError(w, http.StatusBadRequest, *apiErr)
		return
	}

	statementFile, _, err := r.FormFile(dto.FieldStatement)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.FieldError(dto.FieldStatement, "statement file is required"))
		return
	}
	defer statementFile.Close()
	req.Statement = statementFile

	ledgerData, err := readFormFile(r, dto.FieldLedger)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.FieldError(dto.FieldLedger, "ledger file is required"))
		return
	}
	req.Ledger = ledger.NewBytesSource(ledgerData)

	outcome, err := h.service.Run(r.Context(), req)
	if err != nil {
		status, apiErr := classifyRunError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("reconciliation failed", slog.String("account", req.AccountID), slog.String("error", err.Error()))
		}
		h.WriteError(w, status, apiErr)
		return
	}

	response := dto.ReconcileResponse{
		RunID:       outcome.RunID,
		Status:      outcome.Status,
		Saved:       outcome.Saved,
		SkippedRows: make([]dto.SkippedRowResponse, 0, len(outcome.Skipped)),
		Report:      outcome.Report,
	}
	for _, s := range outcome.Skipped {
		response.SkippedRows = append(response.SkippedRows, dto.SkippedRowResponse{
			Line:   s.Line,
			Reason: s.Reason,
			Value:  s.Value,
		})
	}
	for _, col := range outcome.MissingColumns {
		response.MissingColumns = append(response.MissingColumns, string(col))
	}

	status := http.StatusCreated
	if !outcome.Saved {
		status = http.StatusOK
	}
	h.WriteJSON(w, status, response)
}

// buildRequest reads the plain form fields. Files are attached by the caller.
func buildRequest(r *http.Request) (reconcile.Request, *dto.APIError) {
	req := reconcile.Request{
		AccountID: strings.TrimSpace(r.FormValue(dto.FieldAccountID)),
	}
	if req.AccountID == "" {
		e := dto.FieldError(dto.FieldAccountID, "account_id is required")
		return req, &e
	}

	var err error
	if req.StartDate, err = formDate(r, dto.FieldStartDate); err != nil {
		e := dto.FieldError(dto.FieldStartDate, "start_date must be YYYY-MM-DD")
		return req, &e
	}
	if req.EndDate, err = formDate(r, dto.FieldEndDate); err != nil {
		e := dto.FieldError(dto.FieldEndDate, "end_date must be YYYY-MM-DD")
		return req, &e
	}

	if v := strings.TrimSpace(r.FormValue(dto.FieldTolerance)); v != "" {
		tol, err := decimal.NewFromString(v)
		if err != nil {
			e := dto.FieldError(dto.FieldTolerance, "tolerance must be a decimal number")
			return req, &e
		}
		req.Tolerance = &tol
	}
	if v := strings.TrimSpace(r.FormValue(dto.FieldMinMatchRate)); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e := dto.FieldError(dto.FieldMinMatchRate, "min_match_rate must be a number")
			return req, &e
		}
		req.MinMatchRate = &rate
	}
	return req, nil
}

func formDate(r *http.Request, field string) (civil.Date, error) {
	v := strings.TrimSpace(r.FormValue(field))
	if v == "" {
		return civil.Date{}, nil
	}
	return civil.ParseDate(v)
}

func readFormFile(r *http.Request, field string) ([]byte, error) {
	f, _, err := r.FormFile(field)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// classifyRunError maps a service error onto an HTTP status. Both inputs
// come from the client, so unreadable files are client errors.
func classifyRunError(err error) (int, dto.APIError) {
	var (
		csvErr  *csv.ParseError
		dateErr *time.ParseError
	)
	switch {
	case errors.Is(err, reconcile.ErrNoUsableRows),
		errors.As(err, &csvErr):
		return http.StatusBadRequest, dto.StatementFormatError(err.Error())
	case errors.Is(err, reconcile.ErrInvalidRequest):
		return http.StatusBadRequest, dto.ValidationError(err.Error())
	case errors.Is(err, ledger.ErrAccountMismatch):
		return http.StatusBadRequest, dto.AccountMismatchError(err.Error())
	case errors.Is(err, ledger.ErrMalformedExport),
		errors.Is(err, ledger.ErrUnknownFormat),
		errors.Is(err, txn.ErrInvalidDate),
		errors.As(err, &dateErr):
		return http.StatusBadRequest, dto.LedgerFormatError(err.Error())
	default:
		return http.StatusInternalServerError, dto.InternalError()
	}
}
