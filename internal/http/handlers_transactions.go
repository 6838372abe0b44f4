package http

import (
	"net/http"

	"daisycash/internal/blob"
	"daisycash/internal/core"
	applog "daisycash/internal/log"
	"daisycash/internal/services"
)

// maxReceiptBody leaves room for the multipart envelope around the image.
const maxReceiptBody = blob.MaxImageSize + 1<<20

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := ParseTransactionFilter(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	txs, err := s.txs.List(r.Context(), f)
	if err != nil {
		s.respondError(w, r, err, applog.OpList)
		return
	}
	NewJSONResponse().Body(map[string]any{
		"transactions": s.views(txs),
		"count":        len(txs),
	}).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.txs.Get(r.Context(), pathID(r))
	if err != nil {
		s.respondError(w, r, err, applog.OpRead)
		return
	}
	NewJSONResponse().Body(s.view(tx)).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var in services.TransactionInput
	if err := DecodeJSON(w, r, &in); err != nil {
		s.badBody(w, r, err)
		return
	}
	tx, err := s.txs.Create(r.Context(), in)
	if err != nil {
		s.respondError(w, r, err, applog.OpCreate)
		return
	}
	s.logChange(r, applog.OpCreate, tx)
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+tx.ID).
		Body(s.view(tx)).
		Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var in services.TransactionInput
	if err := DecodeJSON(w, r, &in); err != nil {
		s.badBody(w, r, err)
		return
	}
	tx, err := s.txs.Update(r.Context(), pathID(r), in)
	if err != nil {
		s.respondError(w, r, err, applog.OpUpdate)
		return
	}
	s.logChange(r, applog.OpUpdate, tx)
	NewJSONResponse().Body(s.view(tx)).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if err := s.txs.Delete(r.Context(), id); err != nil {
		s.respondError(w, r, err, applog.OpDelete)
		return
	}
	s.logger.InfoContext(r.Context(), "Transaction deleted",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldTransactionID, id)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleUploadReceipt accepts a multipart form with the image in the "file"
// field.
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxReceiptBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isTooLarge(err) {
			ErrorResponse(http.StatusRequestEntityTooLarge, blob.ErrTooLarge.Error()).Write(w)
			return
		}
		BadRequestError("expected a multipart form with a file field").Write(w)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		BadRequestError("missing file field").Write(w)
		return
	}
	defer file.Close()

	tx, err := s.txs.AttachReceipt(r.Context(), pathID(r), header.Filename, file)
	if err != nil {
		s.respondError(w, r, err, applog.OpUpdate)
		return
	}
	NewJSONResponse().Body(s.view(tx)).Write(w)
}

func (s *Server) badBody(w http.ResponseWriter, r *http.Request, err error) {
	if isTooLarge(err) {
		ErrorResponse(http.StatusRequestEntityTooLarge, "request body too large").Write(w)
		return
	}
	if services.IsValidation(err) {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	BadRequestError(err.Error()).Write(w)
}

func (s *Server) logChange(r *http.Request, op string, tx core.Transaction) {
	s.events.LogTransactionChanged(r.Context(), op, tx.ID, tx.Kind.String(),
		tx.Amount.String(), tx.Category.DisplayName(), tx.OccurredOn.String())
}
