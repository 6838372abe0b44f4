package http

import (
	"errors"
	"net/http"
	"strings"

	"daisycash/internal/backend"
	"daisycash/internal/core"
	applog "daisycash/internal/log"
)

// blobFilesPattern serves receipts stored by the local blob backend.
var blobFilesPattern = backend.FilesPath + "/{ref}"

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

// transactionView is a transaction as the API returns it.
type transactionView struct {
	core.Transaction
	ReceiptURL string `json:"receiptUrl,omitempty"`
}

func (s *Server) view(tx core.Transaction) transactionView {
	return transactionView{Transaction: tx, ReceiptURL: s.txs.ReceiptURL(tx)}
}

func (s *Server) views(txs []core.Transaction) []transactionView {
	out := make([]transactionView, 0, len(txs))
	for _, tx := range txs {
		out = append(out, s.view(tx))
	}
	return out
}

// pathID returns the {id} path value, or "" when it is blank.
func pathID(r *http.Request) string {
	return strings.TrimSpace(r.PathValue("id"))
}

// respondError writes the response mapped from err and logs it when it is a
// server failure.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	resp := ErrorFor(err)
	if resp.statusCode >= http.StatusInternalServerError {
		s.events.LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, operation,
			applog.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")))
	}
	resp.Write(w)
}

// isTooLarge reports whether err came from an exceeded body limit.
func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
