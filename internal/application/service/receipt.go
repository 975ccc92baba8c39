package service

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/garyjia/expense-approvals/internal/domain/entity"
)

// DefaultMaxReceiptSize is the upload limit when none is configured
const DefaultMaxReceiptSize = 5 << 20

// receiptExtensions maps the accepted content types to object extensions
var receiptExtensions = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/gif":       "gif",
	"application/pdf": "pdf",
}

// ReceiptUpload is a receipt file attached to a submission
type ReceiptUpload struct {
	Filename string
	Content  []byte
}

// ReceiptConfig controls receipt storage
type ReceiptConfig struct {
	Bucket  string
	MaxSize int64
}

// detectReceiptType sniffs the content type from the bytes rather than trusting the client
func detectReceiptType(content []byte) string {
	ct := http.DetectContentType(content)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return ct
}

// validateReceipt adds receipt problems to verr and returns the sniffed content type
func validateReceipt(r *ReceiptUpload, maxSize int64, verr *entity.ValidationError) string {
	if len(r.Content) == 0 {
		verr.Add("receipt", "file is empty")
		return ""
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxReceiptSize
	}
	if int64(len(r.Content)) > maxSize {
		verr.Add("receipt", fmt.Sprintf("file exceeds %d bytes", maxSize))
		return ""
	}
	ct := detectReceiptType(r.Content)
	if _, ok := receiptExtensions[ct]; !ok {
		verr.Add("receipt", "must be a JPEG, PNG, GIF or PDF file")
		return ""
	}
	return ct
}

// receiptPath builds {companyId}/{employeeId}/{unixMillis}_{employeeId}.{ext}
func receiptPath(companyID, employeeID, contentType string, at time.Time) string {
	return fmt.Sprintf("%s/%s/%d_%s.%s", companyID, employeeID, at.UnixMilli(), employeeID, receiptExtensions[contentType])
}
