// file: internal/server/handlers.go
// version: 1.0.0
// guid: f1c07b42-261b-48c4-b473-33a3c231e85e

package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jdfalk/book-catalog/internal/catalog"
	"github.com/jdfalk/book-catalog/internal/cover"
	"github.com/jdfalk/book-catalog/internal/database"
	"github.com/jdfalk/book-catalog/internal/metadata"
)

// maxImportISBNs bounds one bulk import request.
const maxImportISBNs = 500

func isbnParam(c *gin.Context) (string, bool) {
	isbn := catalog.NormalizeISBN(c.Param("isbn"))
	if isbn == "" {
		RespondWithBadRequest(c, "isbn is required")
		return "", false
	}
	return isbn, true
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// getBook returns a stored book. With scrape=true (the default) an unknown
// ISBN is scraped first.
func (s *Server) getBook(c *gin.Context) {
	isbn, ok := isbnParam(c)
	if !ok {
		return
	}
	var book *database.Book
	var err error
	if ParseQueryBool(c, "scrape", true) {
		book, err = s.catalog.GetOrScrape(c.Request.Context(), isbn)
	} else {
		book, err = s.catalog.GetBook(c.Request.Context(), isbn)
	}
	if err != nil {
		RespondWithDomainError(c, err)
		return
	}
	if book == nil {
		RespondWithNotFound(c, "book", isbn)
		return
	}
	RespondWithOK(c, book)
}

func (s *Server) getFlags(c *gin.Context) {
	isbn, ok := isbnParam(c)
	if !ok {
		return
	}
	flags, err := s.catalog.GetFlags(c.Request.Context(), isbn)
	if err != nil {
		RespondWithDomainError(c, err)
		return
	}
	if flags == nil {
		RespondWithNotFound(c, "flags", isbn)
		return
	}
	RespondWithOK(c, flags)
}

func (s *Server) getCover(c *gin.Context) {
	id := c.Param("id")
	if id == "" || strings.ContainsAny(id, `/\.`) {
		RespondWithBadRequest(c, "invalid cover id")
		return
	}
	data, err := s.blobs.Get(c.Request.Context(), s.bucket, database.CoverKey(id))
	if errors.Is(err, cover.ErrBlobNotFound) {
		RespondWithNotFound(c, "cover", id)
		return
	}
	if err != nil {
		RespondWithDomainError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}

func (s *Server) aggregate(c *gin.Context) {
	isbn, ok := isbnParam(c)
	if !ok {
		return
	}
	vol, err := s.catalog.RunAggregation(c.Request.Context(), isbn, ParseQueryBool(c, "update", false))
	if err != nil {
		RespondWithDomainError(c, err)
		return
	}
	RespondWithOK(c, vol)
}

func (s *Server) resolveCover(c *gin.Context) {
	isbn, ok := isbnParam(c)
	if !ok {
		return
	}
	outcome, err := s.catalog.RunCoverResolution(c.Request.Context(), isbn)
	if err != nil {
		RespondWithDomainError(c, err)
		return
	}
	RespondWithOK(c, gin.H{"isbn": isbn, "outcome": outcome.String()})
}

type setFlagRequest struct {
	Value *bool `json:"value" binding:"required"`
}

func (s *Server) setFlag(c *gin.Context) {
	isbn, ok := isbnParam(c)
	if !ok {
		return
	}
	flag, err := database.ParseFlag(c.Param("flag"))
	if err != nil {
		RespondWithBadRequest(c, err.Error())
		return
	}
	var req setFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithBadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := s.catalog.SetFlag(c.Request.Context(), isbn, flag, *req.Value); err != nil {
		RespondWithDomainError(c, err)
		return
	}
	RespondWithOK(c, gin.H{"isbn": isbn, "flag": flag, "value": *req.Value})
}

func (s *Server) resetClassification(c *gin.Context) {
	isbn, ok := isbnParam(c)
	if !ok {
		return
	}
	if err := s.catalog.ResetClassification(c.Request.Context(), isbn); err != nil {
		RespondWithDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) recrawl(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		isbn  string
		found bool
		err   error
	)
	switch c.Param("flag") {
	case "cover":
		isbn, found, err = s.catalog.RunCoverRecrawlPass(ctx)
	case "info":
		isbn, found, err = s.catalog.RunInfoRecrawlPass(ctx)
	case "longrunning":
		isbn, found, err = s.catalog.RunLongrunningRecrawlPass(ctx)
	default:
		RespondWithBadRequest(c, "unknown recrawl pass "+c.Param("flag"))
		return
	}
	if err != nil {
		RespondWithDomainError(c, err)
		return
	}
	RespondWithOK(c, gin.H{"isbn": isbn, "found": found})
}

func (s *Server) classify(c *gin.Context) {
	batch := ParseQueryInt(c, "batch", s.batchSize)
	if batch <= 0 {
		RespondWithBadRequest(c, "batch must be positive")
		return
	}
	updated, err := s.catalog.RunClassificationPass(c.Request.Context(), batch)
	if err != nil {
		RespondWithDomainError(c, err)
		return
	}
	if updated == nil {
		updated = []string{}
	}
	RespondWithOK(c, gin.H{"updated": updated})
}

func (s *Server) backfillFlags(c *gin.Context) {
	n, err := s.catalog.BackfillMissingFlags(c.Request.Context())
	if err != nil {
		RespondWithDomainError(c, err)
		return
	}
	RespondWithOK(c, gin.H{"created": n})
}

func (s *Server) flagMissingCovers(c *gin.Context) {
	n, err := s.catalog.FlagMissingCovers(c.Request.Context())
	if err != nil {
		RespondWithDomainError(c, err)
		return
	}
	RespondWithOK(c, gin.H{"flagged": n})
}

type importRequest struct {
	ISBNs  []string `json:"isbns" binding:"required"`
	Update bool     `json:"update"`
}

// importISBNs aggregates and resolves covers for a list of ISBNs, one at a
// time, and reports the outcome of each.
func (s *Server) importISBNs(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithBadRequest(c, "invalid request: "+err.Error())
		return
	}
	if len(req.ISBNs) > maxImportISBNs {
		RespondWithBadRequest(c, "too many isbns")
		return
	}

	ctx := c.Request.Context()
	resp := BulkResponse{Results: make([]BulkItem, 0, len(req.ISBNs))}
	for _, raw := range req.ISBNs {
		isbn := catalog.NormalizeISBN(raw)
		if isbn == "" {
			continue
		}
		item := BulkItem{ISBN: isbn, Status: "success"}
		_, err := s.catalog.RunAggregation(ctx, isbn, req.Update)
		if err == nil {
			_, err = s.catalog.RunCoverResolution(ctx, isbn)
		}
		switch {
		case errors.Is(err, metadata.ErrNotFound):
			item.Status = "not_found"
			resp.Failed++
		case err != nil:
			item.Status = "failed"
			item.Error = err.Error()
			resp.Failed++
		default:
			resp.Succeeded++
		}
		resp.Results = append(resp.Results, item)
		if ctx.Err() != nil {
			break
		}
	}
	resp.Total = len(resp.Results)
	c.JSON(http.StatusOK, resp)
}
