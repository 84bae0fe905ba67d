// file: internal/cover/pipeline.go
// version: 1.1.0
// guid: ef457ee2-1a64-4911-a3fe-45d179277b54

// Package cover picks one cover image per book from the configured
// providers, rejecting truncated files, non-JPEG data and "no image"
// placeholder art, and persists the winner to the blob store.
package cover

import (
	"context"
	"fmt"
	"log"

	"github.com/jdfalk/book-catalog/internal/database"
	"github.com/jdfalk/book-catalog/internal/flags"
	"github.com/jdfalk/book-catalog/internal/metadata"
	"github.com/jdfalk/book-catalog/internal/metrics"
)

// DefaultBucket is the blob bucket covers are written to.
const DefaultBucket = "covers"

// Outcome is the result of a cover resolution.
type Outcome int

const (
	// Cleared means no candidate passed and the book has no cover.
	Cleared Outcome = iota
	// Persisted means a candidate was stored as the book cover.
	Persisted
)

func (o Outcome) String() string {
	if o == Persisted {
		return "persisted"
	}
	return "cleared"
}

// Rejection explains why a candidate was not accepted.
type Rejection int

const (
	Accepted Rejection = iota
	RejectFetchFailed
	RejectEmpty
	RejectNotJPEG
	RejectOCRFailed
	RejectBlacklisted
)

var rejectionNames = map[Rejection]string{
	Accepted:          "accepted",
	RejectFetchFailed: "fetch_failed",
	RejectEmpty:       "empty",
	RejectNotJPEG:     "not_jpeg",
	RejectOCRFailed:   "ocr_failed",
	RejectBlacklisted: "blacklisted",
}

func (r Rejection) String() string {
	if name, ok := rejectionNames[r]; ok {
		return name
	}
	return fmt.Sprintf("rejection(%d)", int(r))
}

// Config holds the pipeline collaborators. Nil fields get defaults: a
// MagicSniffer, a NopRecognizer, DefaultBlacklist and DefaultBucket.
type Config struct {
	Bucket     string
	Sniffer    ContentSniffer
	Recognizer TextRecognizer
	Blacklist  *Blacklist
}

// Pipeline resolves covers for books.
type Pipeline struct {
	providers  []metadata.CoverProvider
	store      database.Store
	flags      *flags.Manager
	blobs      BlobStore
	bucket     string
	sniffer    ContentSniffer
	recognizer TextRecognizer
	newID      func() (string, error)
	blacklist  *Blacklist
}

// NewPipeline creates a pipeline. Providers that are not configured are
// dropped; the remaining order is the evaluation order.
func NewPipeline(providers []metadata.CoverProvider, store database.Store, blobs BlobStore, cfg Config) *Pipeline {
	p := &Pipeline{
		store:      store,
		flags:      flags.NewManager(store),
		blobs:      blobs,
		bucket:     cfg.Bucket,
		sniffer:    cfg.Sniffer,
		recognizer: cfg.Recognizer,
		blacklist:  cfg.Blacklist,
		newID:      database.NewCoverID,
	}
	if p.bucket == "" {
		p.bucket = DefaultBucket
	}
	if p.sniffer == nil {
		p.sniffer = MagicSniffer{}
	}
	if p.recognizer == nil {
		p.recognizer = NopRecognizer{}
	}
	if p.blacklist == nil {
		p.blacklist = NewBlacklist(DefaultBlacklist)
	}

	for _, provider := range providers {
		if provider == nil || !provider.IsConfigured() {
			continue
		}
		p.providers = append(p.providers, provider)
	}
	names := make([]string, len(p.providers))
	for i, provider := range p.providers {
		names[i] = provider.Name()
	}
	log.Printf("[INFO] cover: pipeline providers %v", names)
	return p
}

// Evaluate checks one image. Type sniffing runs before OCR so non-JPEG
// data never reaches the recognizer.
func (p *Pipeline) Evaluate(ctx context.Context, data []byte) Rejection {
	if len(data) == 0 {
		return RejectEmpty
	}
	label := p.sniffer.Detect(data)
	if !IsAcceptedJPEG(label) {
		log.Printf("[DEBUG] cover: rejected content %q", label)
		return RejectNotJPEG
	}
	text, err := p.recognizer.RecognizeText(ctx, data)
	if err != nil {
		log.Printf("[WARN] cover: text recognition failed: %v", err)
		return RejectOCRFailed
	}
	if phrase, ok := p.blacklist.Match(text); ok {
		log.Printf("[DEBUG] cover: rejected placeholder text %q", phrase)
		return RejectBlacklisted
	}
	return Accepted
}

// Resolve walks the providers in order and persists the first candidate
// that passes Evaluate. Later providers are only asked for candidates when
// every earlier candidate was rejected. When nothing passes the cover is
// cleared and the book is flagged for a cover recrawl.
func (p *Pipeline) Resolve(ctx context.Context, isbn string, meta *metadata.VolumeInfo) (Outcome, error) {
	for _, provider := range p.providers {
		if err := ctx.Err(); err != nil {
			return Cleared, err
		}
		candidates, err := provider.FetchCoverCandidates(ctx, isbn, meta)
		if err != nil {
			log.Printf("[WARN] cover: %s candidates for %s: %v", provider.Name(), isbn, err)
			continue
		}
		for _, candidate := range candidates {
			data, err := candidate.Bytes(ctx)
			reason := RejectFetchFailed
			if err != nil {
				log.Printf("[WARN] cover: failed to load %s: %v", candidate.URL, err)
			} else {
				reason = p.Evaluate(ctx, data)
			}
			metrics.IncCoverCandidate(reason.String())
			if reason != Accepted {
				continue
			}
			if err := p.persist(ctx, isbn, candidate.URL, data); err != nil {
				metrics.IncCoverResolution("error")
				return Cleared, err
			}
			log.Printf("[INFO] cover: stored cover for %s from %s", isbn, provider.Name())
			metrics.IncCoverResolution(Persisted.String())
			return Persisted, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return Cleared, err
	}
	if err := p.clear(ctx, isbn); err != nil {
		metrics.IncCoverResolution("error")
		return Cleared, err
	}
	log.Printf("[INFO] cover: no usable cover for %s", isbn)
	metrics.IncCoverResolution(Cleared.String())
	return Cleared, nil
}

// persist uploads the image before recording the asset, so every asset row
// has its bytes in the blob store.
func (p *Pipeline) persist(ctx context.Context, isbn, origin string, data []byte) error {
	id, err := p.newID()
	if err != nil {
		return fmt.Errorf("failed to allocate cover id for %s: %w", isbn, err)
	}
	if err := p.blobs.Put(ctx, p.bucket, database.CoverKey(id), data); err != nil {
		return fmt.Errorf("failed to store cover %s: %w", id, err)
	}
	asset, err := p.store.CreateCoverAsset(id, origin)
	if err != nil {
		return fmt.Errorf("failed to create cover asset for %s: %w", isbn, err)
	}
	if err := p.store.SetBookCover(isbn, &asset.ID); err != nil {
		return fmt.Errorf("failed to set cover of %s: %w", isbn, err)
	}
	return p.flags.SetRecrawlCover(ctx, isbn, false)
}

func (p *Pipeline) clear(ctx context.Context, isbn string) error {
	if err := p.store.SetBookCover(isbn, nil); err != nil {
		return fmt.Errorf("failed to clear cover of %s: %w", isbn, err)
	}
	return p.flags.SetRecrawlCover(ctx, isbn, true)
}
