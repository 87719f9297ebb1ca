package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/mycolab/apiserver/types"
)

// UploadSigner issues time-limited signed PUT URLs against the
// configured object storage bucket.
type UploadSigner interface {
	PresignPut(ctx context.Context, key, contentType string, expires time.Duration) (string, error)
}

// ReceiptRepository defines read operations for receipt entries.
// Receipt rows are created inside the purchase ingestion transaction.
type ReceiptRepository interface {
	ListByUser(ctx context.Context, userID int) ([]types.ReceiptEntry, error)
	Get(ctx context.Context, id int) (types.ReceiptEntry, error)
}

// UploadCoordinator issues signed upload grants so clients can push
// receipt images directly to object storage. Issuing a grant writes no
// database row; the caller later supplies the public URL to the
// purchase ingestion workflow.
type UploadCoordinator struct {
	signer        UploadSigner
	receipts      ReceiptRepository
	publicBaseURL string
	grantTTL      time.Duration
	now           func() time.Time
}

func NewUploadCoordinator(signer UploadSigner, receipts ReceiptRepository, publicBaseURL string, grantTTL time.Duration) *UploadCoordinator {
	if grantTTL <= 0 {
		grantTTL = 5 * time.Minute
	}
	return &UploadCoordinator{
		signer:        signer,
		receipts:      receipts,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		grantTTL:      grantTTL,
		now:           time.Now,
	}
}

// IssueUploadGrant mints a signed PUT URL for one receipt image. The
// object key is derived from the user id, the current timestamp, and
// the sanitized filename so keys cannot collide or escape the user's
// prefix.
func (c *UploadCoordinator) IssueUploadGrant(ctx context.Context, userID int, filename, contentType string) (types.UploadGrant, error) {
	if strings.TrimSpace(filename) == "" {
		return types.UploadGrant{}, &ValidationError{Field: "filename"}
	}

	key := objectKey(userID, c.now().UTC(), filename)
	uploadURL, err := c.signer.PresignPut(ctx, key, contentType, c.grantTTL)
	if err != nil {
		return types.UploadGrant{}, err
	}

	return types.UploadGrant{
		UploadURL: uploadURL,
		FileKey:   key,
		PublicURL: c.publicBaseURL + "/" + key,
	}, nil
}

func (c *UploadCoordinator) ListByUser(ctx context.Context, userID int) ([]types.ReceiptEntry, error) {
	return c.receipts.ListByUser(ctx, userID)
}

func (c *UploadCoordinator) Get(ctx context.Context, id int) (types.ReceiptEntry, error) {
	return c.receipts.Get(ctx, id)
}

func objectKey(userID int, now time.Time, filename string) string {
	return fmt.Sprintf("user_%d/%s_%s", userID, now.Format("20060102150405"), sanitizeFilename(filename))
}

// sanitizeFilename strips any path components and reduces the name to a
// safe character set.
func sanitizeFilename(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	safe := strings.TrimLeft(b.String(), ".")
	if safe == "" {
		safe = "file"
	}
	return safe
}
