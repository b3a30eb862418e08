package media

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const maxImageBytes = 10 * 1024 * 1024

type productFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type uploadSigner interface {
	SignedURL(bucket, object, contentType string, expires time.Duration) (string, error)
}

// Service issues direct-to-bucket upload URLs for catalog images.
type Service interface {
	PresignProductImage(ctx context.Context, productID uuid.UUID, input PresignInput) (*PresignOutput, error)
}

type ServiceParams struct {
	Products      productFinder
	Signer        uploadSigner
	Bucket        string
	UploadTTL     time.Duration
	PublicBaseURL string
}

type service struct {
	products  productFinder
	signer    uploadSigner
	bucket    string
	uploadTTL time.Duration
	publicURL string
	now       func() time.Time
}

// NewService constructs the image upload service.
func NewService(params ServiceParams) (Service, error) {
	if params.Products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if params.Signer == nil {
		return nil, fmt.Errorf("upload signer required")
	}
	if params.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket required")
	}
	if params.UploadTTL <= 0 {
		return nil, fmt.Errorf("upload ttl must be positive")
	}
	base := strings.TrimRight(strings.TrimSpace(params.PublicBaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("public base url required")
	}
	return &service{
		products:  params.Products,
		signer:    params.Signer,
		bucket:    params.Bucket,
		uploadTTL: params.UploadTTL,
		publicURL: base,
		now:       time.Now,
	}, nil
}

// PresignInput describes the file the admin is about to upload.
type PresignInput struct {
	FileName  string `json:"fileName" validate:"required"`
	MimeType  string `json:"mimeType" validate:"required"`
	SizeBytes int64  `json:"sizeBytes" validate:"required,gt=0"`
}

// PresignOutput carries the signed PUT URL plus the URL to store on the product.
type PresignOutput struct {
	ObjectKey   string    `json:"objectKey"`
	UploadURL   string    `json:"uploadUrl"`
	ContentType string    `json:"contentType"`
	ImageURL    string    `json:"imageUrl"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func (s *service) PresignProductImage(ctx context.Context, productID uuid.UUID, input PresignInput) (*PresignOutput, error) {
	fields := pkgerrors.FieldErrors{}
	fileName := sanitizeFileName(input.FileName)
	if fileName == "" {
		fields["fileName"] = "is required"
	}
	if input.SizeBytes <= 0 {
		fields["sizeBytes"] = "must be positive"
	} else if input.SizeBytes > maxImageBytes {
		fields["sizeBytes"] = fmt.Sprintf("must be at most %d bytes", maxImageBytes)
	}
	mimeType, err := normalizeMimeType(input.MimeType)
	if err != nil {
		fields["mimeType"] = err.Error()
	} else if !isProductImageType(mimeType) {
		fields["mimeType"] = "must be " + allowedTypesDescription()
	}
	if len(fields) > 0 {
		return nil, pkgerrors.Validation("invalid image upload", fields)
	}

	if _, err := s.products.FindByID(ctx, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	key := objectKey(productID, uuid.New(), fileName, mimeType)
	signed, err := s.signer.SignedURL(s.bucket, key, mimeType, s.uploadTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign upload url")
	}

	return &PresignOutput{
		ObjectKey:   key,
		UploadURL:   signed,
		ContentType: mimeType,
		ImageURL:    s.publicURL + "/" + s.bucket + "/" + key,
		ExpiresAt:   s.now().Add(s.uploadTTL).UTC(),
	}, nil
}

// objectKey places every image under its product and forces the extension to match the type.
func objectKey(productID, uploadID uuid.UUID, fileName, mimeType string) string {
	base := strings.TrimSuffix(fileName, path.Ext(fileName))
	if base == "" {
		base = "image"
	}
	return fmt.Sprintf("products/%s/%s-%s%s", productID, uploadID, base, extensionsByType[mimeType])
}

func sanitizeFileName(name string) string {
	clean := path.Base(strings.TrimSpace(strings.ReplaceAll(name, "\\", "/")))
	if clean == "." || clean == "/" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(clean))
	for _, r := range clean {
		switch {
		case unicode.IsControl(r):
			continue
		case unicode.IsSpace(r):
			b.WriteRune('-')
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.':
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return strings.Trim(b.String(), "-_.")
}
