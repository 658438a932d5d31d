package service

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"toolhub/internal/config"
	"toolhub/internal/models"
	"toolhub/internal/observability"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultImageUploadDir       = "/tmp/toolhub/uploads/images"
	DefaultImageMaxUploadSizeMB = 10
	ImageMaxSize                = 1600
	JPEGQuality                 = 82
	WebPQuality                 = 70
)

// Image kinds partition the upload directory.
const (
	ImageKindItem       = "items"
	ImageKindCollection = "collections"
	ImageKindAvatar     = "avatars"
)

// ImageService processes uploaded images for items, collections, and
// avatars. Every upload is decoded, resized to fit, and written as a JPEG
// with a WebP sibling.
type ImageService struct {
	uploadDir          string
	maxUploadSizeBytes int64
}

// NewImageService returns an ImageService rooted at the configured upload dir.
func NewImageService(cfg *config.Config) *ImageService {
	uploadDir := DefaultImageUploadDir
	maxUploadSizeMB := DefaultImageMaxUploadSizeMB

	if cfg != nil {
		if cfg.ImageUploadDir != "" {
			uploadDir = cfg.ImageUploadDir
		}
		if cfg.ImageMaxUploadSizeMB > 0 {
			maxUploadSizeMB = cfg.ImageMaxUploadSizeMB
		}
	}

	return &ImageService{
		uploadDir:          uploadDir,
		maxUploadSizeBytes: int64(maxUploadSizeMB) * 1024 * 1024,
	}
}

// StoreImageInput carries an uploaded file.
type StoreImageInput struct {
	Kind        string
	Filename    string
	ContentType string
	Content     []byte
}

// Store validates and processes an upload, returning the relative path of
// the stored JPEG. A WebP sibling is written next to it.
func (s *ImageService) Store(in StoreImageInput) (string, error) {
	start := time.Now()
	defer func() {
		observability.ImageProcessingDuration.WithLabelValues("store").
			Observe(time.Since(start).Seconds())
	}()

	if !isImageKind(in.Kind) {
		return "", models.NewValidationError("Unknown image kind")
	}
	if len(in.Content) == 0 {
		return "", models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return "", models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}

	detectedType := http.DetectContentType(in.Content)
	if !isAllowedImageMIME(detectedType) {
		return "", models.NewValidationError("Invalid image type")
	}

	decoded, format, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return "", models.NewValidationError("Invalid image file")
	}
	if !isSupportedDecodedFormat(format) {
		return "", models.NewValidationError("Unsupported image format")
	}
	if provided := normalizeContentType(in.ContentType); strings.HasPrefix(provided, "image/") &&
		!isMatchingContentType(provided, decodedFormatToMime(format)) {
		return "", models.NewValidationError("Image content type mismatch")
	}

	resized := resizeToFit(decoded, ImageMaxSize, ImageMaxSize)

	jpegBytes, err := encodeJPEG(resized, JPEGQuality)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	webpBytes, err := encodeWebP(resized, WebPQuality)
	if err != nil {
		return "", models.NewInternalError(err)
	}

	name := uuid.NewString()
	jpegRel := filepath.ToSlash(filepath.Join(in.Kind, name+".jpg"))
	webpRel := filepath.ToSlash(filepath.Join(in.Kind, name+".webp"))

	if err := writeBytesToFile(filepath.Join(s.uploadDir, jpegRel), jpegBytes); err != nil {
		return "", models.NewInternalError(err)
	}
	if err := writeBytesToFile(filepath.Join(s.uploadDir, webpRel), webpBytes); err != nil {
		_ = os.Remove(filepath.Join(s.uploadDir, jpegRel))
		return "", models.NewInternalError(err)
	}

	return jpegRel, nil
}

// Remove deletes the stored JPEG and its WebP sibling. Best effort; a
// missing file is not an error. Callers replacing an image must persist the
// new path before removing the files behind the old one.
func (s *ImageService) Remove(relPath string) {
	if relPath == "" || !isSafeRelPath(relPath) {
		return
	}
	_ = os.Remove(filepath.Join(s.uploadDir, relPath))
	if strings.HasSuffix(relPath, ".jpg") {
		_ = os.Remove(filepath.Join(s.uploadDir, strings.TrimSuffix(relPath, ".jpg")+".webp"))
	}
}

// ResolveForServing maps a stored relative path to an absolute file path,
// rejecting traversal attempts.
func (s *ImageService) ResolveForServing(relPath string) (string, error) {
	if !isSafeRelPath(relPath) {
		return "", models.NewValidationError("Invalid image path")
	}
	fullPath := filepath.Join(s.uploadDir, filepath.FromSlash(relPath))
	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return "", models.NewNotFoundError("Image", relPath)
		}
		return "", models.NewInternalError(err)
	}
	return fullPath, nil
}

func isImageKind(kind string) bool {
	switch kind {
	case ImageKindItem, ImageKindCollection, ImageKindAvatar:
		return true
	default:
		return false
	}
}

// isSafeRelPath accepts only kind-prefixed relative paths without traversal.
func isSafeRelPath(relPath string) bool {
	if relPath == "" || strings.Contains(relPath, "..") || strings.HasPrefix(relPath, "/") {
		return false
	}
	parts := strings.SplitN(relPath, "/", 2)
	return len(parts) == 2 && isImageKind(parts[0])
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scaleW := float64(maxWidth) / float64(w)
	scaleH := float64(maxHeight) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isMatchingContentType(provided, detected string) bool {
	p := normalizeContentType(provided)
	d := normalizeContentType(detected)
	if p == d {
		return true
	}
	return (p == "image/jpg" && d == "image/jpeg") || (p == "image/jpeg" && d == "image/jpg")
}

func isSupportedDecodedFormat(format string) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg", "png", "gif", "webp":
		return true
	default:
		return false
	}
}

func decodedFormatToMime(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return ""
	}
}

func writeBytesToFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
