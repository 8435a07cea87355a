package assets

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/optiononetech/teams-chat-export/internal/constants"
	apperrors "github.com/optiononetech/teams-chat-export/internal/errors"
	"github.com/optiononetech/teams-chat-export/internal/security"
)

// Store persists downloaded media under an export's assets directory
// with deterministic names, so a re-export can skip fetches for assets
// that already exist on disk.
type Store interface {
	Dir() string
	HostedContentName(contentID, precedingTag string) (string, error)
	AttachmentName(attachmentID, fileName string) string
	Exists(name string) bool
	Write(name string, data []byte) error
	RelativeHref(name string) string
}

type store struct {
	dir string
}

func NewStore(exportDir string) (Store, error) {
	dir := filepath.Join(exportDir, constants.DefaultAssetsSubdir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create assets directory: %w", err)
	}
	return &store{dir: dir}, nil
}

func (s *store) Dir() string {
	return s.dir
}

// Hash returns the stable identifier used for asset file names.
func Hash(id string) string {
	sum := sha256.Sum256([]byte(id))
	return fmt.Sprintf("%x", sum)
}

// HostedContentName derives the on-disk name for inline media from its
// content ID and the tag of the element that embeds it. Only tags with
// a known media extension are supported.
func (s *store) HostedContentName(contentID, precedingTag string) (string, error) {
	ext, ok := constants.HostedContentExtensions[strings.ToLower(precedingTag)]
	if !ok {
		return "", apperrors.NewUnsupportedContentError(precedingTag, contentID)
	}
	return Hash(contentID) + ext, nil
}

// AttachmentName derives the on-disk name for a file attachment. The
// original file name is kept as a suffix so the export stays readable,
// sanitized so it is always a single safe path component.
func (s *store) AttachmentName(attachmentID, fileName string) string {
	return Hash(attachmentID) + "_" + security.SanitizeFileName(fileName)
}

func (s *store) Exists(name string) bool {
	if err := security.ValidateFileName(name); err != nil {
		return false
	}
	_, err := os.Stat(filepath.Join(s.dir, name))
	return err == nil
}

func (s *store) Write(name string, data []byte) error {
	if err := security.ValidateFileName(name); err != nil {
		return fmt.Errorf("invalid asset name: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0600); err != nil {
		return fmt.Errorf("failed to write asset %s: %w", name, err)
	}
	return nil
}

// RelativeHref returns the path used to reference the asset from the
// export document.
func (s *store) RelativeHref(name string) string {
	return constants.DefaultAssetsSubdir + "/" + name
}

// IsImage reports whether the file name has a known image extension.
func IsImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	mimeType, ok := constants.MimeTypes[ext]
	if !ok {
		return false
	}
	return strings.HasPrefix(mimeType, "image/")
}
