// ABOUTME: Media library that loads script media files with existence and size checks
// ABOUTME: Classifies files by kind and MIME type for the chat transports

package media

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMaxSize is the largest media file the library will load (16 MiB).
const DefaultMaxSize int64 = 16 * 1024 * 1024

var (
	// ErrMediaNotFound is returned when a referenced media file does not exist.
	ErrMediaNotFound = errors.New("media not found")
	// ErrMediaTooLarge is returned when a media file exceeds the size limit.
	ErrMediaTooLarge = errors.New("media too large")
)

// Kind classifies media for the transports.
type Kind string

const (
	KindAudio    Kind = "audio"
	KindVideo    Kind = "video"
	KindImage    Kind = "image"
	KindDocument Kind = "document"
)

// Media is a loaded media file ready to upload.
type Media struct {
	Ref      string
	Path     string
	FileName string
	MIME     string
	Kind     Kind
	Data     []byte
}

// SendOptions carries per-send presentation flags.
type SendOptions struct {
	Caption  string
	Voice    bool // deliver audio as a voice note
	ViewOnce bool
}

// extension -> MIME for formats chat platforms care about. WhatsApp voice notes
// must be announced as opus-in-ogg.
var knownTypes = map[string]string{
	".ogg":  "audio/ogg; codecs=opus",
	".opus": "audio/ogg; codecs=opus",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".wav":  "audio/wav",
	".mp4":  "video/mp4",
	".3gp":  "video/3gpp",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".pdf":  "application/pdf",
}

// Library loads media files from a base directory.
type Library struct {
	dir     string
	maxSize int64
	logger  *slog.Logger
}

// NewLibrary creates a library rooted at dir. A maxSize <= 0 uses DefaultMaxSize.
func NewLibrary(dir string, maxSize int64, logger *slog.Logger) *Library {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Library{
		dir:     dir,
		maxSize: maxSize,
		logger:  logger.With("component", "media"),
	}
}

// Resolve returns the filesystem path for ref.
func (l *Library) Resolve(ref string) string {
	if filepath.IsAbs(ref) || l.dir == "" {
		return filepath.Clean(ref)
	}
	return filepath.Join(l.dir, ref)
}

// Open loads the media file referenced by ref.
func (l *Library) Open(ref string) (*Media, error) {
	path := l.Resolve(ref)

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMediaNotFound, path)
		}
		return nil, fmt.Errorf("stat media %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrMediaNotFound, path)
	}
	if info.Size() > l.maxSize {
		return nil, fmt.Errorf("%w: %s is %d bytes (limit %d)", ErrMediaTooLarge, path, info.Size(), l.maxSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading media %s: %w", path, err)
	}

	mimeType := detectMIME(path, data)
	m := &Media{
		Ref:      ref,
		Path:     path,
		FileName: filepath.Base(path),
		MIME:     mimeType,
		Kind:     kindOf(mimeType),
		Data:     data,
	}

	l.logger.Debug("media loaded", "ref", ref, "kind", m.Kind, "mime", m.MIME, "size", len(data))
	return m, nil
}

// detectMIME prefers the extension table, then the system table, then content sniffing.
func detectMIME(path string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := knownTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return http.DetectContentType(data)
}

func kindOf(mimeType string) Kind {
	switch {
	case strings.HasPrefix(mimeType, "audio/"):
		return KindAudio
	case strings.HasPrefix(mimeType, "video/"):
		return KindVideo
	case strings.HasPrefix(mimeType, "image/"):
		return KindImage
	default:
		return KindDocument
	}
}
