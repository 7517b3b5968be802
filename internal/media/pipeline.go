package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"reelcms/internal/apperr"
	"reelcms/internal/catalog"
	"reelcms/pkg/models"
)

// Asset is the result of an ingest. URLs are site-absolute paths.
type Asset struct {
	Kind        models.Kind `json:"kind"`
	Path        string      `json:"path"`
	URL         string      `json:"url"`
	VideoURL    string      `json:"videoUrl,omitempty"`
	ImageURL    string      `json:"imageUrl,omitempty"`
	PosterURL   string      `json:"posterUrl,omitempty"`
	Transcoded  bool        `json:"transcoded"`
	PosterError string      `json:"posterError,omitempty"`
}

// Upload is an incoming file.
type Upload struct {
	Name string
	Body io.Reader
}

type Pipeline struct {
	Engine Engine
	// PublicDir is the site root URLs resolve against.
	PublicDir string
	// MediaSubdir is where new files are written, relative to PublicDir.
	MediaSubdir string
	Logger      *slog.Logger

	Now   func() time.Time
	NewID func() string

	sem *semaphore.Weighted
}

// NewPipeline bounds concurrent ffmpeg jobs to maxJobs.
func NewPipeline(engine Engine, publicDir, mediaSubdir string, maxJobs int64, logger *slog.Logger) *Pipeline {
	if maxJobs <= 0 {
		maxJobs = 1
	}
	if mediaSubdir == "" {
		mediaSubdir = "movies"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		Engine:      engine,
		PublicDir:   publicDir,
		MediaSubdir: mediaSubdir,
		Logger:      logger.With(slog.String("component", "media")),
		Now:         time.Now,
		NewID:       uuid.NewString,
		sem:         semaphore.NewWeighted(maxJobs),
	}
}

// MediaDir is the directory new media is written to. It is relative when
// PublicDir is.
func (p *Pipeline) MediaDir() string {
	return filepath.Join(p.PublicDir, filepath.FromSlash(p.MediaSubdir))
}

// URLPrefix is the site path of MediaDir.
func (p *Pipeline) URLPrefix() string {
	return path.Join("/", filepath.ToSlash(p.MediaSubdir))
}

// ParseSeconds reads a poster offset. Anything that is not a finite,
// non-negative number becomes 0.
func ParseSeconds(raw string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return ClampSeconds(f)
}

func ClampSeconds(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

// Ingest stores the upload and, when it is a recognized video and ffmpeg is
// available, replaces it with a normalized MP4 plus a poster. Without ffmpeg,
// or for other files, the stored original is returned as is. A failed
// poster still yields the video with PosterError set.
func (p *Pipeline) Ingest(ctx context.Context, up Upload, posterSec float64) (Asset, error) {
	const op = "ingest"
	if err := os.MkdirAll(p.MediaDir(), 0o755); err != nil {
		return Asset{}, apperr.Storage(op, p.MediaDir(), err)
	}

	ext := strings.ToLower(filepath.Ext(up.Name))
	tmpAbs, size, err := p.store(up.Body, ext)
	if err != nil {
		return Asset{}, apperr.Storage(op, p.MediaDir(), err)
	}
	p.Logger.Info("upload stored",
		slog.String("name", up.Name),
		slog.String("path", tmpAbs),
		slog.String("size", humanize.Bytes(uint64(size))),
	)

	isVideo := catalog.IsVideoFile(ext)
	if !isVideo || !p.Engine.Available() {
		url := p.urlFor(tmpAbs)
		asset := Asset{Path: strings.TrimPrefix(url, "/"), URL: url}
		if isVideo {
			asset.Kind = models.KindVideo
			asset.VideoURL = url
		} else {
			asset.Kind = models.KindImage
			asset.ImageURL = url
		}
		return asset, nil
	}

	base := "work-" + p.NewID()
	videoAbs := filepath.Join(p.MediaDir(), base+".mp4")
	posterAbs := filepath.Join(p.MediaDir(), base+".jpg")

	if err := p.transcode(ctx, tmpAbs, videoAbs); err != nil {
		// the original upload stays so the operator can retry
		return Asset{}, apperr.MediaProcessing(op, tmpAbs, err)
	}
	if err := os.Remove(tmpAbs); err != nil && !errors.Is(err, fs.ErrNotExist) {
		p.Logger.Warn("remove upload failed", slog.String("path", tmpAbs), slog.String("error", err.Error()))
	}

	url := p.urlFor(videoAbs)
	asset := Asset{
		Kind:       models.KindVideo,
		Path:       strings.TrimPrefix(url, "/"),
		URL:        url,
		VideoURL:   url,
		Transcoded: true,
	}
	if err := p.extractPoster(ctx, videoAbs, posterAbs, posterSec); err != nil {
		p.Logger.Warn("poster extraction failed", slog.String("path", videoAbs), slog.String("error", err.Error()))
		asset.PosterError = apperr.Message(err)
		return asset, nil
	}
	asset.PosterURL = p.urlFor(posterAbs)
	return asset, nil
}

// RegeneratePoster extracts a new poster for an already stored video and
// returns its URL.
func (p *Pipeline) RegeneratePoster(ctx context.Context, videoURL string, posterSec float64) (string, error) {
	const op = "regenerate poster"
	if !p.Engine.Available() {
		return "", apperr.DependencyUnavailable(op, "ffmpeg")
	}
	if strings.TrimSpace(videoURL) == "" {
		return "", apperr.Validation(op, "videoSrc required")
	}
	src, err := p.Resolve(videoURL)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(src); err != nil || info.IsDir() {
		return "", apperr.NotFound(op, videoURL)
	}
	if err := os.MkdirAll(p.MediaDir(), 0o755); err != nil {
		return "", apperr.Storage(op, p.MediaDir(), err)
	}

	dst := filepath.Join(p.MediaDir(), fmt.Sprintf("poster-%d.jpg", p.Now().UnixMilli()))
	if err := p.extractPoster(ctx, src, dst, posterSec); err != nil {
		return "", err
	}
	return p.urlFor(dst), nil
}

// Replacement records one work whose video was re-encoded.
type Replacement struct {
	Slug     string `json:"slug"`
	OldVideo string `json:"oldVideo"`
	VideoSrc string `json:"videoSrc"`
	Poster   string `json:"poster,omitempty"`
}

// NormalizeAll re-encodes the top-level video of every work whose file
// exists. It stops at the first transcode failure and returns the
// replacements finished so far along with the error. Superseded files are
// left on disk.
func (p *Pipeline) NormalizeAll(ctx context.Context, works []models.Work, posterSec float64) ([]Replacement, error) {
	const op = "normalize"
	if !p.Engine.Available() {
		return nil, apperr.DependencyUnavailable(op, "ffmpeg")
	}
	if err := os.MkdirAll(p.MediaDir(), 0o755); err != nil {
		return nil, apperr.Storage(op, p.MediaDir(), err)
	}
	// Resolve returns absolute paths; outputs must compare against them
	dir, err := filepath.Abs(p.MediaDir())
	if err != nil {
		return nil, apperr.Storage(op, p.MediaDir(), err)
	}

	var done []Replacement
	for i, w := range works {
		videoSrc := strings.TrimSpace(w.VideoSrc)
		if videoSrc == "" {
			continue
		}
		src, err := p.Resolve(videoSrc)
		if err != nil {
			continue
		}
		if info, err := os.Stat(src); err != nil || info.IsDir() {
			continue
		}

		base := fmt.Sprintf("%s-%d", catalog.Slugify(w.Slug, i), p.Now().UnixMilli())
		videoAbs := filepath.Join(dir, base+".mp4")
		posterAbs := filepath.Join(dir, base+".jpg")
		if videoAbs == src {
			videoAbs = filepath.Join(dir, base+"-"+p.NewID()[:8]+".mp4")
		}

		if err := p.transcode(ctx, src, videoAbs); err != nil {
			return done, apperr.MediaProcessing(op, src, err)
		}
		r := Replacement{Slug: w.Slug, OldVideo: w.VideoSrc, VideoSrc: p.urlFor(videoAbs)}
		if err := p.extractPoster(ctx, videoAbs, posterAbs, posterSec); err != nil {
			p.Logger.Warn("poster extraction failed", slog.String("slug", w.Slug), slog.String("error", err.Error()))
		} else {
			r.Poster = p.urlFor(posterAbs)
		}
		p.Logger.Info("work normalized", slog.String("slug", w.Slug), slog.String("video", r.VideoSrc))
		done = append(done, r)
	}
	return done, nil
}

// ApplyReplacements points works at their re-encoded files. A work whose
// video changed since normalization started is left alone. It returns how
// many works were updated.
func ApplyReplacements(works []models.Work, reps []Replacement, now time.Time) int {
	bySlug := make(map[string]Replacement, len(reps))
	for _, r := range reps {
		bySlug[r.Slug] = r
	}
	count := 0
	for i := range works {
		r, ok := bySlug[works[i].Slug]
		if !ok || works[i].VideoSrc != r.OldVideo {
			continue
		}
		works[i].VideoSrc = r.VideoSrc
		if r.Poster != "" {
			works[i].Poster = r.Poster
		}
		works[i].UpdatedAt = now.UnixMilli()
		count++
	}
	return count
}

// Resolve maps a site URL path to a file under PublicDir. Anything that
// would leave PublicDir is rejected.
func (p *Pipeline) Resolve(url string) (string, error) {
	const op = "resolve media"
	url = strings.TrimSpace(url)
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	if strings.Contains(url, "://") || strings.HasPrefix(url, "//") {
		return "", apperr.Validation(op, "media path must be a local path")
	}
	for _, seg := range strings.Split(filepath.ToSlash(url), "/") {
		if seg == ".." {
			return "", apperr.Validation(op, "media path must stay inside the site root")
		}
	}
	rel := strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(url)), "/")
	if rel == "" {
		return "", apperr.Validation(op, "media path is empty")
	}
	root, err := filepath.Abs(p.PublicDir)
	if err != nil {
		return "", apperr.Storage(op, p.PublicDir, err)
	}
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if r, err := filepath.Rel(root, abs); err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", apperr.Validation(op, "media path must stay inside the site root")
	}
	return abs, nil
}

func (p *Pipeline) urlFor(abs string) string {
	root, err := filepath.Abs(p.PublicDir)
	if err != nil {
		root = p.PublicDir
	}
	if a, err := filepath.Abs(abs); err == nil {
		abs = a
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return path.Join(p.URLPrefix(), filepath.Base(abs))
	}
	return "/" + filepath.ToSlash(rel)
}

func (p *Pipeline) store(body io.Reader, ext string) (string, int64, error) {
	ms := p.Now().UnixMilli()
	var f *os.File
	var err error
	for n := 0; n < 100; n++ {
		name := fmt.Sprintf("upload-%d%s", ms, ext)
		if n > 0 {
			name = fmt.Sprintf("upload-%d-%d%s", ms, n, ext)
		}
		f, err = os.OpenFile(filepath.Join(p.MediaDir(), name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil || !errors.Is(err, fs.ErrExist) {
			break
		}
	}
	if err != nil {
		return "", 0, fmt.Errorf("create upload: %w", err)
	}
	size, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return "", 0, fmt.Errorf("write upload: %w", err)
	}
	return f.Name(), size, nil
}

// transcode waits for a worker slot, then runs to completion even if the
// request that started it goes away.
func (p *Pipeline) transcode(ctx context.Context, src, dst string) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)

	started := p.Now()
	err := p.Engine.Transcode(context.WithoutCancel(ctx), src, dst)
	if err != nil {
		return err
	}
	attrs := []any{slog.String("src", src), slog.String("dst", dst), slog.Duration("took", p.Now().Sub(started))}
	if info, statErr := os.Stat(dst); statErr == nil {
		attrs = append(attrs, slog.String("size", humanize.Bytes(uint64(info.Size()))))
	}
	p.Logger.Info("transcode finished", attrs...)
	return nil
}

// extractPoster tries the requested offset, then the first frame.
func (p *Pipeline) extractPoster(ctx context.Context, src, dst string, sec float64) error {
	sec = ClampSeconds(sec)
	ctx = context.WithoutCancel(ctx)
	err := p.Engine.ExtractFrame(ctx, src, dst, sec)
	if err == nil {
		return nil
	}
	if sec > 0 {
		p.Logger.Debug("poster offset failed, retrying at 0", slog.Float64("offset", sec), slog.String("error", err.Error()))
		if err = p.Engine.ExtractFrame(ctx, src, dst, 0); err == nil {
			return nil
		}
	}
	return apperr.MediaProcessing("extract poster", src, err)
}
