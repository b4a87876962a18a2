// Package document generates the PDF extract of an approved request.
//
// A generation runs one screenshot child per object on a bounded queue and
// then the parent, which renders HTML, prints it to PDF, uploads it and
// records the file on the request. A child that exhausts its attempts fails
// the parent; no partial document is produced.
package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/waterreg/registry-server/internal/system/blob"
	"github.com/waterreg/registry-server/internal/system/executor"
	"github.com/waterreg/registry-server/internal/system/log"
)

// ErrSourceNotFound is returned when the request to render does not exist.
var ErrSourceNotFound = errors.New("request not found")

var errUnbound = errors.New("pipeline is not bound to a request source")

// SourceLoader loads the data of a request.
type SourceLoader interface {
	LoadSource(ctx context.Context, id string) (*Source, error)
}

// FileRecorder writes the generated file back to the request.
type FileRecorder interface {
	SaveGeneratedFile(ctx context.Context, id, url string) error
	ClearGeneratedFile(ctx context.Context, id string) error
}

// Config holds the pipeline settings.
type Config struct {
	Queue            Options
	MapsHost         string
	ScreenshotMaxAge time.Duration
}

// Pipeline orchestrates document generation.
type Pipeline struct {
	sources  SourceLoader
	recorder FileRecorder
	blobs    blob.Store
	renderer Renderer
	queue    *Queue
	tracker  JobTracker
	exec     executor.Executor
	shots    *screenshotter
	now      func() time.Time
	logger   *log.Logger
}

// NewPipeline wires a pipeline. Bind must be called before the first generation.
func NewPipeline(cfg Config, blobs blob.Store, renderer Renderer, tracker JobTracker, exec executor.Executor) *Pipeline {
	maxAge := cfg.ScreenshotMaxAge
	if maxAge <= 0 {
		maxAge = 5 * 24 * time.Hour
	}
	p := &Pipeline{
		blobs:    blobs,
		renderer: renderer,
		queue:    NewQueue(cfg.Queue),
		tracker:  tracker,
		exec:     exec,
		now:      time.Now,
		logger:   log.GetLogger().With(log.String(log.LoggerKeyComponentName, "DocumentPipeline")),
	}
	p.shots = &screenshotter{
		blobs:    blobs,
		renderer: renderer,
		mapsHost: cfg.MapsHost,
		maxAge:   maxAge,
		now:      func() time.Time { return p.now() },
	}
	return p
}

// Bind sets the request source and the callback that stores the generated file.
func (p *Pipeline) Bind(sources SourceLoader, recorder FileRecorder) {
	p.sources = sources
	p.recorder = recorder
}

// DocumentKey is the object key of the request PDF.
func DocumentKey(src *Source) string {
	tenant := src.Tenant
	if tenant == "" {
		tenant = "private"
	}
	user := src.CreatedBy
	if user == "" {
		user = "user"
	}
	return fmt.Sprintf("uploads/requests/%s/%s/%s.pdf", tenant, user, src.ID)
}

// Kickoff schedules a generation for id and returns immediately.
func (p *Pipeline) Kickoff(ctx context.Context, id string) {
	p.track(ctx, &Job{RequestID: id, State: JobQueued, StartedAt: p.now()})
	p.exec.Submit(ctx, "generate-pdf:"+id, func(ctx context.Context) error {
		_, err := p.Generate(ctx, id)
		return err
	})
}

// Generate runs the whole generation for id and returns the file URL.
func (p *Pipeline) Generate(ctx context.Context, id string) (string, error) {
	logger := p.logger.WithContext(ctx).With(log.String("request_id", id))
	job := &Job{RequestID: id, State: JobActive, StartedAt: p.now()}
	p.track(ctx, job)

	url, err := p.queue.Run(ctx, Task{
		Key: id,
		Run: func(ctx context.Context) (string, error) {
			return p.generateOnce(ctx, id, job)
		},
		OnAttempt: func(attempt int, err error) {
			job.Attempts = attempt
			if err != nil {
				job.Error = err.Error()
			}
			p.track(ctx, job)
		},
	})

	job.FinishedAt = p.now()
	if err != nil {
		job.State = JobFailed
		job.Error = err.Error()
		p.track(ctx, job)
		logger.Error("Document generation failed", log.Error(err))
		return "", err
	}

	job.State = JobCompleted
	job.Error = ""
	job.File = url
	p.track(ctx, job)
	logger.Info("Document generated", log.String("file", url))
	return url, nil
}

func (p *Pipeline) generateOnce(ctx context.Context, id string, job *Job) (string, error) {
	if p.sources == nil || p.recorder == nil {
		return "", errUnbound
	}
	src, err := p.sources.LoadSource(ctx, id)
	if err != nil {
		return "", err
	}
	if src == nil {
		return "", ErrSourceNotFound
	}

	objects := src.mapObjects()
	job.Children = len(objects)
	handles := make([]*Handle, 0, len(objects))
	for _, obj := range objects {
		handles = append(handles, p.queue.Enqueue(ctx, p.shots.task(obj)))
	}
	screenshots, err := WaitForChildren(ctx, handles)
	if err != nil {
		return "", err
	}

	html, err := Render(src, screenshots)
	if err != nil {
		return "", err
	}
	pdf, err := p.renderer.PDF(ctx, html)
	if err != nil {
		return "", err
	}

	url, err := p.blobs.Put(ctx, DocumentKey(src), bytes.NewReader(pdf), int64(len(pdf)), "application/pdf")
	if err != nil {
		return "", err
	}
	if err := p.recorder.SaveGeneratedFile(ctx, id, url); err != nil {
		return "", err
	}
	return url, nil
}

// Invalidate removes the stored PDF of id and clears it on the request.
func (p *Pipeline) Invalidate(ctx context.Context, id string) error {
	if p.sources == nil || p.recorder == nil {
		return errUnbound
	}
	src, err := p.sources.LoadSource(ctx, id)
	if err != nil {
		return err
	}
	if src == nil {
		return ErrSourceNotFound
	}
	if src.GeneratedFile == "" {
		return nil
	}
	if err := p.blobs.Remove(ctx, DocumentKey(src)); err != nil {
		return fmt.Errorf("cannot delete pdf: %w", err)
	}
	return p.recorder.ClearGeneratedFile(ctx, id)
}

// Regenerate drops the current PDF and schedules a new one.
func (p *Pipeline) Regenerate(ctx context.Context, id string) error {
	if err := p.Invalidate(ctx, id); err != nil {
		return err
	}
	p.Kickoff(ctx, id)
	return nil
}

// RegenerateNow drops the current PDF and generates a new one before returning.
func (p *Pipeline) RegenerateNow(ctx context.Context, id string) (string, error) {
	if err := p.Invalidate(ctx, id); err != nil {
		return "", err
	}
	return p.Generate(ctx, id)
}

// RenderHTML renders the document with cached screenshots only.
func (p *Pipeline) RenderHTML(ctx context.Context, src *Source) (string, error) {
	screenshots := make(map[string]string)
	for _, obj := range src.mapObjects() {
		key := screenshotKey(obj.Hash)
		info, err := p.blobs.Stat(ctx, key)
		if err != nil {
			p.logger.WithContext(ctx).Warn("Failed to stat screenshot", log.String("key", key), log.Error(err))
			continue
		}
		if info.Exists {
			screenshots[obj.Hash] = p.blobs.URL(key)
		}
	}
	return Render(src, screenshots)
}

// JobStatus returns the tracked job of id, or nil.
func (p *Pipeline) JobStatus(ctx context.Context, id string) (*Job, error) {
	return p.tracker.Get(ctx, id)
}

func (p *Pipeline) track(ctx context.Context, job *Job) {
	if err := p.tracker.Save(ctx, job); err != nil {
		p.logger.WithContext(ctx).Warn("Failed to save job state",
			log.String("request_id", job.RequestID), log.Error(err))
	}
}
