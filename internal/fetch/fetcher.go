package fetch

import (
	"bytes"
	"context"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"collegebot/pkg/config"
	apperrors "collegebot/pkg/errors"
)

// Fetcher retrieves the third-party source pages. Every fetch uses a fresh
// collector so request state never leaks between ticks.
type Fetcher struct {
	cfg    config.SourceConfig
	logger *zap.Logger
}

// New builds a Fetcher.
func New(cfg config.SourceConfig, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{cfg: cfg, logger: logger}
}

// Timetable fetches the timetable page as a parsed document.
func (f *Fetcher) Timetable(ctx context.Context) (*goquery.Document, error) {
	return f.document(ctx, f.cfg.ScheduleURL)
}

// Bells fetches the bell schedule page as a parsed document.
func (f *Fetcher) Bells(ctx context.Context) (*goquery.Document, error) {
	return f.document(ctx, f.cfg.BellURL)
}

// CanteenMenu fetches the canteen menu PDF verbatim.
func (f *Fetcher) CanteenMenu(ctx context.Context) ([]byte, error) {
	return f.get(ctx, f.cfg.CanteenURL)
}

func (f *Fetcher) document(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := f.get(ctx, url)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStructuralMismatch.Code, "malformed html from "+url)
	}
	return doc, nil
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, apperrors.Clone(apperrors.ErrSourceUnavailable, "source url not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := colly.NewCollector(colly.UserAgent(f.cfg.UserAgent))
	c.SetRequestTimeout(f.cfg.FetchTimeout)

	var body []byte
	var fetchErr error
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	c.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := c.Visit(url); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrSourceUnavailable.Code, "fetch "+url)
	}
	c.Wait()

	if fetchErr != nil {
		return nil, apperrors.Wrap(fetchErr, apperrors.ErrSourceUnavailable.Code, "fetch "+url)
	}
	if len(body) == 0 {
		return nil, apperrors.Clone(apperrors.ErrSourceUnavailable, "empty response from "+url)
	}

	f.logger.Sugar().Debugw("page fetched", "url", url, "bytes", len(body))
	return body, nil
}
