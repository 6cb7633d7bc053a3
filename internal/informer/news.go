package informer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"infomentor-notifier/internal/components/db"
	"infomentor-notifier/internal/scrapers/infomentor"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// fetchNews downloads everything belonging to a new article and persists it in one
// transaction. `article` is nil unless it was already fetched.
func (i Informer) fetchNews(ctx context.Context, item infomentor.NewsListItem, date string, article *infomentor.Article) (NewsRecord, error) {
	if article == nil {
		fetched, err := i.portal.Article(ctx, item.Id)
		if err != nil {
			return NewsRecord{}, err
		}
		article = &fetched
	}
	image, err := i.portal.NewsImage(ctx, item.Id)
	if err != nil {
		return NewsRecord{}, err
	}
	attachments, err := i.downloadAttachments(ctx, article.Attachments)
	if err != nil {
		return NewsRecord{}, err
	}

	news := db.News{
		UserID:    i.user.ID,
		NewsID:    item.Id,
		Date:      date,
		Title:     article.Title,
		Content:   article.Content,
		Category:  article.Category,
		ImageFile: image,
		Raw:       string(article.Raw),
	}

	err = i.commit(ctx, func(tx *db.Queries) error {
		id, err := tx.CreateNews(ctx, news)
		if err != nil {
			return err
		}
		news.ID = id
		for idx := range attachments {
			attachments[idx].NewsID = &news.ID
			err = tx.CreateAttachment(ctx, attachments[idx])
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return NewsRecord{}, fmt.Errorf("persist news %d: %w", item.Id, err)
	}
	return NewsRecord{News: news, Attachments: attachments}, nil
}

// SyncNews persists articles not seen before and returns them. An article is identified
// by its id and publish date, a republished article is new again.
//
// When processing an article fails the remaining ones are skipped, the articles returned
// so far are committed and returned along with the error.
func (i Informer) SyncNews(ctx context.Context) ([]NewsRecord, error) {
	ctx, span := tracer.Start(ctx, "SyncNews")
	defer span.End()

	list, err := i.portal.NewsList(ctx)
	if err != nil {
		failSpan(span, err, "failed to fetch news list")
		return nil, err
	}

	var out []NewsRecord
	for _, item := range list {
		// the list normally carries the publish date, otherwise it comes from the article
		date := item.PublishedDate
		var article *infomentor.Article
		if date == "" {
			fetched, err := i.portal.Article(ctx, item.Id)
			if err != nil {
				i.tel.ReportBroken(report_sync_news, err, item.Id)
				failSpan(span, err, "failed to fetch news")
				i.countNew(ctx, "news", len(out))
				return out, err
			}
			date = fetched.Date
			article = &fetched
		}

		_, err := i.qry.GetNews(ctx, db.GetNewsParams{
			UserID: i.user.ID,
			NewsID: item.Id,
			Date:   date,
		})
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			failSpan(span, err, "failed to look up news")
			return out, err
		}

		record, err := i.fetchNews(ctx, item, date, article)
		if err != nil {
			i.tel.ReportBroken(report_sync_news, err, item.Id)
			failSpan(span, err, "failed to fetch news")
			i.countNew(ctx, "news", len(out))
			return out, err
		}
		out = append(out, record)
	}
	span.SetAttributes(attribute.Int("new", len(out)))
	i.countNew(ctx, "news", len(out))
	return out, nil
}

// UpdateNews syncs news and notifies the user of every new article. A failed notification
// is reported and the article stays unnotified, it is not retried.
func (i Informer) UpdateNews(ctx context.Context) error {
	records, syncErr := i.SyncNews(ctx)
	for _, record := range records {
		err := i.notifier.NotifyNews(ctx, record.News, record.Attachments)
		if err != nil {
			i.tel.ReportWarning(report_notify, err, record.News.NewsID)
			notificationsFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "news")))
			continue
		}
		err = i.qry.MarkNewsNotified(ctx, record.News.ID)
		if err != nil {
			return err
		}
	}
	return syncErr
}
