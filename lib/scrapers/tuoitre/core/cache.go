package core

import (
	"bytes"
	"context"
	"encoding/gob"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var errPageNotCached = badger.ErrKeyNotFound

type cachedPage struct {
	Contents  []byte
	ExpiresAt int64
}

type pageCache struct {
	db  *badger.DB
	ttl time.Duration
}

// SetPageCache installs a within-run page cache so that a post page
// re-read by the comment fallback is not fetched twice. A nil db leaves
// caching disabled.
func (c *Client) SetPageCache(db *badger.DB, ttl time.Duration) {
	c.cache = pageCache{db: db, ttl: ttl}
}

// GetDocumentCached behaves like GetDocument but consults the page
// cache first and stores the fetched body on a miss.
func (c *Client) GetDocumentCached(ctx context.Context, pageUrl string) (*goquery.Document, []byte, error) {
	if c.cache.db == nil {
		return c.GetDocument(ctx, pageUrl)
	}

	ctx, span := tracer.Start(ctx, "client:GetDocumentCached")
	defer span.End()
	span.SetAttributes(attribute.String("url", pageUrl))

	body, err := c.cache.get(pageUrl)
	if err == nil {
		doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(body))
		if err == nil {
			span.SetStatus(codes.Ok, "CACHE HIT")
			return doc, body, nil
		}
	}
	if err != nil && err != errPageNotCached {
		span.RecordError(err)
	}

	doc, body, err := c.GetDocument(ctx, pageUrl)
	if err != nil {
		return nil, nil, err
	}

	err = c.cache.set(pageUrl, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to cache page")
	}
	return doc, body, nil
}

func (p pageCache) get(key string) ([]byte, error) {
	tx := p.db.NewTransaction(false)
	defer tx.Discard()

	item, err := tx.Get([]byte(key))
	if err == badger.ErrKeyNotFound {
		return nil, errPageNotCached
	}
	if err != nil {
		return nil, err
	}
	serialized, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}

	var cached cachedPage
	decoder := gob.NewDecoder(bytes.NewBuffer(serialized))
	err = decoder.Decode(&cached)
	if err != nil {
		return nil, err
	}

	if time.Now().Unix() >= cached.ExpiresAt {
		tx := p.db.NewTransaction(true)
		defer tx.Commit()
		err = tx.Delete([]byte(key))
		if err != nil {
			return nil, errPageNotCached
		}
		return nil, errPageNotCached
	}

	return cached.Contents, nil
}

func (p pageCache) set(key string, contents []byte) error {
	serialized := bytes.NewBuffer(nil)
	encoder := gob.NewEncoder(serialized)
	err := encoder.Encode(cachedPage{
		Contents:  contents,
		ExpiresAt: time.Now().Add(p.ttl).Unix(),
	})
	if err != nil {
		return err
	}

	tx := p.db.NewTransaction(true)
	defer tx.Commit()
	return tx.Set([]byte(key), serialized.Bytes())
}
