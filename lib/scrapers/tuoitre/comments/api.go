package comments

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"tuoitre-crawler/lib/textutil"
)

// fromApi pages through the comment API until a short page, the
// comment cap, or a failed page. Comments gathered before a failure
// are kept.
func (c Client) fromApi(ctx context.Context, postId string) ([]Comment, error) {
	var comments []Comment
	seen := map[string]bool{}

	for page := 1; len(comments) < c.opts.MaxComments; page++ {
		parsed, err := c.fetchPage(ctx, postId, page)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			slog.Warn("comment page failed, keeping earlier pages",
				"postId", postId, "page", page, "err", err)
			break
		}

		added := 0
		for _, comment := range parsed {
			if seen[comment.CommentID] {
				continue
			}
			seen[comment.CommentID] = true
			comments = append(comments, comment)
			added++
		}

		// a short page is the last page
		if len(parsed) < c.opts.PageSize || added == 0 {
			break
		}
	}

	if len(comments) > c.opts.MaxComments {
		comments = comments[:c.opts.MaxComments]
	}
	return comments, nil
}

type apiEndpoint struct {
	url   string
	query map[string]string
}

// pageEndpoints lists the comment API variants the site has exposed
// over time. The id.tuoitre.vn endpoint is current, the other two
// still answer for older posts.
func (c Client) pageEndpoints(postId string, page int) []apiEndpoint {
	return []apiEndpoint{
		{
			url: c.opts.ApiBaseUrl + "/api/getlist-comment.api",
			query: map[string]string{
				"objId":     postId,
				"objType":   "1",
				"pageindex": strconv.Itoa(page),
				"pagesize":  strconv.Itoa(c.opts.PageSize),
				"sort":      "1",
			},
		},
		{
			url: strings.TrimSuffix(c.Core.BaseUrl.String(), "/") + "/api/comment/list",
			query: map[string]string{
				"id":   postId,
				"page": strconv.Itoa(page),
			},
		},
		{
			url: c.opts.AltApiBaseUrl + "/api/v1/comments",
			query: map[string]string{
				"object_id": postId,
				"page":      strconv.Itoa(page),
				"limit":     strconv.Itoa(c.opts.PageSize),
			},
		},
	}
}

// fetchPage probes the endpoint variants in order and returns the
// first non-empty parse. A variant that answers cleanly but parses
// empty marks the end of pagination; an error is returned only when
// every variant fails outright.
func (c Client) fetchPage(ctx context.Context, postId string, page int) ([]Comment, error) {
	var lastErr error
	answered := false

	for _, endpoint := range c.pageEndpoints(postId, page) {
		res, err := c.Core.Http.R().
			SetContext(ctx).
			SetHeader("Accept", "application/json").
			SetHeader("X-Requested-With", "XMLHttpRequest").
			SetQueryParams(endpoint.query).
			Get(endpoint.url)
		if err != nil {
			lastErr = err
			continue
		}
		if res.StatusCode() != 200 {
			lastErr = fmt.Errorf("comment api returned status %d", res.StatusCode())
			continue
		}

		var payload any
		if err := json.Unmarshal(res.Body(), &payload); err != nil {
			lastErr = fmt.Errorf("could not decode comment api response: %w", err)
			continue
		}

		if parsed := parseApiPayload(payload); len(parsed) > 0 {
			return parsed, nil
		}
		answered = true
	}

	if answered {
		return nil, nil
	}
	return nil, lastErr
}

// The comment API has shipped several envelope shapes over time, so
// parsing probes the known key spellings instead of binding a struct.
func parseApiPayload(payload any) []Comment {
	var items []any
	switch v := payload.(type) {
	case []any:
		items = v
	case map[string]any:
		inner := firstPresent(v, "data", "comments", "items", "Data")
		switch list := inner.(type) {
		case []any:
			items = list
		case map[string]any:
			items, _ = firstPresent(list, "comments", "items").([]any)
		}
	}

	var comments []Comment
	for _, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if comment, ok := parseApiComment(fields); ok {
			comments = append(comments, comment)
		}
	}
	return comments
}

func parseApiComment(fields map[string]any) (Comment, bool) {
	id := stringField(fields, "id", "commentId", "Id")
	if id == "" {
		return Comment{}, false
	}

	comment := Comment{
		CommentID: id,
		Author:    textutil.Clean(stringField(fields, "fullname", "author", "user_name", "FullName")),
		Text:      textutil.Clean(stringField(fields, "content", "text", "body", "Content")),
		Date:      stringField(fields, "time", "date", "created_at", "Time"),
		Reactions: map[string]int{},
	}
	if comment.Author == "" {
		comment.Author = "Anonymous"
	}

	if likes := intField(fields, "like", "likes", "Like"); likes > 0 {
		comment.Reactions["like"] = likes
	}

	replies, _ := firstPresent(fields, "reply", "replies", "children").([]any)
	for _, item := range replies {
		replyFields, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if reply, ok := parseApiComment(replyFields); ok {
			comment.Replies = append(comment.Replies, reply)
		}
	}

	return comment, true
}

func firstPresent(fields map[string]any, keys ...string) any {
	for _, key := range keys {
		if value, ok := fields[key]; ok && value != nil {
			return value
		}
	}
	return nil
}

func stringField(fields map[string]any, keys ...string) string {
	switch v := firstPresent(fields, keys...).(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func intField(fields map[string]any, keys ...string) int {
	switch v := firstPresent(fields, keys...).(type) {
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(textutil.DigitsOnly(v)); err == nil {
			return n
		}
	}
	return 0
}
