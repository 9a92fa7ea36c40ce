package comments

import (
	"context"
	"strconv"
	"tuoitre-crawler/lib/textutil"

	"github.com/PuerkitoBio/goquery"
)

var commentSelectors = []string{
	".comment-item",
	".cmt-item",
	"[data-comment-id]",
	".box-comment-item",
}

const replyContainerSelector = ".replies, .sub-comments, .comment-replies"

// fromHtml scrapes comments rendered into the post page itself. The
// page is usually already in the run's page cache from the article
// fetch, so this costs no extra request.
func (c Client) fromHtml(ctx context.Context, postUrl string) ([]Comment, error) {
	doc, _, err := c.Core.GetDocumentCached(ctx, postUrl)
	if err != nil {
		return nil, err
	}

	var comments []Comment
	fallbackId := 1
	for _, selector := range commentSelectors {
		doc.Find(selector).Each(func(_ int, item *goquery.Selection) {
			// nested replies are collected by their parent
			if item.ParentsFiltered(replyContainerSelector).Length() > 0 {
				return
			}
			if comment, ok := parseHtmlComment(item, strconv.Itoa(fallbackId)); ok {
				comments = append(comments, comment)
				fallbackId++
			}
		})
		if len(comments) > 0 {
			break
		}
	}
	return comments, nil
}

func parseHtmlComment(item *goquery.Selection, fallbackId string) (Comment, bool) {
	text := textutil.Clean(item.Find(".cmt-content, .comment-content, .content, .text").First().Text())
	if text == "" {
		return Comment{}, false
	}

	id := item.AttrOr("data-comment-id", "")
	if id == "" {
		id = item.AttrOr("id", "")
	}
	if id == "" {
		id = fallbackId
	}

	comment := Comment{
		CommentID: id,
		Author:    textutil.Clean(item.Find(".cmt-author, .comment-author, .user-name, .author").First().Text()),
		Text:      text,
		Date:      textutil.Clean(item.Find(".cmt-time, .comment-time, .date, time").First().Text()),
		Reactions: map[string]int{},
	}
	if comment.Author == "" {
		comment.Author = "Anonymous"
	}

	likeElem := item.Find(".like-count, .likes, [data-likes]").First()
	if likeElem.Length() > 0 {
		likeText := likeElem.AttrOr("data-likes", "")
		if likeText == "" {
			likeText = likeElem.Text()
		}
		if digits := textutil.DigitsOnly(likeText); digits != "" {
			likes, _ := strconv.Atoi(digits)
			comment.Reactions["like"] = likes
		}
	}

	replyContainer := item.Find(replyContainerSelector).First()
	replyContainer.Find(".comment-item, .reply-item, .cmt-item").
		Each(func(idx int, replyItem *goquery.Selection) {
			// skip deeper nesting, the enclosing reply recurses into it
			if replyItem.ParentsUntilSelection(replyContainer).Filter(replyContainerSelector).Length() > 0 {
				return
			}
			replyId := comment.CommentID + "_reply_" + strconv.Itoa(idx)
			if reply, ok := parseHtmlComment(replyItem, replyId); ok {
				comment.Replies = append(comment.Replies, reply)
			}
		})

	return comment, true
}
