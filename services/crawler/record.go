package crawler

import (
	"tuoitre-crawler/lib/scrapers/tuoitre/article"
	"tuoitre-crawler/lib/scrapers/tuoitre/comments"
)

// Record is the on-disk shape of a crawled post. Slices and maps are
// always non-nil so empty collections serialize as [] and {} instead
// of null.
type Record struct {
	PostID   string `json:"postId" yaml:"postId"`
	Title    string `json:"title" yaml:"title"`
	Content  string `json:"content" yaml:"content"`
	Author   string `json:"author" yaml:"author"`
	Date     string `json:"date" yaml:"date"`
	Category string `json:"category" yaml:"category"`
	URL      string `json:"url" yaml:"url"`
	// nil when the post has no audio track
	Audio         *AudioRef       `json:"audio" yaml:"audio"`
	Images        ImageSet        `json:"images" yaml:"images"`
	VoteReactions map[string]int  `json:"voteReactions" yaml:"voteReactions"`
	Comments      []CommentRecord `json:"comments" yaml:"comments"`
}

type AudioRef struct {
	URL       string `json:"url" yaml:"url"`
	LocalPath string `json:"localPath" yaml:"localPath"`
}

// ImageSet keeps urls and localPaths index-aligned: localPaths[i] is
// the download of urls[i], or empty when that download failed.
type ImageSet struct {
	URLs       []string `json:"urls" yaml:"urls"`
	LocalPaths []string `json:"localPaths" yaml:"localPaths"`
}

type CommentRecord struct {
	CommentID      string          `json:"commentId" yaml:"commentId"`
	Author         string          `json:"author" yaml:"author"`
	Text           string          `json:"text" yaml:"text"`
	Date           string          `json:"date" yaml:"date"`
	VoteReactList  map[string]int  `json:"voteReactList" yaml:"voteReactList"`
	CommentReplies []CommentRecord `json:"commentReplies" yaml:"commentReplies"`
}

// NewRecord assembles a Record from the crawl stages of one post.
func NewRecord(a article.Article, commentTree []comments.Comment, imagePaths []string, audioPath string) Record {
	record := Record{
		PostID:        a.PostID,
		Title:         a.Title,
		Content:       a.Content,
		Author:        a.Author,
		Date:          a.Date,
		Category:      a.Category,
		URL:           a.URL,
		Images:        newImageSet(a.Images, imagePaths),
		VoteReactions: a.Reactions,
		Comments:      newCommentRecords(commentTree),
	}
	if record.VoteReactions == nil {
		record.VoteReactions = map[string]int{}
	}
	if a.Audio != "" {
		record.Audio = &AudioRef{URL: a.Audio, LocalPath: audioPath}
	}
	return record
}

func newImageSet(urls, localPaths []string) ImageSet {
	set := ImageSet{URLs: []string{}, LocalPaths: []string{}}
	set.URLs = append(set.URLs, urls...)

	// keep alignment even when the download stage was skipped
	set.LocalPaths = append(set.LocalPaths, localPaths...)
	for len(set.LocalPaths) < len(set.URLs) {
		set.LocalPaths = append(set.LocalPaths, "")
	}
	return set
}

func newCommentRecords(tree []comments.Comment) []CommentRecord {
	records := []CommentRecord{}
	for _, comment := range tree {
		record := CommentRecord{
			CommentID:      comment.CommentID,
			Author:         comment.Author,
			Text:           comment.Text,
			Date:           comment.Date,
			VoteReactList:  comment.Reactions,
			CommentReplies: newCommentRecords(comment.Replies),
		}
		if record.VoteReactList == nil {
			record.VoteReactList = map[string]int{}
		}
		records = append(records, record)
	}
	return records
}
