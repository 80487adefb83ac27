package main

import (
	"encoding/xml"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/imeyer/tforum/middleware"
	"github.com/imeyer/tforum/pkg/forum"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string  `xml:"title"`
	Link        string  `xml:"link"`
	GUID        rssGUID `xml:"guid"`
	Description string  `xml:"description"`
	PubDate     string  `xml:"pubDate"`
}

type rssGUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink bool   `xml:"isPermaLink,attr"`
}

// baseURL is the scheme and host the request arrived on.
func baseURL(r *http.Request) string {
	u := url.URL{Scheme: "http", Host: r.Host}
	if r.TLS != nil {
		u.Scheme = "https"
	}
	return u.String()
}

// buildFeed turns a topic list into an RSS 2.0 document. Bodies go out
// as sanitized HTML, titles as plain text.
func buildFeed(title, link string, topics []forum.Topic) rssFeed {
	ch := rssChannel{
		Title:       title,
		Link:        link,
		Description: title,
		Items:       make([]rssItem, 0, len(topics)),
	}

	var newest time.Time
	for _, t := range topics {
		u := link + topicURL(t.ID)
		ch.Items = append(ch.Items, rssItem{
			Title:       plainText(t.Title),
			Link:        u,
			GUID:        rssGUID{Value: u, IsPermaLink: true},
			Description: renderBody(t.Body),
			PubDate:     t.CreatedAt.Time.UTC().Format(time.RFC1123Z),
		})
		if t.CreatedAt.Time.After(newest) {
			newest = t.CreatedAt.Time
		}
	}
	if !newest.IsZero() {
		ch.LastBuildDate = newest.UTC().Format(time.RFC1123Z)
	}

	return rssFeed{Version: "2.0", Channel: ch}
}

func (s *ForumService) writeFeed(w http.ResponseWriter, r *http.Request, lq forum.ListQuery) {
	ctx, span := s.telemetry.Tracer.Start(r.Context(), "Feed", trace.WithAttributes(
		attribute.String("list.scope", lq.Scope),
	))
	defer span.End()
	r = r.WithContext(ctx)

	topics, err := s.forum.Topics.List(ctx, actorFromRequest(r), lq)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	title, err := s.forum.Settings.BoardTitle(ctx)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if lq.Scope == forum.ScopeNode {
		if n, err := s.store.GetNode(ctx, lq.NodeID); err == nil {
			title = title + " - " + n.Name
		}
	}

	out, err := xml.MarshalIndent(buildFeed(title, baseURL(r), topics), "", "  ")
	if err != nil {
		middleware.GetLogger(ctx).ErrorContext(ctx, "error encoding feed", slog.String("error", err.Error()))
		s.renderError(w, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(xml.Header))
	w.Write(out)
}

func (s *ForumService) TopicsFeed(w http.ResponseWriter, r *http.Request) {
	s.writeFeed(w, r, forum.ListQuery{Scope: forum.ScopeActive, Page: 1})
}

func (s *ForumService) NodeFeed(w http.ResponseWriter, r *http.Request) {
	nid, ok := pathID(r, "nid")
	if !ok {
		s.renderError(w, http.StatusNotFound)
		return
	}
	s.writeFeed(w, r, forum.ListQuery{Scope: forum.ScopeNode, NodeID: nid, Page: 1})
}
