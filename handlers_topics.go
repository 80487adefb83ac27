package main

import (
	"net/http"

	"github.com/imeyer/tforum/pkg/forum"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// scopes reachable as /topics/{scope}. Node listings live under /nodes.
var listScopes = map[string]bool{
	forum.ScopeLast:      true,
	forum.ScopePopular:   true,
	forum.ScopeExcellent: true,
	forum.ScopeBanned:    true,
	forum.ScopeNoReply:   true,
	forum.ScopeLastReply: true,
	forum.ScopeFavorites: true,
}

func (s *ForumService) listTopics(w http.ResponseWriter, r *http.Request, lq forum.ListQuery) {
	ctx, span := s.telemetry.Tracer.Start(r.Context(), "ListTopics", trace.WithAttributes(
		attribute.String("list.scope", lq.Scope),
		attribute.Int("list.page", lq.Page),
	))
	defer span.End()
	r = r.WithContext(ctx)

	actor := actorFromRequest(r)
	topics, err := s.forum.Topics.List(ctx, actor, lq)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	title, err := s.forum.Settings.BoardTitle(ctx)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	page := topicListJSON{
		Title:  title,
		Scope:  lq.Scope,
		Page:   lq.Page,
		Topics: newTopicsJSON(topics),
	}
	if lq.Scope == forum.ScopeNode {
		n, err := s.store.GetNode(ctx, lq.NodeID)
		if err == nil {
			nj := newNodeJSON(n)
			page.Node = &nj
		}
	}

	s.writeJSON(w, r, http.StatusOK, page)
}

// ListTopics serves the active listing on / and /topics.
func (s *ForumService) ListTopics(w http.ResponseWriter, r *http.Request) {
	s.listTopics(w, r, forum.ListQuery{Scope: forum.ScopeActive, Page: pageParam(r)})
}

func (s *ForumService) ListNodeTopics(w http.ResponseWriter, r *http.Request) {
	nid, ok := pathID(r, "nid")
	if !ok {
		s.renderError(w, http.StatusNotFound)
		return
	}
	s.listTopics(w, r, forum.ListQuery{Scope: forum.ScopeNode, NodeID: nid, Page: pageParam(r)})
}

// TopicOrScope serves GET /topics/{tid}: a numeric segment shows the
// topic, a scope name lists it.
func (s *ForumService) TopicOrScope(w http.ResponseWriter, r *http.Request) {
	if _, ok := pathID(r, "tid"); ok {
		s.ShowTopic(w, r)
		return
	}

	scope := r.PathValue("tid")
	if !listScopes[scope] {
		s.renderError(w, http.StatusNotFound)
		return
	}
	s.listTopics(w, r, forum.ListQuery{Scope: scope, Page: pageParam(r)})
}

// ShowTopic renders a topic and resolves the viewer's notifications
// about it.
func (s *ForumService) ShowTopic(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.telemetry.Tracer.Start(r.Context(), "ShowTopic")
	defer span.End()
	r = r.WithContext(ctx)

	tid, ok := pathID(r, "tid")
	if !ok {
		s.renderError(w, http.StatusNotFound)
		return
	}
	span.SetAttributes(attribute.Int64("topic.id", tid))

	view, err := s.forum.Topics.Show(ctx, actorFromRequest(r), tid)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, newTopicPageJSON(view))
}

func (s *ForumService) NewTopic(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.telemetry.Tracer.Start(r.Context(), "NewTopic")
	defer span.End()
	r = r.WithContext(ctx)

	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest)
		return
	}
	nodeID, err := formID(r, "node_id")
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	form, err := s.forum.Topics.New(ctx, actorFromRequest(r), nodeID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	nodes := make([]nodeJSON, 0, len(form.Nodes))
	for _, n := range form.Nodes {
		nodes = append(nodes, newNodeJSON(n))
	}
	out := map[string]any{"nodes": nodes}
	if form.Node != nil {
		out["node"] = newNodeJSON(*form.Node)
	}

	s.writeJSON(w, r, http.StatusOK, out)
}

func (s *ForumService) CreateTopic(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.telemetry.Tracer.Start(r.Context(), "CreateTopic")
	defer span.End()
	r = r.WithContext(ctx)

	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest)
		return
	}
	nodeID, err := formID(r, "node_id")
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	topic, err := s.forum.Topics.Create(ctx, actorFromRequest(r), forum.TopicInput{
		Title:  r.PostForm.Get("title"),
		Body:   r.PostForm.Get("body"),
		NodeID: nodeID,
	})
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	span.SetAttributes(attribute.Int64("topic.id", topic.ID))
	http.Redirect(w, r, topicURL(topic.ID), http.StatusSeeOther)
}

func (s *ForumService) EditTopic(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.telemetry.Tracer.Start(r.Context(), "EditTopic")
	defer span.End()
	r = r.WithContext(ctx)

	tid, ok := pathID(r, "tid")
	if !ok {
		s.renderError(w, http.StatusNotFound)
		return
	}

	topic, err := s.forum.Topics.Edit(ctx, actorFromRequest(r), tid)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	// Edit forms carry the raw Markdown.
	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"topic":     newTopicJSON(topic),
		"title":     topic.Title,
		"body":      topic.Body,
		"lock_node": topic.LockNode,
	})
}

// UpdateTopic changes content and, when node_id is posted, the node.
func (s *ForumService) UpdateTopic(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.telemetry.Tracer.Start(r.Context(), "UpdateTopic")
	defer span.End()
	r = r.WithContext(ctx)

	tid, ok := pathID(r, "tid")
	if !ok {
		s.renderError(w, http.StatusNotFound)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest)
		return
	}

	in := forum.TopicUpdate{
		Title: r.PostForm.Get("title"),
		Body:  r.PostForm.Get("body"),
	}
	if r.PostForm.Has("node_id") {
		nodeID, err := formID(r, "node_id")
		if err != nil {
			s.handleError(w, r, err)
			return
		}
		in.NodeID = &nodeID
	}

	if _, err := s.forum.Topics.Update(ctx, actorFromRequest(r), tid, in); err != nil {
		s.handleError(w, r, err)
		return
	}

	http.Redirect(w, r, topicURL(tid), http.StatusSeeOther)
}

func (s *ForumService) DestroyTopic(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.telemetry.Tracer.Start(r.Context(), "DestroyTopic")
	defer span.End()
	r = r.WithContext(ctx)

	tid, ok := pathID(r, "tid")
	if !ok {
		s.renderError(w, http.StatusNotFound)
		return
	}

	if err := s.forum.Topics.Destroy(ctx, actorFromRequest(r), tid); err != nil {
		s.handleError(w, r, err)
		return
	}

	http.Redirect(w, r, "/topics", http.StatusFound)
}

func (s *ForumService) CreateReply(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.telemetry.Tracer.Start(r.Context(), "CreateReply")
	defer span.End()
	r = r.WithContext(ctx)

	tid, ok := pathID(r, "tid")
	if !ok {
		s.renderError(w, http.StatusNotFound)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest)
		return
	}

	reply, err := s.forum.Topics.Reply(ctx, actorFromRequest(r), tid, r.PostForm.Get("body"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	span.SetAttributes(attribute.Int64("reply.id", reply.ID))
	http.Redirect(w, r, topicURL(tid), http.StatusSeeOther)
}
