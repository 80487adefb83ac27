package forum

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// List scopes.
const (
	ScopeActive    = "active"
	ScopeLast      = "last"
	ScopePopular   = "popular"
	ScopeExcellent = "excellent"
	ScopeBanned    = "banned"
	ScopeNoReply   = "no_reply"
	ScopeLastReply = "last_reply"
	ScopeNode      = "node"
	ScopeFavorites = "favorites"
)

func ValidScope(s string) bool {
	switch s {
	case ScopeActive, ScopeLast, ScopePopular, ScopeExcellent, ScopeBanned,
		ScopeNoReply, ScopeLastReply, ScopeNode, ScopeFavorites:
		return true
	}
	return false
}

// Topics owns the topic lifecycle outside of moderation: create, edit,
// destroy, view, reply and listing.
type Topics struct {
	*core
	resolver *Resolver
}

type TopicInput struct {
	Title  string
	Body   string
	NodeID int64
}

// TopicUpdate changes content and, when NodeID is set, the node.
type TopicUpdate struct {
	Title  string
	Body   string
	NodeID *int64
}

type NewTopicForm struct {
	Node  *Node
	Nodes []Node
}

type TopicView struct {
	Topic     Topic
	Node      Node
	Replies   []Reply
	Favorites int64
	Favorited bool
	Following bool
	// Resolved is the number of the viewer's notifications this view
	// marked read.
	Resolved int64
}

type ListQuery struct {
	Scope  string
	NodeID int64
	Page   int
}

func (t *Topics) node(ctx context.Context, q Store, id int64) (Node, error) {
	n, err := q.GetNode(ctx, id)
	if err != nil {
		return Node{}, notFound("node", id, err)
	}
	return n, nil
}

// New checks that actor may start a topic, optionally in nodeID, and
// returns the nodes to choose from.
func (t *Topics) New(ctx context.Context, actor Actor, nodeID int64) (NewTopicForm, error) {
	if _, err := t.authorize(ctx, actor, OpCreate, nil); err != nil {
		return NewTopicForm{}, err
	}

	var form NewTopicForm
	if nodeID != 0 {
		n, err := t.node(ctx, t.store, nodeID)
		if err != nil {
			return NewTopicForm{}, err
		}
		form.Node = &n
	}

	nodes, err := t.store.ListNodes(ctx)
	if err != nil {
		return NewTopicForm{}, fmt.Errorf("list nodes: %w", err)
	}
	form.Nodes = nodes
	return form, nil
}

// Create stores a topic, subscribes its owner and notifies mentioned
// members.
func (t *Topics) Create(ctx context.Context, actor Actor, in TopicInput) (Topic, error) {
	ctx, span := t.opts.tracer.Start(ctx, "Topics.Create")
	defer span.End()

	if _, err := t.authorize(ctx, actor, OpCreate, nil); err != nil {
		return Topic{}, err
	}

	in.Title = SanitizeInput(in.Title)
	in.Body = SanitizeInput(in.Body)
	if err := ValidateTopicForm(in.Title, in.Body); err != nil {
		return Topic{}, err
	}
	if _, err := t.node(ctx, t.store, in.NodeID); err != nil {
		return Topic{}, err
	}

	var topic Topic
	err := inTx(ctx, t.db, t.store, func(q Store) error {
		var err error
		topic, err = q.CreateTopic(ctx, CreateTopicParams{
			MemberID: actor.ID,
			NodeID:   in.NodeID,
			Title:    in.Title,
			Body:     in.Body,
		})
		if err != nil {
			return fmt.Errorf("create topic: %w", err)
		}

		if _, err := q.AddFollow(ctx, AddFollowParams{MemberID: actor.ID, TopicID: topic.ID}); err != nil {
			return fmt.Errorf("follow own topic: %w", err)
		}

		return newFanout(q, actor.ID, topic.ID, TargetTopic, topic.ID).mentions(ctx, topic.Body)
	})
	if err != nil {
		return Topic{}, err
	}

	span.SetAttributes(attribute.Int64("topic_id", topic.ID))
	t.logger.InfoContext(ctx, "topic created",
		slog.Int64("topic_id", topic.ID),
		slog.Int64("node_id", topic.NodeID))
	return topic, nil
}

// Edit returns the topic if actor may change it.
func (t *Topics) Edit(ctx context.Context, actor Actor, id int64) (Topic, error) {
	topic, err := t.topic(ctx, t.store, id)
	if err != nil {
		return Topic{}, err
	}
	if _, err := t.authorize(ctx, actor, OpEdit, &topic); err != nil {
		return Topic{}, err
	}
	return topic, nil
}

// Update changes title, body and node. An admin supplying a node always
// locks it; a non-admin node change is ignored once the node is locked.
func (t *Topics) Update(ctx context.Context, actor Actor, id int64, in TopicUpdate) (Topic, error) {
	ctx, span := t.opts.tracer.Start(ctx, "Topics.Update", trace.WithAttributes(attribute.Int64("topic_id", id)))
	defer span.End()

	current, err := t.topic(ctx, t.store, id)
	if err != nil {
		return Topic{}, err
	}
	policy, err := t.settings.Policy(ctx)
	if err != nil {
		return Topic{}, err
	}
	d, err := t.decide(ctx, actor, OpEdit, &current, policy)
	if err != nil {
		return Topic{}, err
	}

	in.Title = SanitizeInput(in.Title)
	in.Body = SanitizeInput(in.Body)
	if err := ValidateTopicForm(in.Title, in.Body); err != nil {
		return Topic{}, err
	}
	if in.NodeID != nil {
		if _, err := t.node(ctx, t.store, *in.NodeID); err != nil {
			return Topic{}, err
		}
	}

	admin := d.Role == RoleAdmin
	var updated Topic
	err = inTx(ctx, t.db, t.store, func(q Store) error {
		locked, err := q.GetTopicForUpdate(ctx, id)
		if err != nil {
			return notFound("topic", id, err)
		}
		// the topic may have been banned since it was first read
		if _, err := t.decide(ctx, actor, OpEdit, &locked, policy); err != nil {
			return err
		}

		if in.NodeID != nil {
			switch {
			case admin:
				if _, err := q.UpdateTopicNode(ctx, UpdateTopicNodeParams{ID: id, NodeID: *in.NodeID, LockNode: true}); err != nil {
					return fmt.Errorf("move topic %d: %w", id, err)
				}
			case !locked.LockNode && *in.NodeID != locked.NodeID:
				if _, err := q.UpdateTopicNode(ctx, UpdateTopicNodeParams{ID: id, NodeID: *in.NodeID}); err != nil {
					return fmt.Errorf("move topic %d: %w", id, err)
				}
			}
		}

		updated, err = q.UpdateTopicContent(ctx, UpdateTopicContentParams{ID: id, Title: in.Title, Body: in.Body})
		if err != nil {
			return fmt.Errorf("update topic %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return Topic{}, err
	}

	t.logger.InfoContext(ctx, "topic updated",
		slog.Int64("topic_id", id),
		slog.Bool("lock_node", updated.LockNode))
	return updated, nil
}

func (t *Topics) Destroy(ctx context.Context, actor Actor, id int64) error {
	topic, err := t.topic(ctx, t.store, id)
	if err != nil {
		return err
	}
	if _, err := t.authorize(ctx, actor, OpDestroy, &topic); err != nil {
		return err
	}

	n, err := t.store.DeleteTopic(ctx, id)
	if err != nil {
		return fmt.Errorf("delete topic %d: %w", id, err)
	}
	if n == 0 {
		return &NotFoundError{Kind: "topic", ID: id}
	}

	t.logger.InfoContext(ctx, "topic destroyed", slog.Int64("topic_id", id))
	return nil
}

// Show loads a topic for display, counts the hit and resolves the
// viewer's notifications about it.
func (t *Topics) Show(ctx context.Context, actor Actor, id int64) (TopicView, error) {
	ctx, span := t.opts.tracer.Start(ctx, "Topics.Show", trace.WithAttributes(attribute.Int64("topic_id", id)))
	defer span.End()

	topic, err := t.topic(ctx, t.store, id)
	if err != nil {
		return TopicView{}, err
	}
	if _, err := t.authorize(ctx, actor, OpRead, &topic); err != nil {
		return TopicView{}, err
	}

	if err := t.store.IncrementTopicHits(ctx, id); err != nil {
		return TopicView{}, fmt.Errorf("count hit on topic %d: %w", id, err)
	}
	topic.Hits++

	view := TopicView{Topic: topic}
	if view.Node, err = t.node(ctx, t.store, topic.NodeID); err != nil {
		return TopicView{}, err
	}
	if view.Replies, err = t.store.ListTopicReplies(ctx, id); err != nil {
		return TopicView{}, fmt.Errorf("list replies of topic %d: %w", id, err)
	}
	if view.Favorites, err = t.store.CountTopicFavorites(ctx, id); err != nil {
		return TopicView{}, fmt.Errorf("count favorites of topic %d: %w", id, err)
	}

	if !actor.Anonymous() {
		eng, err := t.store.GetTopicEngagement(ctx, GetTopicEngagementParams{MemberID: actor.ID, TopicID: id})
		if err != nil {
			return TopicView{}, fmt.Errorf("engagement for topic %d: %w", id, err)
		}
		view.Favorited, view.Following = eng.Favorited, eng.Following

		if view.Resolved, err = t.resolver.ResolveOnView(ctx, actor, id); err != nil {
			return TopicView{}, err
		}
		span.AddEvent("notifications resolved", trace.WithAttributes(attribute.Int64("count", view.Resolved)))
	}

	return view, nil
}

// Reply posts an ordinary reply and notifies mentioned members and
// followers.
func (t *Topics) Reply(ctx context.Context, actor Actor, id int64, body string) (Reply, error) {
	ctx, span := t.opts.tracer.Start(ctx, "Topics.Reply", trace.WithAttributes(attribute.Int64("topic_id", id)))
	defer span.End()

	topic, err := t.topic(ctx, t.store, id)
	if err != nil {
		return Reply{}, err
	}
	if _, err := t.authorize(ctx, actor, OpReply, &topic); err != nil {
		return Reply{}, err
	}

	body = SanitizeInput(body)
	if err := ValidateReplyForm(body); err != nil {
		return Reply{}, err
	}

	var reply Reply
	err = inTx(ctx, t.db, t.store, func(q Store) error {
		var err error
		reply, err = q.CreateReply(ctx, CreateReplyParams{TopicID: id, MemberID: actor.ID, Body: body})
		if err != nil {
			return fmt.Errorf("create reply: %w", err)
		}

		err = q.TouchTopicReplied(ctx, TouchTopicRepliedParams{
			ID:            id,
			LastReplyID:   pgtypeInt8(reply.ID),
			LastRepliedAt: reply.CreatedAt,
		})
		if err != nil {
			return fmt.Errorf("touch topic %d: %w", id, err)
		}

		f := newFanout(q, actor.ID, id, TargetReply, reply.ID)
		if err := f.mentions(ctx, body); err != nil {
			return err
		}
		return f.followers(ctx)
	})
	if err != nil {
		return Reply{}, err
	}

	t.logger.InfoContext(ctx, "reply created",
		slog.Int64("topic_id", id),
		slog.Int64("reply_id", reply.ID))
	return reply, nil
}

// List returns one page of a scoped listing. Pages below one, or so far
// out that the offset leaves the int32 range, are treated as the first
// page.
func (t *Topics) List(ctx context.Context, actor Actor, lq ListQuery) ([]Topic, error) {
	if lq.Scope == "" {
		lq.Scope = ScopeActive
	}
	if !ValidScope(lq.Scope) {
		return nil, ValidationErrors{{Field: "scope", Message: fmt.Sprintf("unknown scope %q", lq.Scope)}}
	}

	op := OpRead
	if lq.Scope == ScopeFavorites {
		op = OpListFavorites
	}
	if _, err := t.authorize(ctx, actor, op, nil); err != nil {
		return nil, err
	}

	if lq.Scope == ScopeNode {
		if _, err := t.node(ctx, t.store, lq.NodeID); err != nil {
			return nil, err
		}
	}

	size := t.opts.pageSize
	offset := int64(0)
	if lq.Page > 1 {
		offset = int64(lq.Page-1) * int64(size)
		if offset/int64(size) != int64(lq.Page-1) || offset > math.MaxInt32 {
			offset = 0
		}
	}

	topics, err := t.store.ListTopics(ctx, ListTopicsParams{
		Scope:            lq.Scope,
		NodeID:           lq.NodeID,
		MemberID:         actor.ID,
		PopularThreshold: t.opts.popularThreshold,
		PageSize:         size,
		PageOffset:       int32(offset),
	})
	if err != nil {
		return nil, fmt.Errorf("list %s topics: %w", lq.Scope, err)
	}
	return topics, nil
}
