package echoapi

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/arkibo/backend/core/activity"
	"github.com/arkibo/backend/core/feed"
	"github.com/arkibo/backend/core/forum"
	"github.com/arkibo/backend/core/notification"
	"github.com/arkibo/backend/core/post"
)

var feedUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// auth happens via the JWT middleware, not the Origin header
	CheckOrigin: func(r *http.Request) bool { return true },
}

type (
	feedApi struct {
		opts *Options
	}

	// feedCommand is one client->server message on the feed socket.
	feedCommand struct {
		Action     string `json:"action"` // subscribe | unsubscribe
		ID         string `json:"id"`     // client-chosen subscription handle
		Collection string `json:"collection,omitempty"`
		Parent     string `json:"parent,omitempty"`
		Limit      int    `json:"limit,omitempty"`
	}

	// feedEvent is one server->client message.
	feedEvent struct {
		Type    string       `json:"type"` // changes | error | subscribed | unsubscribed
		ID      string       `json:"id"`
		Changes []feedChange `json:"changes,omitempty"`
		Error   string       `json:"error,omitempty"`
	}

	feedChange struct {
		Op  feed.Op       `json:"op"`
		Doc feed.Document `json:"doc"`
	}
)

func registerFeedAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := feedApi{opts: opts}
	g.GET("/feed", api.stream, jwt)
}

// stream upgrades to a websocket carrying live query subscriptions. Clients
// multiplex any number of watches over one socket, each keyed by a handle of
// their choosing; server-side state is torn down when the socket closes.
func (api *feedApi) stream(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	conn, err := feedUpgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		return errors.Wrap(err, "upgrading feed socket")
	}

	sess := &feedSession{
		conn:   conn,
		claims: claims,
		api:    api,
		subs:   make(map[string]feed.Disposer),
	}
	defer sess.close()

	for {
		var cmd feedCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				api.opts.Logger.Warn("feed: socket read failed", err)
			}
			return nil
		}
		sess.handle(cmd)
	}
}

// feedSession is the server half of one feed socket.
// writeMu serializes writes: subscription callbacks fire from many goroutines.
type feedSession struct {
	conn    *websocket.Conn
	claims  Claims
	api     *feedApi
	writeMu sync.Mutex

	mu   sync.Mutex
	subs map[string]feed.Disposer
}

func (sess *feedSession) handle(cmd feedCommand) {
	switch cmd.Action {
	case "subscribe":
		sess.subscribe(cmd)
	case "unsubscribe":
		sess.unsubscribe(cmd.ID)
	default:
		sess.send(feedEvent{Type: "error", ID: cmd.ID, Error: fmt.Sprintf("unknown action %q", cmd.Action)})
	}
}

func (sess *feedSession) subscribe(cmd feedCommand) {
	if cmd.ID == "" {
		sess.send(feedEvent{Type: "error", Error: "subscription id is required"})
		return
	}

	q, err := sess.api.resolveQuery(sess.claims, cmd)
	if err != nil {
		sess.send(feedEvent{Type: "error", ID: cmd.ID, Error: err.Error()})
		return
	}

	id := cmd.ID
	disp := sess.api.opts.Broker.WatchChanges(q,
		func(changes []feed.Change) {
			out := make([]feedChange, 0, len(changes))
			for _, ch := range changes {
				out = append(out, feedChange{Op: ch.Op, Doc: ch.Doc})
			}
			sess.send(feedEvent{Type: "changes", ID: id, Changes: out})
		},
		func(err error) {
			sess.api.opts.Logger.Error("feed: subscription failed", err)
			sess.send(feedEvent{Type: "error", ID: id, Error: "subscription failed"})
		},
	)

	sess.mu.Lock()
	if old, ok := sess.subs[id]; ok {
		old() // resubscribing with the same handle replaces the watch
	}
	sess.subs[id] = disp
	sess.mu.Unlock()

	sess.send(feedEvent{Type: "subscribed", ID: id})
}

func (sess *feedSession) unsubscribe(id string) {
	sess.mu.Lock()
	disp, ok := sess.subs[id]
	delete(sess.subs, id)
	sess.mu.Unlock()

	if ok {
		disp()
		sess.send(feedEvent{Type: "unsubscribed", ID: id})
	}
}

func (sess *feedSession) send(ev feedEvent) {
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	if err := sess.conn.WriteJSON(ev); err != nil {
		sess.api.opts.Logger.Warn("feed: socket write failed", err)
	}
}

func (sess *feedSession) close() {
	sess.mu.Lock()
	for _, disp := range sess.subs {
		disp()
	}
	sess.subs = make(map[string]feed.Disposer)
	sess.mu.Unlock()
	_ = sess.conn.Close()
}

// resolveQuery maps a subscribe command to a service query, enforcing the
// same permissions as the REST endpoints.
func (api *feedApi) resolveQuery(claims Claims, cmd feedCommand) (feed.Query, error) {
	switch cmd.Collection {
	case post.Collection:
		return api.opts.PostSvc.AnnouncementsQuery(), nil
	case post.CommentsCollection:
		return requireParent(cmd, api.opts.PostSvc.CommentsQuery)
	case post.RepliesCollection:
		return requireParent(cmd, api.opts.PostSvc.RepliesQuery)
	case post.ReactionsCollection:
		return requireParent(cmd, api.opts.PostSvc.ReactionsQuery)
	case forum.Collection:
		return api.opts.ForumSvc.PostsQuery(), nil
	case forum.CommentsCollection:
		return requireParent(cmd, api.opts.ForumSvc.CommentsQuery)
	case activity.Collection:
		return api.opts.ActivitySvc.ActivitiesQuery(), nil
	case activity.SubmissionsCollection:
		if !claims.IsTeacher && !claims.IsAdmin {
			return feed.Query{}, errors.New("permission denied")
		}
		return requireParent(cmd, api.opts.ActivitySvc.SubmissionsQuery)
	case notification.Collection:
		return api.opts.NotifSvc.Query(claims.Email), nil
	case "pending":
		if !claims.IsAdmin {
			return feed.Query{}, errors.New("permission denied")
		}
		return api.opts.UserSvc.PendingQuery(), nil
	case "achievers":
		limit := cmd.Limit
		if limit <= 0 {
			limit = achieversLimit
		}
		return api.opts.UserSvc.LeaderboardQuery(limit), nil
	}
	return feed.Query{}, fmt.Errorf("unknown collection %q", cmd.Collection)
}

func requireParent(cmd feedCommand, q func(string) feed.Query) (feed.Query, error) {
	if cmd.Parent == "" {
		return feed.Query{}, errors.New("parent is required for this collection")
	}
	return q(cmd.Parent), nil
}
