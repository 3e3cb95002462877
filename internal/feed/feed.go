// Package feed exposes the session's conversation to presentation clients
// over a websocket. Events are append/update-only JSON messages; the feed
// never hands out shared mutable state.
package feed

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talkboard/talkboard/internal/appinfo"
	"github.com/talkboard/talkboard/internal/stream"
)

const writeTimeout = 5 * time.Second

// Message is the wire format of one feed event.
type Message struct {
	// Type is "snapshot" (sent once on connect), "partial" (the open
	// utterance changed), or "utterance" (an utterance was finalized).
	Type      string            `json:"type"`
	Snapshot  *stream.Snapshot  `json:"snapshot,omitempty"`
	Utterance *stream.Utterance `json:"utterance,omitempty"`
	Partial   string            `json:"partial"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Server upgrades HTTP connections and relays session events to each client.
type Server struct {
	sess     *stream.Session
	log      *slog.Logger
	metadata map[string]string
	upgrader websocket.Upgrader
}

// NewServer binds a feed to the session. engineName and language are attached
// to the initial snapshot message as metadata.
func NewServer(sess *stream.Session, engineName, language string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		sess:     sess,
		log:      logger.With("component", "feed"),
		metadata: appinfo.UtteranceMetadata(engineName, language),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The feed is bound to localhost by default; origin checks are
			// the deployment's concern.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events, unsubscribe := s.sess.Subscribe()
	defer unsubscribe()

	snap := s.sess.Snapshot()
	if err := s.write(conn, Message{Type: "snapshot", Snapshot: &snap, Partial: snap.Partial, Metadata: s.metadata}); err != nil {
		return
	}

	// Drain client frames only to learn about disconnects.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	s.log.Info("feed client connected", "remote", r.RemoteAddr)
	defer s.log.Info("feed client disconnected", "remote", r.RemoteAddr)

	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := s.write(conn, messageFor(ev)); err != nil {
				return
			}
		}
	}
}

func (s *Server) write(conn *websocket.Conn, msg Message) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	if err := conn.WriteJSON(msg); err != nil {
		s.log.Debug("feed write failed", "error", err)
		return err
	}
	return nil
}

func messageFor(ev stream.Event) Message {
	u := ev.Utterance
	switch ev.Kind {
	case stream.EventUtteranceFinalized:
		return Message{Type: "utterance", Utterance: &u}
	default:
		return Message{Type: "partial", Utterance: &u, Partial: u.Text}
	}
}
