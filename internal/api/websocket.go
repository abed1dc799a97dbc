package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/AaronLay10/SentientScenes/internal/events"
)

const (
	wsBacklog    = 50
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// eventStream owns one websocket peer. Only the handler goroutine writes.
type eventStream struct {
	conn   *websocket.Conn
	filter events.Filter
}

func (es *eventStream) send(e events.Event) error {
	_ = es.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return es.conn.WriteJSON(e)
}

func (es *eventStream) ping() error {
	_ = es.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return es.conn.WriteMessage(websocket.PingMessage, nil)
}

// drain reads until the peer closes or stops answering pings.
func (es *eventStream) drain(done chan<- struct{}) {
	defer close(done)
	_ = es.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	es.conn.SetPongHandler(func(string) error {
		return es.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := es.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// wsEventsHandler replays the recent backlog, then streams live journal
// events. ?prefix=scene.,operation. narrows both to matching names.
func (s *Server) wsEventsHandler(w http.ResponseWriter, r *http.Request) {
	filter := events.ParseFilter(r.URL.Query().Get("prefix"))
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	es := &eventStream{conn: conn, filter: filter}

	// Subscribe before the snapshot so nothing emitted in between is lost.
	sub := s.journal.Subscribe()
	defer s.journal.Unsubscribe(sub)

	backlog := filter.Apply(s.journal.Snapshot())
	if len(backlog) > wsBacklog {
		backlog = backlog[len(backlog)-wsBacklog:]
	}
	for _, e := range backlog {
		if err := es.send(e); err != nil {
			s.log.Debug("ws backlog write failed", zap.Error(err))
			return
		}
	}

	done := make(chan struct{})
	go es.drain(done)

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := es.ping(); err != nil {
				return
			}
		case e, ok := <-sub:
			if !ok {
				return
			}
			if !es.filter.Match(e) {
				continue
			}
			if err := es.send(e); err != nil {
				s.log.Debug("ws write failed", zap.Error(err))
				return
			}
		}
	}
}
