package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const wsIdlePingInterval = 30 * time.Second

// wsRequest is one independent call over a websocket. ID is echoed back so
// clients can match replies.
type wsRequest struct {
	Op     string          `json:"op"`
	ID     string          `json:"id,omitempty"`
	Params json.RawMessage `json:"params"`
}

type wsReply struct {
	Op     string `json:"op"`
	ID     string `json:"id,omitempty"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	// Status mirrors the HTTP status the same request would get.
	Status int `json:"status"`
}

type wsOp func(params json.RawMessage) (any, error)

func bindOp[Req, Resp any](op func(Req) (Resp, error)) wsOp {
	return func(params json.RawMessage) (any, error) {
		var req Req
		if len(params) > 0 {
			if err := json.Unmarshal(params, &req); err != nil {
				return nil, fmt.Errorf("%w: %v", errBadRequest, err)
			}
		}
		return op(req)
	}
}

func (s *Server) wsOps() map[string]wsOp {
	return map[string]wsOp{
		"explore":     bindOp(s.Explore),
		"predict":     bindOp(s.Predict),
		"reconstruct": bindOp(s.Reconstruct),
	}
}

func (s *Server) dispatch(ops map[string]wsOp, raw []byte) wsReply {
	var req wsRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return wsReply{Error: err.Error(), Status: http.StatusBadRequest}
	}
	reply := wsReply{Op: req.Op, ID: req.ID}
	op, ok := ops[req.Op]
	if !ok {
		reply.Error = fmt.Sprintf("unknown op %q", req.Op)
		reply.Status = http.StatusBadRequest
		return reply
	}
	res, err := op(req.Params)
	if err != nil {
		reply.Error = err.Error()
		reply.Status = statusFor(err)
		return reply
	}
	reply.Result = res
	reply.Status = http.StatusOK
	return reply
}

func writeWSWithHeartbeat(conn *websocket.Conn, send <-chan []byte) error {
	ticker := time.NewTicker(wsIdlePingInterval)
	defer ticker.Stop()
	lastWrite := time.Now()

	for {
		select {
		case msg, ok := <-send:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return nil
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return err
			}
			lastWrite = time.Now()
		case <-ticker.C:
			if time.Since(lastWrite) < wsIdlePingInterval {
				continue
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				return err
			}
			lastWrite = time.Now()
		}
	}
}

// handleWS serves requests one message at a time. Replies go out in request
// order.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(maxRequestBytes)

	send := make(chan []byte, 16)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer conn.Close()
		if err := writeWSWithHeartbeat(conn, send); err != nil {
			log.Debug().Err(err).Msg("ws-write-failed")
		}
	}()

	ops := s.wsOps()
	for {
		mt, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if mt != websocket.TextMessage {
			continue
		}
		data, err := json.Marshal(s.dispatch(ops, raw))
		if err != nil {
			log.Error().Err(err).Msg("ws-encode-failed")
			continue
		}
		select {
		case send <- data:
		case <-writerDone:
		}
	}
	close(send)
	<-writerDone
}
