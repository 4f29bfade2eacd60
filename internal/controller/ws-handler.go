package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sharetube/jukebox/internal/apperr"
	"github.com/sharetube/jukebox/internal/repository/connection"
	"github.com/sharetube/jukebox/internal/service/room"
	"github.com/sharetube/jukebox/pkg/ctxlogger"
	"github.com/sharetube/jukebox/pkg/rest"
	"github.com/sharetube/jukebox/pkg/wsrouter"
)

const (
	typeRoomState      = "room_state"
	typeDrift          = "drift"
	typePosition       = "position"
	typeVote           = "vote"
	typeError          = "error"
	typeAlive          = "alive"
	typePositionReport = "position_report"
	typeGetPosition    = "get_position"
)

type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func (c *controller) newWSRouter() *wsrouter.WSRouter {
	router := wsrouter.New()
	router.Use(c.wsRequestIdMw, c.wsLoggerMw)
	router.OnError(c.writeWSError)

	router.Handle(typeAlive, c.handleAlive)
	router.Handle(typePositionReport, c.handlePositionReport)
	router.Handle(typeGetPosition, c.handleGetPosition)
	router.Handle(typeVote, c.handleVote)

	return router
}

// wsUserID reads the user id header, falling back to the query string since
// browsers cannot set headers on a websocket handshake.
func (c *controller) wsUserID(r *http.Request) (string, error) {
	userID, err := c.MustHeader(r, userIDHeader)
	if err == nil {
		return userID, nil
	}

	if userID := r.URL.Query().Get("user-id"); userID != "" {
		return userID, nil
	}

	return "", err
}

func (c *controller) serveWS(w http.ResponseWriter, r *http.Request) {
	userID, err := c.wsUserID(r)
	if err != nil {
		rest.WriteJSON(w, http.StatusUnauthorized, rest.Envelope{"error": err.Error()})
		return
	}

	roomID := urlRoomID(r)
	rm, err := c.roomService.GetRoom(r.Context(), roomID)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	if !rm.IsMember(userID) {
		c.writeError(w, r, room.ErrNotMember)
		return
	}

	ws, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.InfoContext(r.Context(), "failed to upgrade connection", "error", err)
		return
	}

	conn := connection.NewConn(ws, roomID, userID)
	if err := c.connRepo.Add(conn); err != nil {
		c.logger.ErrorContext(r.Context(), "failed to register connection", "error", err)
		ws.Close()
		return
	}
	defer func() {
		c.samples.Delete(ws)
		c.connRepo.Remove(ws)
	}()

	ctx := context.WithValue(r.Context(), roomIDCtxKey, roomID)
	ctx = context.WithValue(ctx, userIDCtxKey, userID)
	ctx = ctxlogger.AppendCtx(ctx, slog.String("room_id", roomID))
	ctx = ctxlogger.AppendCtx(ctx, slog.String("user_id", userID))

	if err := conn.WriteJSON(Output{Type: typeRoomState, Payload: rm}, c.writeTimeout); err != nil {
		c.logger.InfoContext(ctx, "failed to send room state", "error", err)
		return
	}

	c.logger.InfoContext(ctx, "ws connected")
	err = c.wsRouter.ServeConn(ctx, ws)
	if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
		c.logger.InfoContext(ctx, "ws closed unexpectedly", "error", err)
	}
	c.logger.InfoContext(ctx, "ws disconnected")
}

func (c *controller) reply(ws *websocket.Conn, out Output) error {
	conn, err := c.connRepo.Get(ws)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}

	return conn.WriteJSON(out, c.writeTimeout)
}

func (c *controller) writeWSError(ctx context.Context, ws *websocket.Conn, err error) {
	payload := map[string]any{"message": err.Error()}
	if errors.Is(err, wsrouter.ErrUnknownType) {
		payload["kind"] = apperr.KindValidation
	} else if kind := apperr.KindOf(err); kind != apperr.KindUnknown {
		payload["kind"] = kind
	} else {
		c.logger.ErrorContext(ctx, "ws message failed", "error", err)
		payload["message"] = "internal server error"
	}

	if err := c.reply(ws, Output{Type: typeError, Payload: payload}); err != nil {
		c.logger.InfoContext(ctx, "failed to write ws error", "error", err)
	}
}

func (c *controller) handleAlive(_ context.Context, _ *websocket.Conn, _ json.RawMessage) error {
	return nil
}

type positionReport struct {
	TrackID   string  `json:"track_id" validate:"required"`
	Position  float64 `json:"position" validate:"gte=0"`
	HalfRTTMs int64   `json:"half_rtt_ms" validate:"gte=0,lte=10000"`
}

// handlePositionReport answers a client's position report with the drift
// correction it should apply.
func (c *controller) handlePositionReport(ctx context.Context, ws *websocket.Conn, payload json.RawMessage) error {
	var report positionReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return apperr.Wrap(apperr.KindValidation, "malformed position report", err)
	}
	if errs, ok := c.validate.Validate(report); !ok {
		return apperr.New(apperr.KindValidation, fmt.Sprintf("invalid position report: %s", errs[0].Message))
	}

	params := room.ReportPositionParams{
		RoomID:   c.getRoomIDFromCtx(ctx),
		TrackID:  report.TrackID,
		Position: report.Position,
		HalfRTT:  time.Duration(report.HalfRTTMs) * time.Millisecond,
	}
	if prev, ok := c.samples.Load(ws); ok {
		sample := prev.(room.PositionSample)
		params.Previous = &sample
	}

	resp, err := c.roomService.ReportPosition(ctx, &params)
	if err != nil {
		return err
	}
	c.samples.Store(ws, resp.Sample)

	return c.reply(ws, Output{Type: typeDrift, Payload: resp})
}

func (c *controller) handleGetPosition(ctx context.Context, ws *websocket.Conn, _ json.RawMessage) error {
	resp, err := c.roomService.GetPosition(ctx, c.getRoomIDFromCtx(ctx))
	if err != nil {
		return err
	}

	return c.reply(ws, Output{Type: typePosition, Payload: resp})
}

func (c *controller) handleVote(ctx context.Context, ws *websocket.Conn, _ json.RawMessage) error {
	resp, err := c.roomService.Vote(ctx, &room.VoteParams{
		RoomID: c.getRoomIDFromCtx(ctx),
		UserID: c.getUserIDFromCtx(ctx),
	})
	if err != nil {
		return err
	}

	return c.reply(ws, Output{Type: typeVote, Payload: resp})
}
