package controller

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sharetube/jukebox/internal/domain"
	"github.com/sharetube/jukebox/internal/repository/connection"
	"github.com/sharetube/jukebox/internal/service/room"
	"github.com/sharetube/jukebox/pkg/validator"
	"github.com/sharetube/jukebox/pkg/wsrouter"
)

type iRoomService interface {
	CreateRoom(context.Context, *room.CreateRoomParams) (room.CreateRoomResponse, error)
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
	CloseRoom(context.Context, *room.CloseRoomParams) error
	JoinRoom(context.Context, *room.JoinRoomParams) (room.JoinRoomResponse, error)
	LeaveRoom(context.Context, *room.LeaveRoomParams) error
	SetHost(context.Context, *room.SetHostParams) (*domain.Room, error)
	UpdateSettings(context.Context, *room.UpdateSettingsParams) (*domain.Room, error)
	// rotation
	JoinRotation(context.Context, *room.JoinRotationParams) (room.JoinRotationResponse, error)
	LeaveRotation(context.Context, *room.LeaveRotationParams) error
	AddToRotationQueue(context.Context, *room.AddToRotationQueueParams) (room.AddToRotationQueueResponse, error)
	RemoveFromRotationQueue(context.Context, *room.RemoveFromRotationQueueParams) error
	// queue
	AddToQueue(context.Context, *room.AddToQueueParams) (room.AddToQueueResponse, error)
	RemoveFromQueue(context.Context, *room.RemoveFromQueueParams) error
	ChangeTrack(context.Context, *room.ChangeTrackParams) (room.ChangeTrackResponse, error)
	// player
	Skip(context.Context, *room.SkipParams) (room.SkipResponse, error)
	Pause(context.Context, *room.PlaybackParams) (room.PlaybackResponse, error)
	Resume(context.Context, *room.PlaybackParams) (room.PlaybackResponse, error)
	Seek(context.Context, *room.SeekParams) (room.PlaybackResponse, error)
	GetPosition(ctx context.Context, roomID string) (room.PositionResponse, error)
	ReportPosition(context.Context, *room.ReportPositionParams) (room.ReportPositionResponse, error)
	// votes
	Vote(context.Context, *room.VoteParams) (room.VoteResponse, error)
	Unvote(context.Context, *room.VoteParams) (room.VoteTally, error)
	Votes(ctx context.Context, roomID string) (room.VoteTally, error)
}

type iConnRepo interface {
	Add(*connection.Conn) error
	Remove(*websocket.Conn) error
	Get(*websocket.Conn) (*connection.Conn, error)
}

type controller struct {
	roomService  iRoomService
	connRepo     iConnRepo
	upgrader     websocket.Upgrader
	validate     *validator.Validator
	logger       *slog.Logger
	writeTimeout time.Duration
	wsRouter     *wsrouter.WSRouter
	// samples holds the last position report of each connection.
	samples sync.Map
}

func NewController(roomService iRoomService, connRepo iConnRepo, logger *slog.Logger, writeTimeout time.Duration) *controller {
	c := &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService:  roomService,
		connRepo:     connRepo,
		validate:     validator.NewValidator(),
		logger:       logger,
		writeTimeout: writeTimeout,
	}
	c.wsRouter = c.newWSRouter()

	return c
}
