package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sitecraft/sitecraft/dao/model"
	"github.com/sitecraft/sitecraft/internal/resputil"
	"github.com/sitecraft/sitecraft/internal/util"
	"github.com/sitecraft/sitecraft/pkg/meeting"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewMeetingMgr)
}

type MeetingMgr struct {
	name     string
	meetings *meeting.Service
}

func NewMeetingMgr(conf *RegisterConfig) Manager {
	return &MeetingMgr{
		name:     "meetings",
		meetings: conf.Meetings,
	}
}

func (mgr *MeetingMgr) GetName() string { return mgr.name }

func (mgr *MeetingMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *MeetingMgr) RegisterProtected(g *gin.RouterGroup) {
	g.POST("/create", mgr.CreateMeeting)
	g.GET("/join", mgr.JoinMeeting)
}

func (mgr *MeetingMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type MeetingResp struct {
	ID            uint              `json:"id"`
	ProjectID     uint              `json:"projectId"`
	Kind          model.MeetingKind `json:"kind"`
	RoomName      string            `json:"roomName"`
	RoomURL       string            `json:"roomUrl"`
	HostID        uint              `json:"hostId"`
	ParticipantID uint              `json:"participantId"`
	CreatedAt     time.Time         `json:"createdAt"`
}

func toMeetingResp(m *model.MeetingSession) MeetingResp {
	return MeetingResp{
		ID:            m.ID,
		ProjectID:     m.ProjectID,
		Kind:          m.Kind,
		RoomName:      m.RoomName,
		RoomURL:       m.RoomURL,
		HostID:        m.HostID,
		ParticipantID: m.ParticipantID,
		CreatedAt:     m.CreatedAt,
	}
}

type CreateMeetingReq struct {
	ProjectID uint              `json:"projectId" binding:"required"`
	Kind      model.MeetingKind `json:"kind" binding:"omitempty,oneof=screen video"`
}

// CreateMeeting godoc
// @Summary Open a meeting room
// @Description Creates a video or screen sharing room and invites the other participant
// @Tags Meeting
// @Accept json
// @Produce json
// @Security Bearer
// @Param data body CreateMeetingReq true "Meeting"
// @Success 200 {object} resputil.Response[MeetingResp] "The room"
// @Failure 403 {object} resputil.Response[any] "Not a participant"
// @Router /api/meetings/create [post]
func (mgr *MeetingMgr) CreateMeeting(c *gin.Context) {
	var req CreateMeetingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	m, err := mgr.meetings.Create(c, util.GetUser(c), req.ProjectID, req.Kind)
	if err != nil {
		resputil.ServiceError(c, err)
		return
	}
	resputil.Success(c, toMeetingResp(m))
}

type JoinMeetingReq struct {
	Room string `form:"room" binding:"required"`
}

// JoinMeeting godoc
// @Summary Join a meeting room
// @Tags Meeting
// @Accept json
// @Produce json
// @Security Bearer
// @Param room query string true "room name"
// @Success 200 {object} resputil.Response[MeetingResp] "The room"
// @Failure 403 {object} resputil.Response[any] "Not invited"
// @Failure 404 {object} resputil.Response[any] "Unknown room"
// @Router /api/meetings/join [get]
func (mgr *MeetingMgr) JoinMeeting(c *gin.Context) {
	var req JoinMeetingReq
	if err := c.ShouldBindQuery(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	m, err := mgr.meetings.Join(c, util.GetUser(c), req.Room)
	if err != nil {
		resputil.ServiceError(c, err)
		return
	}
	resputil.Success(c, toMeetingResp(m))
}
