package message

import (
	"context"
	"net/http"
	"strings"

	"PChat/logger"
	"PChat/middleware"
	midsec "PChat/middleware/security"
	"PChat/module/message/model"
	"PChat/module/message/store"
	usermodel "PChat/module/user/model"
	"PChat/service/storage"
	"PChat/tools/apiresp"
	"PChat/tools/errs"
	"PChat/tools/safe"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Relay pushes persisted changes to the live connection of the other party.
type Relay interface {
	RelayNewMessage(msg *model.Message) bool
	RelayMessageDeleted(messageID, receiverID string) bool
}

// Users is the slice of the account service the message routes need.
type Users interface {
	Exists(ctx context.Context, userID string) (bool, error)
	Contacts(ctx context.Context, userID string) ([]*usermodel.User, error)
	FindByIDs(ctx context.Context, userIDs []string) ([]*usermodel.User, error)
}

type Handler struct {
	msgs   store.Store
	users  Users
	images storage.ImageStore
	relay  Relay
	log    *zap.Logger
}

func NewHandler(msgs store.Store, users Users, images storage.ImageStore, relay Relay) *Handler {
	safe.MustNotNil(msgs, "message store")
	safe.MustNotNil(users, "users")
	safe.MustNotNil(images, "image store")
	safe.MustNotNil(relay, "relay")
	return &Handler{msgs: msgs, users: users, images: images, relay: relay, log: logger.Named("message")}
}

// RegisterRoutes mounts /api/messages/*; every route needs a session.
func (h *Handler) RegisterRoutes(rt *middleware.Router) {
	auth := middleware.RouteOpt{IsAuth: true}
	rt.GET("/api/messages/contacts", h.Contacts, auth)
	rt.GET("/api/messages/chats", h.ChatPartners, auth)
	rt.GET("/api/messages/:id", h.History, auth)
	rt.POST("/api/messages/send/:id", h.Send, auth)
	rt.DELETE("/api/messages/:id", h.Delete, auth)
}

func publicUsers(in []*usermodel.User) []usermodel.User {
	out := make([]usermodel.User, 0, len(in))
	for _, u := range in {
		out = append(out, u.Public())
	}
	return out
}

func (h *Handler) Contacts(c *gin.Context) {
	users, err := h.users.Contacts(c.Request.Context(), midsec.UserID(c))
	if err != nil {
		apiresp.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, publicUsers(users))
}

func (h *Handler) ChatPartners(c *gin.Context) {
	ctx := c.Request.Context()
	ids, err := h.msgs.ChatPartners(ctx, midsec.UserID(c))
	if err != nil {
		apiresp.Error(c, err)
		return
	}
	users, err := h.users.FindByIDs(ctx, ids)
	if err != nil {
		apiresp.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, publicUsers(users))
}

func (h *Handler) History(c *gin.Context) {
	msgs, err := h.msgs.FindMessagesBetween(c.Request.Context(), midsec.UserID(c), c.Param("id"))
	if err != nil {
		apiresp.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

type SendReq struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

// Send persists first and relays after the response is written; a failed
// write never reaches the receiver.
func (h *Handler) Send(c *gin.Context) {
	var in SendReq
	if err := c.ShouldBindJSON(&in); err != nil {
		apiresp.Error(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	ctx := c.Request.Context()
	sender, receiver := midsec.UserID(c), c.Param("id")

	if strings.TrimSpace(in.Text) == "" && strings.TrimSpace(in.Image) == "" {
		apiresp.Error(c, errs.ErrArgs.WrapMsg("text or image is required"))
		return
	}
	if sender == receiver {
		apiresp.Error(c, errs.ErrArgs.WrapMsg("cannot send a message to yourself"))
		return
	}
	ok, err := h.users.Exists(ctx, receiver)
	if err != nil {
		apiresp.Error(c, err)
		return
	}
	if !ok {
		apiresp.Error(c, errs.ErrRecordNotFound.WrapMsg("receiver not found"))
		return
	}
	image, err := h.images.Put(ctx, in.Image)
	if err != nil {
		apiresp.Error(c, err)
		return
	}

	msg, err := h.msgs.CreateMessage(ctx, sender, receiver, in.Text, image)
	if err != nil {
		apiresp.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)

	if !h.relay.RelayNewMessage(msg) {
		h.log.Debug("new message not relayed", zap.String("msg", msg.ID), zap.String("to", receiver))
	}
}

// Delete lets either participant remove a message; the other one is told.
func (h *Handler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	caller, id := midsec.UserID(c), c.Param("id")

	msg, err := h.msgs.FindMessage(ctx, id)
	if err != nil {
		apiresp.Error(c, err)
		return
	}
	if !msg.Involves(caller) {
		apiresp.Error(c, errs.ErrForbidden.WrapMsg("not a participant of this message"))
		return
	}
	if err := h.msgs.DeleteMessage(ctx, id); err != nil {
		apiresp.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "messageId": id})

	h.relay.RelayMessageDeleted(id, msg.Counterpart(caller))
}
