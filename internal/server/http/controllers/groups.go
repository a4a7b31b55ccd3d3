package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/rzbill/spool/internal/runtime"
	channelsvc "github.com/rzbill/spool/internal/services/channels"
	logpkg "github.com/rzbill/spool/pkg/log"
)

// maxRecordBytes bounds a single enqueue body.
const maxRecordBytes = 1 << 20

// GroupsController exposes the buffer's administrative operations per
// persistence group.
type GroupsController struct {
	rt  *runtime.Runtime
	ch  *channelsvc.Service
	log logpkg.Logger
}

// NewGroupsController creates a controller over the runtime's channel.
func NewGroupsController(rt *runtime.Runtime) *GroupsController {
	return &GroupsController{
		rt:  rt,
		ch:  rt.Channel(),
		log: rt.Logger().With(logpkg.Component("http")),
	}
}

// RegisterRoutes registers group routes with the given mux.
func (c *GroupsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/groups", c.handleList)
	mux.HandleFunc("GET /v1/groups/{group}/count", c.handleCount)
	mux.HandleFunc("POST /v1/groups/{group}/records", c.handlePut)
	mux.HandleFunc("POST /v1/groups/{group}/flush", c.handleFlush)
	mux.HandleFunc("DELETE /v1/groups/{group}", c.handlePurge)
	mux.HandleFunc("DELETE /v1/records", c.handleClear)
}

// handleList reports the stored count of every configured group.
func (c *GroupsController) handleList(w http.ResponseWriter, r *http.Request) {
	groups := c.ch.Groups()
	resp := groupsResp{Groups: make([]countResp, 0, len(groups))}
	for _, g := range groups {
		n, err := c.ch.Count(g)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		resp.Groups = append(resp.Groups, countResp{Group: g, Count: n})
	}
	writeJSON(w, resp)
}

func (c *GroupsController) handleCount(w http.ResponseWriter, r *http.Request) {
	group := r.PathValue("group")
	n, err := c.ch.Count(group)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, countResp{Group: group, Count: n})
}

// handlePut stores one record. Returns 202 Accepted once it is durable.
func (c *GroupsController) handlePut(w http.ResponseWriter, r *http.Request) {
	var req putReq
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRecordBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	group := r.PathValue("group")
	if err := c.ch.Enqueue(r.Context(), group, req); err != nil {
		c.log.Debug("enqueue failed", logpkg.Group(group), logpkg.Err(err))
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleFlush sends the group's records now. A send failure is reported as
// 502 with the number of records delivered before it.
func (c *GroupsController) handleFlush(w http.ResponseWriter, r *http.Request) {
	group := r.PathValue("group")
	n, err := c.ch.Flush(r.Context(), group)
	if err != nil {
		c.log.Warn("flush failed", logpkg.Group(group), logpkg.Int("sent", n), logpkg.Err(err))
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		writeJSONStatus(w, status, flushResp{Sent: n, Error: err.Error()})
		return
	}
	writeJSON(w, flushResp{Sent: n})
}

func (c *GroupsController) handlePurge(w http.ResponseWriter, r *http.Request) {
	if err := c.ch.Purge(r.PathValue("group")); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeNoContent(w)
}

func (c *GroupsController) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := c.ch.Clear(); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeNoContent(w)
}
