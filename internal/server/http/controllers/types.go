package controllers

import "github.com/rzbill/spool/internal/codec"

// putReq is the body of a record enqueue. It is the record itself.
type putReq = codec.Record

type countResp struct {
	Group string `json:"group"`
	Count int    `json:"count"`
}

type flushResp struct {
	Sent  int    `json:"sent"`
	Error string `json:"error,omitempty"`
}

type groupsResp struct {
	Groups []countResp `json:"groups"`
}
