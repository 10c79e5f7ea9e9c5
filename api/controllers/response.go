package controllers

import (
	"net/http"

	"github.com/go-chi/render"
)

// APIResponse 统一API响应结构
type APIResponse struct {
	Status int         `json:"status" example:"0"`
	Msg    string      `json:"msg" example:"操作成功"`
	Data   interface{} `json:"data,omitempty"`
}

// writeSuccess 写入成功响应
func writeSuccess(w http.ResponseWriter, r *http.Request, msg string, data interface{}) {
	render.JSON(w, r, &APIResponse{Status: 0, Msg: msg, Data: data})
}

// writeError 写入错误响应
func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	render.Status(r, code)
	render.JSON(w, r, &APIResponse{Status: code, Msg: msg})
}
