// Package response 统一的JSON响应格式: {"success": bool, "message": string, ...data}
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body 构造响应体, data中的键平铺到顶层
// success和message不会被data覆盖
func Body(success bool, message string, data gin.H) gin.H {
	body := make(gin.H, len(data)+2)
	for k, v := range data {
		body[k] = v
	}
	body["success"] = success
	body["message"] = message
	return body
}

// Success 写入成功响应
func Success(c *gin.Context, status int, message string, data gin.H) {
	c.JSON(status, Body(true, message, data))
}

// OK 200
func OK(c *gin.Context, message string, data gin.H) {
	if message == "" {
		message = "Success"
	}
	Success(c, http.StatusOK, message, data)
}

// Created 201
func Created(c *gin.Context, message string, data gin.H) {
	if message == "" {
		message = "Created successfully"
	}
	Success(c, http.StatusCreated, message, data)
}

// Fail 写入失败响应
func Fail(c *gin.Context, status int, message string) {
	c.JSON(status, Body(false, message, nil))
}

func BadRequest(c *gin.Context, message string) {
	if message == "" {
		message = "Bad request"
	}
	Fail(c, http.StatusBadRequest, message)
}

func Unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "Unauthorized"
	}
	Fail(c, http.StatusUnauthorized, message)
}

func Forbidden(c *gin.Context, message string) {
	if message == "" {
		message = "Forbidden"
	}
	Fail(c, http.StatusForbidden, message)
}

func NotFound(c *gin.Context, message string) {
	if message == "" {
		message = "Not found"
	}
	Fail(c, http.StatusNotFound, message)
}

func Error(c *gin.Context, message string) {
	if message == "" {
		message = "Something went wrong"
	}
	Fail(c, http.StatusInternalServerError, message)
}
