package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/izin-asrama-api/internal/middleware"
	"github.com/noah-isme/izin-asrama-api/internal/models"
)

// actorFromContext converts the authenticated claims into a workflow actor.
// A request without claims yields the zero Actor, which services reject.
func actorFromContext(c *gin.Context) models.Actor {
	return middleware.Claims(c).Actor()
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// queryList accepts both repeated keys and comma separated values.
func queryList(c *gin.Context, key string) []string {
	var out []string
	for _, raw := range c.QueryArray(key) {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
