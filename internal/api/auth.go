package api

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const authRealm = "RiverReport"

// BasicAuth 只有配置了 APP_BASIC_USER / APP_BASIC_PASS 才挂上。
// public 中的路径免认证；不传时只放行 /health。
func BasicAuth(user, pass string, public ...string) gin.HandlerFunc {
	if len(public) == 0 {
		public = []string{"/health"}
	}
	open := make(map[string]struct{}, len(public))
	for _, p := range public {
		open[p] = struct{}{}
	}
	// 比较摘要而不是原文，耗时与凭据长度无关
	want := credentialDigest(user, pass)

	return func(c *gin.Context) {
		if _, ok := open[c.Request.URL.Path]; ok {
			c.Next()
			return
		}
		u, p, ok := c.Request.BasicAuth()
		if ok {
			got := credentialDigest(u, p)
			if subtle.ConstantTimeCompare(got[:], want[:]) == 1 {
				c.Next()
				return
			}
		}
		c.Header("WWW-Authenticate", `Basic realm="`+authRealm+`", charset="UTF-8"`)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"code":    "unauthorized",
			"message": "authentication required",
		})
	}
}

func credentialDigest(user, pass string) [sha256.Size]byte {
	return sha256.Sum256([]byte(user + "\x00" + pass))
}
