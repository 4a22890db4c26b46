package server

import "github.com/gin-gonic/gin"

// ok replies 200 with {ok:true} merged over the payload fields.
func ok(c *gin.Context, payload gin.H) {
	body := gin.H{"ok": true}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(200, body)
}

// fail replies with {ok:false, error, detail?}.
func fail(c *gin.Context, status int, message string, detail error) {
	body := gin.H{"ok": false, "error": message}
	if detail != nil {
		body["detail"] = detail.Error()
	}
	c.JSON(status, body)
}
