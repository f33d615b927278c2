// Package response writes the {code, message, data} envelope. Errors are
// reported in the body with HTTP 200.
package response

import (
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"
)

type codeErr struct {
	code uint32
	msg  string
}

func (e codeErr) Error() string {
	return e.msg
}

func (e codeErr) Code() uint32 {
	return e.code
}

func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

func Error(c *gin.Context, code int, message string) {
	proxyutil.FailJson(c, 200, codeErr{code: uint32(code), msg: message})
}

// Abort writes the error and stops the remaining handlers.
func Abort(c *gin.Context, code int, message string) {
	Error(c, code, message)
	c.Abort()
}
