package handler

import (
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/go-playground/validator/v10"
)

// validate 请求体校验器，handler包内共享一个实例
var validate = validator.New()

// UploaderContextKey keyauth中间件写入请求上下文的身份键
const UploaderContextKey = "uploader"

// respondError 统一的错误响应格式
func respondError(ctx *app.RequestContext, statusCode int, message string) {
	ctx.JSON(statusCode, utils.H{"error": message})
}

// pagination 解析page/size查询参数，越界时回退默认值
func pagination(ctx *app.RequestContext) (page, size int) {
	page, _ = strconv.Atoi(ctx.Query("page"))
	if page < 1 {
		page = 1
	}
	size, _ = strconv.Atoi(ctx.Query("size"))
	if size < 1 || size > 100 {
		size = 20
	}
	return page, size
}

// uploaderFrom 取出认证中间件写入的上传者身份
func uploaderFrom(ctx *app.RequestContext) string {
	if v, ok := ctx.Get(UploaderContextKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "anonymous"
}
