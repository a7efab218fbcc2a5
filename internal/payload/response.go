package payload

// 定义返回值时，优先在使用到该返回值的 /internal/handler/xxx.go 中直接定义
// 当某个返回值的结构体通用时，从 /internal/handler/xxx.go 中提升至此文件中

type (
	// IDReq binds the :id path parameter.
	IDReq struct {
		ID uint `uri:"id" binding:"required"`
	}

	CountResp struct {
		Count int64 `json:"count"`
	}
)
